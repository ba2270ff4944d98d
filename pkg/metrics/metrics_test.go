package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/tally"
)

func TestCounters(t *testing.T) {
	m := New(nil)

	m.ObserveLocate(geometry.Found)
	m.ObserveLocate(geometry.Found)
	m.ObserveLocate(geometry.OutsideDomain)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Locates.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Locates.WithLabelValues("outside_domain")))

	flux := &tally.Tally{Name: "flux"}
	rr := &tally.Tally{Name: "reaction_rates"}
	m.ObserveHits([]tally.Hit{{Tally: flux}, {Tally: rr}, {Tally: rr}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TallyHits.WithLabelValues("flux")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TallyHits.WithLabelValues("reaction_rates")))

	m.ObserveEval(EvalOK)
	m.ObserveEval(EvalInvalid)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evals.WithLabelValues(EvalInvalid)))

	m.ObservePlot(20 * time.Millisecond)
	m.ObserveMesh(time.Second)
	assert.Equal(t, 2, testutil.CollectAndCount(m.PlotTime)+testutil.CollectAndCount(m.MeshTime))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.ObserveLocate(geometry.Unresolved)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `fuelgeom_locate_total{status="unresolved"} 1`), string(body))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(nil), New(nil)
	a.ObserveEval(EvalOK)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Evals.WithLabelValues(EvalOK)))
	assert.NotSame(t, a.Registry(), b.Registry())
}
