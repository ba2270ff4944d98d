// Package metrics holds the Prometheus collectors for the application
// layer. The geometry core never touches them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/tally"
)

// Metrics is the set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Locates   *prometheus.CounterVec
	PlotTime  prometheus.Histogram
	TallyHits *prometheus.CounterVec
	Evals     *prometheus.CounterVec
	MeshTime  prometheus.Histogram
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		Locates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuelgeom",
			Name:      "locate_total",
			Help:      "Point location queries by outcome.",
		}, []string{"status"}),
		PlotTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fuelgeom",
			Name:      "plot_seconds",
			Help:      "Time to sample one plot raster.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		TallyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuelgeom",
			Name:      "tally_hits_total",
			Help:      "Tally bins hit by classified events.",
		}, []string{"tally"}),
		Evals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuelgeom",
			Name:      "eval_total",
			Help:      "Model script evaluations by result.",
		}, []string{"result"}),
		MeshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fuelgeom",
			Name:      "tessellate_seconds",
			Help:      "Time to tessellate one geometry.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	reg.MustRegister(m.Locates, m.PlotTime, m.TallyHits, m.Evals, m.MeshTime)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Eval results.
const (
	EvalOK      = "ok"
	EvalInvalid = "invalid"
	EvalFailed  = "failed"
)

// ObserveLocate counts one location query.
func (m *Metrics) ObserveLocate(status geometry.Status) {
	m.Locates.WithLabelValues(status.String()).Inc()
}

// ObservePlot records how long a plot took.
func (m *Metrics) ObservePlot(d time.Duration) { m.PlotTime.Observe(d.Seconds()) }

// ObserveMesh records how long a tessellation took.
func (m *Metrics) ObserveMesh(d time.Duration) { m.MeshTime.Observe(d.Seconds()) }

// ObserveHits counts tally hits by tally name.
func (m *Metrics) ObserveHits(hits []tally.Hit) {
	for _, h := range hits {
		m.TallyHits.WithLabelValues(h.Tally.Name).Inc()
	}
}

// ObserveEval counts one evaluation.
func (m *Metrics) ObserveEval(result string) { m.Evals.WithLabelValues(result).Inc() }
