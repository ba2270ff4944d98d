package export

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/fuelgeom/pkg/assembly"
	"github.com/chazu/fuelgeom/pkg/blob"
	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/store"
	"github.com/chazu/fuelgeom/pkg/tally"
)

func pinModel(t *testing.T) *model.Model {
	t.Helper()
	lib, mats, err := assembly.StandardMaterials()
	require.NoError(t, err)
	b := geometry.NewBuilder()
	b.UseMaterials(lib)
	pin, fuel, err := assembly.FuelPin(b, assembly.DefaultPin(), mats)
	require.NoError(t, err)
	g, err := b.Build(pin)
	require.NoError(t, err)
	return &model.Model{
		Name:      "pin cell",
		Materials: lib,
		Geometry:  g,
		Settings:  model.Settings{Particles: 100, Batches: 10, Inactive: 2},
		Tallies: []*tally.Tally{{
			ID:      1,
			Name:    "fuel",
			Filters: []tally.Filter{tally.CellFilter{Cells: []*geometry.Cell{fuel}}},
			Scores:  []tally.Score{tally.ScoreFission},
		}},
		Plots: []plot.Spec{{
			Name: "pin xy", Origin: csg.Vec3{}, Width: 1.26, Height: 1.26,
			Pixels: [2]int{16, 16}, Basis: plot.BasisXY, ColorBy: plot.ByMaterial,
		}},
	}
}

func readBlob(t *testing.T, s blob.Store, key string) []byte {
	t.Helper()
	_, rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestExportWritesAndCatalogs(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	cat, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer cat.Close()

	ex := New(blobs, cat, nil)
	res, err := ex.Export(ctx, pinModel(t), Options{Source: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Run.ID)

	prefix := "runs/" + res.Run.ID + "/"
	want := []string{
		prefix + "geometry.json",
		prefix + "materials.json",
		prefix + "plots/pin_xy.png",
		prefix + "settings.json",
		prefix + "tallies.json",
	}
	listed, err := blobs.List(ctx, prefix)
	require.NoError(t, err)
	var keys []string
	for _, l := range listed {
		keys = append(keys, l.Key)
	}
	assert.Equal(t, want, keys)

	arts, err := cat.Artifacts(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Len(t, arts, len(want))
	runs, err := cat.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "pin cell", runs[0].Name)
	assert.Contains(t, runs[0].Summary, `"cells":4`)

	var mats []map[string]any
	require.NoError(t, json.Unmarshal(readBlob(t, blobs, prefix+"materials.json"), &mats))
	assert.Len(t, mats, 4)

	var geo Geometry
	require.NoError(t, json.Unmarshal(readBlob(t, blobs, prefix+"geometry.json"), &geo))
	assert.Len(t, geo.Cells, 4)
	assert.Equal(t, "fuel", geo.Cells[0].Name)
	assert.Len(t, geo.Surfaces, 4)

	var tallies []Tally
	require.NoError(t, json.Unmarshal(readBlob(t, blobs, prefix+"tallies.json"), &tallies))
	require.Len(t, tallies, 1)
	assert.Equal(t, 1, tallies[0].Bins)
	assert.True(t, strings.HasPrefix(tallies[0].Filters[0], "cell"), tallies[0].Filters[0])

	img, err := png.Decode(bytes.NewReader(readBlob(t, blobs, prefix+"plots/pin_xy.png")))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestExportWithoutCatalogOrGeometry(t *testing.T) {
	blobs := blob.NewMemory()
	m := pinModel(t)
	m.Geometry = nil

	res, err := New(blobs, nil, nil).Export(context.Background(), m, Options{})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, KindMaterials, res.Artifacts[0].Kind)
	assert.Equal(t, KindSettings, res.Artifacts[1].Kind)
}

func TestExportSkipPlotsAndScale(t *testing.T) {
	blobs := blob.NewMemory()
	ex := New(blobs, nil, nil)
	res, err := ex.Export(context.Background(), pinModel(t), Options{SkipPlots: true})
	require.NoError(t, err)
	for _, a := range res.Artifacts {
		assert.NotEqual(t, KindPlot, a.Kind)
	}

	ex.PlotScale = 3
	res, err = ex.Export(context.Background(), pinModel(t), Options{})
	require.NoError(t, err)
	last := res.Artifacts[len(res.Artifacts)-1]
	require.Equal(t, KindPlot, last.Kind)
	img, err := png.Decode(bytes.NewReader(readBlob(t, blobs, last.Key)))
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
}

func TestExportErrors(t *testing.T) {
	_, err := (&Exporter{}).Export(context.Background(), &model.Model{}, Options{})
	assert.Error(t, err)
	_, err = New(blob.NewMemory(), nil, nil).Export(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestPlotFile(t *testing.T) {
	assert.Equal(t, "fuel_assembly_plot.png", PlotFile(0, "fuel_assembly_plot"))
	assert.Equal(t, "a_b_c.png", PlotFile(0, "a/b c"))
	assert.Equal(t, "plot3.png", PlotFile(2, ""))
	assert.Equal(t, "plot1.png", PlotFile(0, ".."))
}
