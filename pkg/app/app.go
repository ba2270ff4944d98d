// Package app wires the model engine, geometry queries, plotting,
// tessellation and export behind the operations the CLI and HTTP server
// expose.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/fuelgeom/pkg/assembly"
	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/engine"
	"github.com/chazu/fuelgeom/pkg/export"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/kernel"
	"github.com/chazu/fuelgeom/pkg/kernel/sdfx"
	"github.com/chazu/fuelgeom/pkg/material"
	"github.com/chazu/fuelgeom/pkg/metrics"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/tally"
	"github.com/chazu/fuelgeom/pkg/tessellate"
)

var (
	// ErrNoGeometry is returned by queries against a model without geometry.
	ErrNoGeometry = errors.New("model has no geometry")
	// ErrNoExporter is returned by Export when no sink is configured.
	ErrNoExporter = errors.New("no export sink configured")
)

// App is the backend shared by the CLI commands and the HTTP server.
type App struct {
	engine   *engine.Engine
	kernel   kernel.Kernel
	logger   *zap.Logger
	metrics  *metrics.Metrics
	exporter *export.Exporter

	palette     plot.Palette
	plotWorkers int
	mesh        tessellate.Options
}

// Options configure New. Zero values select defaults.
type Options struct {
	EvalTimeout time.Duration
	Kernel      kernel.Kernel
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Exporter    *export.Exporter
	Palette     *plot.Palette
	PlotWorkers int
	Mesh        tessellate.Options
}

// New creates an App. Without a kernel it uses sdfx at its default
// resolution; without metrics it registers on a private registry.
func New(opts Options) *App {
	a := &App{
		engine:      engine.NewEngine(),
		kernel:      opts.Kernel,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		exporter:    opts.Exporter,
		palette:     plot.DefaultPalette(),
		plotWorkers: opts.PlotWorkers,
		mesh:        opts.Mesh,
	}
	if opts.EvalTimeout > 0 {
		a.engine.Timeout = opts.EvalTimeout
	}
	if a.kernel == nil {
		a.kernel = sdfx.New()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.metrics == nil {
		a.metrics = metrics.New(nil)
	}
	if opts.Palette != nil {
		a.palette = *opts.Palette
	}
	return a
}

// Metrics returns the collectors the App records into.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// WarningData is a JSON-serializable model warning.
type WarningData struct {
	Object  string `json:"object"`
	Message string `json:"message"`
}

// EvalResult is the outcome of building a model.
type EvalResult struct {
	Model     *model.Model      `json:"-"`
	Summary   *geometry.Summary `json:"summary,omitempty"`
	Materials []string          `json:"materials"`
	Tallies   []string          `json:"tallies"`
	Plots     []string          `json:"plots"`
	Errors    []EvalErrorData   `json:"errors"`
	Warnings  []WarningData     `json:"warnings"`
}

// OK reports whether a model was built.
func (r EvalResult) OK() bool { return r.Model != nil && len(r.Errors) == 0 }

func newResult() EvalResult {
	return EvalResult{
		Materials: []string{},
		Tallies:   []string{},
		Plots:     []string{},
		Errors:    []EvalErrorData{},
		Warnings:  []WarningData{},
	}
}

// Evaluate runs a model script and summarises the model it declares.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()

	m, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal: panic, timeout or superseded.
		a.logger.Error("evaluation failed", zap.Error(err))
		a.metrics.ObserveEval(metrics.EvalFailed)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		a.logger.Debug("script rejected", zap.Int("errors", len(evalErrs)))
		a.metrics.ObserveEval(metrics.EvalInvalid)
		return result
	}

	a.metrics.ObserveEval(metrics.EvalOK)
	for _, w := range engine.Warnings(m) {
		result.Warnings = append(result.Warnings, WarningData{Object: w.Object, Message: w.Message})
	}
	a.describe(&result, m)
	return result
}

// Reference builds the reference 17x17 assembly model.
func (a *App) Reference() EvalResult {
	result := newResult()
	m, err := assembly.Reference()
	if err != nil {
		a.logger.Error("reference model failed", zap.Error(err))
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	a.describe(&result, m)
	return result
}

func (a *App) describe(r *EvalResult, m *model.Model) {
	r.Model = m
	if m.Materials != nil {
		for _, mat := range m.Materials.All() {
			r.Materials = append(r.Materials, mat.Name)
		}
	}
	for _, t := range m.Tallies {
		r.Tallies = append(r.Tallies, t.Name)
	}
	for _, p := range m.Plots {
		r.Plots = append(r.Plots, p.Name)
	}
	if m.Geometry != nil {
		s := m.Geometry.Summary()
		r.Summary = &s
	}
	a.logger.Debug("model built",
		zap.String("model", m.Name),
		zap.Int("materials", len(r.Materials)),
		zap.Int("tallies", len(r.Tallies)))
}

// Locate resolves p in m's geometry.
func (a *App) Locate(m *model.Model, p csg.Vec3) (geometry.Location, error) {
	if m == nil || m.Geometry == nil {
		return geometry.Location{}, ErrNoGeometry
	}
	loc := m.Geometry.Locate(p)
	a.metrics.ObserveLocate(loc.Status)
	if loc.Status == geometry.Unresolved {
		a.logger.Warn("unresolved point", zap.Error(loc.Err()))
	}
	return loc, nil
}

// Classify locates p and returns the tally bins an event with the given
// nuclide and reaction would score into. A point that does not resolve
// scores nowhere.
func (a *App) Classify(m *model.Model, c *tally.Classifier, p csg.Vec3, nuclide string, reaction tally.Score) ([]tally.Hit, error) {
	if m == nil || m.Geometry == nil {
		return nil, ErrNoGeometry
	}
	var n material.Nuclide
	if nuclide != "" {
		var err error
		if n, err = material.ParseNuclide(nuclide); err != nil {
			return nil, err
		}
	}
	ev, ok := tally.EventAt(m.Geometry, p, n, reaction)
	if !ok {
		return nil, nil
	}
	hits := c.Classify(ev)
	a.metrics.ObserveHits(hits)
	return hits, nil
}

// Plot samples spec over m's geometry and writes it as a PNG.
func (a *App) Plot(ctx context.Context, m *model.Model, spec plot.Spec, w io.Writer, scale int) (*plot.Raster, error) {
	if m == nil || m.Geometry == nil {
		return nil, ErrNoGeometry
	}
	start := time.Now()
	r, err := plot.Sample(ctx, m.Geometry, spec, plot.Options{Workers: a.plotWorkers})
	if err != nil {
		return nil, err
	}
	a.metrics.ObservePlot(time.Since(start))
	if r.Unresolved > 0 {
		a.logger.Warn("plot has unresolved pixels",
			zap.String("plot", spec.Name), zap.Int("pixels", r.Unresolved))
	}
	if err := plot.WritePNG(w, r, a.palette, scale); err != nil {
		return nil, fmt.Errorf("plot %q: %w", spec.Name, err)
	}
	return r, nil
}

// MeshData is the JSON-serializable form of one tessellated cell.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	CellID   int       `json:"cellId"`
	Cell     string    `json:"cell"`
	Material string    `json:"material"`
	Path     string    `json:"path"`
	Color    string    `json:"color"`
}

// Meshes tessellates m's geometry. Meshes are coloured by material with
// the plot palette so 3D views match slice plots.
func (a *App) Meshes(ctx context.Context, m *model.Model) ([]MeshData, error) {
	if m == nil || m.Geometry == nil {
		return nil, ErrNoGeometry
	}
	start := time.Now()
	meshes, err := tessellate.Geometry(ctx, m.Geometry, a.kernel, a.mesh)
	if err != nil {
		a.logger.Error("tessellation failed", zap.Error(err))
		return nil, fmt.Errorf("tessellation failed: %w", err)
	}
	a.metrics.ObserveMesh(time.Since(start))

	out := make([]MeshData, 0, len(meshes))
	for _, mesh := range meshes {
		out = append(out, MeshData{
			Vertices: mesh.Vertices,
			Normals:  mesh.Normals,
			Indices:  mesh.Indices,
			CellID:   mesh.CellID,
			Cell:     mesh.Cell,
			Material: mesh.Material,
			Path:     mesh.Path,
			Color:    a.materialColor(m, mesh.Material),
		})
	}
	a.logger.Debug("tessellated", zap.Int("meshes", len(out)), zap.Duration("took", time.Since(start)))
	return out, nil
}

func (a *App) materialColor(m *model.Model, name string) string {
	var id int64
	if m.Materials != nil {
		if mat := m.Materials.Lookup(name); mat != nil {
			id = int64(mat.ID)
		}
	}
	c := a.palette.Color(id)
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Export writes m through the configured sink.
func (a *App) Export(ctx context.Context, m *model.Model, opts export.Options) (*export.Result, error) {
	if a.exporter == nil {
		return nil, ErrNoExporter
	}
	res, err := a.exporter.Export(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	a.logger.Info("model exported",
		zap.String("run", res.Run.ID), zap.Int("artifacts", len(res.Artifacts)))
	return res, nil
}
