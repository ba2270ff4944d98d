// Package export writes a model to an explicit sink: one JSON document per
// model section plus a PNG per plot, stored as blobs under runs/<id>/ and
// recorded in the run catalog. Nothing is written unless Export is called.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chazu/fuelgeom/pkg/blob"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/store"
	"github.com/chazu/fuelgeom/pkg/tally"
)

// Artifact kinds.
const (
	KindMaterials = "materials"
	KindGeometry  = "geometry"
	KindSettings  = "settings"
	KindTallies   = "tallies"
	KindPlot      = "plot"
)

// Exporter writes models to a blob store and, when Catalog is set, records
// each run and artifact.
type Exporter struct {
	Blobs   blob.Store
	Catalog *store.Catalog
	Palette plot.Palette
	// PlotScale enlarges plot PNGs by an integer factor.
	PlotScale int
	Logger    *zap.Logger
}

// Options describe one export.
type Options struct {
	Source    string // script path, or "reference"
	SkipPlots bool
}

// Result is what an export produced.
type Result struct {
	Run       store.Run
	Artifacts []store.Artifact
}

// New returns an exporter with the default palette.
func New(blobs blob.Store, catalog *store.Catalog, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Blobs: blobs, Catalog: catalog, Palette: plot.DefaultPalette(), PlotScale: 1, Logger: logger}
}

// Export writes m under runs/<uuid>/. Plots are sampled from the model's
// geometry; a model without geometry exports materials and settings only.
func (e *Exporter) Export(ctx context.Context, m *model.Model, opts Options) (*Result, error) {
	if e.Blobs == nil {
		return nil, errors.New("export: no blob store configured")
	}
	if m == nil {
		return nil, errors.New("export: nil model")
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	run := store.Run{ID: uuid.NewString(), Name: m.Name, Source: opts.Source}
	if m.Geometry != nil {
		s, err := json.Marshal(m.Geometry.Summary())
		if err != nil {
			return nil, err
		}
		run.Summary = string(s)
	}
	if e.Catalog != nil {
		if err := e.Catalog.RecordRun(ctx, run); err != nil {
			return nil, err
		}
	}
	logger.Info("export started", zap.String("run", run.ID), zap.String("model", m.Name))

	res := &Result{Run: run}
	put := func(name, kind, contentType string, data []byte) error {
		key := path.Join("runs", run.ID, name)
		info, err := e.Blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"run": run.ID, "kind": kind},
		})
		if err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
		a := store.Artifact{
			RunID:       run.ID,
			Key:         key,
			Kind:        kind,
			ContentType: contentType,
			Size:        info.Size,
			ETag:        info.ETag,
		}
		if e.Catalog != nil {
			if err := e.Catalog.AddArtifact(ctx, a); err != nil {
				return err
			}
		}
		res.Artifacts = append(res.Artifacts, a)
		logger.Debug("artifact written", zap.String("key", key), zap.Int64("bytes", info.Size))
		return nil
	}
	putJSON := func(name, kind string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
		return put(name, kind, "application/json", data)
	}

	if m.Materials != nil {
		if err := putJSON("materials.json", KindMaterials, m.Materials.All()); err != nil {
			return nil, err
		}
	}
	if err := putJSON("settings.json", KindSettings, m.Settings); err != nil {
		return nil, err
	}
	if m.Geometry == nil {
		return res, nil
	}
	if err := putJSON("geometry.json", KindGeometry, GeometryDocument(m.Geometry)); err != nil {
		return nil, err
	}
	if err := putJSON("tallies.json", KindTallies, TallyDocuments(m.Tallies)); err != nil {
		return nil, err
	}

	if !opts.SkipPlots {
		for i, spec := range m.Plots {
			r, err := plot.Sample(ctx, m.Geometry, spec, plot.Options{})
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			if err := plot.WritePNG(&buf, r, e.Palette, e.PlotScale); err != nil {
				return nil, err
			}
			if err := put(path.Join("plots", PlotFile(i, spec.Name)), KindPlot, "image/png", buf.Bytes()); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("export finished", zap.String("run", run.ID), zap.Int("artifacts", len(res.Artifacts)))
	return res, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PlotFile names the PNG for the i'th plot, keeping keys and file names
// path-safe.
func PlotFile(i int, name string) string {
	clean := unsafeName.ReplaceAllString(name, "_")
	if clean == "" || clean == "." || clean == ".." {
		clean = fmt.Sprintf("plot%d", i+1)
	}
	return clean + ".png"
}

// CellDocument is the exported form of a cell.
type CellDocument struct {
	ID     geometry.CellID `json:"id"`
	Name   string          `json:"name,omitempty"`
	Region string          `json:"region"`
	Fill   string          `json:"fill"`
}

// UniverseDocument is the exported form of a universe.
type UniverseDocument struct {
	ID    geometry.UniverseID `json:"id"`
	Name  string              `json:"name,omitempty"`
	Cells []geometry.CellID   `json:"cells"`
}

// LatticeDocument is the exported form of a lattice. Universes lists ids
// row-major, row 0 at the top.
type LatticeDocument struct {
	ID        geometry.LatticeID    `json:"id"`
	Name      string                `json:"name,omitempty"`
	Shape     [2]int                `json:"shape"`
	Pitch     [2]float64            `json:"pitch"`
	LowerLeft [2]float64            `json:"lower_left"`
	Universes []geometry.UniverseID `json:"universes"`
	Outer     geometry.UniverseID   `json:"outer,omitempty"`
}

// SurfaceDocument is the exported form of a surface.
type SurfaceDocument struct {
	ID       int    `json:"id"`
	Kind     string `json:"kind"`
	Boundary string `json:"boundary"`
	Text     string `json:"text"`
}

// Geometry is the exported form of a geometry.
type Geometry struct {
	Root      geometry.UniverseID `json:"root"`
	Summary   geometry.Summary    `json:"summary"`
	Surfaces  []SurfaceDocument   `json:"surfaces"`
	Cells     []CellDocument      `json:"cells"`
	Universes []UniverseDocument  `json:"universes"`
	Lattices  []LatticeDocument   `json:"lattices"`
}

// GeometryDocument flattens g into id-referenced records.
func GeometryDocument(g *geometry.Geometry) Geometry {
	doc := Geometry{Root: g.Root().ID, Summary: g.Summary()}
	for _, s := range g.Surfaces() {
		meta := s.Meta()
		doc.Surfaces = append(doc.Surfaces, SurfaceDocument{
			ID:       int(meta.ID),
			Kind:     s.Kind().String(),
			Boundary: meta.Boundary.String(),
			Text:     s.String(),
		})
	}
	for _, c := range g.Cells() {
		doc.Cells = append(doc.Cells, CellDocument{ID: c.ID, Name: c.Name, Region: c.Region.String(), Fill: c.Fill.String()})
	}
	for _, u := range g.Universes() {
		ud := UniverseDocument{ID: u.ID, Name: u.Name}
		for _, c := range u.Cells() {
			ud.Cells = append(ud.Cells, c.ID)
		}
		doc.Universes = append(doc.Universes, ud)
	}
	for _, l := range g.Lattices() {
		ld := LatticeDocument{ID: l.ID, Name: l.Name, Shape: [2]int{l.Nx, l.Ny}, Pitch: l.Pitch, LowerLeft: l.LowerLeft}
		for _, u := range l.Universes() {
			ld.Universes = append(ld.Universes, u.ID)
		}
		if l.Outer != nil {
			ld.Outer = l.Outer.ID
		}
		doc.Lattices = append(doc.Lattices, ld)
	}
	return doc
}

// Tally is the exported form of a tally.
type Tally struct {
	ID       tally.ID      `json:"id"`
	Name     string        `json:"name"`
	Filters  []string      `json:"filters"`
	Nuclides []string      `json:"nuclides,omitempty"`
	Scores   []tally.Score `json:"scores"`
	Bins     int           `json:"bins"`
}

// TallyDocuments describes each tally with its filters rendered as text.
func TallyDocuments(ts []*tally.Tally) []Tally {
	out := make([]Tally, 0, len(ts))
	for _, t := range ts {
		d := Tally{ID: t.ID, Name: t.Name, Nuclides: t.Nuclides, Scores: t.Scores, Bins: t.NumBins()}
		for _, f := range t.Filters {
			d.Filters = append(d.Filters, f.String())
		}
		out = append(out, d)
	}
	return out
}
