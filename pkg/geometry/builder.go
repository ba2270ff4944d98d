package geometry

import (
	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/material"
)

// Builder collects surfaces, cells, universes and lattices and turns them
// into a validated Geometry. Construction is single-threaded; nothing built
// here may be queried until Build has succeeded.
type Builder struct {
	surfaces  []csg.Surface
	cells     []*Cell
	universes []*Universe
	lattices  []*RectLattice
	materials *material.Library
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// UseMaterials makes Build reject material fills that are not registered in
// lib.
func (b *Builder) UseMaterials(lib *material.Library) {
	b.materials = lib
}

// Surface registers s and returns it. Surfaces referenced by cell regions are
// registered implicitly at Build; explicit registration only fixes their
// order for id assignment.
func (b *Builder) Surface(s csg.Surface) csg.Surface {
	b.surfaces = append(b.surfaces, s)
	return s
}

// Cell declares a new cell.
func (b *Builder) Cell(name string, region *csg.Region, fill Fill) *Cell {
	return b.AddCell(&Cell{Name: name, Region: region, Fill: fill})
}

// AddCell declares c, which may carry an explicit id.
func (b *Builder) AddCell(c *Cell) *Cell {
	b.cells = append(b.cells, c)
	return c
}

// Universe declares a universe holding cells in resolution order.
func (b *Builder) Universe(name string, cells ...*Cell) *Universe {
	u := &Universe{Name: name, cells: append([]*Cell(nil), cells...)}
	b.universes = append(b.universes, u)
	return u
}

// Lattice declares a lattice from rows of universes, row 0 at the top. The
// shape is taken from the rows; ragged rows fail validation.
func (b *Builder) Lattice(name string, pitch, lowerLeft [2]float64, rows [][]*Universe) *RectLattice {
	l := &RectLattice{Name: name, Pitch: pitch, LowerLeft: lowerLeft, Ny: len(rows)}
	if len(rows) > 0 {
		l.Nx = len(rows[0])
	}
	for _, row := range rows {
		l.rowLens = append(l.rowLens, len(row))
		l.universes = append(l.universes, row...)
	}
	b.lattices = append(b.lattices, l)
	return l
}

// Build validates everything declared so far, assigns ids to objects that
// have none, and returns the geometry rooted at root. On failure the error
// is a *BuildError wrapping ErrMalformedGeometry, no geometry is returned
// and no ids are assigned.
func (b *Builder) Build(root *Universe) (*Geometry, error) {
	v := newValidator(b, root)
	v.run()
	if len(v.errs) > 0 {
		v.rollback()
		return nil, &BuildError{Findings: v.errs}
	}

	g := &Geometry{
		root:      root,
		surfaces:  v.surfaces,
		cells:     append([]*Cell(nil), b.cells...),
		universes: append([]*Universe(nil), b.universes...),
		lattices:  append([]*RectLattice(nil), b.lattices...),
		cellByID:  make(map[CellID]*Cell, len(b.cells)),
		warnings:  v.warnings,
	}
	sortByID(g.surfaces, func(s csg.Surface) int { return int(s.Meta().ID) })
	sortByID(g.cells, func(c *Cell) int { return int(c.ID) })
	sortByID(g.universes, func(u *Universe) int { return int(u.ID) })
	sortByID(g.lattices, func(l *RectLattice) int { return int(l.ID) })
	for _, c := range g.cells {
		g.cellByID[c.ID] = c
	}
	return g, nil
}
