package geometry

import (
	"sort"

	"github.com/chazu/fuelgeom/pkg/csg"
)

// Geometry is a validated, read-only cell hierarchy rooted at one universe.
type Geometry struct {
	root      *Universe
	surfaces  []csg.Surface
	cells     []*Cell
	universes []*Universe
	lattices  []*RectLattice
	cellByID  map[CellID]*Cell
	warnings  []ValidationError
}

// Root returns the root universe.
func (g *Geometry) Root() *Universe { return g.root }

// Surfaces returns every surface in id order.
func (g *Geometry) Surfaces() []csg.Surface {
	return append([]csg.Surface(nil), g.surfaces...)
}

// Cells returns every cell in id order.
func (g *Geometry) Cells() []*Cell {
	return append([]*Cell(nil), g.cells...)
}

// Universes returns every universe in id order.
func (g *Geometry) Universes() []*Universe {
	return append([]*Universe(nil), g.universes...)
}

// Lattices returns every lattice in id order.
func (g *Geometry) Lattices() []*RectLattice {
	return append([]*RectLattice(nil), g.lattices...)
}

// Cell returns the cell with the given id, or nil.
func (g *Geometry) Cell(id CellID) *Cell { return g.cellByID[id] }

// FindCell returns the first cell with the given name, in id order.
func (g *Geometry) FindCell(name string) *Cell {
	for _, c := range g.cells {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Warnings returns the advisory findings from Build, such as universes
// unreachable from the root.
func (g *Geometry) Warnings() []ValidationError {
	return append([]ValidationError(nil), g.warnings...)
}

// Summary counts the objects in g.
type Summary struct {
	Surfaces  int `json:"surfaces"`
	Cells     int `json:"cells"`
	Universes int `json:"universes"`
	Lattices  int `json:"lattices"`
	Materials int `json:"materials"`
}

// Summary returns object counts. Materials counts distinct materials that
// fill at least one cell.
func (g *Geometry) Summary() Summary {
	mats := make(map[any]bool)
	for _, c := range g.cells {
		if f, ok := c.Fill.(MaterialFill); ok {
			mats[f.Material] = true
		}
	}
	return Summary{
		Surfaces:  len(g.surfaces),
		Cells:     len(g.cells),
		Universes: len(g.universes),
		Lattices:  len(g.lattices),
		Materials: len(mats),
	}
}

func sortByID[T any](xs []T, id func(T) int) {
	sort.SliceStable(xs, func(i, j int) bool { return id(xs[i]) < id(xs[j]) })
}
