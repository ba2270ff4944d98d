package geometry

import (
	"fmt"

	"github.com/chazu/fuelgeom/pkg/csg"
)

// CellID identifies a cell. Zero means "assign at build time".
type CellID int

// UniverseID identifies a universe. Zero means "assign at build time".
type UniverseID int

// LatticeID identifies a lattice. Zero means "assign at build time". Lattices
// share the universe id space, as in OpenMC input.
type LatticeID = UniverseID

// Cell is a region of space with a fill. A nil Region is everywhere.
type Cell struct {
	ID     CellID      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Region *csg.Region `json:"-"`
	Fill   Fill        `json:"-"`
}

// Contains reports whether p lies in the cell's region.
func (c *Cell) Contains(p csg.Vec3) bool {
	return c.Region.Contains(p)
}

func (c *Cell) label() string {
	if c.Name != "" {
		return fmt.Sprintf("%d (%s)", c.ID, c.Name)
	}
	return fmt.Sprintf("%d", c.ID)
}

func (c *Cell) String() string {
	return fmt.Sprintf("cell %s: %s filled with %s", c.label(), c.Region, c.Fill)
}

// Universe is an ordered set of cells. Cells are tried in insertion order and
// the first whose region contains the point wins.
type Universe struct {
	ID    UniverseID `json:"id"`
	Name  string     `json:"name,omitempty"`
	cells []*Cell
}

// Cells returns the universe's cells in resolution order.
func (u *Universe) Cells() []*Cell {
	out := make([]*Cell, len(u.cells))
	copy(out, u.cells)
	return out
}

// Find returns the first cell containing p.
func (u *Universe) Find(p csg.Vec3) (*Cell, bool) {
	for _, c := range u.cells {
		if c.Contains(p) {
			return c, true
		}
	}
	return nil, false
}

func (u *Universe) label() string {
	if u.Name != "" {
		return fmt.Sprintf("%d (%s)", u.ID, u.Name)
	}
	return fmt.Sprintf("%d", u.ID)
}

func (u *Universe) String() string {
	return fmt.Sprintf("universe %s with %d cells", u.label(), len(u.cells))
}
