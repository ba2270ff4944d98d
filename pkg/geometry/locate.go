package geometry

import (
	"errors"
	"fmt"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/material"
)

var (
	// ErrOutsideDomain means no root cell contains the point. This is the
	// expected result for points beyond the outermost boundary.
	ErrOutsideDomain = errors.New("point outside geometry domain")
	// ErrUnresolvedPoint means a nested universe failed to resolve a point
	// its parent claimed. It indicates a modelling defect.
	ErrUnresolvedPoint = errors.New("unresolved point")
)

// Status classifies the outcome of a Locate query.
type Status int

const (
	Found         Status = iota // resolved to a material or void cell
	OutsideDomain               // no root cell contains the point
	Unresolved                  // a nested level matched nothing
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case OutsideDomain:
		return "outside_domain"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Level is one step of a descent through the hierarchy.
type Level struct {
	Universe *Universe
	Cell     *Cell        // nil if the universe matched nothing
	Lattice  *RectLattice // set when Cell is lattice-filled and the descent continued
	Index    [2]int       // lattice element, or -1,-1 when routed to the outer universe
	Point    csg.Vec3     // point in Universe's local frame
}

// Location is the result of a Locate query.
type Location struct {
	Status   Status
	Point    csg.Vec3           // query point
	Cell     *Cell              // deepest resolved cell, nil unless Found
	Material *material.Material // nil for void or when not Found
	Path     []Level
}

// Void reports whether the point resolved to a void cell.
func (l Location) Void() bool {
	return l.Status == Found && l.Material == nil
}

// Err converts the status to an error: nil when found, ErrOutsideDomain, or
// an *UnresolvedPointError.
func (l Location) Err() error {
	switch l.Status {
	case Found:
		return nil
	case OutsideDomain:
		return fmt.Errorf("%w: %v", ErrOutsideDomain, l.Point)
	default:
		e := &UnresolvedPointError{Point: l.Point, Depth: len(l.Path)}
		if n := len(l.Path); n > 0 {
			last := l.Path[n-1]
			e.Universe = last.Universe
			if n > 1 {
				e.Lattice = l.Path[n-2].Lattice
			}
		}
		return e
	}
}

// UnresolvedPointError describes where a descent failed.
type UnresolvedPointError struct {
	Point    csg.Vec3
	Universe *Universe    // universe that matched nothing, nil for a lattice with no outer universe
	Lattice  *RectLattice // enclosing lattice, if any
	Depth    int
}

func (e *UnresolvedPointError) Error() string {
	switch {
	case e.Universe != nil:
		return fmt.Sprintf("unresolved point %v: no cell of universe %s contains it (depth %d)",
			e.Point, e.Universe.label(), e.Depth)
	case e.Lattice != nil:
		return fmt.Sprintf("unresolved point %v: outside lattice %s which has no outer universe",
			e.Point, e.Lattice.label())
	default:
		return fmt.Sprintf("unresolved point %v", e.Point)
	}
}

func (e *UnresolvedPointError) Unwrap() error { return ErrUnresolvedPoint }

// Locate resolves p through the hierarchy to a cell.
func (g *Geometry) Locate(p csg.Vec3) Location {
	loc := Location{Point: p, Path: make([]Level, 0, 4)}
	u, local := g.root, p
	for depth := 0; ; depth++ {
		c, ok := u.Find(local)
		loc.Path = append(loc.Path, Level{Universe: u, Cell: c, Index: [2]int{-1, -1}, Point: local})
		if !ok {
			if depth == 0 {
				loc.Status = OutsideDomain
			} else {
				loc.Status = Unresolved
			}
			return loc
		}
		switch f := c.Fill.(type) {
		case MaterialFill:
			loc.Status, loc.Cell, loc.Material = Found, c, f.Material
			return loc
		case Void:
			loc.Status, loc.Cell = Found, c
			return loc
		case UniverseFill:
			u = f.Universe
		case LatticeFill:
			next, lp, ix, iy, _ := f.Lattice.locate(local)
			lvl := &loc.Path[len(loc.Path)-1]
			lvl.Lattice, lvl.Index = f.Lattice, [2]int{ix, iy}
			if next == nil {
				loc.Path = append(loc.Path, Level{Index: [2]int{-1, -1}, Point: lp})
				loc.Status = Unresolved
				return loc
			}
			u, local = next, lp
		default:
			panic(fmt.Sprintf("geometry: cell %s has unknown fill %T", c.label(), c.Fill))
		}
	}
}

// MaterialAt returns the material at p. found is false outside the domain
// or for unresolved points; m is nil with found true for void.
func (g *Geometry) MaterialAt(p csg.Vec3) (m *material.Material, found bool) {
	loc := g.Locate(p)
	return loc.Material, loc.Status == Found
}
