// Package geometry composes CSG regions into cells, universes and lattices
// and locates points in the resulting hierarchy. A Geometry is built once by
// a Builder, validated as a whole, and is read-only afterwards: Locate is a
// pure function and is safe to call from any number of goroutines.
package geometry

import (
	"fmt"

	"github.com/chazu/fuelgeom/pkg/material"
)

// Fill is what occupies a cell. Exactly one of MaterialFill, UniverseFill,
// LatticeFill or Void.
type Fill interface {
	fill() // marker method restricting implementations to this package
	String() string
}

// MaterialFill terminates resolution at a material.
type MaterialFill struct {
	Material *material.Material
}

func (MaterialFill) fill() {}

func (f MaterialFill) String() string {
	if f.Material == nil {
		return "material <nil>"
	}
	return fmt.Sprintf("material %q", f.Material.Name)
}

// UniverseFill continues resolution in a nested universe with the same point.
type UniverseFill struct {
	Universe *Universe
}

func (UniverseFill) fill() {}

func (f UniverseFill) String() string {
	if f.Universe == nil {
		return "universe <nil>"
	}
	return "universe " + f.Universe.label()
}

// LatticeFill continues resolution in a lattice element.
type LatticeFill struct {
	Lattice *RectLattice
}

func (LatticeFill) fill() {}

func (f LatticeFill) String() string {
	if f.Lattice == nil {
		return "lattice <nil>"
	}
	return "lattice " + f.Lattice.label()
}

// Void is empty space: resolution terminates with no material.
type Void struct{}

func (Void) fill() {}

func (Void) String() string { return "void" }
