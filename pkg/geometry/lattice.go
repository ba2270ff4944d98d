package geometry

import (
	"fmt"
	"math"

	"github.com/chazu/fuelgeom/pkg/csg"
)

// RectLattice is a regular 2D array of universes. Universes are stored
// row-major with row 0 at the top (largest y), the way lattices are written
// out in OpenMC input. Element (ix, iy) counts columns from the left and rows
// from the bottom.
type RectLattice struct {
	ID        LatticeID  `json:"id"`
	Name      string     `json:"name,omitempty"`
	Nx        int        `json:"nx"`
	Ny        int        `json:"ny"`
	Pitch     [2]float64 `json:"pitch"`
	LowerLeft [2]float64 `json:"lower_left"`
	Outer     *Universe  `json:"-"`
	universes []*Universe
	rowLens   []int // as declared, for validation
}

// Universes returns the row-major element list, row 0 at the top.
func (l *RectLattice) Universes() []*Universe {
	out := make([]*Universe, len(l.universes))
	copy(out, l.universes)
	return out
}

// Index returns the element containing p. Elements are closed below and
// open above, so ok is false for points on the upper or right edge of the
// lattice.
func (l *RectLattice) Index(p csg.Vec3) (ix, iy int, ok bool) {
	fx := math.Floor((p.X - l.LowerLeft[0]) / l.Pitch[0])
	fy := math.Floor((p.Y - l.LowerLeft[1]) / l.Pitch[1])
	if fx < 0 || fy < 0 || fx >= float64(l.Nx) || fy >= float64(l.Ny) {
		return 0, 0, false
	}
	return int(fx), int(fy), true
}

// At returns the universe at element (ix, iy).
func (l *RectLattice) At(ix, iy int) *Universe {
	if ix < 0 || iy < 0 || ix >= l.Nx || iy >= l.Ny {
		return nil
	}
	return l.universes[(l.Ny-1-iy)*l.Nx+ix]
}

// Center returns the centre of element (ix, iy) in the lattice frame.
func (l *RectLattice) Center(ix, iy int) csg.Vec3 {
	return csg.Vec3{
		X: l.LowerLeft[0] + (float64(ix)+0.5)*l.Pitch[0],
		Y: l.LowerLeft[1] + (float64(iy)+0.5)*l.Pitch[1],
	}
}

// UpperRight returns the far corner of the lattice.
func (l *RectLattice) UpperRight() [2]float64 {
	return [2]float64{
		l.LowerLeft[0] + float64(l.Nx)*l.Pitch[0],
		l.LowerLeft[1] + float64(l.Ny)*l.Pitch[1],
	}
}

// locate maps p to the universe that should resolve it and the point to
// query it with. In-range points are re-centred on their element and
// clamped to the half pitch; out-of-range points go to the outer universe
// unchanged. u is nil when p is out of range and there is no outer universe.
func (l *RectLattice) locate(p csg.Vec3) (u *Universe, local csg.Vec3, ix, iy int, inRange bool) {
	ix, iy, inRange = l.Index(p)
	if !inRange {
		return l.Outer, p, -1, -1, false
	}
	c := l.Center(ix, iy)
	hx, hy := l.Pitch[0]/2, l.Pitch[1]/2
	local = csg.Vec3{
		X: clamp(p.X-c.X, -hx, hx),
		Y: clamp(p.Y-c.Y, -hy, hy),
		Z: p.Z,
	}
	return l.At(ix, iy), local, ix, iy, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (l *RectLattice) label() string {
	if l.Name != "" {
		return fmt.Sprintf("%d (%s)", l.ID, l.Name)
	}
	return fmt.Sprintf("%d", l.ID)
}

func (l *RectLattice) String() string {
	return fmt.Sprintf("lattice %s %dx%d pitch %gx%g", l.label(), l.Nx, l.Ny, l.Pitch[0], l.Pitch[1])
}
