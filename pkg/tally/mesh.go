package tally

import (
	"fmt"
	"math"

	"github.com/chazu/fuelgeom/pkg/csg"
)

// MeshID identifies a regular mesh.
type MeshID int

// RegularMesh is an axis-aligned box divided into equal elements. Elements
// are closed below and open above on every axis, so the upper face of the
// box is outside the mesh.
type RegularMesh struct {
	ID         MeshID   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Dimension  [3]int   `json:"dimension"`
	LowerLeft  csg.Vec3 `json:"lower_left"`
	UpperRight csg.Vec3 `json:"upper_right"`
}

// Validate checks the dimension and box.
func (m *RegularMesh) Validate() error {
	for i, n := range m.Dimension {
		if n <= 0 {
			return fmt.Errorf("%w: mesh %q dimension[%d] = %d must be positive", ErrInvalidFilter, m.Name, i, n)
		}
	}
	for _, a := range []csg.Axis{csg.AxisX, csg.AxisY, csg.AxisZ} {
		lo, hi := m.LowerLeft.Coord(a), m.UpperRight.Coord(a)
		if !(hi > lo) || math.IsInf(hi-lo, 0) {
			return fmt.Errorf("%w: mesh %q has empty or unbounded extent along %s", ErrInvalidFilter, m.Name, a)
		}
	}
	return nil
}

// NumBins returns nx*ny*nz.
func (m *RegularMesh) NumBins() int {
	return m.Dimension[0] * m.Dimension[1] * m.Dimension[2]
}

// Width returns the size of one element.
func (m *RegularMesh) Width() csg.Vec3 {
	return csg.Vec3{
		X: (m.UpperRight.X - m.LowerLeft.X) / float64(m.Dimension[0]),
		Y: (m.UpperRight.Y - m.LowerLeft.Y) / float64(m.Dimension[1]),
		Z: (m.UpperRight.Z - m.LowerLeft.Z) / float64(m.Dimension[2]),
	}
}

// Index returns the element containing p.
func (m *RegularMesh) Index(p csg.Vec3) (ijk [3]int, ok bool) {
	lo := [3]float64{m.LowerLeft.X, m.LowerLeft.Y, m.LowerLeft.Z}
	hi := [3]float64{m.UpperRight.X, m.UpperRight.Y, m.UpperRight.Z}
	q := [3]float64{p.X, p.Y, p.Z}
	for a := 0; a < 3; a++ {
		if q[a] < lo[a] || q[a] >= hi[a] {
			return ijk, false
		}
		i := int(math.Floor((q[a] - lo[a]) / (hi[a] - lo[a]) * float64(m.Dimension[a])))
		// Round-off just below the upper face can land on n.
		if i >= m.Dimension[a] {
			i = m.Dimension[a] - 1
		}
		ijk[a] = i
	}
	return ijk, true
}

// Bin returns the flat bin ix + nx*(iy + ny*iz) containing p.
func (m *RegularMesh) Bin(p csg.Vec3) (int, bool) {
	ijk, ok := m.Index(p)
	if !ok {
		return 0, false
	}
	return ijk[0] + m.Dimension[0]*(ijk[1]+m.Dimension[1]*ijk[2]), true
}

func (m *RegularMesh) String() string {
	return fmt.Sprintf("mesh %d (%s) %dx%dx%d over %v..%v", m.ID, m.Name,
		m.Dimension[0], m.Dimension[1], m.Dimension[2], m.LowerLeft, m.UpperRight)
}
