package tessellate

import (
	"math"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/kernel"
)

// box is an axis-aligned box. Bounds may be infinite while deriving
// extents; a box handed to the kernel is always finite.
type box struct {
	lo, hi csg.Vec3
}

func infiniteBox() box {
	inf := math.Inf(1)
	return box{lo: csg.Vec3{X: -inf, Y: -inf, Z: -inf}, hi: csg.Vec3{X: inf, Y: inf, Z: inf}}
}

// emptyBox is the identity for union.
func emptyBox() box {
	inf := math.Inf(1)
	return box{lo: csg.Vec3{X: inf, Y: inf, Z: inf}, hi: csg.Vec3{X: -inf, Y: -inf, Z: -inf}}
}

func boxOf(s kernel.Solid) box {
	lo, hi := s.BoundingBox()
	return box{
		lo: csg.Vec3{X: lo[0], Y: lo[1], Z: lo[2]},
		hi: csg.Vec3{X: hi[0], Y: hi[1], Z: hi[2]},
	}
}

func (b box) size(a csg.Axis) float64 { return b.hi.Coord(a) - b.lo.Coord(a) }

func (b box) centre() csg.Vec3 { return b.lo.Add(b.hi).Scale(0.5) }

func (b box) volume() float64 {
	return b.size(csg.AxisX) * b.size(csg.AxisY) * b.size(csg.AxisZ)
}

func (b box) shift(v csg.Vec3) box { return box{lo: b.lo.Add(v), hi: b.hi.Add(v)} }

// grow pads b by 1% of its largest side on every face.
func (b box) grow() box {
	pad := 0.01 * math.Max(b.size(csg.AxisX), math.Max(b.size(csg.AxisY), b.size(csg.AxisZ)))
	d := csg.Vec3{X: pad, Y: pad, Z: pad}
	return box{lo: b.lo.Sub(d), hi: b.hi.Add(d)}
}

func (b *box) setAxis(a csg.Axis, lo, hi float64) {
	switch a {
	case csg.AxisX:
		b.lo.X, b.hi.X = lo, hi
	case csg.AxisY:
		b.lo.Y, b.hi.Y = lo, hi
	default:
		b.lo.Z, b.hi.Z = lo, hi
	}
}

// clamp returns the intersection of b and o, which may be inverted.
func (b box) clamp(o box) box {
	return box{
		lo: csg.Vec3{X: math.Max(b.lo.X, o.lo.X), Y: math.Max(b.lo.Y, o.lo.Y), Z: math.Max(b.lo.Z, o.lo.Z)},
		hi: csg.Vec3{X: math.Min(b.hi.X, o.hi.X), Y: math.Min(b.hi.Y, o.hi.Y), Z: math.Min(b.hi.Z, o.hi.Z)},
	}
}

// intersect returns the intersection of b and o; ok is false when it has no
// volume.
func (b box) intersect(o box) (box, bool) {
	c := b.clamp(o)
	ok := c.hi.X > c.lo.X && c.hi.Y > c.lo.Y && c.hi.Z > c.lo.Z
	return c, ok
}

func (b box) union(o box) box {
	return box{
		lo: csg.Vec3{X: math.Min(b.lo.X, o.lo.X), Y: math.Min(b.lo.Y, o.lo.Y), Z: math.Min(b.lo.Z, o.lo.Z)},
		hi: csg.Vec3{X: math.Max(b.hi.X, o.hi.X), Y: math.Max(b.hi.Y, o.hi.Y), Z: math.Max(b.hi.Z, o.hi.Z)},
	}
}

// solid returns b as a kernel box.
func (b box) solid(k kernel.Kernel) kernel.Solid {
	c := b.centre()
	return k.Translate(k.Box(b.size(csg.AxisX), b.size(csg.AxisY), b.size(csg.AxisZ)), c.X, c.Y, c.Z)
}
