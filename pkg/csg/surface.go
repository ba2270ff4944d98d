// Package csg implements the constructive-solid-geometry primitives used to
// bound cells: implicit surfaces and boolean region expressions over their
// half-spaces.
//
// Every half-space is closed on the inside: a point lying exactly on a
// surface belongs to Inside(s) and not to Outside(s). A region and its
// complement therefore partition space with no gaps and no overlaps.
package csg

import (
	"errors"
	"fmt"
	"math"
)

// SurfaceID identifies a surface within a model. Zero means "not yet
// assigned"; the geometry builder assigns one on registration.
type SurfaceID int

// BoundaryType tells a transport engine what happens to a particle crossing
// the surface. Containment queries ignore it.
type BoundaryType int

const (
	Transmissive BoundaryType = iota
	Reflective
	Vacuum
)

func (b BoundaryType) String() string {
	switch b {
	case Transmissive:
		return "transmission"
	case Reflective:
		return "reflective"
	case Vacuum:
		return "vacuum"
	default:
		return fmt.Sprintf("BoundaryType(%d)", int(b))
	}
}

// ParseBoundary converts a boundary name to a BoundaryType.
func ParseBoundary(s string) (BoundaryType, error) {
	switch s {
	case "", "transmission", "transmissive":
		return Transmissive, nil
	case "reflective":
		return Reflective, nil
	case "vacuum":
		return Vacuum, nil
	}
	return 0, fmt.Errorf("invalid boundary type %q", s)
}

// SurfaceKind distinguishes primitive surface shapes.
type SurfaceKind int

const (
	KindCylinder SurfaceKind = iota
	KindPrism
	KindPlane
)

func (k SurfaceKind) String() string {
	switch k {
	case KindCylinder:
		return "cylinder"
	case KindPrism:
		return "rectangular-prism"
	case KindPlane:
		return "plane"
	default:
		return "unknown"
	}
}

// ErrInvalidSurface is wrapped by every surface parameter error.
var ErrInvalidSurface = errors.New("invalid surface")

// SurfaceMeta holds the identity shared by all surface kinds.
type SurfaceMeta struct {
	ID       SurfaceID    `json:"id"`
	Name     string       `json:"name,omitempty"`
	Boundary BoundaryType `json:"boundary"`
}

// Meta returns the surface identity. The builder writes ID through it during
// registration; nothing mutates a surface once a geometry has been built.
func (m *SurfaceMeta) Meta() *SurfaceMeta { return m }

// Surface is an implicit boundary with two half-spaces.
type Surface interface {
	Meta() *SurfaceMeta
	Kind() SurfaceKind
	// Inside reports whether p is in the closed negative half-space.
	Inside(p Vec3) bool
	// Outside reports whether p is in the open positive half-space. It is
	// always the exact complement of Inside.
	Outside(p Vec3) bool
	// Validate checks the shape parameters.
	Validate() error
	String() string
}

// ---------------------------------------------------------------------------
// Cylinder
// ---------------------------------------------------------------------------

// Cylinder is an infinite right circular cylinder about an axis. C1 and C2
// are the centre offsets along the two transverse axes (for a z-cylinder,
// x0 and y0).
type Cylinder struct {
	SurfaceMeta
	Axis   Axis    `json:"axis"`
	C1, C2 float64 `json:"-"`
	R      float64 `json:"r"`
}

// ZCylinder returns a cylinder parallel to z through (x0, y0).
func ZCylinder(x0, y0, r float64) *Cylinder {
	return &Cylinder{Axis: AxisZ, C1: x0, C2: y0, R: r}
}

// XCylinder returns a cylinder parallel to x through (y0, z0).
func XCylinder(y0, z0, r float64) *Cylinder {
	return &Cylinder{Axis: AxisX, C1: y0, C2: z0, R: r}
}

// YCylinder returns a cylinder parallel to y through (x0, z0).
func YCylinder(x0, z0, r float64) *Cylinder {
	return &Cylinder{Axis: AxisY, C1: z0, C2: x0, R: r}
}

func (c *Cylinder) Kind() SurfaceKind { return KindCylinder }

func (c *Cylinder) dist2(p Vec3) float64 {
	u, v := c.Axis.transverse()
	du := p.Coord(u) - c.C1
	dv := p.Coord(v) - c.C2
	return du*du + dv*dv
}

func (c *Cylinder) Inside(p Vec3) bool  { return c.dist2(p) <= c.R*c.R }
func (c *Cylinder) Outside(p Vec3) bool { return c.dist2(p) > c.R*c.R }

func (c *Cylinder) Validate() error {
	if !(c.R > 0) || math.IsInf(c.R, 0) {
		return fmt.Errorf("%w: %s radius %g must be positive and finite", ErrInvalidSurface, c.Axis, c.R)
	}
	return nil
}

func (c *Cylinder) String() string {
	return fmt.Sprintf("%scylinder %d (r=%g)", c.Axis, c.ID, c.R)
}

// ---------------------------------------------------------------------------
// Rectangular prism
// ---------------------------------------------------------------------------

// RectangularPrism is an infinite prism along Axis whose cross-section is
// the Width x Height rectangle centred on Origin in the transverse plane.
// The prism axis itself is unconstrained.
type RectangularPrism struct {
	SurfaceMeta
	Axis   Axis       `json:"axis"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Origin [2]float64 `json:"origin"`
}

// Prism returns a z-axis prism of the given size centred at (x0, y0).
func Prism(width, height, x0, y0 float64) *RectangularPrism {
	return &RectangularPrism{Axis: AxisZ, Width: width, Height: height, Origin: [2]float64{x0, y0}}
}

func (b *RectangularPrism) Kind() SurfaceKind { return KindPrism }

// Limits returns the closed intervals on the two transverse axes.
func (b *RectangularPrism) Limits() (u, v Axis, ulo, uhi, vlo, vhi float64) {
	u, v = b.Axis.transverse()
	ulo, uhi = b.Origin[0]-b.Width/2, b.Origin[0]+b.Width/2
	vlo, vhi = b.Origin[1]-b.Height/2, b.Origin[1]+b.Height/2
	return
}

func (b *RectangularPrism) Inside(p Vec3) bool {
	u, v, ulo, uhi, vlo, vhi := b.Limits()
	pu, pv := p.Coord(u), p.Coord(v)
	return ulo <= pu && pu <= uhi && vlo <= pv && pv <= vhi
}

// Outside applies De Morgan per axis: the point is outside when at least
// one transverse coordinate leaves its interval.
func (b *RectangularPrism) Outside(p Vec3) bool {
	u, v, ulo, uhi, vlo, vhi := b.Limits()
	pu, pv := p.Coord(u), p.Coord(v)
	return pu < ulo || pu > uhi || pv < vlo || pv > vhi
}

func (b *RectangularPrism) Validate() error {
	if !(b.Width > 0) || !(b.Height > 0) {
		return fmt.Errorf("%w: prism %gx%g must have positive width and height", ErrInvalidSurface, b.Width, b.Height)
	}
	return nil
}

func (b *RectangularPrism) String() string {
	return fmt.Sprintf("prism %d (%gx%g at %g,%g)", b.ID, b.Width, b.Height, b.Origin[0], b.Origin[1])
}

// ---------------------------------------------------------------------------
// Plane
// ---------------------------------------------------------------------------

// Plane is the axis-aligned plane coord(Axis) = X0. Inside is coord <= X0.
type Plane struct {
	SurfaceMeta
	Axis Axis    `json:"axis"`
	X0   float64 `json:"x0"`
}

// AxisPlane returns the plane normal to a at x0.
func AxisPlane(a Axis, x0 float64) *Plane {
	return &Plane{Axis: a, X0: x0}
}

func (pl *Plane) Kind() SurfaceKind   { return KindPlane }
func (pl *Plane) Inside(p Vec3) bool  { return p.Coord(pl.Axis) <= pl.X0 }
func (pl *Plane) Outside(p Vec3) bool { return p.Coord(pl.Axis) > pl.X0 }

func (pl *Plane) Validate() error {
	if math.IsNaN(pl.X0) || math.IsInf(pl.X0, 0) {
		return fmt.Errorf("%w: %splane position %g", ErrInvalidSurface, pl.Axis, pl.X0)
	}
	return nil
}

func (pl *Plane) String() string {
	return fmt.Sprintf("%splane %d (%g)", pl.Axis, pl.ID, pl.X0)
}
