// Package tessellate turns a built geometry into triangle meshes using a
// solid modelling kernel. Each material-filled cell region is compiled to a
// kernel solid over a finite box, extruded along z, and meshed; lattices are
// descended element by element. One mesh is produced per (cell, lattice
// element) pair.
package tessellate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/kernel"
)

// DefaultHeight is the extrusion height used when Options.Height is zero.
const DefaultHeight = 2.0

// ErrUnbounded is returned when the root universe has no finite x-y extent
// and Options does not supply one.
var ErrUnbounded = errors.New("tessellate: root universe is unbounded")

// Options controls tessellation.
type Options struct {
	// Lower and Upper bound the root universe in x and y. When both are
	// zero the bounds are derived from the root cells' regions.
	Lower, Upper [2]float64
	// Height is the extrusion height, centred on z = 0.
	Height float64
	// Workers bounds the number of meshes rendered at once. Zero means
	// one per CPU.
	Workers int
}

// job is one solid waiting to be meshed.
type job struct {
	solid    kernel.Solid
	cell     *geometry.Cell
	material string
	path     string
}

// Geometry meshes every material-filled cell reachable from the root of g.
// Void cells and the outer universe of lattices are not meshed. Cells with
// no volume inside the bounds produce no mesh. Meshes are returned in
// traversal order: root cells first, lattice elements left to right and
// bottom to top.
func Geometry(ctx context.Context, g *geometry.Geometry, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if g == nil || g.Root() == nil {
		return nil, nil
	}

	b, err := rootBounds(g.Root(), opts)
	if err != nil {
		return nil, err
	}

	w := &walker{k: k}
	w.universe(g.Root(), b, b.solid(k), csg.Vec3{}, g.Root().Name)

	meshes := make([]*kernel.Mesh, len(w.jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	eg.SetLimit(workers)
	for i, j := range w.jobs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			m, err := k.ToMesh(j.solid)
			if err != nil {
				return fmt.Errorf("tessellate: cell %d at %s: %w", j.cell.ID, j.path, err)
			}
			m.CellID = int(j.cell.ID)
			m.Cell = j.cell.Name
			m.Material = j.material
			m.Path = j.path
			meshes[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := meshes[:0]
	for _, m := range meshes {
		if !m.IsEmpty() {
			out = append(out, m)
		}
	}
	return out, nil
}

// walker collects solids while descending the universe graph.
type walker struct {
	k    kernel.Kernel
	jobs []job
}

// universe compiles the cells of u. b bounds u in its own frame, clip is
// the solid u is confined to in that frame, and off maps the frame to
// model coordinates.
func (w *walker) universe(u *geometry.Universe, b box, clip kernel.Solid, off csg.Vec3, path string) {
	for _, c := range u.Cells() {
		region := w.compile(c.Region, b)
		if region == nil {
			continue
		}
		s := w.intersect(region, clip)

		switch f := c.Fill.(type) {
		case geometry.MaterialFill:
			name := ""
			if f.Material != nil {
				name = f.Material.Name
			}
			w.jobs = append(w.jobs, job{
				solid:    w.k.Translate(s, off.X, off.Y, off.Z),
				cell:     c,
				material: name,
				path:     path,
			})
		case geometry.UniverseFill:
			nb, ok := b.intersect(boxOf(s))
			if !ok {
				continue
			}
			w.universe(f.Universe, nb, s, off, path+"/"+f.Universe.Name)
		case geometry.LatticeFill:
			cb, ok := b.intersect(boxOf(s))
			if !ok {
				continue
			}
			w.lattice(f.Lattice, cb, s, off, path)
		}
	}
}

// lattice descends every element overlapping cb. Each element universe is
// re-centred on its element and clipped to the element box.
func (w *walker) lattice(l *geometry.RectLattice, cb box, clip kernel.Solid, off csg.Vec3, path string) {
	hx, hy := l.Pitch[0]/2, l.Pitch[1]/2
	for iy := 0; iy < l.Ny; iy++ {
		for ix := 0; ix < l.Nx; ix++ {
			u := l.At(ix, iy)
			if u == nil {
				continue
			}
			c := l.Center(ix, iy)
			elem := box{
				lo: csg.Vec3{X: c.X - hx, Y: c.Y - hy, Z: cb.lo.Z},
				hi: csg.Vec3{X: c.X + hx, Y: c.Y + hy, Z: cb.hi.Z},
			}
			if _, ok := elem.intersect(cb); !ok {
				continue
			}
			local := elem.shift(c.Scale(-1))
			lclip := w.intersect(local.solid(w.k), w.k.Translate(clip, -c.X, -c.Y, 0))
			w.universe(u, local, lclip, off.Add(c),
				fmt.Sprintf("%s/%s[%d,%d]/%s", path, l.Name, ix, iy, u.Name))
		}
	}
}

// compile builds the solid of r inside b. Primitives are sized to overrun b
// slightly so that clipping against b leaves no seams. A nil result is the
// empty set.
func (w *walker) compile(r *csg.Region, b box) kernel.Solid {
	if r == nil {
		return b.solid(w.k)
	}
	switch r.Op() {
	case csg.OpHalfspace:
		in, full := w.inside(r.Surface(), b)
		if r.Sense() == csg.Negative {
			if full {
				return b.solid(w.k)
			}
			return in
		}
		if full {
			return nil
		}
		if in == nil {
			return b.solid(w.k)
		}
		return w.k.Difference(b.solid(w.k), in)
	case csg.OpAnd:
		var acc kernel.Solid
		for _, c := range r.Children() {
			s := w.compile(c, b)
			if s == nil {
				return nil
			}
			if acc == nil {
				acc = s
			} else {
				acc = w.intersect(acc, s)
			}
		}
		return acc
	case csg.OpOr:
		var acc kernel.Solid
		for _, c := range r.Children() {
			s := w.compile(c, b)
			if s == nil {
				continue
			}
			if acc == nil {
				acc = s
			} else {
				acc = w.k.Union(acc, s)
			}
		}
		return acc
	case csg.OpNot:
		children := r.Children()
		if len(children) == 0 {
			return nil
		}
		s := w.compile(children[0], b)
		if s == nil {
			return b.solid(w.k)
		}
		return w.k.Difference(b.solid(w.k), s)
	}
	return nil
}

// inside returns the solid for the closed inside of s over b. full reports
// that the inside covers all of b; a nil solid with full false is empty.
func (w *walker) inside(s csg.Surface, b box) (solid kernel.Solid, full bool) {
	g := b.grow()
	switch s := s.(type) {
	case *csg.Cylinder:
		cyl := w.k.Cylinder(g.size(s.Axis), s.R, 0)
		mid := g.centre().Coord(s.Axis)
		switch s.Axis {
		case csg.AxisX:
			return w.k.Translate(w.k.Rotate(cyl, 0, 90, 0), mid, s.C1, s.C2), false
		case csg.AxisY:
			return w.k.Translate(w.k.Rotate(cyl, 90, 0, 0), s.C2, mid, s.C1), false
		default:
			return w.k.Translate(cyl, s.C1, s.C2, mid), false
		}
	case *csg.RectangularPrism:
		u, v, ulo, uhi, vlo, vhi := s.Limits()
		p := g
		p.setAxis(u, ulo, uhi)
		p.setAxis(v, vlo, vhi)
		return p.solid(w.k), false
	case *csg.Plane:
		lo, hi := b.lo.Coord(s.Axis), b.hi.Coord(s.Axis)
		switch {
		case s.X0 <= lo:
			return nil, false
		case s.X0 >= hi:
			return nil, true
		}
		p := g
		p.setAxis(s.Axis, g.lo.Coord(s.Axis), s.X0)
		return p.solid(w.k), false
	}
	return nil, false
}

// intersect puts the solid with the smaller bounding box first, since the
// kernel bounds an intersection by its first operand.
func (w *walker) intersect(a, b kernel.Solid) kernel.Solid {
	if boxOf(b).volume() < boxOf(a).volume() {
		a, b = b, a
	}
	return w.k.Intersection(a, b)
}

// rootBounds returns the box the root universe is meshed over.
func rootBounds(root *geometry.Universe, opts Options) (box, error) {
	h := opts.Height
	if h == 0 {
		h = DefaultHeight
	}
	if !(h > 0) {
		return box{}, fmt.Errorf("tessellate: height %g must be positive", h)
	}

	b := box{
		lo: csg.Vec3{X: opts.Lower[0], Y: opts.Lower[1], Z: -h / 2},
		hi: csg.Vec3{X: opts.Upper[0], Y: opts.Upper[1], Z: h / 2},
	}
	if opts.Lower == ([2]float64{}) && opts.Upper == ([2]float64{}) {
		ext := emptyBox()
		for _, c := range root.Cells() {
			ext = ext.union(regionExtent(c.Region))
		}
		b.lo.X, b.lo.Y = ext.lo.X, ext.lo.Y
		b.hi.X, b.hi.Y = ext.hi.X, ext.hi.Y
	}
	for _, v := range []float64{b.lo.X, b.lo.Y, b.hi.X, b.hi.Y} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return box{}, ErrUnbounded
		}
	}
	if !(b.hi.X > b.lo.X && b.hi.Y > b.lo.Y) {
		return box{}, fmt.Errorf("tessellate: empty bounds %v to %v", b.lo, b.hi)
	}
	return b, nil
}

// regionExtent returns a box containing r. Complements are unbounded.
func regionExtent(r *csg.Region) box {
	if r == nil {
		return infiniteBox()
	}
	switch r.Op() {
	case csg.OpHalfspace:
		if r.Sense() != csg.Negative {
			return infiniteBox()
		}
		e := infiniteBox()
		switch s := r.Surface().(type) {
		case *csg.Cylinder:
			u, v := transverse(s.Axis)
			e.setAxis(u, s.C1-s.R, s.C1+s.R)
			e.setAxis(v, s.C2-s.R, s.C2+s.R)
		case *csg.RectangularPrism:
			u, v, ulo, uhi, vlo, vhi := s.Limits()
			e.setAxis(u, ulo, uhi)
			e.setAxis(v, vlo, vhi)
		case *csg.Plane:
			e.setAxis(s.Axis, math.Inf(-1), s.X0)
		}
		return e
	case csg.OpAnd:
		e := infiniteBox()
		for _, c := range r.Children() {
			e = e.clamp(regionExtent(c))
		}
		return e
	case csg.OpOr:
		e := emptyBox()
		for _, c := range r.Children() {
			e = e.union(regionExtent(c))
		}
		return e
	}
	return infiniteBox()
}

// transverse returns the axes C1 and C2 of a cylinder along a lie on.
func transverse(a csg.Axis) (csg.Axis, csg.Axis) {
	switch a {
	case csg.AxisX:
		return csg.AxisY, csg.AxisZ
	case csg.AxisY:
		return csg.AxisZ, csg.AxisX
	default:
		return csg.AxisX, csg.AxisY
	}
}
