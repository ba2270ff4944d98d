package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/material"
)

// filled returns a universe with one unbounded cell of a fresh material.
func filled(b *Builder, name string) *Universe {
	m := &material.Material{Name: name}
	return b.Universe(name, b.Cell(name, nil, MaterialFill{m}))
}

// latticeGeometry builds a 3x2 lattice at pitch 1 from the origin:
//
//	a b c   (row 0, top, y in [1,2))
//	d e f   (row 1, bottom, y in [0,1))
func latticeGeometry(t *testing.T, withOuter bool) (*Geometry, *RectLattice) {
	t.Helper()
	b := NewBuilder()
	a, bb, c := filled(b, "a"), filled(b, "b"), filled(b, "c")
	d, e, f := filled(b, "d"), filled(b, "e"), filled(b, "f")
	lat := b.Lattice("grid", [2]float64{1, 1}, [2]float64{0, 0}, [][]*Universe{
		{a, bb, c},
		{d, e, f},
	})
	if withOuter {
		lat.Outer = filled(b, "outer")
	}
	root := b.Universe("root", b.Cell("holder", nil, LatticeFill{lat}))
	return mustBuild(t, b, root), lat
}

func TestLatticeIndexAndAt(t *testing.T) {
	_, lat := latticeGeometry(t, false)

	cases := []struct {
		p      csg.Vec3
		ix, iy int
		ok     bool
		name   string
	}{
		{csg.Vec3{0.5, 1.5, 0}, 0, 1, true, "a"},
		{csg.Vec3{0.5, 0.5, 0}, 0, 0, true, "d"},
		{csg.Vec3{2.9, 0.1, 0}, 2, 0, true, "f"},
		{csg.Vec3{1, 1, 0}, 1, 1, true, "b"}, // closed below
		{csg.Vec3{0, 0, 0}, 0, 0, true, "d"},
		{csg.Vec3{3, 0.5, 0}, 0, 0, false, ""}, // open above
		{csg.Vec3{0.5, 2, 0}, 0, 0, false, ""},
		{csg.Vec3{-0.001, 0.5, 0}, 0, 0, false, ""},
	}
	for _, tc := range cases {
		ix, iy, ok := lat.Index(tc.p)
		if ok != tc.ok || (ok && (ix != tc.ix || iy != tc.iy)) {
			t.Errorf("Index(%v) = %d,%d,%v; want %d,%d,%v", tc.p, ix, iy, ok, tc.ix, tc.iy, tc.ok)
			continue
		}
		if ok && lat.At(ix, iy).Name != tc.name {
			t.Errorf("At(%d,%d) = %s, want %s", ix, iy, lat.At(ix, iy).Name, tc.name)
		}
	}

	if lat.At(3, 0) != nil || lat.At(0, -1) != nil {
		t.Error("At out of range should be nil")
	}
	if c := lat.Center(2, 1); c.X != 2.5 || c.Y != 1.5 {
		t.Errorf("Center(2,1) = %v", c)
	}
	if ur := lat.UpperRight(); ur != [2]float64{3, 2} {
		t.Errorf("UpperRight = %v", ur)
	}
}

func TestLatticeLocate(t *testing.T) {
	g, lat := latticeGeometry(t, true)

	loc := g.Locate(csg.Vec3{2.25, 1.75, 4})
	if loc.Material.Name != "c" {
		t.Fatalf("got %s, want c", materialName(loc))
	}
	lvl := loc.Path[0]
	if lvl.Lattice != lat || lvl.Index != [2]int{2, 1} {
		t.Errorf("lattice level = %+v", lvl)
	}
	local := loc.Path[1].Point
	if math.Abs(local.X+0.25) > 1e-12 || math.Abs(local.Y-0.25) > 1e-12 || local.Z != 4 {
		t.Errorf("local point = %v, want (-0.25, 0.25, 4)", local)
	}

	// Far edge and beyond go to the outer universe untranslated.
	for _, p := range []csg.Vec3{{3, 0.5, 0}, {-1, -1, 0}, {1.5, 2, 0}} {
		loc := g.Locate(p)
		if materialName(loc) != "outer" {
			t.Errorf("Locate(%v) = %s, want outer", p, materialName(loc))
		}
		if loc.Path[1].Point != p {
			t.Errorf("outer universe saw %v, want untranslated %v", loc.Path[1].Point, p)
		}
		if loc.Path[0].Index != [2]int{-1, -1} {
			t.Errorf("outer index = %v", loc.Path[0].Index)
		}
	}
}

func TestLatticeWithoutOuter(t *testing.T) {
	g, lat := latticeGeometry(t, false)

	loc := g.Locate(csg.Vec3{5, 5, 0})
	if loc.Status != Unresolved {
		t.Fatalf("status = %s, want unresolved", loc.Status)
	}
	var upe *UnresolvedPointError
	if !errors.As(loc.Err(), &upe) {
		t.Fatalf("Err() = %v", loc.Err())
	}
	if upe.Lattice != lat || upe.Universe != nil {
		t.Errorf("error should name the lattice: %+v", upe)
	}
}

// Elements whose universes are bounded by a pitch-sized box must resolve
// every point, including ones on shared element faces where floating point
// round-off could otherwise push the local point just outside the box.
func TestLatticeFacesResolve(t *testing.T) {
	const pitch = 1.26
	const n = 17
	b := NewBuilder()
	water := &material.Material{Name: "water"}
	elem := b.Universe("element", b.Cell("box", csg.Inside(csg.Prism(pitch, pitch, 0, 0)), MaterialFill{water}))
	rows := make([][]*Universe, n)
	for i := range rows {
		rows[i] = make([]*Universe, n)
		for j := range rows[i] {
			rows[i][j] = elem
		}
	}
	half := pitch * n / 2
	lat := b.Lattice("assembly", [2]float64{pitch, pitch}, [2]float64{-half, -half}, rows)
	lat.Outer = b.Universe("outer", b.Cell("outer water", nil, MaterialFill{water}))
	g := mustBuild(t, b, b.Universe("root", b.Cell("lattice", nil, LatticeFill{lat})))

	for i := 0; i <= n; i++ {
		face := -half + float64(i)*pitch
		for _, p := range []csg.Vec3{
			{face, 0.1, 0}, {0.1, face, 0}, {face, face, 0},
			{math.Nextafter(face, math.Inf(1)), 0, 0},
			{math.Nextafter(face, math.Inf(-1)), 0, 0},
		} {
			if loc := g.Locate(p); loc.Status != Found {
				t.Fatalf("face point %v: status %s", p, loc.Status)
			}
		}
	}
}

func TestLatticeLookupIsConstantTime(t *testing.T) {
	// Index depends only on arithmetic; a huge lattice resolves the same way.
	b := NewBuilder()
	elem := filled(b, "x")
	const n = 400
	rows := make([][]*Universe, n)
	for i := range rows {
		rows[i] = make([]*Universe, n)
		for j := range rows[i] {
			rows[i][j] = elem
		}
	}
	lat := b.Lattice("big", [2]float64{1, 1}, [2]float64{0, 0}, rows)
	ix, iy, ok := lat.Index(csg.Vec3{399.5, 0.5, 0})
	if !ok || ix != 399 || iy != 0 {
		t.Errorf("Index = %d,%d,%v", ix, iy, ok)
	}
}
