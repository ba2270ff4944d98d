package tessellate

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/fuelgeom/pkg/assembly"
	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/kernel"
	"github.com/chazu/fuelgeom/pkg/kernel/sdfx"
)

// newKernel returns a coarse sdfx kernel so tests stay fast.
func newKernel() kernel.Kernel {
	return sdfx.NewWithResolution(24)
}

func pinGeometry(t *testing.T) *geometry.Geometry {
	t.Helper()
	lib, mats, err := assembly.StandardMaterials()
	if err != nil {
		t.Fatal(err)
	}
	b := geometry.NewBuilder()
	b.UseMaterials(lib)
	pin, _, err := assembly.FuelPin(b, assembly.DefaultPin(), mats)
	if err != nil {
		t.Fatal(err)
	}
	g, err := b.Build(pin)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func byCell(meshes []*kernel.Mesh) map[string][]*kernel.Mesh {
	out := map[string][]*kernel.Mesh{}
	for _, m := range meshes {
		out[m.Cell] = append(out[m.Cell], m)
	}
	return out
}

func centroid(m *kernel.Mesh) csg.Vec3 {
	var c csg.Vec3
	n := m.VertexCount()
	for i := 0; i < n; i++ {
		c.X += float64(m.Vertices[i*3])
		c.Y += float64(m.Vertices[i*3+1])
		c.Z += float64(m.Vertices[i*3+2])
	}
	return c.Scale(1 / float64(n))
}

func TestSinglePin(t *testing.T) {
	meshes, err := Geometry(context.Background(), pinGeometry(t), newKernel(), Options{})
	if err != nil {
		t.Fatalf("Geometry failed: %v", err)
	}

	// The air gap is void and produces no mesh.
	want := map[string]string{"fuel": "uo2", "clad": "zirconium", "fuel water": "water"}
	if len(meshes) != len(want) {
		t.Fatalf("expected %d meshes, got %d", len(want), len(meshes))
	}
	for _, m := range meshes {
		if m.IsEmpty() {
			t.Errorf("mesh for %q is empty", m.Cell)
		}
		if want[m.Cell] != m.Material {
			t.Errorf("cell %q: material %q, want %q", m.Cell, m.Material, want[m.Cell])
		}
		if m.Path != "fuel pin" {
			t.Errorf("cell %q: path %q", m.Cell, m.Path)
		}
	}

	cells := byCell(meshes)
	const tol = 0.1
	min, max, _ := cells["fuel"][0].Bounds()
	for a := 0; a < 2; a++ {
		if float64(max[a]) > 0.4096+tol || float64(min[a]) < -0.4096-tol {
			t.Errorf("fuel extends to [%f, %f] on axis %d", min[a], max[a], a)
		}
	}
	if math.Abs(float64(max[2])-DefaultHeight/2) > tol {
		t.Errorf("fuel top at %f, want %f", max[2], DefaultHeight/2)
	}

	// Bounds come from the pin box.
	min, max, _ = cells["fuel water"][0].Bounds()
	for a := 0; a < 2; a++ {
		if math.Abs(float64(max[a])-0.63) > tol || math.Abs(float64(min[a])+0.63) > tol {
			t.Errorf("water spans [%f, %f] on axis %d, want ±0.63", min[a], max[a], a)
		}
	}
}

func TestLatticeElements(t *testing.T) {
	lib, mats, err := assembly.StandardMaterials()
	if err != nil {
		t.Fatal(err)
	}
	b := geometry.NewBuilder()
	b.UseMaterials(lib)
	pin, _, err := assembly.FuelPin(b, assembly.DefaultPin(), mats)
	if err != nil {
		t.Fatal(err)
	}
	lat := b.Lattice("grid", [2]float64{1.26, 1.26}, [2]float64{-1.26, -1.26},
		[][]*geometry.Universe{{pin, pin}, {pin, pin}})
	root := b.Universe("root",
		b.Cell("grid cell", csg.Inside(csg.Prism(2.52, 2.52, 0, 0)), geometry.LatticeFill{Lattice: lat}))
	g, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	meshes, err := Geometry(context.Background(), g, sdfx.NewWithResolution(16), Options{Workers: 2})
	if err != nil {
		t.Fatalf("Geometry failed: %v", err)
	}
	if len(meshes) != 12 {
		t.Fatalf("expected 12 meshes (3 per element), got %d", len(meshes))
	}

	fuel := byCell(meshes)["fuel"]
	if len(fuel) != 4 {
		t.Fatalf("expected 4 fuel meshes, got %d", len(fuel))
	}
	// Traversal order is left to right, bottom to top.
	wantCentres := []csg.Vec3{{X: -0.63, Y: -0.63}, {X: 0.63, Y: -0.63}, {X: -0.63, Y: 0.63}, {X: 0.63, Y: 0.63}}
	wantPaths := []string{"grid[0,0]", "grid[1,0]", "grid[0,1]", "grid[1,1]"}
	for i, m := range fuel {
		c := centroid(m)
		if math.Abs(c.X-wantCentres[i].X) > 0.05 || math.Abs(c.Y-wantCentres[i].Y) > 0.05 {
			t.Errorf("fuel %d centred at %v, want %v", i, c, wantCentres[i])
		}
		if !strings.Contains(m.Path, wantPaths[i]) {
			t.Errorf("fuel %d path %q, want containing %q", i, m.Path, wantPaths[i])
		}
	}
}

func TestPlaneHalfSpaces(t *testing.T) {
	lib, mats, err := assembly.StandardMaterials()
	if err != nil {
		t.Fatal(err)
	}
	b := geometry.NewBuilder()
	b.UseMaterials(lib)
	slab := csg.Inside(csg.Prism(2, 2, 0, 0))
	mid := csg.AxisPlane(csg.AxisX, 0)
	root := b.Universe("slabs",
		b.Cell("left", csg.And(slab, csg.Inside(mid)), geometry.MaterialFill{Material: mats.Water}),
		b.Cell("right", csg.And(slab, csg.Outside(mid)), geometry.MaterialFill{Material: mats.Zirconium}))
	g, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	meshes, err := Geometry(context.Background(), g, newKernel(), Options{})
	if err != nil {
		t.Fatalf("Geometry failed: %v", err)
	}
	cells := byCell(meshes)
	if len(cells["left"]) != 1 || len(cells["right"]) != 1 {
		t.Fatalf("expected one mesh per slab, got %d", len(meshes))
	}

	const tol = 0.1
	_, lmax, _ := cells["left"][0].Bounds()
	if float64(lmax[0]) > tol {
		t.Errorf("left slab reaches x=%f", lmax[0])
	}
	rmin, _, _ := cells["right"][0].Bounds()
	if float64(rmin[0]) < -tol {
		t.Errorf("right slab reaches x=%f", rmin[0])
	}
}

func TestUnboundedRoot(t *testing.T) {
	lib, mats, err := assembly.StandardMaterials()
	if err != nil {
		t.Fatal(err)
	}
	b := geometry.NewBuilder()
	b.UseMaterials(lib)
	root := b.Universe("sea", b.Cell("water", nil, geometry.MaterialFill{Material: mats.Water}))
	g, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := Geometry(context.Background(), g, newKernel(), Options{}); !errors.Is(err, ErrUnbounded) {
		t.Fatalf("expected ErrUnbounded, got %v", err)
	}

	meshes, err := Geometry(context.Background(), g, newKernel(),
		Options{Lower: [2]float64{-1, -1}, Upper: [2]float64{1, 1}, Height: 0.5})
	if err != nil {
		t.Fatalf("explicit bounds: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	_, max, _ := meshes[0].Bounds()
	if math.Abs(float64(max[2])-0.25) > 0.1 {
		t.Errorf("top at %f, want 0.25", max[2])
	}
}

func TestBadHeight(t *testing.T) {
	_, err := Geometry(context.Background(), pinGeometry(t), newKernel(), Options{Height: -1})
	if err == nil {
		t.Fatal("expected error for negative height")
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Geometry(ctx, pinGeometry(t), newKernel(), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNilGeometry(t *testing.T) {
	meshes, err := Geometry(context.Background(), nil, newKernel(), Options{})
	if err != nil || meshes != nil {
		t.Fatalf("Geometry(nil) = %v, %v", meshes, err)
	}
}

func TestRegionExtent(t *testing.T) {
	pin := csg.ZCylinder(1, 2, 0.5)
	prism := csg.Prism(4, 6, 0, 0)

	tests := []struct {
		name   string
		region *csg.Region
		lo, hi [2]float64
		finite bool
	}{
		{"cylinder", csg.Inside(pin), [2]float64{0.5, 1.5}, [2]float64{1.5, 2.5}, true},
		{"prism", csg.Inside(prism), [2]float64{-2, -3}, [2]float64{2, 3}, true},
		{"and narrows", csg.And(csg.Outside(pin), csg.Inside(prism)), [2]float64{-2, -3}, [2]float64{2, 3}, true},
		{"or widens", csg.Or(csg.Inside(pin), csg.Inside(prism)), [2]float64{-2, -3}, [2]float64{2, 3}, true},
		{"outside", csg.Outside(prism), [2]float64{}, [2]float64{}, false},
		{"not", csg.Not(csg.Inside(prism)), [2]float64{}, [2]float64{}, false},
		{"everywhere", nil, [2]float64{}, [2]float64{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := regionExtent(tt.region)
			finite := !math.IsInf(e.lo.X, 0) && !math.IsInf(e.hi.X, 0) &&
				!math.IsInf(e.lo.Y, 0) && !math.IsInf(e.hi.Y, 0)
			if finite != tt.finite {
				t.Fatalf("finite = %v, want %v (%v)", finite, tt.finite, e)
			}
			if !finite {
				return
			}
			if e.lo.X != tt.lo[0] || e.lo.Y != tt.lo[1] || e.hi.X != tt.hi[0] || e.hi.Y != tt.hi[1] {
				t.Errorf("extent %v..%v, want %v..%v", e.lo, e.hi, tt.lo, tt.hi)
			}
		})
	}
}
