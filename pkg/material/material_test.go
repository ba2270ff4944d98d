package material

import (
	"errors"
	"testing"
)

func TestParseNuclide(t *testing.T) {
	cases := []struct {
		in      string
		z, a, m int
	}{
		{"U235", 92, 235, 0},
		{"U238", 92, 238, 0},
		{"O16", 8, 16, 0},
		{"H1", 1, 1, 0},
		{"Zr", 40, 0, 0},
		{"Am242_m1", 95, 242, 1},
	}
	for _, tc := range cases {
		n, err := ParseNuclide(tc.in)
		if err != nil {
			t.Fatalf("ParseNuclide(%q): %v", tc.in, err)
		}
		if n.Z() != tc.z || n.A() != tc.a || n.M() != tc.m {
			t.Errorf("%s: got Z=%d A=%d M=%d", tc.in, n.Z(), n.A(), n.M())
		}
		if n.Name() != tc.in {
			t.Errorf("Name() = %q, want %q", n.Name(), tc.in)
		}
	}

	if n, _ := ParseNuclide("U235"); n != 922350000 {
		t.Errorf("U235 id = %d, want 922350000", n)
	}

	for _, bad := range []string{"", "Xx12", "U0", "U1000", "Zr_m1", "U235_mx"} {
		if _, err := ParseNuclide(bad); !errors.Is(err, ErrUnknownNuclide) {
			t.Errorf("ParseNuclide(%q) error = %v, want ErrUnknownNuclide", bad, err)
		}
	}
}

func TestMaterialBuild(t *testing.T) {
	uo2 := New("uo2")
	mustOK(t, uo2.AddNuclide("U235", 0.04, AtomPercent))
	mustOK(t, uo2.AddNuclide("U238", 0.96, AtomPercent))
	mustOK(t, uo2.AddNuclide("O16", 2.0, AtomPercent))
	mustOK(t, uo2.SetDensity("g/cm3", 10.4))
	if err := uo2.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	u235, _ := ParseNuclide("U235")
	if !uo2.Contains(u235) {
		t.Error("uo2 should contain U235")
	}
	h1, _ := ParseNuclide("H1")
	if uo2.Contains(h1) {
		t.Error("uo2 should not contain H1")
	}

	zr := New("zirconium")
	mustOK(t, zr.AddElement("Zr", 1, AtomPercent))
	zr90, _ := ParseNuclide("Zr90")
	if !zr.Contains(zr90) {
		t.Error("natural Zr should contain Zr90")
	}
}

func TestMaterialErrors(t *testing.T) {
	m := New("bad")
	if err := m.AddElement("U235", 1, AtomPercent); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("AddElement(U235) = %v", err)
	}
	if err := m.AddNuclide("Fe", 1, AtomPercent); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("AddNuclide(Fe) = %v", err)
	}
	if err := m.AddNuclide("U235", 0, AtomPercent); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("zero fraction accepted: %v", err)
	}
	if err := m.SetDensity("furlongs", 1); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("bad units accepted: %v", err)
	}
	if err := m.Validate(); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("empty material validated: %v", err)
	}

	mixed := New("mixed")
	mustOK(t, mixed.SetDensity("g/cm3", 1))
	mustOK(t, mixed.AddElement("C", 1, WeightPercent))
	mustOK(t, mixed.AddElement("Fe", 99, AtomPercent))
	if err := mixed.Validate(); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("mixed percent types validated: %v", err)
	}
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	fuel := &Material{ID: 1, Name: "uo2"}
	water := New("water")
	zr := New("zirconium")

	mustOK(t, lib.Add(fuel))
	mustOK(t, lib.Add(water))
	mustOK(t, lib.Add(zr))

	if water.ID != 2 || zr.ID != 3 {
		t.Errorf("auto ids = %d, %d; want 2, 3", water.ID, zr.ID)
	}
	if lib.Lookup("water") != water || lib.Get(3) != zr {
		t.Error("lookup by name or id failed")
	}
	if !lib.Has(fuel) || lib.Has(New("uo2")) {
		t.Error("Has should match on identity, not name")
	}
	if err := lib.Add(New("water")); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("duplicate name accepted: %v", err)
	}
	if err := lib.Add(&Material{ID: 2, Name: "other"}); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("duplicate id accepted: %v", err)
	}
	if got := lib.All(); len(got) != 3 || got[0] != fuel {
		t.Errorf("All() order wrong: %v", got)
	}
	if lib.Validate() == nil {
		t.Error("library with empty materials should not validate")
	}
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
