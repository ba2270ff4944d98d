// Package assembly composes the reference PWR fuel assembly: pin cell
// universes on a 17x17 lattice, wrapped in a zirconium sleeve and a water
// reflector.
package assembly

import (
	"fmt"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
)

// PinSpec holds the radii of a fuel pin and the lattice pitch.
type PinSpec struct {
	FuelRadius      float64 `json:"fuel_radius" yaml:"fuel_radius"`
	CladInnerRadius float64 `json:"clad_inner_radius" yaml:"clad_inner_radius"`
	CladOuterRadius float64 `json:"clad_outer_radius" yaml:"clad_outer_radius"`
	Pitch           float64 `json:"pitch" yaml:"pitch"`
}

// DefaultPin is the reference pin: 0.4096 / 0.4179 / 0.475 cm at 1.26 cm.
func DefaultPin() PinSpec {
	return PinSpec{FuelRadius: 0.4096, CladInnerRadius: 0.4179, CladOuterRadius: 0.475, Pitch: 1.26}
}

// Validate requires 0 < fuel < clad inner < clad outer and a pitch box that
// holds the clad.
func (p PinSpec) Validate() error {
	if !(p.FuelRadius > 0) {
		return fmt.Errorf("%w: fuel radius %g must be positive", geometry.ErrMalformedGeometry, p.FuelRadius)
	}
	if !(p.FuelRadius < p.CladInnerRadius && p.CladInnerRadius < p.CladOuterRadius) {
		return fmt.Errorf("%w: pin radii %g, %g, %g must be strictly increasing",
			geometry.ErrMalformedGeometry, p.FuelRadius, p.CladInnerRadius, p.CladOuterRadius)
	}
	if !(2*p.CladOuterRadius <= p.Pitch) {
		return fmt.Errorf("%w: clad diameter %g exceeds pitch %g",
			geometry.ErrMalformedGeometry, 2*p.CladOuterRadius, p.Pitch)
	}
	return nil
}

// Materials are the four materials of the reference model.
type Materials struct {
	UO2       *material.Material
	Zirconium *material.Material
	Water     *material.Material
	Steel     *material.Material
}

// StandardMaterials builds the reference materials and registers them in a
// new library.
func StandardMaterials() (*material.Library, Materials, error) {
	var m Materials
	var err error
	add := func(f func() error) {
		if err == nil {
			err = f()
		}
	}

	m.UO2 = material.New("uo2")
	add(func() error { return m.UO2.AddNuclide("U235", 0.04, material.AtomPercent) })
	add(func() error { return m.UO2.AddNuclide("U238", 0.96, material.AtomPercent) })
	add(func() error { return m.UO2.AddNuclide("O16", 2.0, material.AtomPercent) })
	add(func() error { return m.UO2.SetDensity("g/cm3", 10.4) })
	m.UO2.Depletable = true

	m.Zirconium = material.New("zirconium")
	add(func() error { return m.Zirconium.AddElement("Zr", 1.0, material.AtomPercent) })
	add(func() error { return m.Zirconium.SetDensity("g/cm3", 6.55) })

	m.Water = material.New("water")
	add(func() error { return m.Water.AddNuclide("H1", 2.0, material.AtomPercent) })
	add(func() error { return m.Water.AddNuclide("O16", 1.0, material.AtomPercent) })
	add(func() error { return m.Water.SetDensity("g/cm3", 1.0) })
	m.Water.AddSAlphaBeta("c_H_in_H2O")

	m.Steel = material.New("Stainless Steel")
	for _, el := range []struct {
		sym  string
		frac float64
	}{
		{"C", 0.08}, {"Si", 1.00}, {"P", 0.045}, {"S", 0.030},
		{"Mn", 2.00}, {"Cr", 20.0}, {"Ni", 11.0}, {"Fe", 65.845},
	} {
		add(func() error { return m.Steel.AddElement(el.sym, el.frac, material.WeightPercent) })
	}
	add(func() error { return m.Steel.SetDensity("g/cm3", 8.00) })

	lib := material.NewLibrary()
	for _, mat := range []*material.Material{m.UO2, m.Zirconium, m.Water, m.Steel} {
		add(func() error { return lib.Add(mat) })
	}
	if err != nil {
		return nil, Materials{}, err
	}
	return lib, m, nil
}

// pinBox is the reflective pitch box every pin universe ends at.
func pinBox(pitch float64) *csg.RectangularPrism {
	box := csg.Prism(pitch, pitch, 0, 0)
	box.Boundary = csg.Reflective
	return box
}

// FuelPin declares a fuel pin universe: fuel, void gap, clad and moderator.
// The fuel cell is returned separately for tallying.
func FuelPin(b *geometry.Builder, spec PinSpec, m Materials) (*geometry.Universe, *geometry.Cell, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	fuelOR := b.Surface(csg.ZCylinder(0, 0, spec.FuelRadius))
	cladIR := b.Surface(csg.ZCylinder(0, 0, spec.CladInnerRadius))
	cladOR := b.Surface(csg.ZCylinder(0, 0, spec.CladOuterRadius))
	box := pinBox(spec.Pitch)

	fuel := b.Cell("fuel", csg.Inside(fuelOR), geometry.MaterialFill{Material: m.UO2})
	u := b.Universe("fuel pin",
		fuel,
		b.Cell("air gap", csg.And(csg.Outside(fuelOR), csg.Inside(cladIR)), geometry.Void{}),
		b.Cell("clad", csg.And(csg.Outside(cladIR), csg.Inside(cladOR)), geometry.MaterialFill{Material: m.Zirconium}),
		b.Cell("fuel water", csg.And(csg.Outside(cladOR), csg.Inside(box)), geometry.MaterialFill{Material: m.Water}),
	)
	return u, fuel, nil
}

// GuideTube declares a water-filled guide tube universe. Its inner water
// radius is the fuel pin's clad inner radius.
func GuideTube(b *geometry.Builder, spec PinSpec, m Materials) (*geometry.Universe, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	inner := b.Surface(csg.ZCylinder(0, 0, spec.CladInnerRadius))
	outer := b.Surface(csg.ZCylinder(0, 0, spec.CladOuterRadius))
	box := pinBox(spec.Pitch)

	return b.Universe("guide tube",
		b.Cell("waterrod_inner", csg.Inside(inner), geometry.MaterialFill{Material: m.Water}),
		b.Cell("wr_clad", csg.And(csg.Outside(inner), csg.Inside(outer)), geometry.MaterialFill{Material: m.Zirconium}),
		b.Cell("waterrod_outer", csg.And(csg.Outside(outer), csg.Inside(box)), geometry.MaterialFill{Material: m.Water}),
	), nil
}

// InstrumentSpec holds the radii of the instrument tube.
type InstrumentSpec struct {
	RodRadius  float64 `json:"rod_radius" yaml:"rod_radius"`
	CladRadius float64 `json:"clad_radius" yaml:"clad_radius"`
}

// DefaultInstrument is the reference instrument tube: 0.475 / 0.55 cm.
func DefaultInstrument() InstrumentSpec {
	return InstrumentSpec{RodRadius: 0.475, CladRadius: 0.55}
}

// InstrumentTube declares a steel rod in a zirconium sleeve.
func InstrumentTube(b *geometry.Builder, spec InstrumentSpec, pitch float64, m Materials) (*geometry.Universe, error) {
	if !(spec.RodRadius > 0 && spec.RodRadius < spec.CladRadius) {
		return nil, fmt.Errorf("%w: instrument radii %g, %g must be positive and increasing",
			geometry.ErrMalformedGeometry, spec.RodRadius, spec.CladRadius)
	}
	if !(2*spec.CladRadius <= pitch) {
		return nil, fmt.Errorf("%w: instrument clad diameter %g exceeds pitch %g",
			geometry.ErrMalformedGeometry, 2*spec.CladRadius, pitch)
	}
	rod := b.Surface(csg.ZCylinder(0, 0, spec.RodRadius))
	clad := b.Surface(csg.ZCylinder(0, 0, spec.CladRadius))
	box := pinBox(pitch)

	return b.Universe("instrument tube",
		b.Cell("ipin_rod", csg.Inside(rod), geometry.MaterialFill{Material: m.Steel}),
		b.Cell("ipin_clad", csg.And(csg.Outside(rod), csg.Inside(clad)), geometry.MaterialFill{Material: m.Zirconium}),
		b.Cell("ipin_water", csg.And(csg.Outside(clad), csg.Inside(box)), geometry.MaterialFill{Material: m.Water}),
	), nil
}
