package assembly

import (
	"fmt"
	"strings"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
)

// Pin kinds used in layouts.
const (
	Fuel       = 'F'
	Guide      = 'G'
	Instrument = 'I'
)

// Layout is a square pin map, one string per row, row 0 at the top.
type Layout []string

// StandardLayout is the 17x17 map of the reference assembly: 22 guide tubes
// and a central instrument tube.
func StandardLayout() Layout {
	return Layout{
		"FFFFGFFFGFFFGFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFGFFFGFFFGFFFF",
		"GFFFGFFFGFFFGFFFG",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFIFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"GFFFGFFFGFFFGFFFG",
		"FFFFGFFFGFFFGFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFFFFFFFFFFFFFF",
		"FFFFGFFFGFFFGFFFF",
	}
}

// Validate checks the layout is square and uses only known pin kinds.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: empty layout", geometry.ErrMalformedGeometry)
	}
	for i, row := range l {
		if len(row) != len(l) {
			return fmt.Errorf("%w: layout row %d has %d pins, want %d", geometry.ErrMalformedGeometry, i, len(row), len(l))
		}
		if j := strings.IndexFunc(row, func(r rune) bool { return r != Fuel && r != Guide && r != Instrument }); j >= 0 {
			return fmt.Errorf("%w: layout row %d column %d: unknown pin kind %q", geometry.ErrMalformedGeometry, i, j, row[j])
		}
	}
	return nil
}

// Count returns the number of pins of one kind.
func (l Layout) Count(kind rune) int {
	n := 0
	for _, row := range l {
		n += strings.Count(row, string(kind))
	}
	return n
}

// Config parameterises the assembly.
type Config struct {
	Pin             PinSpec        `json:"pin" yaml:"pin"`
	Instrument      InstrumentSpec `json:"instrument" yaml:"instrument"`
	Layout          Layout         `json:"layout" yaml:"layout"`
	SleeveThickness float64        `json:"sleeve_thickness" yaml:"sleeve_thickness"`
	WaterGap        float64        `json:"water_gap" yaml:"water_gap"` // added to the sleeve width for the outer water box
}

// DefaultConfig is the reference configuration.
func DefaultConfig() Config {
	return Config{
		Pin:             DefaultPin(),
		Instrument:      DefaultInstrument(),
		Layout:          StandardLayout(),
		SleeveThickness: 0.1,
		WaterGap:        1,
	}
}

// Assembly is a built assembly geometry with handles to its notable parts.
type Assembly struct {
	Geometry  *geometry.Geometry
	Library   *material.Library
	Materials Materials
	Lattice   *geometry.RectLattice

	FuelCell     *geometry.Cell
	AssemblyCell *geometry.Cell
	SleeveCell   *geometry.Cell
	OuterWater   *geometry.Cell

	// Half widths of the three wrapping boxes.
	LatticeHalf, SleeveHalf, OuterHalf float64
}

// Build constructs the assembly geometry. Each wrapping layer excludes the
// regions inside it, so lattice, sleeve and outer water tile the outer box.
func Build(cfg Config) (*Assembly, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.SleeveThickness > 0) || cfg.WaterGap < 0 {
		return nil, fmt.Errorf("%w: sleeve thickness %g and water gap %g", geometry.ErrMalformedGeometry, cfg.SleeveThickness, cfg.WaterGap)
	}
	lib, mats, err := StandardMaterials()
	if err != nil {
		return nil, err
	}

	b := geometry.NewBuilder()
	b.UseMaterials(lib)

	fuelPin, fuelCell, err := FuelPin(b, cfg.Pin, mats)
	if err != nil {
		return nil, err
	}
	fuelCell.ID = 1
	guide, err := GuideTube(b, cfg.Pin, mats)
	if err != nil {
		return nil, err
	}
	var instrument *geometry.Universe
	if cfg.Layout.Count(Instrument) > 0 {
		if instrument, err = InstrumentTube(b, cfg.Instrument, cfg.Pin.Pitch, mats); err != nil {
			return nil, err
		}
	}

	n := len(cfg.Layout)
	rows := make([][]*geometry.Universe, n)
	for i, row := range cfg.Layout {
		rows[i] = make([]*geometry.Universe, n)
		for j, kind := range row {
			switch kind {
			case Fuel:
				rows[i][j] = fuelPin
			case Guide:
				rows[i][j] = guide
			case Instrument:
				rows[i][j] = instrument
			}
		}
	}

	pitch := cfg.Pin.Pitch
	fullPitch := pitch * float64(n)
	lat := b.Lattice("Full Assembly", [2]float64{pitch, pitch}, [2]float64{-fullPitch / 2, -fullPitch / 2}, rows)
	// Points on the upper and right faces of the lattice are outside its
	// half-open elements but inside the closed assembly box.
	lat.Outer = b.Universe("lattice outer water", b.Cell("lattice outer water", nil, geometry.MaterialFill{Material: mats.Water}))

	sleeveWidth := fullPitch + 2*cfg.SleeveThickness
	outerWidth := sleeveWidth + cfg.WaterGap

	assemblyRegion := csg.Inside(b.Surface(csg.Prism(fullPitch, fullPitch, 0, 0)))
	sleeveRegion := csg.And(csg.Inside(b.Surface(csg.Prism(sleeveWidth, sleeveWidth, 0, 0))), csg.Not(assemblyRegion))
	outerBox := csg.Prism(outerWidth, outerWidth, 0, 0)
	outerBox.Boundary = csg.Reflective
	outerRegion := csg.And(csg.Not(sleeveRegion), csg.Not(assemblyRegion), csg.Inside(b.Surface(outerBox)))

	a := &Assembly{
		Library:     lib,
		Materials:   mats,
		Lattice:     lat,
		FuelCell:    fuelCell,
		LatticeHalf: fullPitch / 2,
		SleeveHalf:  sleeveWidth / 2,
		OuterHalf:   outerWidth / 2,
	}
	a.AssemblyCell = b.Cell("full assembly cell", assemblyRegion, geometry.LatticeFill{Lattice: lat})
	a.SleeveCell = b.Cell("full assembly sleeve", sleeveRegion, geometry.MaterialFill{Material: mats.Zirconium})
	a.OuterWater = b.Cell("outer water", outerRegion, geometry.MaterialFill{Material: mats.Water})
	root := b.Universe("full assembly", a.AssemblyCell, a.SleeveCell, a.OuterWater)

	g, err := b.Build(root)
	if err != nil {
		return nil, err
	}
	a.Geometry = g
	return a, nil
}
