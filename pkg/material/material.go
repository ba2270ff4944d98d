// Package material describes the materials that fill geometry cells. The
// geometry engine treats a material as an opaque identity; composition and
// density are carried for the external transport engine and for export.
package material

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMaterial is wrapped by every material validation error.
	ErrInvalidMaterial = errors.New("invalid material")
	// ErrUnknownNuclide is returned for unparseable nuclide or element names.
	ErrUnknownNuclide = errors.New("unknown nuclide")
)

// ID identifies a material. Zero means unassigned.
type ID int

// PercentType says how a component fraction is expressed.
type PercentType int

const (
	AtomPercent   PercentType = iota // "ao"
	WeightPercent                    // "wo"
)

func (p PercentType) String() string {
	if p == WeightPercent {
		return "wo"
	}
	return "ao"
}

// ParsePercentType converts "ao" or "wo".
func ParsePercentType(s string) (PercentType, error) {
	switch s {
	case "", "ao":
		return AtomPercent, nil
	case "wo":
		return WeightPercent, nil
	}
	return 0, fmt.Errorf("%w: percent type %q, expected ao or wo", ErrInvalidMaterial, s)
}

// densityUnits are the unit strings accepted by SetDensity.
var densityUnits = map[string]bool{
	"g/cm3": true, "g/cc": true, "kg/m3": true, "atom/b-cm": true, "atom/cm3": true,
}

// Density is a value with units.
type Density struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Component is one nuclide or element of a material.
type Component struct {
	Nuclide  Nuclide     `json:"nuclide"`
	Fraction float64     `json:"fraction"`
	Percent  PercentType `json:"percent_type"`
}

// Material is a named composition.
type Material struct {
	ID         ID          `json:"id"`
	Name       string      `json:"name"`
	Density    Density     `json:"density"`
	Components []Component `json:"components"`
	SAlphaBeta []string    `json:"s_alpha_beta,omitempty"`
	Depletable bool        `json:"depletable"`
}

// New returns an empty material.
func New(name string) *Material {
	return &Material{Name: name}
}

// AddNuclide appends a nuclide such as "U235".
func (m *Material) AddNuclide(name string, fraction float64, pt PercentType) error {
	n, err := ParseNuclide(name)
	if err != nil {
		return err
	}
	if n.IsElement() {
		return fmt.Errorf("%w: %q is an element, use AddElement", ErrInvalidMaterial, name)
	}
	return m.add(n, fraction, pt)
}

// AddElement appends a natural element such as "Zr".
func (m *Material) AddElement(symbol string, fraction float64, pt PercentType) error {
	n, err := ParseNuclide(symbol)
	if err != nil {
		return err
	}
	if !n.IsElement() {
		return fmt.Errorf("%w: %q is a nuclide, use AddNuclide", ErrInvalidMaterial, symbol)
	}
	return m.add(n, fraction, pt)
}

func (m *Material) add(n Nuclide, fraction float64, pt PercentType) error {
	if !(fraction > 0) {
		return fmt.Errorf("%w: %s fraction %g must be positive", ErrInvalidMaterial, n, fraction)
	}
	m.Components = append(m.Components, Component{Nuclide: n, Fraction: fraction, Percent: pt})
	return nil
}

// SetDensity sets the density.
func (m *Material) SetDensity(units string, value float64) error {
	if !densityUnits[units] {
		return fmt.Errorf("%w: density units %q", ErrInvalidMaterial, units)
	}
	if !(value > 0) {
		return fmt.Errorf("%w: density %g must be positive", ErrInvalidMaterial, value)
	}
	m.Density = Density{Value: value, Units: units}
	return nil
}

// AddSAlphaBeta attaches a thermal scattering table name.
func (m *Material) AddSAlphaBeta(table string) {
	m.SAlphaBeta = append(m.SAlphaBeta, table)
}

// Contains reports whether the material includes nuclide n, either listed
// directly or through its element.
func (m *Material) Contains(n Nuclide) bool {
	for _, c := range m.Components {
		if c.Nuclide == n {
			return true
		}
		if c.Nuclide.IsElement() && c.Nuclide.Z() == n.Z() {
			return true
		}
	}
	return false
}

// Validate checks density and composition.
func (m *Material) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: material %d has no name", ErrInvalidMaterial, m.ID)
	}
	if m.Density.Units == "" || !(m.Density.Value > 0) {
		return fmt.Errorf("%w: material %q has no density", ErrInvalidMaterial, m.Name)
	}
	if len(m.Components) == 0 {
		return fmt.Errorf("%w: material %q has no components", ErrInvalidMaterial, m.Name)
	}
	pt := m.Components[0].Percent
	for _, c := range m.Components[1:] {
		if c.Percent != pt {
			return fmt.Errorf("%w: material %q mixes ao and wo fractions", ErrInvalidMaterial, m.Name)
		}
	}
	return nil
}

func (m *Material) String() string {
	return fmt.Sprintf("material %d (%s)", m.ID, m.Name)
}

// ---------------------------------------------------------------------------
// Library
// ---------------------------------------------------------------------------

// Library is an ordered, name-indexed collection of materials.
type Library struct {
	mats   []*Material
	byName map[string]*Material
	nextID ID
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{byName: make(map[string]*Material), nextID: 1}
}

// Add registers m, assigning an ID if it has none. Names and IDs must be
// unique.
func (l *Library) Add(m *Material) error {
	if _, dup := l.byName[m.Name]; dup {
		return fmt.Errorf("%w: duplicate material name %q", ErrInvalidMaterial, m.Name)
	}
	if m.ID == 0 {
		for l.byID(l.nextID) != nil {
			l.nextID++
		}
		m.ID = l.nextID
		l.nextID++
	} else if l.byID(m.ID) != nil {
		return fmt.Errorf("%w: duplicate material id %d", ErrInvalidMaterial, m.ID)
	}
	l.mats = append(l.mats, m)
	l.byName[m.Name] = m
	return nil
}

func (l *Library) byID(id ID) *Material {
	for _, m := range l.mats {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Lookup returns the material with the given name, or nil.
func (l *Library) Lookup(name string) *Material {
	return l.byName[name]
}

// Get returns the material with the given id, or nil.
func (l *Library) Get(id ID) *Material {
	return l.byID(id)
}

// Has reports whether m is registered in the library.
func (l *Library) Has(m *Material) bool {
	return m != nil && l.byName[m.Name] == m
}

// All returns the materials in registration order.
func (l *Library) All() []*Material {
	out := make([]*Material, len(l.mats))
	copy(out, l.mats)
	return out
}

// Len returns the number of materials.
func (l *Library) Len() int { return len(l.mats) }

// Validate validates every material and joins the errors.
func (l *Library) Validate() error {
	var errs []error
	for _, m := range l.mats {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
