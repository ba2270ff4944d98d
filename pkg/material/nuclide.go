package material

import (
	"fmt"
	"strconv"
	"strings"
)

// Nuclide identifies a nuclide in ZZZAAAMMMM form. An element (natural
// isotopic mix) has A = 0.
type Nuclide int

// Z returns the atomic number.
func (n Nuclide) Z() int { return int(n) / 10000000 }

// A returns the mass number, zero for elements.
func (n Nuclide) A() int { return (int(n) / 10000) % 1000 }

// M returns the metastable state.
func (n Nuclide) M() int { return int(n) % 10000 }

// IsElement reports whether n denotes an element rather than a nuclide.
func (n Nuclide) IsElement() bool { return n.A() == 0 }

// Name renders n the way it was spelled in input: U235, Am242_m1, Zr.
func (n Nuclide) Name() string {
	z := n.Z()
	if z <= 0 || z >= len(symbols) {
		return strconv.Itoa(int(n))
	}
	s := symbols[z]
	if n.A() > 0 {
		s += strconv.Itoa(n.A())
	}
	if n.M() > 0 {
		s += "_m" + strconv.Itoa(n.M())
	}
	return s
}

func (n Nuclide) String() string { return n.Name() }

// symbols maps atomic number to element symbol.
var symbols = []string{"",
	"H", "He", "Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar", "K", "Ca",
	"Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr", "Rb", "Sr", "Y", "Zr",
	"Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn",
	"Sb", "Te", "I", "Xe", "Cs", "Ba", "La", "Ce", "Pr", "Nd",
	"Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb",
	"Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn", "Fr", "Ra", "Ac", "Th",
	"Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf",
}

var atomicNumber = func() map[string]int {
	m := make(map[string]int, len(symbols))
	for z, s := range symbols {
		if s != "" {
			m[s] = z
		}
	}
	return m
}()

// ParseNuclide parses a GNDS-style name: an element symbol followed by an
// optional mass number and metastable suffix ("U235", "Am242_m1", "Zr").
func ParseNuclide(name string) (Nuclide, error) {
	base, meta := name, 0
	if i := strings.Index(name, "_m"); i >= 0 {
		m, err := strconv.Atoi(name[i+2:])
		if err != nil || m < 0 {
			return 0, fmt.Errorf("%w: bad metastable suffix in %q", ErrUnknownNuclide, name)
		}
		base, meta = name[:i], m
	}
	j := 0
	for j < len(base) && (base[j] < '0' || base[j] > '9') {
		j++
	}
	sym, digits := base[:j], base[j:]
	z, ok := atomicNumber[sym]
	if !ok {
		return 0, fmt.Errorf("%w: unknown element symbol in %q", ErrUnknownNuclide, name)
	}
	a := 0
	if digits != "" {
		v, err := strconv.Atoi(digits)
		if err != nil || v <= 0 || v >= 1000 {
			return 0, fmt.Errorf("%w: bad mass number in %q", ErrUnknownNuclide, name)
		}
		a = v
	}
	if a == 0 && meta > 0 {
		return 0, fmt.Errorf("%w: element %q cannot be metastable", ErrUnknownNuclide, name)
	}
	return Nuclide(z*10000000 + a*10000 + meta), nil
}
