package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/tally"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites model source before zygomys sees it:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot collide with user variables.
//  2. kebab-case identifiers become snake_case (rect-lattice -> rect_lattice),
//     since zygomys reads a hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	out := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch c := b[i]; {
		case c == '"':
			j := i + 1
			for j < len(b) && b[j] != '"' {
				if b[j] == '\\' && j+1 < len(b) {
					j++
				}
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case c == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Sexp wrappers for model objects
// ---------------------------------------------------------------------------

type sexpVec3 struct{ v csg.Vec3 }

func (s *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", s.v.X, s.v.Y, s.v.Z)
}
func (s *sexpVec3) Type() *zygo.RegisteredType { return nil }

type sexpMaterial struct{ m *material.Material }

func (s *sexpMaterial) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(material %q)", s.m.Name)
}
func (s *sexpMaterial) Type() *zygo.RegisteredType { return nil }

type sexpSurface struct{ s csg.Surface }

func (s *sexpSurface) SexpString(ps *zygo.PrintState) string { return "(surface " + s.s.String() + ")" }
func (s *sexpSurface) Type() *zygo.RegisteredType            { return nil }

// sexpRegion wraps a region. A nil region is everywhere.
type sexpRegion struct{ r *csg.Region }

func (s *sexpRegion) SexpString(ps *zygo.PrintState) string { return "(region " + s.r.String() + ")" }
func (s *sexpRegion) Type() *zygo.RegisteredType            { return nil }

type sexpCell struct{ c *geometry.Cell }

func (s *sexpCell) SexpString(ps *zygo.PrintState) string { return fmt.Sprintf("(cell %q)", s.c.Name) }
func (s *sexpCell) Type() *zygo.RegisteredType            { return nil }

type sexpUniverse struct{ u *geometry.Universe }

func (s *sexpUniverse) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(universe %q)", s.u.Name)
}
func (s *sexpUniverse) Type() *zygo.RegisteredType { return nil }

type sexpLattice struct{ l *geometry.RectLattice }

func (s *sexpLattice) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(rect-lattice %q %dx%d)", s.l.Name, s.l.Nx, s.l.Ny)
}
func (s *sexpLattice) Type() *zygo.RegisteredType { return nil }

type sexpMesh struct{ m *tally.RegularMesh }

func (s *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(regular-mesh %q)", s.m.Name)
}
func (s *sexpMesh) Type() *zygo.RegisteredType { return nil }

type sexpFilter struct{ f tally.Filter }

func (s *sexpFilter) SexpString(ps *zygo.PrintState) string { return "(" + s.f.String() + ")" }
func (s *sexpFilter) Type() *zygo.RegisteredType            { return nil }

type sexpTally struct{ t *tally.Tally }

func (s *sexpTally) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(tally %q)", s.t.Name)
}
func (s *sexpTally) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword and positional arguments. A trailing keyword
// without a value is recorded with SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	res := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			res.positional = append(res.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			res.kw[name] = args[i+1]
			i++
		} else {
			res.kw[name] = zygo.SexpNull
		}
	}
	return res
}

// opt converts the keyword argument key with conv and stores it in dst. A
// missing keyword leaves dst untouched.
func opt[T any](pa kwArgs, fn, key string, conv func(zygo.Sexp) (T, error), dst *T) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	x, err := conv(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	*dst = x
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// displayName undoes the kebab-case rewrite for error messages.
func displayName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// name reads the leading positional string argument.
func (pa kwArgs) name(fn string) (string, error) {
	if len(pa.positional) == 0 {
		return "", fmt.Errorf("%s requires a name argument", fn)
	}
	s, err := toString(pa.positional[0])
	if err != nil {
		return "", fmt.Errorf("%s: name: %w", fn, err)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func describe(s zygo.Sexp) string {
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %s", describe(s))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", describe(s))
}

// toKeywordString accepts both :keyword and "string".
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %s", describe(s))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool accepts true and false. A bare trailing keyword counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	if s == zygo.SexpNull {
		return true, nil
	}
	switch s.SexpString(nil) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("expected true or false, got %s", describe(s))
}

func toVec3(s zygo.Sexp) (csg.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.v, nil
	}
	return csg.Vec3{}, fmt.Errorf("expected vec3, got %s", describe(s))
}

// toPair reads a 2D quantity from a vec3 (x, y) or a single number used for
// both components.
func toPair(s zygo.Sexp) ([2]float64, error) {
	if v, ok := s.(*sexpVec3); ok {
		return [2]float64{v.v.X, v.v.Y}, nil
	}
	if f, err := toFloat64(s); err == nil {
		return [2]float64{f, f}, nil
	}
	return [2]float64{}, fmt.Errorf("expected vec3 or number, got %s", describe(s))
}

func toBoundary(s zygo.Sexp) (csg.BoundaryType, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	return csg.ParseBoundary(name)
}

func toAxis(s zygo.Sexp) (csg.Axis, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected axis keyword (:x, :y, :z): %w", err)
	}
	return csg.ParseAxis(name)
}

func toMaterial(s zygo.Sexp) (*material.Material, error) {
	if m, ok := s.(*sexpMaterial); ok {
		return m.m, nil
	}
	return nil, fmt.Errorf("expected material, got %s", describe(s))
}

func toSurface(s zygo.Sexp) (csg.Surface, error) {
	if v, ok := s.(*sexpSurface); ok {
		return v.s, nil
	}
	return nil, fmt.Errorf("expected surface, got %s", describe(s))
}

func toRegion(s zygo.Sexp) (*csg.Region, error) {
	if v, ok := s.(*sexpRegion); ok {
		return v.r, nil
	}
	return nil, fmt.Errorf("expected region, got %s", describe(s))
}

func toCell(s zygo.Sexp) (*geometry.Cell, error) {
	if v, ok := s.(*sexpCell); ok {
		return v.c, nil
	}
	return nil, fmt.Errorf("expected cell, got %s", describe(s))
}

func toUniverse(s zygo.Sexp) (*geometry.Universe, error) {
	if v, ok := s.(*sexpUniverse); ok {
		return v.u, nil
	}
	return nil, fmt.Errorf("expected universe, got %s", describe(s))
}

func toMesh(s zygo.Sexp) (*tally.RegularMesh, error) {
	if v, ok := s.(*sexpMesh); ok {
		return v.m, nil
	}
	return nil, fmt.Errorf("expected regular-mesh, got %s", describe(s))
}

func toFilter(s zygo.Sexp) (tally.Filter, error) {
	if v, ok := s.(*sexpFilter); ok {
		return v.f, nil
	}
	return nil, fmt.Errorf("expected filter, got %s", describe(s))
}

func toScore(s zygo.Sexp) (tally.Score, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	return tally.ParseScore(name)
}

// toFill accepts a material, universe, lattice or :void.
func toFill(s zygo.Sexp) (geometry.Fill, error) {
	switch v := s.(type) {
	case *sexpMaterial:
		return geometry.MaterialFill{Material: v.m}, nil
	case *sexpUniverse:
		return geometry.UniverseFill{Universe: v.u}, nil
	case *sexpLattice:
		return geometry.LatticeFill{Lattice: v.l}, nil
	}
	if kw, err := toKeywordString(s); err == nil && kw == "void" {
		return geometry.Void{}, nil
	}
	return nil, fmt.Errorf("expected material, universe, lattice or :void, got %s", describe(s))
}

// sexpListToSlice converts a list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// listOf lifts an element converter to lists.
func listOf[T any](conv func(zygo.Sexp) (T, error)) func(zygo.Sexp) ([]T, error) {
	return func(s zygo.Sexp) ([]T, error) {
		items, err := sexpListToSlice(s)
		if err != nil {
			return nil, err
		}
		return convertAll(items, conv)
	}
}

func convertAll[T any](items []zygo.Sexp, conv func(zygo.Sexp) (T, error)) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		x, err := conv(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, x)
	}
	return out, nil
}

// toFractions reads a flat (name fraction name fraction ...) list.
func toFractions(s zygo.Sexp) ([]fraction, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("expected name/fraction pairs, got %d items", len(items))
	}
	out := make([]fraction, 0, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		name, err := toString(items[i])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		f, err := toFloat64(items[i+1])
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, name, err)
		}
		out = append(out, fraction{name, f})
	}
	return out, nil
}

type fraction struct {
	name  string
	value float64
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtinFunc is the signature zygomys expects from Go builtins.
type builtinFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the model DSL into env. Builtins record what
// they declare in s; nothing is validated as a whole until s.finish.
//
// Source must go through preprocessSource first so keywords and kebab-case
// names reach these functions in the form they are registered under.
func registerBuiltins(env *zygo.Zlisp, s *session) {
	// (vec3 x y z)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			v[i] = f
		}
		return &sexpVec3{v: csg.Vec3{X: v[0], Y: v[1], Z: v[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// Materials
	// -----------------------------------------------------------------------

	// (material "uo2" :density 10.4 :units "g/cm3" :percent :ao
	//           :nuclides (list "U235" 0.04 "U238" 0.96) :elements (list "Zr" 1)
	//           :sab "c_H_in_H2O" :depletable true :id 1)
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		matName, err := pa.name("material")
		if err != nil {
			return zygo.SexpNull, err
		}
		m := material.New(matName)

		var (
			density            float64
			units              = "g/cm3"
			percent            = "ao"
			nuclides, elements []fraction
			sab                string
			id                 int
		)
		err = firstErr(
			opt(pa, "material", "density", toFloat64, &density),
			opt(pa, "material", "units", toKeywordString, &units),
			opt(pa, "material", "percent", toKeywordString, &percent),
			opt(pa, "material", "nuclides", toFractions, &nuclides),
			opt(pa, "material", "elements", toFractions, &elements),
			opt(pa, "material", "sab", toString, &sab),
			opt(pa, "material", "depletable", toBool, &m.Depletable),
			opt(pa, "material", "id", toInt, &id),
		)
		if err != nil {
			return zygo.SexpNull, err
		}
		pt, err := material.ParsePercentType(percent)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material %q: %w", matName, err)
		}
		for _, n := range nuclides {
			if err := m.AddNuclide(n.name, n.value, pt); err != nil {
				return zygo.SexpNull, fmt.Errorf("material %q: %w", matName, err)
			}
		}
		for _, e := range elements {
			if err := m.AddElement(e.name, e.value, pt); err != nil {
				return zygo.SexpNull, fmt.Errorf("material %q: %w", matName, err)
			}
		}
		if _, ok := pa.kw["density"]; ok {
			if err := m.SetDensity(units, density); err != nil {
				return zygo.SexpNull, fmt.Errorf("material %q: %w", matName, err)
			}
		}
		if sab != "" {
			m.AddSAlphaBeta(sab)
		}
		m.ID = material.ID(id)
		if err := s.lib.Add(m); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpMaterial{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// Surfaces
	// -----------------------------------------------------------------------

	// surface registers a surface after applying the shared :id, :name and
	// :boundary keywords.
	surface := func(fn string, pa kwArgs, sf csg.Surface) (zygo.Sexp, error) {
		meta := sf.Meta()
		var id int
		err := firstErr(
			opt(pa, fn, "id", toInt, &id),
			opt(pa, fn, "name", toString, &meta.Name),
			opt(pa, fn, "boundary", toBoundary, &meta.Boundary),
		)
		if err != nil {
			return zygo.SexpNull, err
		}
		meta.ID = csg.SurfaceID(id)
		if err := sf.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		s.b.Surface(sf)
		return &sexpSurface{s: sf}, nil
	}

	// (zcylinder :r 0.4096 :x0 0 :y0 0 :boundary :vacuum)
	// (xcylinder :r 1 :y0 0 :z0 0), (ycylinder :r 1 :x0 0 :z0 0)
	cylinder := func(mk func(a, b, r float64) *csg.Cylinder, ka, kb string) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			fn := displayName(name)
			pa := parseArgs(args)
			var a, b, r float64
			if err := firstErr(
				opt(pa, fn, ka, toFloat64, &a),
				opt(pa, fn, kb, toFloat64, &b),
				opt(pa, fn, "r", toFloat64, &r),
			); err != nil {
				return zygo.SexpNull, err
			}
			return surface(fn, pa, mk(a, b, r))
		}
	}
	env.AddFunction("zcylinder", cylinder(csg.ZCylinder, "x0", "y0"))
	env.AddFunction("xcylinder", cylinder(csg.XCylinder, "y0", "z0"))
	env.AddFunction("ycylinder", cylinder(csg.YCylinder, "x0", "z0"))

	// (rect-prism :width 1.26 :height 1.26 :origin (vec3 0 0 0) :axis :z :boundary :reflective)
	env.AddFunction("rect_prism", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var origin [2]float64
		p := csg.Prism(0, 0, 0, 0)
		if err := firstErr(
			opt(pa, "rect-prism", "width", toFloat64, &p.Width),
			opt(pa, "rect-prism", "height", toFloat64, &p.Height),
			opt(pa, "rect-prism", "origin", toPair, &origin),
			opt(pa, "rect-prism", "axis", toAxis, &p.Axis),
		); err != nil {
			return zygo.SexpNull, err
		}
		p.Origin = origin
		return surface("rect-prism", pa, p)
	})

	// (xplane :x0 1), (yplane :x0 1), (zplane :x0 1)
	for _, a := range []csg.Axis{csg.AxisX, csg.AxisY, csg.AxisZ} {
		fn := a.String() + "plane"
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			var x0 float64
			if err := opt(pa, fn, "x0", toFloat64, &x0); err != nil {
				return zygo.SexpNull, err
			}
			return surface(fn, pa, csg.AxisPlane(a, x0))
		})
	}

	// -----------------------------------------------------------------------
	// Regions
	// -----------------------------------------------------------------------

	halfspace := func(mk func(csg.Surface) *csg.Region) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly one surface", name)
			}
			sf, err := toSurface(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return &sexpRegion{r: mk(sf)}, nil
		}
	}
	env.AddFunction("inside", halfspace(csg.Inside))
	env.AddFunction("outside", halfspace(csg.Outside))

	combine := func(mk func(...*csg.Region) *csg.Region) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			rs := make([]*csg.Region, len(args))
			for i, a := range args {
				r, err := toRegion(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", displayName(name), i, err)
				}
				rs[i] = r
			}
			return &sexpRegion{r: mk(rs...)}, nil
		}
	}
	env.AddFunction("csg_and", combine(csg.And))
	env.AddFunction("csg_or", combine(csg.Or))

	env.AddFunction("csg_not", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("csg-not requires exactly one region")
		}
		r, err := toRegion(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("csg-not: %w", err)
		}
		return &sexpRegion{r: csg.Not(r)}, nil
	})

	// (everywhere)
	env.AddFunction("everywhere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &sexpRegion{r: csg.Everywhere()}, nil
	})

	// -----------------------------------------------------------------------
	// Cells, universes, lattices
	// -----------------------------------------------------------------------

	// (cell "fuel" :region r :fill uo2 :id 1). A missing :fill is void and a
	// missing :region is everywhere.
	env.AddFunction("cell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		cellName, err := pa.name("cell")
		if err != nil {
			return zygo.SexpNull, err
		}
		c := &geometry.Cell{Name: cellName, Fill: geometry.Void{}}
		var id int
		if err := firstErr(
			opt(pa, "cell", "region", toRegion, &c.Region),
			opt(pa, "cell", "fill", toFill, &c.Fill),
			opt(pa, "cell", "id", toInt, &id),
		); err != nil {
			return zygo.SexpNull, err
		}
		c.ID = geometry.CellID(id)
		s.b.AddCell(c)
		return &sexpCell{c: c}, nil
	})

	// (universe "pin" c1 c2 c3 :id 1). Cells may also be passed as lists.
	env.AddFunction("universe", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		uName, err := pa.name("universe")
		if err != nil {
			return zygo.SexpNull, err
		}
		var cells []*geometry.Cell
		for i, a := range pa.positional[1:] {
			if c, err := toCell(a); err == nil {
				cells = append(cells, c)
				continue
			}
			cs, err := listOf(toCell)(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("universe %q: argument %d: %w", uName, i+1, err)
			}
			cells = append(cells, cs...)
		}
		var id int
		if err := opt(pa, "universe", "id", toInt, &id); err != nil {
			return zygo.SexpNull, err
		}
		u := s.b.Universe(uName, cells...)
		u.ID = geometry.UniverseID(id)
		return &sexpUniverse{u: u}, nil
	})

	// (rect-lattice "assembly" :pitch 1.26 :lower-left (vec3 -10.71 -10.71 0)
	//               :outer water-u :universes (list (list u u) (list u u)))
	env.AddFunction("rect_lattice", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		lName, err := pa.name("rect-lattice")
		if err != nil {
			return zygo.SexpNull, err
		}
		var (
			pitch, lowerLeft [2]float64
			rows             [][]*geometry.Universe
			outer            *geometry.Universe
			id               int
		)
		if err := firstErr(
			opt(pa, "rect-lattice", "pitch", toPair, &pitch),
			opt(pa, "rect-lattice", "lower-left", toPair, &lowerLeft),
			opt(pa, "rect-lattice", "universes", listOf(listOf(toUniverse)), &rows),
			opt(pa, "rect-lattice", "outer", toUniverse, &outer),
			opt(pa, "rect-lattice", "id", toInt, &id),
		); err != nil {
			return zygo.SexpNull, err
		}
		if len(rows) == 0 {
			return zygo.SexpNull, fmt.Errorf("rect-lattice %q: :universes is required", lName)
		}
		l := s.b.Lattice(lName, pitch, lowerLeft, rows)
		l.Outer = outer
		l.ID = geometry.LatticeID(id)
		return &sexpLattice{l: l}, nil
	})

	// (geometry root-universe)
	env.AddFunction("geometry", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("geometry requires exactly one root universe")
		}
		u, err := toUniverse(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("geometry: %w", err)
		}
		if s.root != nil && s.root != u {
			return zygo.SexpNull, fmt.Errorf("geometry: root already set to universe %q", s.root.Name)
		}
		s.root = u
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// Run description
	// -----------------------------------------------------------------------

	// (settings :particles 1000 :batches 100 :inactive 10 :source (vec3 0 0 0) :seed 1)
	env.AddFunction("settings", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		st := &s.model.Settings
		var seed int
		if err := firstErr(
			opt(pa, "settings", "particles", toInt, &st.Particles),
			opt(pa, "settings", "batches", toInt, &st.Batches),
			opt(pa, "settings", "inactive", toInt, &st.Inactive),
			opt(pa, "settings", "source", toVec3, &st.Source.Point),
			opt(pa, "settings", "seed", toInt, &seed),
		); err != nil {
			return zygo.SexpNull, err
		}
		if _, ok := pa.kw["seed"]; ok {
			st.Seed = int64(seed)
		}
		if err := st.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("settings: %w", err)
		}
		s.hasSettings = true
		return zygo.SexpNull, nil
	})

	// (regular-mesh "flux mesh" :dimension (list 50 50 1)
	//               :lower-left (vec3 -12 -12 -1) :upper-right (vec3 12 12 1))
	env.AddFunction("regular_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		mName, err := pa.name("regular-mesh")
		if err != nil {
			return zygo.SexpNull, err
		}
		m := &tally.RegularMesh{Name: mName}
		var (
			dim []int
			id  int
		)
		if err := firstErr(
			opt(pa, "regular-mesh", "dimension", listOf(toInt), &dim),
			opt(pa, "regular-mesh", "lower-left", toVec3, &m.LowerLeft),
			opt(pa, "regular-mesh", "upper-right", toVec3, &m.UpperRight),
			opt(pa, "regular-mesh", "id", toInt, &id),
		); err != nil {
			return zygo.SexpNull, err
		}
		if len(dim) < 1 || len(dim) > 3 {
			return zygo.SexpNull, fmt.Errorf("regular-mesh %q: :dimension needs 1 to 3 entries", mName)
		}
		m.Dimension = [3]int{1, 1, 1}
		copy(m.Dimension[:], dim)
		m.ID = tally.MeshID(id)
		if err := m.Validate(); err != nil {
			return zygo.SexpNull, err
		}
		s.model.Meshes = append(s.model.Meshes, m)
		return &sexpMesh{m: m}, nil
	})

	// (cell-filter c1 c2), (material-filter m1 m2), (mesh-filter mesh)
	env.AddFunction("cell_filter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		cells, err := convertAll(args, toCell)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell-filter: %w", err)
		}
		return &sexpFilter{f: tally.CellFilter{Cells: cells}}, nil
	})
	env.AddFunction("material_filter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		mats, err := convertAll(args, toMaterial)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material-filter: %w", err)
		}
		return &sexpFilter{f: tally.MaterialFilter{Materials: mats}}, nil
	})
	env.AddFunction("mesh_filter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("mesh-filter requires exactly one mesh")
		}
		m, err := toMesh(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-filter: %w", err)
		}
		return &sexpFilter{f: tally.MeshFilter{Mesh: m}}, nil
	})

	// (tally "flux" :filters (list (mesh-filter m)) :nuclides (list "U235") :scores (list "flux"))
	env.AddFunction("tally", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		tName, err := pa.name("tally")
		if err != nil {
			return zygo.SexpNull, err
		}
		t := &tally.Tally{Name: tName}
		var id int
		if err := firstErr(
			opt(pa, "tally", "filters", listOf(toFilter), &t.Filters),
			opt(pa, "tally", "nuclides", listOf(toString), &t.Nuclides),
			opt(pa, "tally", "scores", listOf(toScore), &t.Scores),
			opt(pa, "tally", "id", toInt, &id),
		); err != nil {
			return zygo.SexpNull, err
		}
		if len(t.Scores) == 0 {
			return zygo.SexpNull, fmt.Errorf("tally %q: :scores is required", tName)
		}
		t.ID = tally.ID(id)
		s.model.Tallies = append(s.model.Tallies, t)
		return &sexpTally{t: t}, nil
	})

	// (plot "assembly" :origin (vec3 0 0 0) :width 15 :height 15
	//       :pixels (list 1000 1000) :basis "xy" :color-by "material")
	env.AddFunction("plot", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pName, err := pa.name("plot")
		if err != nil {
			return zygo.SexpNull, err
		}
		spec := plot.Spec{Name: pName, Basis: plot.BasisXY, ColorBy: plot.ByMaterial}
		var (
			pixels         []int
			basis, colorBy = string(spec.Basis), string(spec.ColorBy)
		)
		if err := firstErr(
			opt(pa, "plot", "origin", toVec3, &spec.Origin),
			opt(pa, "plot", "width", toFloat64, &spec.Width),
			opt(pa, "plot", "height", toFloat64, &spec.Height),
			opt(pa, "plot", "pixels", listOf(toInt), &pixels),
			opt(pa, "plot", "basis", toKeywordString, &basis),
			opt(pa, "plot", "color-by", toKeywordString, &colorBy),
		); err != nil {
			return zygo.SexpNull, err
		}
		if len(pixels) != 2 {
			return zygo.SexpNull, fmt.Errorf("plot %q: :pixels needs two entries", pName)
		}
		spec.Pixels = [2]int{pixels[0], pixels[1]}
		spec.Basis, spec.ColorBy = plot.Basis(basis), plot.ColorBy(colorBy)
		if err := spec.Validate(); err != nil {
			return zygo.SexpNull, err
		}
		s.model.Plots = append(s.model.Plots, spec)
		return zygo.SexpNull, nil
	})
}
