package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/fuelgeom/pkg/csg"
)

// ErrMalformedGeometry is wrapped by every Build failure.
var ErrMalformedGeometry = errors.New("malformed geometry")

// ValidationSeverity indicates whether a finding blocks Build or is merely
// informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks Build
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Object   string             // offending object, e.g. "cell 3 (fuel)"; empty if geometry-level
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Object, e.Message)
}

// BuildError carries every blocking finding of a failed Build.
type BuildError struct {
	Findings []ValidationError
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s: %s", ErrMalformedGeometry, strings.Join(msgs, "; "))
}

// Unwrap exposes ErrMalformedGeometry and each finding to errors.Is/As.
func (e *BuildError) Unwrap() []error {
	out := make([]error, 0, len(e.Findings)+1)
	out = append(out, ErrMalformedGeometry)
	for _, f := range e.Findings {
		out = append(out, f)
	}
	return out
}

// validator checks a builder's declarations. It assigns ids tentatively so
// findings can name objects; rollback clears them when validation fails.
// Nothing else is mutated.
type validator struct {
	b    *Builder
	root *Universe

	declaredCells     map[*Cell]bool
	declaredUniverses map[*Universe]bool
	declaredLattices  map[*RectLattice]bool

	surfaces []csg.Surface
	errs     []ValidationError
	warnings []ValidationError
	undo     []func()
}

func newValidator(b *Builder, root *Universe) *validator {
	v := &validator{
		b:                 b,
		root:              root,
		declaredCells:     make(map[*Cell]bool, len(b.cells)),
		declaredUniverses: make(map[*Universe]bool, len(b.universes)),
		declaredLattices:  make(map[*RectLattice]bool, len(b.lattices)),
	}
	for _, c := range b.cells {
		v.declaredCells[c] = true
	}
	for _, u := range b.universes {
		v.declaredUniverses[u] = true
	}
	for _, l := range b.lattices {
		v.declaredLattices[l] = true
	}
	return v
}

func (v *validator) fail(object, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Object: object, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
}

func (v *validator) warn(object, format string, args ...any) {
	v.warnings = append(v.warnings, ValidationError{Object: object, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

// rollback clears every id assigned during validation.
func (v *validator) rollback() {
	for _, f := range v.undo {
		f()
	}
	v.undo = nil
}

func (v *validator) run() {
	v.validateSurfaces()
	v.validateIDs()
	v.validateCells()
	v.validateUniverses()
	v.validateLattices()
	if v.root == nil {
		v.fail("", "root universe is nil")
	} else if !v.declaredUniverses[v.root] {
		v.fail("", "root universe %s was not declared in this builder", v.root.label())
	}
	// Cycle detection walks fill references, so it only runs once the
	// references themselves are known to be sound.
	if len(v.errs) == 0 {
		v.validateDAG()
	}
	if len(v.errs) == 0 {
		v.validateReachable()
	}
}

// validateSurfaces collects every surface, validates its parameters and
// assigns ids to those without one.
func (v *validator) validateSurfaces() {
	seen := make(map[csg.Surface]bool)
	add := func(s csg.Surface) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		v.surfaces = append(v.surfaces, s)
	}
	for _, s := range v.b.surfaces {
		add(s)
	}
	for _, c := range v.b.cells {
		if c == nil {
			continue
		}
		for _, s := range c.Region.Surfaces() {
			add(s)
		}
	}

	used := make(map[csg.SurfaceID]csg.Surface)
	for _, s := range v.surfaces {
		if err := s.Validate(); err != nil {
			v.fail("surface "+s.String(), "%v", err)
		}
		id := s.Meta().ID
		if id == 0 {
			continue
		}
		if prev, dup := used[id]; dup {
			v.fail(fmt.Sprintf("surface %d", id), "duplicate surface id shared by %s and %s", prev, s)
			continue
		}
		used[id] = s
	}
	next := csg.SurfaceID(1)
	for _, s := range v.surfaces {
		m := s.Meta()
		if m.ID != 0 {
			continue
		}
		for used[next] != nil {
			next++
		}
		m.ID = next
		used[next] = s
		v.undo = append(v.undo, func() { m.ID = 0 })
	}
}

// validateIDs assigns cell, universe and lattice ids and rejects duplicates.
// Universes and lattices share one id space.
func (v *validator) validateIDs() {
	cellIDs := make(map[CellID]bool)
	for _, c := range v.b.cells {
		if c == nil {
			v.fail("", "nil cell declared")
			continue
		}
		if c.ID == 0 {
			continue
		}
		if cellIDs[c.ID] {
			v.fail("cell "+c.label(), "duplicate cell id %d", c.ID)
		}
		cellIDs[c.ID] = true
	}
	next := CellID(1)
	for _, c := range v.b.cells {
		if c == nil || c.ID != 0 {
			continue
		}
		for cellIDs[next] {
			next++
		}
		c.ID = next
		cellIDs[next] = true
		v.undo = append(v.undo, func() { c.ID = 0 })
	}

	ids := make(map[UniverseID]bool)
	claim := func(object string, id UniverseID) {
		if id == 0 {
			return
		}
		if ids[id] {
			v.fail(object, "duplicate universe/lattice id %d", id)
		}
		ids[id] = true
	}
	for _, u := range v.b.universes {
		claim("universe "+u.label(), u.ID)
	}
	for _, l := range v.b.lattices {
		claim("lattice "+l.label(), l.ID)
	}
	nextU := UniverseID(1)
	assign := func() UniverseID {
		for ids[nextU] {
			nextU++
		}
		ids[nextU] = true
		return nextU
	}
	for _, u := range v.b.universes {
		if u.ID == 0 {
			u.ID = assign()
			v.undo = append(v.undo, func() { u.ID = 0 })
		}
	}
	for _, l := range v.b.lattices {
		if l.ID == 0 {
			l.ID = assign()
			v.undo = append(v.undo, func() { l.ID = 0 })
		}
	}
}

func (v *validator) validateCells() {
	for _, c := range v.b.cells {
		if c == nil {
			continue
		}
		obj := "cell " + c.label()
		switch f := c.Fill.(type) {
		case nil:
			v.fail(obj, "cell has no fill")
		case MaterialFill:
			if f.Material == nil {
				v.fail(obj, "material fill is nil")
			} else if v.b.materials != nil && !v.b.materials.Has(f.Material) {
				v.fail(obj, "material %q is not in the material library", f.Material.Name)
			}
		case UniverseFill:
			if f.Universe == nil {
				v.fail(obj, "universe fill is nil")
			} else if !v.declaredUniverses[f.Universe] {
				v.fail(obj, "fill references undeclared universe %s", f.Universe.label())
			}
		case LatticeFill:
			if f.Lattice == nil {
				v.fail(obj, "lattice fill is nil")
			} else if !v.declaredLattices[f.Lattice] {
				v.fail(obj, "fill references undeclared lattice %s", f.Lattice.label())
			}
		case Void:
		}
	}
}

func (v *validator) validateUniverses() {
	owner := make(map[*Cell]*Universe)
	for _, u := range v.b.universes {
		obj := "universe " + u.label()
		if len(u.cells) == 0 {
			v.fail(obj, "universe has no cells")
		}
		for _, c := range u.cells {
			if c == nil {
				v.fail(obj, "nil cell in universe")
				continue
			}
			if !v.declaredCells[c] {
				v.fail(obj, "contains undeclared cell %s", c.label())
				continue
			}
			if prev, ok := owner[c]; ok && prev != u {
				v.fail("cell "+c.label(), "cell belongs to both universe %s and universe %s", prev.label(), u.label())
				continue
			}
			owner[c] = u
		}
	}
	for _, c := range v.b.cells {
		if c != nil && owner[c] == nil {
			v.warn("cell "+c.label(), "cell is not part of any universe")
		}
	}
}

func (v *validator) validateLattices() {
	for _, l := range v.b.lattices {
		obj := "lattice " + l.label()
		if l.Nx <= 0 || l.Ny <= 0 {
			v.fail(obj, "shape %dx%d must be positive", l.Nx, l.Ny)
		}
		for i, n := range l.rowLens {
			if n != l.Nx {
				v.fail(obj, "row %d has %d universes, row 0 has %d", i, n, l.Nx)
			}
		}
		if len(l.universes) != l.Nx*l.Ny {
			v.fail(obj, "has %d universes, shape %dx%d needs %d (ragged rows?)",
				len(l.universes), l.Nx, l.Ny, l.Nx*l.Ny)
		}
		for i, p := range l.Pitch {
			if !(p > 0) || math.IsInf(p, 0) {
				v.fail(obj, "pitch[%d] = %g must be positive and finite", i, p)
			}
		}
		for i, u := range l.universes {
			if u == nil {
				v.fail(obj, "nil universe at row %d column %d", i/max(l.Nx, 1), i%max(l.Nx, 1))
			} else if !v.declaredUniverses[u] {
				v.fail(obj, "references undeclared universe %s", u.label())
			}
		}
		if l.Outer != nil && !v.declaredUniverses[l.Outer] {
			v.fail(obj, "outer universe %s was not declared", l.Outer.label())
		}
	}
}

// children returns the fill-graph successors of a universe or lattice.
func children(n any) []any {
	var out []any
	switch n := n.(type) {
	case *Universe:
		for _, c := range n.cells {
			switch f := c.Fill.(type) {
			case UniverseFill:
				out = append(out, f.Universe)
			case LatticeFill:
				out = append(out, f.Lattice)
			}
		}
	case *RectLattice:
		for _, u := range n.universes {
			out = append(out, u)
		}
		if n.Outer != nil {
			out = append(out, n.Outer)
		}
	}
	return out
}

func nodeLabel(n any) string {
	switch n := n.(type) {
	case *Universe:
		return "universe " + n.label()
	case *RectLattice:
		return "lattice " + n.label()
	}
	return fmt.Sprint(n)
}

// validateDAG checks the fill graph for cycles using DFS with 3-color marking.
// White = unvisited, gray = on the current DFS path, black = fully explored.
// Reaching a gray node means the path closes a cycle.
func (v *validator) validateDAG() {
	const (
		white = iota
		gray
		black
	)
	color := make(map[any]int)
	var stack []any

	var visit func(n any) bool // true if a cycle was found
	visit = func(n any) bool {
		switch color[n] {
		case black:
			return false
		case gray:
			var cycle []string
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append([]string{nodeLabel(stack[i])}, cycle...)
				if stack[i] == n {
					break
				}
			}
			cycle = append(cycle, nodeLabel(n))
			v.fail(nodeLabel(n), "cycle detected: %s", strings.Join(cycle, " -> "))
			return true
		}
		color[n] = gray
		stack = append(stack, n)
		for _, c := range children(n) {
			if visit(c) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	// Start from every node so cycles in detached subgraphs are caught too.
	starts := []any{v.root}
	for _, u := range v.b.universes {
		starts = append(starts, u)
	}
	for _, l := range v.b.lattices {
		starts = append(starts, l)
	}
	for _, n := range starts {
		if color[n] == white && visit(n) {
			// One cycle error is sufficient.
			return
		}
	}
}

// validateReachable warns about universes and lattices the root never uses.
func (v *validator) validateReachable() {
	reachable := map[any]bool{v.root: true}
	queue := []any{v.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range children(n) {
			if !reachable[c] {
				reachable[c] = true
				queue = append(queue, c)
			}
		}
	}
	for _, u := range v.b.universes {
		if !reachable[u] {
			v.warn("universe "+u.label(), "not reachable from the root universe (orphan)")
		}
	}
	for _, l := range v.b.lattices {
		if !reachable[l] {
			v.warn("lattice "+l.label(), "not reachable from the root universe (orphan)")
		}
	}
}
