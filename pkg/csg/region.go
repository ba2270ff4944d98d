package csg

import (
	"fmt"
	"strings"
)

// Op is the node type of a region expression.
type Op int

const (
	OpHalfspace Op = iota
	OpAnd
	OpOr
	OpNot
)

func (o Op) String() string {
	switch o {
	case OpHalfspace:
		return "halfspace"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	default:
		return "unknown"
	}
}

// Sense selects one half-space of a surface.
type Sense int

const (
	Negative Sense = -1 // inside, closed
	Positive Sense = +1 // outside, open
)

// Region is an immutable boolean expression over surface half-spaces.
// A nil *Region means "everywhere".
type Region struct {
	op       Op
	surface  Surface
	sense    Sense
	children []*Region
}

// Everywhere returns the region containing every point.
func Everywhere() *Region { return nil }

// Inside returns the closed negative half-space of s.
func Inside(s Surface) *Region {
	if s == nil {
		panic("csg: Inside of nil surface")
	}
	return &Region{op: OpHalfspace, surface: s, sense: Negative}
}

// Outside returns the open positive half-space of s.
func Outside(s Surface) *Region {
	if s == nil {
		panic("csg: Outside of nil surface")
	}
	return &Region{op: OpHalfspace, surface: s, sense: Positive}
}

// And returns the intersection of rs. Nil operands (everywhere) are dropped;
// the intersection of nothing is everywhere.
func And(rs ...*Region) *Region {
	kids := make([]*Region, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			kids = append(kids, r)
		}
	}
	switch len(kids) {
	case 0:
		return nil
	case 1:
		return kids[0]
	}
	return &Region{op: OpAnd, children: kids}
}

// Or returns the union of rs. If any operand is everywhere, so is the union.
func Or(rs ...*Region) *Region {
	if len(rs) == 0 {
		panic("csg: Or of no regions")
	}
	for _, r := range rs {
		if r == nil {
			return nil
		}
	}
	if len(rs) == 1 {
		return rs[0]
	}
	kids := make([]*Region, len(rs))
	copy(kids, rs)
	return &Region{op: OpOr, children: kids}
}

// Not returns the complement of r. Not(nil) is the empty region.
func Not(r *Region) *Region {
	return &Region{op: OpNot, children: []*Region{r}}
}

// Op returns the node type. A nil region reports OpAnd with no children.
func (r *Region) Op() Op {
	if r == nil {
		return OpAnd
	}
	return r.op
}

// Surface returns the surface of a half-space leaf, or nil.
func (r *Region) Surface() Surface {
	if r == nil {
		return nil
	}
	return r.surface
}

// Sense returns the sense of a half-space leaf.
func (r *Region) Sense() Sense {
	if r == nil {
		return 0
	}
	return r.sense
}

// Children returns a copy of the operand list.
func (r *Region) Children() []*Region {
	if r == nil {
		return nil
	}
	out := make([]*Region, len(r.children))
	copy(out, r.children)
	return out
}

// Contains reports whether p lies in the region. Operands are evaluated left
// to right with short-circuiting; evaluation has no side effects.
func (r *Region) Contains(p Vec3) bool {
	if r == nil {
		return true
	}
	switch r.op {
	case OpHalfspace:
		if r.sense == Negative {
			return r.surface.Inside(p)
		}
		return r.surface.Outside(p)
	case OpAnd:
		for _, c := range r.children {
			if !c.Contains(p) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range r.children {
			if c.Contains(p) {
				return true
			}
		}
		return false
	case OpNot:
		return !r.children[0].Contains(p)
	default:
		panic(fmt.Sprintf("csg: unknown region op %d", r.op))
	}
}

// Surfaces returns every surface referenced by the region, in first-seen
// order and without duplicates.
func (r *Region) Surfaces() []Surface {
	var out []Surface
	seen := make(map[Surface]bool)
	var walk func(*Region)
	walk = func(n *Region) {
		if n == nil {
			return
		}
		if n.op == OpHalfspace {
			if !seen[n.surface] {
				seen[n.surface] = true
				out = append(out, n.surface)
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(r)
	return out
}

// String renders the region in OpenMC-like notation: -1 & (+2 | ~-3).
func (r *Region) String() string {
	if r == nil {
		return "<everywhere>"
	}
	switch r.op {
	case OpHalfspace:
		sign := "-"
		if r.sense == Positive {
			sign = "+"
		}
		return fmt.Sprintf("%s%d", sign, r.surface.Meta().ID)
	case OpNot:
		return "~" + wrap(r.children[0])
	default:
		sep := " & "
		if r.op == OpOr {
			sep = " | "
		}
		parts := make([]string, len(r.children))
		for i, c := range r.children {
			parts[i] = wrap(c)
		}
		return strings.Join(parts, sep)
	}
}

func wrap(r *Region) string {
	if r == nil || r.op == OpHalfspace || r.op == OpNot {
		return r.String()
	}
	return "(" + r.String() + ")"
}
