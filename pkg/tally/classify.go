package tally

import (
	"fmt"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
)

// Event is one scoring opportunity reported by the transport engine.
type Event struct {
	Position csg.Vec3
	Cell     *geometry.Cell     // deepest resolved cell
	Material *material.Material // nil in void
	Nuclide  material.Nuclide   // zero when not nuclide-specific
	Reaction Score
}

// Hit is one bin an event contributes to.
type Hit struct {
	Tally      *Tally
	Bin        int
	FilterBin  int
	NuclideBin int
	ScoreBin   int
}

// compiled is a tally with its nuclide names resolved.
type compiled struct {
	t        *Tally
	nuclides []material.Nuclide // nil for the single total bin
	total    []bool             // total[i] marks a "total" entry
}

// Classifier maps events to tally bins. It is immutable and safe for
// concurrent use.
type Classifier struct {
	tallies []compiled
}

// NewClassifier validates tallies against g and freezes them. Tallies
// without an id are numbered after the largest explicit id once every tally
// has validated; a rejected declaration leaves ids untouched.
func NewClassifier(g *geometry.Geometry, tallies []*Tally) (*Classifier, error) {
	names := make(map[string]bool)
	ids := make(map[ID]bool)
	for _, t := range tallies {
		if t == nil {
			return nil, fmt.Errorf("%w: nil tally", ErrInvalidFilter)
		}
		if t.ID != 0 {
			if ids[t.ID] {
				return nil, fmt.Errorf("%w: duplicate tally id %d", ErrInvalidFilter, t.ID)
			}
			ids[t.ID] = true
		}
		if t.Name != "" {
			if names[t.Name] {
				return nil, fmt.Errorf("%w: duplicate tally name %q", ErrInvalidFilter, t.Name)
			}
			names[t.Name] = true
		}
	}

	c := &Classifier{tallies: make([]compiled, 0, len(tallies))}
	for _, t := range tallies {
		ct, err := compile(g, t)
		if err != nil {
			return nil, err
		}
		c.tallies = append(c.tallies, ct)
	}

	next := ID(1)
	for _, t := range tallies {
		if t.ID == 0 {
			for ids[next] {
				next++
			}
			t.ID = next
			ids[next] = true
		}
	}
	return c, nil
}

func compile(g *geometry.Geometry, t *Tally) (compiled, error) {
	ct := compiled{t: t}
	if len(t.Scores) == 0 {
		return ct, fmt.Errorf("%w: tally %q has no scores", ErrInvalidFilter, t.Name)
	}
	for _, s := range t.Scores {
		if !knownScores[s] {
			return ct, fmt.Errorf("%w: tally %q: unknown score %q", ErrInvalidFilter, t.Name, s)
		}
	}
	for _, f := range t.Filters {
		if err := validateFilter(g, f); err != nil {
			return ct, fmt.Errorf("tally %q: %w", t.Name, err)
		}
	}
	for _, name := range t.Nuclides {
		if name == TotalNuclide {
			ct.nuclides = append(ct.nuclides, 0)
			ct.total = append(ct.total, true)
			continue
		}
		n, err := material.ParseNuclide(name)
		if err != nil {
			return ct, fmt.Errorf("%w: tally %q: %v", ErrInvalidFilter, t.Name, err)
		}
		ct.nuclides = append(ct.nuclides, n)
		ct.total = append(ct.total, false)
	}
	return ct, nil
}

func validateFilter(g *geometry.Geometry, f Filter) error {
	switch f := f.(type) {
	case CellFilter:
		if len(f.Cells) == 0 {
			return fmt.Errorf("%w: empty cell filter", ErrInvalidFilter)
		}
		for _, c := range f.Cells {
			if c == nil || g == nil || g.Cell(c.ID) != c {
				return fmt.Errorf("%w: cell filter references a cell outside the geometry", ErrInvalidFilter)
			}
		}
	case MeshFilter:
		if f.Mesh == nil {
			return fmt.Errorf("%w: mesh filter without a mesh", ErrInvalidFilter)
		}
		return f.Mesh.Validate()
	case MaterialFilter:
		if len(f.Materials) == 0 {
			return fmt.Errorf("%w: empty material filter", ErrInvalidFilter)
		}
		filled := make(map[*material.Material]bool)
		if g != nil {
			for _, c := range g.Cells() {
				if mf, ok := c.Fill.(geometry.MaterialFill); ok {
					filled[mf.Material] = true
				}
			}
		}
		for _, m := range f.Materials {
			if m == nil {
				return fmt.Errorf("%w: nil material in material filter", ErrInvalidFilter)
			}
			if !filled[m] {
				return fmt.Errorf("%w: material filter references material %q, which fills no cell of the geometry", ErrInvalidFilter, m.Name)
			}
		}
	case nil:
		return fmt.Errorf("%w: nil filter", ErrInvalidFilter)
	}
	return nil
}

// Tallies returns the classified tallies in declaration order.
func (c *Classifier) Tallies() []*Tally {
	out := make([]*Tally, len(c.tallies))
	for i, ct := range c.tallies {
		out[i] = ct.t
	}
	return out
}

// Classify returns every bin ev contributes to, across all tallies.
func (c *Classifier) Classify(ev Event) []Hit {
	return c.ClassifyInto(nil, ev)
}

// ClassifyInto appends the hits for ev to dst, so a worker can reuse one
// buffer across events.
func (c *Classifier) ClassifyInto(dst []Hit, ev Event) []Hit {
	for i := range c.tallies {
		dst = c.tallies[i].classify(dst, ev)
	}
	return dst
}

func (ct *compiled) classify(dst []Hit, ev Event) []Hit {
	t := ct.t
	filterBin, ok := filterBins(t.Filters, ev)
	if !ok {
		return dst
	}
	_, nn, ns := t.Shape()
	for nb := 0; nb < nn; nb++ {
		if ct.nuclides != nil && !ct.total[nb] && ct.nuclides[nb] != ev.Nuclide {
			continue
		}
		for sb, s := range t.Scores {
			if !s.Matches(ev.Reaction) {
				continue
			}
			dst = append(dst, Hit{
				Tally:      t,
				Bin:        (filterBin*nn+nb)*ns + sb,
				FilterBin:  filterBin,
				NuclideBin: nb,
				ScoreBin:   sb,
			})
		}
	}
	return dst
}

// filterBins combines the per-filter bins row-major in filter order. ok is
// false when any filter rejects the event.
func filterBins(filters []Filter, ev Event) (bin int, ok bool) {
	for _, f := range filters {
		b, ok := filterBin(f, ev)
		if !ok {
			return 0, false
		}
		bin = bin*f.NumBins() + b
	}
	return bin, true
}

func filterBin(f Filter, ev Event) (int, bool) {
	switch f := f.(type) {
	case CellFilter:
		if ev.Cell == nil {
			return 0, false
		}
		for i, c := range f.Cells {
			if c == ev.Cell {
				return i, true
			}
		}
	case MeshFilter:
		return f.Mesh.Bin(ev.Position)
	case MaterialFilter:
		if ev.Material == nil {
			return 0, false
		}
		for i, m := range f.Materials {
			if m == ev.Material {
				return i, true
			}
		}
	}
	return 0, false
}

// EventAt builds an event by locating p in g. ok is false when p does not
// resolve.
func EventAt(g *geometry.Geometry, p csg.Vec3, nuclide material.Nuclide, reaction Score) (Event, bool) {
	loc := g.Locate(p)
	if loc.Status != geometry.Found {
		return Event{}, false
	}
	return Event{Position: p, Cell: loc.Cell, Material: loc.Material, Nuclide: nuclide, Reaction: reaction}, true
}
