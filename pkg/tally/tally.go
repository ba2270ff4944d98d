// Package tally declares what a transport run should accumulate and maps
// collision events to stable bin indices. Accumulation itself belongs to the
// transport engine: bins are fixed at declaration time so concurrent workers
// can own bins exclusively or add to them atomically.
package tally

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
)

// ErrInvalidFilter is wrapped by every tally declaration error.
var ErrInvalidFilter = errors.New("invalid tally")

// ---------------------------------------------------------------------------
// Scores
// ---------------------------------------------------------------------------

// Score names a quantity to accumulate. Events carry the reaction that
// occurred using the same names.
type Score string

const (
	ScoreFlux       Score = "flux"
	ScoreTotal      Score = "total"
	ScoreFission    Score = "fission"
	ScoreAbsorption Score = "absorption"
	ScoreNGamma     Score = "(n,gamma)"
	ScoreScatter    Score = "scatter"
	ScoreElastic    Score = "elastic"
)

var knownScores = map[Score]bool{
	ScoreFlux: true, ScoreTotal: true, ScoreFission: true, ScoreAbsorption: true,
	ScoreNGamma: true, ScoreScatter: true, ScoreElastic: true,
}

// ParseScore validates a score name.
func ParseScore(s string) (Score, error) {
	if !knownScores[Score(s)] {
		return "", fmt.Errorf("%w: unknown score %q", ErrInvalidFilter, s)
	}
	return Score(s), nil
}

// Matches reports whether an event with the given reaction contributes to s.
// flux and total see every event; absorption includes fission and capture.
func (s Score) Matches(reaction Score) bool {
	switch s {
	case ScoreFlux, ScoreTotal:
		return true
	case ScoreAbsorption:
		return reaction == ScoreAbsorption || reaction == ScoreFission || reaction == ScoreNGamma
	case ScoreScatter:
		return reaction == ScoreScatter || reaction == ScoreElastic
	default:
		return s == reaction
	}
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

// Filter restricts which events a tally sees and splits them into bins.
// Exactly one of CellFilter, MeshFilter or MaterialFilter.
type Filter interface {
	filter() // marker method restricting implementations to this package
	NumBins() int
	String() string
}

// CellFilter bins events by the deepest cell they occurred in.
type CellFilter struct {
	Cells []*geometry.Cell
}

func (CellFilter) filter()        {}
func (f CellFilter) NumBins() int { return len(f.Cells) }

func (f CellFilter) String() string {
	ids := make([]string, len(f.Cells))
	for i, c := range f.Cells {
		ids[i] = fmt.Sprint(c.ID)
	}
	return "cell filter [" + strings.Join(ids, " ") + "]"
}

// MeshFilter bins events by mesh element.
type MeshFilter struct {
	Mesh *RegularMesh
}

func (MeshFilter) filter()        {}
func (f MeshFilter) NumBins() int { return f.Mesh.NumBins() }

func (f MeshFilter) String() string {
	return fmt.Sprintf("mesh filter %d", f.Mesh.ID)
}

// MaterialFilter bins events by material.
type MaterialFilter struct {
	Materials []*material.Material
}

func (MaterialFilter) filter()        {}
func (f MaterialFilter) NumBins() int { return len(f.Materials) }

func (f MaterialFilter) String() string {
	names := make([]string, len(f.Materials))
	for i, m := range f.Materials {
		names[i] = m.Name
	}
	return "material filter [" + strings.Join(names, " ") + "]"
}

// ---------------------------------------------------------------------------
// Tally
// ---------------------------------------------------------------------------

// TotalNuclide is the nuclide bin that accepts every event.
const TotalNuclide = "total"

// ID identifies a tally.
type ID int

// Tally is a tally declaration. Filters are conjunctive. An empty Nuclides
// list means the single total bin.
type Tally struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name"`
	Filters  []Filter `json:"-"`
	Nuclides []string `json:"nuclides,omitempty"`
	Scores   []Score  `json:"scores"`
}

// NumBins is the size of the flattened bin space: filter bins times nuclide
// bins times scores.
func (t *Tally) NumBins() int {
	n := 1
	for _, f := range t.Filters {
		n *= f.NumBins()
	}
	return n * max(len(t.Nuclides), 1) * len(t.Scores)
}

// Shape returns (filter bins, nuclide bins, score bins).
func (t *Tally) Shape() (filters, nuclides, scores int) {
	filters = 1
	for _, f := range t.Filters {
		filters *= f.NumBins()
	}
	return filters, max(len(t.Nuclides), 1), len(t.Scores)
}

// BinIndex flattens a (filter, nuclide, score) triple.
func (t *Tally) BinIndex(filterBin, nuclideBin, scoreBin int) int {
	_, nn, ns := t.Shape()
	return (filterBin*nn+nuclideBin)*ns + scoreBin
}

func (t *Tally) String() string {
	return fmt.Sprintf("tally %d (%s): %d filters, nuclides %v, scores %v",
		t.ID, t.Name, len(t.Filters), t.Nuclides, t.Scores)
}
