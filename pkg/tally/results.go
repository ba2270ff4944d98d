package tally

import (
	"fmt"
	"math"
)

// Results holds per-bin statistics for one tally, as produced by the
// transport engine.
type Results struct {
	Tally  *Tally    `json:"-"`
	Name   string    `json:"name"`
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"std_dev"`
}

// NewResults allocates zeroed results sized for t.
func NewResults(t *Tally) *Results {
	n := t.NumBins()
	return &Results{Tally: t, Name: t.Name, Mean: make([]float64, n), StdDev: make([]float64, n)}
}

// At returns the mean and standard deviation of one bin.
func (r *Results) At(filterBin, nuclideBin, scoreBin int) (mean, std float64) {
	i := r.Tally.BinIndex(filterBin, nuclideBin, scoreBin)
	return r.Mean[i], r.StdDev[i]
}

// Accumulator turns per-batch bin sums into means and standard deviations
// of the mean, discarding inactive batches.
type Accumulator struct {
	t        *Tally
	sum, sq  []float64
	batch    []float64
	inactive int
	seen     int
}

// NewAccumulator returns an accumulator for t that ignores the first
// inactive batches.
func NewAccumulator(t *Tally, inactive int) *Accumulator {
	n := t.NumBins()
	return &Accumulator{t: t, sum: make([]float64, n), sq: make([]float64, n), batch: make([]float64, n), inactive: inactive}
}

// Score adds w to a bin of the current batch. Not safe for concurrent use;
// workers should keep their own accumulators or own disjoint bins.
func (a *Accumulator) Score(h Hit, w float64) {
	a.batch[h.Bin] += w
}

// EndBatch closes the current batch.
func (a *Accumulator) EndBatch() {
	a.seen++
	for i, v := range a.batch {
		if a.seen > a.inactive {
			a.sum[i] += v
			a.sq[i] += v * v
		}
		a.batch[i] = 0
	}
}

// Results computes the mean and standard deviation of the mean over the
// active batches.
func (a *Accumulator) Results() *Results {
	r := NewResults(a.t)
	n := float64(a.seen - a.inactive)
	if n <= 0 {
		return r
	}
	for i := range a.sum {
		mean := a.sum[i] / n
		r.Mean[i] = mean
		if n > 1 {
			v := (a.sq[i]/n - mean*mean) / (n - 1)
			r.StdDev[i] = math.Sqrt(math.Max(v, 0))
		}
	}
	return r
}

// FluxMap reshapes a mesh tally into rows of [iy][ix] for one z layer, row
// 0 at the bottom (lowest y). The tally's first filter must be a mesh filter
// and the only filter; the total nuclide bin and the named score are used.
func FluxMap(r *Results, score Score, iz int) ([][]float64, error) {
	t := r.Tally
	if len(t.Filters) != 1 {
		return nil, fmt.Errorf("%w: flux map needs exactly one mesh filter, tally %q has %d filters",
			ErrInvalidFilter, t.Name, len(t.Filters))
	}
	mf, ok := t.Filters[0].(MeshFilter)
	if !ok {
		return nil, fmt.Errorf("%w: flux map needs a mesh filter, tally %q has %s", ErrInvalidFilter, t.Name, t.Filters[0])
	}
	sb := -1
	for i, s := range t.Scores {
		if s == score {
			sb = i
		}
	}
	if sb < 0 {
		return nil, fmt.Errorf("%w: tally %q has no %s score", ErrInvalidFilter, t.Name, score)
	}
	d := mf.Mesh.Dimension
	if iz < 0 || iz >= d[2] {
		return nil, fmt.Errorf("%w: z layer %d outside mesh of depth %d", ErrInvalidFilter, iz, d[2])
	}
	out := make([][]float64, d[1])
	for iy := range out {
		out[iy] = make([]float64, d[0])
		for ix := range out[iy] {
			fb := ix + d[0]*(iy+d[1]*iz)
			out[iy][ix], _ = r.At(fb, 0, sb)
		}
	}
	return out, nil
}
