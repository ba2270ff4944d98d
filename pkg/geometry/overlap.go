package geometry

import (
	"fmt"

	"github.com/chazu/fuelgeom/pkg/csg"
)

// Overlap is a point claimed by more than one cell of the same universe.
// Locate resolves it to the first of them.
type Overlap struct {
	Point    csg.Vec3 // in the universe's local frame
	Universe *Universe
	Cells    []*Cell
}

func (o Overlap) String() string {
	ids := make([]CellID, len(o.Cells))
	for i, c := range o.Cells {
		ids[i] = c.ID
	}
	return fmt.Sprintf("universe %s: cells %v overlap at %v", o.Universe.label(), ids, o.Point)
}

// CheckOverlaps descends from the root for each sample point and reports
// every level at which several cells contain the point. An empty result
// does not prove the absence of overlaps, only that none of the samples hit
// one.
func CheckOverlaps(g *Geometry, points []csg.Vec3) []Overlap {
	var out []Overlap
	for _, p := range points {
		u, local := g.root, p
		for u != nil {
			var hits []*Cell
			for _, c := range u.cells {
				if c.Contains(local) {
					hits = append(hits, c)
				}
			}
			if len(hits) > 1 {
				out = append(out, Overlap{Point: local, Universe: u, Cells: hits})
			}
			if len(hits) == 0 {
				break
			}
			switch f := hits[0].Fill.(type) {
			case UniverseFill:
				u = f.Universe
			case LatticeFill:
				u, local, _, _, _ = f.Lattice.locate(local)
			default:
				u = nil
			}
		}
	}
	return out
}
