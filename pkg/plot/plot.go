// Package plot samples a 2D slice of a geometry into a raster of material or
// cell ids, one Locate per pixel, and renders rasters to PNG.
package plot

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
)

// ErrInvalidPlot is wrapped by every plot spec validation error.
var ErrInvalidPlot = errors.New("invalid plot")

// Raster ids with special meaning. Positive ids are material or cell ids.
const (
	IDVoid       int64 = 0
	IDOutside    int64 = -1
	IDUnresolved int64 = -2
)

// Basis is the plane of the slice.
type Basis string

const (
	BasisXY Basis = "xy"
	BasisXZ Basis = "xz"
	BasisYZ Basis = "yz"
)

// axes returns the horizontal and vertical axis of the basis.
func (b Basis) axes() (h, v csg.Axis, ok bool) {
	switch b {
	case BasisXY, "":
		return csg.AxisX, csg.AxisY, true
	case BasisXZ:
		return csg.AxisX, csg.AxisZ, true
	case BasisYZ:
		return csg.AxisY, csg.AxisZ, true
	}
	return 0, 0, false
}

// ColorBy selects what pixel ids identify.
type ColorBy string

const (
	ByMaterial ColorBy = "material"
	ByCell     ColorBy = "cell"
)

// Spec describes a slice plot.
type Spec struct {
	Name    string   `json:"name" yaml:"name"`
	Origin  csg.Vec3 `json:"origin" yaml:"origin"`
	Width   float64  `json:"width" yaml:"width"`
	Height  float64  `json:"height" yaml:"height"`
	Pixels  [2]int   `json:"pixels" yaml:"pixels"`
	Basis   Basis    `json:"basis" yaml:"basis"`
	ColorBy ColorBy  `json:"color_by" yaml:"color_by"`
}

// Validate checks extents, resolution, basis and colouring.
func (s Spec) Validate() error {
	if !(s.Width > 0) || !(s.Height > 0) {
		return fmt.Errorf("%w: plot %q extent %gx%g must be positive", ErrInvalidPlot, s.Name, s.Width, s.Height)
	}
	if s.Pixels[0] <= 0 || s.Pixels[1] <= 0 {
		return fmt.Errorf("%w: plot %q resolution %dx%d must be positive", ErrInvalidPlot, s.Name, s.Pixels[0], s.Pixels[1])
	}
	if _, _, ok := s.Basis.axes(); !ok {
		return fmt.Errorf("%w: plot %q basis %q, expected xy, xz or yz", ErrInvalidPlot, s.Name, s.Basis)
	}
	switch s.ColorBy {
	case ByMaterial, ByCell, "":
	default:
		return fmt.Errorf("%w: plot %q color_by %q, expected material or cell", ErrInvalidPlot, s.Name, s.ColorBy)
	}
	return nil
}

// PixelCenter returns the point sampled for a pixel. Row 0 is the top of
// the image.
func (s Spec) PixelCenter(col, row int) csg.Vec3 {
	h, v, _ := s.Basis.axes()
	p := s.Origin
	du := s.Width / float64(s.Pixels[0])
	dv := s.Height / float64(s.Pixels[1])
	set(&p, h, s.Origin.Coord(h)-s.Width/2+(float64(col)+0.5)*du)
	set(&p, v, s.Origin.Coord(v)+s.Height/2-(float64(row)+0.5)*dv)
	return p
}

func set(p *csg.Vec3, a csg.Axis, val float64) {
	switch a {
	case csg.AxisX:
		p.X = val
	case csg.AxisY:
		p.Y = val
	default:
		p.Z = val
	}
}

// Raster is a sampled plot. IDs is row-major, row 0 at the top.
type Raster struct {
	Spec       Spec
	IDs        []int64
	Found      int
	Outside    int
	Unresolved int
}

// At returns the id of one pixel.
func (r *Raster) At(col, row int) int64 {
	return r.IDs[row*r.Spec.Pixels[0]+col]
}

// Options tune sampling.
type Options struct {
	Workers int // concurrent rows; defaults to GOMAXPROCS
}

// Sample evaluates one Locate per pixel, in parallel row bands. It returns
// early with ctx's error if ctx is cancelled. Colouring by material needs
// every material fill to carry a library id.
func Sample(ctx context.Context, g *geometry.Geometry, spec Spec, opts Options) (*Raster, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.ColorBy != ByCell {
		// Material id 0 would be indistinguishable from void.
		for _, c := range g.Cells() {
			if f, ok := c.Fill.(geometry.MaterialFill); ok && f.Material != nil && f.Material.ID <= 0 {
				return nil, fmt.Errorf("%w: plot %q: material %q filling cell %d has no library id",
					ErrInvalidPlot, spec.Name, f.Material.Name, c.ID)
			}
		}
	}
	nx, ny := spec.Pixels[0], spec.Pixels[1]
	r := &Raster{Spec: spec, IDs: make([]int64, nx*ny)}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for row := 0; row < ny; row++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			line := r.IDs[row*nx : (row+1)*nx]
			for col := range line {
				line[col] = pixelID(g.Locate(spec.PixelCenter(col, row)), spec.ColorBy)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, id := range r.IDs {
		switch id {
		case IDOutside:
			r.Outside++
		case IDUnresolved:
			r.Unresolved++
		default:
			r.Found++
		}
	}
	return r, nil
}

func pixelID(loc geometry.Location, by ColorBy) int64 {
	switch loc.Status {
	case geometry.OutsideDomain:
		return IDOutside
	case geometry.Unresolved:
		return IDUnresolved
	}
	if by == ByCell {
		return int64(loc.Cell.ID)
	}
	if loc.Material == nil {
		return IDVoid
	}
	return int64(loc.Material.ID)
}
