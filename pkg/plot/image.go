package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"

	"golang.org/x/image/draw"
)

// DefaultColors is the palette cycled through for positive ids.
var DefaultColors = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// Palette maps raster ids to colours.
type Palette struct {
	Colors     []color.RGBA
	Void       color.RGBA
	Outside    color.RGBA
	Unresolved color.RGBA
	Fixed      map[int64]color.RGBA // per-id overrides
}

// DefaultPalette returns the default palette: white background, black void
// and magenta for unresolved pixels so modelling defects stand out.
func DefaultPalette() Palette {
	p := Palette{
		Void:       color.RGBA{0, 0, 0, 255},
		Outside:    color.RGBA{255, 255, 255, 255},
		Unresolved: color.RGBA{255, 0, 255, 255},
	}
	for _, hex := range DefaultColors {
		c, err := ParseHex(hex)
		if err != nil {
			panic(err)
		}
		p.Colors = append(p.Colors, c)
	}
	return p
}

// Color returns the colour for one id.
func (p Palette) Color(id int64) color.RGBA {
	if c, ok := p.Fixed[id]; ok {
		return c
	}
	switch {
	case id == IDVoid:
		return p.Void
	case id == IDOutside:
		return p.Outside
	case id < 0:
		return p.Unresolved
	case len(p.Colors) == 0:
		return p.Void
	}
	return p.Colors[(id-1)%int64(len(p.Colors))]
}

// ParseHex parses "#RRGGBB".
func ParseHex(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Image renders the raster one pixel per sample.
func (r *Raster) Image(p Palette) *image.RGBA {
	nx, ny := r.Spec.Pixels[0], r.Spec.Pixels[1]
	img := image.NewRGBA(image.Rect(0, 0, nx, ny))
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			img.SetRGBA(col, row, p.Color(r.At(col, row)))
		}
	}
	return img
}

// WritePNG encodes the raster as PNG, enlarged by an integer scale with
// nearest-neighbour sampling so cell boundaries stay sharp.
func WritePNG(w io.Writer, r *Raster, p Palette, scale int) error {
	var img image.Image = r.Image(p)
	if scale > 1 {
		b := img.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	return png.Encode(w, img)
}
