// Package renderer colourizes per-stem strips and composites them, together
// with a metadata header, into the final 1920x1080 raster.
package renderer

import (
	"image"

	"github.com/pforret/stemmogram/internal/config"
	"github.com/pforret/stemmogram/internal/stem"
	"github.com/pforret/stemmogram/internal/strip"
)

// Tinted is a colourized strip. Dimensions always equal the source strip's.
type Tinted struct {
	Stem  stem.Stem
	Image *image.RGBA
}

// Tint maps a grayscale strip through the stem's palette colours. The
// mapping is a pure per-pixel table lookup, so identical inputs always
// produce byte-identical output, and zero-luminance background pixels stay
// black.
func Tint(r strip.Rendered, palette config.Palette) Tinted {
	lut := lookupTable(r.Stem, palette)

	b := r.Image.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		srcRow := r.Image.Pix[y*r.Image.Stride : y*r.Image.Stride+b.Dx()]
		for x, lum := range srcRow {
			c := lut[lum]
			i := out.PixOffset(x, y)
			out.Pix[i] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = c.A
		}
	}

	return Tinted{Stem: r.Stem, Image: out}
}
