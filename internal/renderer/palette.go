package renderer

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pforret/stemmogram/internal/config"
	"github.com/pforret/stemmogram/internal/stem"
)

// A gradient is an ordered sequence of colour stops; luminance 0 maps to the
// first stop and luminance 1 to the last, with linear RGB interpolation
// between neighbours.
type gradient []color.RGBA

func mustHex(s string) color.RGBA {
	c, err := config.ParseHexColor(s)
	if err != nil {
		panic(err) // palette tables are compile-time constants
	}
	return c
}

var gradients = map[config.Palette]gradient{
	config.PaletteOcean: {
		mustHex("000000"),
		mustHex("0B3D66"),
		mustHex("1E7FA8"),
		mustHex("64D2E0"),
		mustHex("FFFFFF"),
	},
	config.PaletteInferno: {
		mustHex("000000"),
		mustHex("420A68"),
		mustHex("932667"),
		mustHex("DD513A"),
		mustHex("FCA50A"),
		mustHex("FCFFA4"),
	},
}

// lookupTable builds the 256-entry luminance-to-colour map for a stem under
// a palette. Index 0 is always pure black so strip backgrounds never bleed.
func lookupTable(st stem.Stem, palette config.Palette) [256]color.RGBA {
	var lut [256]color.RGBA

	if g, ok := gradients[palette]; ok {
		for i := range lut {
			lut[i] = g.at(float64(i) / 255)
		}
	} else {
		// simple palette: the stem's canonical colour scaled by luminance.
		c := st.Color()
		for i := range lut {
			lut[i] = color.RGBA{
				R: uint8(int(c.R) * i / 255),
				G: uint8(int(c.G) * i / 255),
				B: uint8(int(c.B) * i / 255),
				A: 255,
			}
		}
	}

	lut[0] = color.RGBA{A: 255}
	return lut
}

// at interpolates the gradient at position t in [0,1].
func (g gradient) at(t float64) color.RGBA {
	if t <= 0 {
		return g[0]
	}
	if t >= 1 {
		return g[len(g)-1]
	}

	segments := float64(len(g) - 1)
	pos := t * segments
	i := int(pos)
	frac := pos - float64(i)

	c1 := toColorful(g[i])
	c2 := toColorful(g[i+1])
	blended := c1.BlendRgb(c2, frac)

	r, gg, b := blended.RGB255()
	return color.RGBA{R: r, G: gg, B: b, A: 255}
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}
