package renderer

import (
	"bytes"
	"image"
	"testing"

	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/metadata"
	"github.com/pforret/stemmogram/internal/stem"
	"github.com/pforret/stemmogram/internal/strip"
)

// gradientStrip builds a grayscale strip with a horizontal ramp so every
// luminance value appears somewhere.
func gradientStrip(st stem.Stem, w, h int) strip.Rendered {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 255 / (w - 1))
		}
	}
	return strip.Rendered{Stem: st, Image: img}
}

func TestTint_Deterministic(t *testing.T) {
	src := gradientStrip(stem.Vocals, 256, 8)

	a := Tint(src, config.PaletteSimple)
	b := Tint(src, config.PaletteSimple)

	if !bytes.Equal(a.Image.Pix, b.Image.Pix) {
		t.Error("tinting the same strip twice produced different pixels")
	}
}

func TestTint_BlackStaysBlack(t *testing.T) {
	for _, palette := range []config.Palette{config.PaletteSimple, config.PaletteOcean, config.PaletteInferno} {
		src := gradientStrip(stem.Drums, 256, 4)
		out := Tint(src, palette)

		// Column 0 holds luminance 0 in every row.
		for y := 0; y < 4; y++ {
			i := out.Image.PixOffset(0, y)
			r, g, b := out.Image.Pix[i], out.Image.Pix[i+1], out.Image.Pix[i+2]
			if r != 0 || g != 0 || b != 0 {
				t.Errorf("palette %s: zero luminance tinted to (%d,%d,%d), want black", palette, r, g, b)
			}
		}
	}
}

func TestTint_PreservesDimensions(t *testing.T) {
	src := gradientStrip(stem.Bass, 123, 45)
	out := Tint(src, config.PaletteOcean)

	b := out.Image.Bounds()
	if b.Dx() != 123 || b.Dy() != 45 {
		t.Errorf("tinted strip = %dx%d, want 123x45", b.Dx(), b.Dy())
	}
}

func TestTint_SimplePeakIsCanonicalColor(t *testing.T) {
	for _, st := range stem.All() {
		src := gradientStrip(st, 256, 1)
		out := Tint(src, config.PaletteSimple)

		want := st.Color()
		i := out.Image.PixOffset(255, 0)
		r, g, b := out.Image.Pix[i], out.Image.Pix[i+1], out.Image.Pix[i+2]
		if r != want.R || g != want.G || b != want.B {
			t.Errorf("%s: full luminance tinted to (%d,%d,%d), want (%d,%d,%d)",
				st, r, g, b, want.R, want.G, want.B)
		}
	}
}

func TestTint_GradientIgnoresStem(t *testing.T) {
	a := Tint(gradientStrip(stem.Vocals, 256, 2), config.PaletteInferno)
	b := Tint(gradientStrip(stem.Drums, 256, 2), config.PaletteInferno)

	if !bytes.Equal(a.Image.Pix, b.Image.Pix) {
		t.Error("gradient palettes should map all stems identically")
	}
}

func fullStrips() []Tinted {
	strips := make([]Tinted, 0, stem.Count)
	for _, st := range stem.All() {
		strips = append(strips, Tint(gradientStrip(st, config.Width, config.StripHeight), config.PaletteSimple))
	}
	return strips
}

func testTrack() *metadata.Track {
	return &metadata.Track{
		Path:        "/music/test song.mp3",
		DurationSec: 185,
		Duration:    "3:05",
		Bitrate:     "192 kbps",
		SampleRt:    "44 kHz",
		Loudness:    "-14.2 LUFS",
		MeanVolume:  "-17.3 dB",
		PeakVolume:  "-0.4 dB",
	}
}

func TestCompose_Dimensions(t *testing.T) {
	c := NewCompositor()

	img, err := c.Compose(testTrack(), fullStrips())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != config.Width || b.Dy() != config.TotalHeight {
		t.Errorf("composite = %dx%d, want %dx%d", b.Dx(), b.Dy(), config.Width, config.TotalHeight)
	}
}

func TestCompose_StackingOrderIndependentOfInput(t *testing.T) {
	c := NewCompositor()
	track := testTrack()

	strips := fullStrips()
	reversed := make([]Tinted, len(strips))
	for i, ts := range strips {
		reversed[len(strips)-1-i] = ts
	}

	a, err := c.Compose(track, strips)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compose(track, reversed)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("composite depends on strip input order")
	}
}

func TestCompose_DimensionMismatch(t *testing.T) {
	c := NewCompositor()

	strips := fullStrips()
	strips[2] = Tint(gradientStrip(strips[2].Stem, config.Width, config.StripHeight-1), config.PaletteSimple)

	_, err := c.Compose(testTrack(), strips)
	if err == nil {
		t.Fatal("Compose accepted a mis-sized strip")
	}
	if kind := pkgerrors.KindOf(err); kind != pkgerrors.KindComposition {
		t.Errorf("error kind = %q, want %q", kind, pkgerrors.KindComposition)
	}
}

func TestCompose_MissingStem(t *testing.T) {
	c := NewCompositor()

	strips := fullStrips()
	strips[1] = strips[0] // duplicate vocals, drop other

	if _, err := c.Compose(testTrack(), strips); err == nil {
		t.Error("Compose accepted a duplicate stem")
	}
	if _, err := c.Compose(testTrack(), strips[:3]); err == nil {
		t.Error("Compose accepted three strips")
	}
}

func TestCompose_HeaderIsLight(t *testing.T) {
	c := NewCompositor()

	img, err := c.Compose(testTrack(), fullStrips())
	if err != nil {
		t.Fatal(err)
	}

	// Sample a point clear of any text.
	i := img.PixOffset(config.Width/2, 5)
	if img.Pix[i] < 200 {
		t.Errorf("header pixel luminance %d, want a light background", img.Pix[i])
	}
}
