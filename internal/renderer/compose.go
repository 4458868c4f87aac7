package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/golang/freetype"
	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/metadata"
	"github.com/pforret/stemmogram/internal/stem"
	"golang.org/x/image/font"
)

// projectRef is drawn in the header's top-right corner.
const projectRef = "pforret/stemmogram"

var (
	headerBackground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	headerText       = color.RGBA{A: 255}
	headerMuted      = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	labelText        = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelHalo        = color.RGBA{A: 255}
)

// Compositor assembles the final image. Fonts are loaded once at
// construction.
type Compositor struct {
	titleFace font.Face
	statsFace font.Face
	labelFace font.Face
	smallFace font.Face
}

// NewCompositor creates a Compositor with its text faces.
func NewCompositor() *Compositor {
	return &Compositor{
		titleFace: BoldFace(28),
		statsFace: RegularFace(20),
		labelFace: BoldFace(20),
		smallFace: RegularFace(14),
	}
}

// Compose stacks the header and the four tinted strips into the fixed
// 1920x1080 raster. Strips are placed at their stem's fixed vertical slot
// regardless of the order they appear in; any dimension mismatch or
// missing/duplicate stem is a CompositionFailed error.
func (c *Compositor) Compose(track *metadata.Track, strips []Tinted) (*image.RGBA, error) {
	if err := validateStrips(strips); err != nil {
		return nil, err
	}

	final := image.NewRGBA(image.Rect(0, 0, config.Width, config.TotalHeight))
	draw.Draw(final, image.Rect(0, 0, config.Width, config.HeaderHeight),
		&image.Uniform{C: headerBackground}, image.Point{}, draw.Src)

	c.drawHeader(final, track)

	for _, ts := range strips {
		y := config.HeaderHeight + ts.Stem.Index()*config.StripHeight
		rect := image.Rect(0, y, config.Width, y+config.StripHeight)
		draw.Draw(final, rect, ts.Image, image.Point{}, draw.Src)
		c.drawStemLabel(final, ts.Stem, y)
	}

	if track.DurationSec > 0 {
		c.drawTimeMarkers(final, track.DurationSec)
	}

	return final, nil
}

func validateStrips(strips []Tinted) error {
	if len(strips) != stem.Count {
		return pkgerrors.New(pkgerrors.KindComposition, "compose",
			fmt.Sprintf("got %d strips, want %d", len(strips), stem.Count), nil)
	}

	var seen [stem.Count]bool
	for _, ts := range strips {
		b := ts.Image.Bounds()
		if b.Dx() != config.Width || b.Dy() != config.StripHeight {
			return pkgerrors.New(pkgerrors.KindComposition, "compose",
				fmt.Sprintf("strip %s is %dx%d, want %dx%d",
					ts.Stem, b.Dx(), b.Dy(), config.Width, config.StripHeight), nil)
		}
		if seen[ts.Stem.Index()] {
			return pkgerrors.New(pkgerrors.KindComposition, "compose",
				"duplicate strip for stem "+ts.Stem.String(), nil)
		}
		seen[ts.Stem.Index()] = true
	}
	return nil
}

func (c *Compositor) drawHeader(img *image.RGBA, track *metadata.Track) {
	drawText(img, c.titleFace, config.BaseName(track.Path), 20, 38, headerText)

	stats := fmt.Sprintf(
		"Duration: %s    Loudness: %s    Bitrate: %s    Sample rate: %s    Mean vol: %s    Max vol: %s",
		track.Duration, track.Loudness, track.Bitrate, track.SampleRt, track.MeanVolume, track.PeakVolume,
	)
	drawText(img, c.statsFace, stats, 20, 66, headerMuted)

	refWidth := font.MeasureString(c.smallFace, projectRef).Ceil()
	drawText(img, c.smallFace, projectRef, config.Width-refWidth-20, 24, headerMuted)
}

// drawStemLabel writes the stem name at the strip's top-left with a 1px halo
// so it stays readable over any strip content.
func (c *Compositor) drawStemLabel(img *image.RGBA, st stem.Stem, stripY int) {
	baseline := stripY + 26
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx != 0 || dy != 0 {
				drawText(img, c.labelFace, st.String(), 10+dx, baseline+dy, labelHalo)
			}
		}
	}
	drawText(img, c.labelFace, st.String(), 10, baseline, labelText)
}

// drawTimeMarkers blends a faint vertical tick every 30 seconds across the
// strip area, with an mm:ss label near the bottom edge.
func (c *Compositor) drawTimeMarkers(img *image.RGBA, durationSec float64) {
	for t := 30.0; t < durationSec; t += 30 {
		x := int(t / durationSec * config.Width)
		if x <= 0 || x >= config.Width {
			continue
		}
		for y := config.HeaderHeight; y < config.TotalHeight; y++ {
			blendPixel(img, x, y, 255, 255, 255, 64)
		}
		label := metadata.FormatDuration(t)
		drawText(img, c.smallFace, label, x-30, config.TotalHeight-8,
			color.RGBA{R: 255, G: 255, B: 255, A: 200})
	}
}

func drawText(img *image.RGBA, face font.Face, text string, x, baselineY int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  freetype.Pt(x, baselineY),
	}
	d.DrawString(text)
}

// blendPixel alpha-composites a colour over one pixel.
func blendPixel(img *image.RGBA, x, y int, r, g, b, a uint8) {
	i := img.PixOffset(x, y)
	alpha := int(a)
	inv := 255 - alpha
	img.Pix[i] = uint8((int(r)*alpha + int(img.Pix[i])*inv) / 255)
	img.Pix[i+1] = uint8((int(g)*alpha + int(img.Pix[i+1])*inv) / 255)
	img.Pix[i+2] = uint8((int(b)*alpha + int(img.Pix[i+2])*inv) / 255)
	img.Pix[i+3] = 255
}

// WritePNG encodes img to path.
func WritePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
