package strip

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/pforret/stemmogram/internal/cache"
	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/stem"
)

// fakeRenderer stands in for the external ffmpeg filter: it writes a small
// gradient PNG to the output path (the last argument).
type fakeRenderer struct {
	calls int
	fail  bool
}

func (f *fakeRenderer) Run(_ context.Context, stage string, args []string) error {
	f.calls++
	if f.fail {
		return pkgerrors.NewExecError(pkgerrors.KindRender, stage, args, 1, "filter exploded", errors.New("exit status 1"))
	}

	img := image.NewGray(image.Rect(0, 0, 64, 16))
	for x := 0; x < 64; x++ {
		for y := 0; y < 16; y++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}

	out, err := os.Create(args[len(args)-1])
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}

func testGenerator(t *testing.T, r Renderer) *Generator {
	t.Helper()
	c, err := cache.New(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return NewGenerator(r, c, logger.Nop())
}

func testRequest(mode config.Mode) config.Request {
	return config.Request{Mode: mode, Scale: config.ScaleLog, Palette: config.PaletteSimple, CacheID: "song"}
}

func TestGenerate_SpectrogramDimensions(t *testing.T) {
	r := &fakeRenderer{}
	g := testGenerator(t, r)

	got, err := g.Generate(context.Background(), "bass.wav", stem.Bass, testRequest(config.ModeSpectrogram), t.TempDir())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	b := got.Image.Bounds()
	if b.Dx() != config.Width || b.Dy() != config.StripHeight {
		t.Errorf("strip = %dx%d, want %dx%d", b.Dx(), b.Dy(), config.Width, config.StripHeight)
	}
	if got.Stem != stem.Bass {
		t.Errorf("Stem = %v, want bass", got.Stem)
	}
}

// TestGenerate_CombinedGeometry verifies the 120/10/120 band layout: the gap
// rows stay black while both bands carry renderer output.
func TestGenerate_CombinedGeometry(t *testing.T) {
	r := &fakeRenderer{}
	g := testGenerator(t, r)

	got, err := g.Generate(context.Background(), "drums.wav", stem.Drums, testRequest(config.ModeCombined), t.TempDir())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	b := got.Image.Bounds()
	if b.Dy() != config.StripHeight {
		t.Fatalf("combined strip height = %d, want %d", b.Dy(), config.StripHeight)
	}
	if r.calls != 2 {
		t.Errorf("renderer invoked %d times, want 2 (wave + spectro)", r.calls)
	}

	// Gap rows are untouched.
	for y := config.CombinedBandHeight; y < config.CombinedBandHeight+config.CombinedGap; y++ {
		if got.Image.GrayAt(config.Width/2, y).Y != 0 {
			t.Fatalf("gap row %d is not black", y)
		}
	}

	// Both bands contain non-black gradient pixels.
	if got.Image.GrayAt(config.Width-10, config.CombinedBandHeight/2).Y == 0 {
		t.Error("waveform band appears empty")
	}
	specY := config.CombinedBandHeight + config.CombinedGap + config.CombinedBandHeight/2
	if got.Image.GrayAt(config.Width-10, specY).Y == 0 {
		t.Error("spectrogram band appears empty")
	}
}

func TestGenerate_UsesCacheOnSecondCall(t *testing.T) {
	r := &fakeRenderer{}
	g := testGenerator(t, r)
	req := testRequest(config.ModeWaveform)

	if _, err := g.Generate(context.Background(), "vocals.wav", stem.Vocals, req, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	first := r.calls

	if _, err := g.Generate(context.Background(), "vocals.wav", stem.Vocals, req, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if r.calls != first {
		t.Errorf("renderer re-invoked on cache hit: %d calls, want %d", r.calls, first)
	}
}

func TestGenerate_RenderFailureIsFatal(t *testing.T) {
	g := testGenerator(t, &fakeRenderer{fail: true})

	_, err := g.Generate(context.Background(), "other.wav", stem.Other, testRequest(config.ModeSpectrogram), t.TempDir())
	if err == nil {
		t.Fatal("Generate must fail when the renderer exits non-zero")
	}
	if kind := pkgerrors.KindOf(err); kind != pkgerrors.KindRender {
		t.Errorf("error kind = %v, want RenderFailed", kind)
	}
}

func TestFilters_EmbedScaleToken(t *testing.T) {
	for _, scale := range allScales {
		f := spectrogramFilter(scale, config.StripHeight)
		if !strings.Contains(f, "scale="+string(scale)) {
			t.Errorf("spectrogram filter %q missing scale token %s", f, scale)
		}
		w := waveformFilter(scale, config.StripHeight)
		if !strings.Contains(w, "scale="+string(scale)) {
			t.Errorf("waveform filter %q missing scale token %s", w, scale)
		}
	}
}
