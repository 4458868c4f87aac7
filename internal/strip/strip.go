// Package strip produces one untinted grayscale strip per stem, delegating
// spectrogram and waveform rasterization to the external renderer and
// computing mel spectrograms in-process. Results are cached by
// (cache-id, stem, mode, scale, palette).
package strip

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pforret/stemmogram/internal/cache"
	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/stem"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// Rendered is an untinted strip for one stem, always exactly
// config.Width x config.StripHeight.
type Rendered struct {
	Stem  stem.Stem
	Image *image.Gray
}

// Renderer runs the external image-producing filter. *ffmpeg.Executor
// satisfies it.
type Renderer interface {
	Run(ctx context.Context, stage string, args []string) error
}

// Generator produces strips, consulting the cache before rendering.
type Generator struct {
	renderer Renderer
	cache    *cache.Cache
	log      *logger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(r Renderer, c *cache.Cache, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{renderer: r, cache: c, log: log}
}

// Generate returns the strip for one stem. scratchDir receives intermediate
// renderer output and is owned by the caller.
func (g *Generator) Generate(ctx context.Context, wavPath string, st stem.Stem, req config.Request, scratchDir string) (Rendered, error) {
	key := cache.Key{
		CacheID: req.CacheID,
		Stem:    st,
		Mode:    req.Mode,
		Scale:   req.Scale,
		Palette: req.Palette,
	}

	if path, ok := g.cache.Lookup(key); ok {
		img, err := loadGrayPNG(path, config.Width, config.StripHeight)
		if err == nil {
			g.log.Debug("strip cache hit", zap.String("stem", st.String()))
			return Rendered{Stem: st, Image: img}, nil
		}
		// Unreadable entry: log and recompute.
		g.log.Warn("cache corrupt, re-rendering strip",
			zap.String("stem", st.String()),
			zap.Error(cache.Corrupt(path, err)),
		)
	}

	img, err := g.render(ctx, wavPath, st, req, scratchDir)
	if err != nil {
		return Rendered{}, err
	}

	if err := g.store(key, img, scratchDir, st); err != nil {
		// Caching is an optimization; a failed store never fails the run.
		g.log.Warn("failed to cache strip", zap.String("stem", st.String()), zap.Error(err))
	}
	return Rendered{Stem: st, Image: img}, nil
}

func (g *Generator) render(ctx context.Context, wavPath string, st stem.Stem, req config.Request, scratchDir string) (*image.Gray, error) {
	switch req.Mode {
	case config.ModeSpectrogram:
		return g.renderExternal(ctx, wavPath, st, req.Scale, scratchDir, spectrogramFilter, config.StripHeight)
	case config.ModeWaveform:
		return g.renderExternal(ctx, wavPath, st, req.Scale, scratchDir, waveformFilter, config.StripHeight)
	case config.ModeCombined:
		return g.renderCombined(ctx, wavPath, st, req.Scale, scratchDir)
	case config.ModeMel:
		img, err := RenderMel(wavPath, req.Scale, config.Width, config.StripHeight)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.KindRender, "render",
				fmt.Sprintf("mel analysis failed for %s", st), err)
		}
		return img, nil
	}
	return nil, pkgerrors.New(pkgerrors.KindRender, "render",
		fmt.Sprintf("unsupported mode %q", req.Mode), nil)
}

type filterFunc func(scale config.Scale, height int) string

func spectrogramFilter(scale config.Scale, height int) string {
	return fmt.Sprintf(
		"showspectrumpic=s=%dx%d:legend=0:start=%d:stop=%d:win_func=hann:scale=%s:fscale=log",
		config.Width, height, config.SpectroFreqStart, config.SpectroFreqStop, FilterToken(scale),
	)
}

func waveformFilter(scale config.Scale, height int) string {
	return fmt.Sprintf(
		"showwavespic=s=%dx%d:colors=white:scale=%s",
		config.Width, height, FilterToken(scale),
	)
}

// renderExternal runs one lavfi filter to a PNG in scratchDir and loads it
// back at the exact target height.
func (g *Generator) renderExternal(ctx context.Context, wavPath string, st stem.Stem, scale config.Scale, scratchDir string, filter filterFunc, height int) (*image.Gray, error) {
	outPNG := filepath.Join(scratchDir, fmt.Sprintf("%s_%dpx.png", st, height))
	args := []string{"-y", "-i", wavPath, "-lavfi", filter(scale, height), outPNG}

	if err := g.renderer.Run(ctx, "render", args); err != nil {
		return nil, err
	}

	img, err := loadGrayPNG(outPNG, config.Width, height)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindRender, "render",
			fmt.Sprintf("renderer produced unreadable image for %s", st), err)
	}
	return img, nil
}

// renderCombined stacks a shrunk waveform band above a shrunk spectrogram
// band with a fixed gap, filling one full strip height.
func (g *Generator) renderCombined(ctx context.Context, wavPath string, st stem.Stem, scale config.Scale, scratchDir string) (*image.Gray, error) {
	waveImg, err := g.renderExternal(ctx, wavPath, st, scale, scratchDir, waveformFilter, config.CombinedBandHeight)
	if err != nil {
		return nil, err
	}
	specImg, err := g.renderExternal(ctx, wavPath, st, scale, scratchDir, spectrogramFilter, config.CombinedBandHeight)
	if err != nil {
		return nil, err
	}

	combined := image.NewGray(image.Rect(0, 0, config.Width, config.StripHeight))
	pasteGray(combined, waveImg, 0)
	pasteGray(combined, specImg, config.CombinedBandHeight+config.CombinedGap)
	return combined, nil
}

func pasteGray(dst, src *image.Gray, yOffset int) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		copy(
			dst.Pix[(y+yOffset)*dst.Stride:(y+yOffset)*dst.Stride+b.Dx()],
			src.Pix[y*src.Stride:y*src.Stride+b.Dx()],
		)
	}
}

// store encodes the strip to scratch and moves it into the cache slot.
func (g *Generator) store(key cache.Key, img *image.Gray, scratchDir string, st stem.Stem) error {
	tmpPNG := filepath.Join(scratchDir, fmt.Sprintf("%s_cached.png", st))
	f, err := os.Create(tmpPNG)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = g.cache.Store(key, tmpPNG)
	return err
}

// loadGrayPNG decodes a PNG and returns it as grayscale at exactly the
// requested dimensions, resizing with bilinear interpolation when needed.
func loadGrayPNG(path string, width, height int) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return resizeGray(gray, width, height), nil
}
