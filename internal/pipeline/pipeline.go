// Package pipeline orchestrates a full run: probe metadata, separate stems,
// render one strip per stem, tint, composite, and write the final PNG.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pforret/stemmogram/internal/cache"
	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/metadata"
	"github.com/pforret/stemmogram/internal/renderer"
	"github.com/pforret/stemmogram/internal/separate"
	"github.com/pforret/stemmogram/internal/stem"
	"github.com/pforret/stemmogram/internal/strip"
	"go.uber.org/zap"
)

// Separator produces the four stem WAVs for an input track.
type Separator interface {
	Run(ctx context.Context, inputPath, workDir string) (separate.StemPaths, error)
}

// StripGenerator renders one untinted strip per stem.
type StripGenerator interface {
	Generate(ctx context.Context, wavPath string, st stem.Stem, req config.Request, scratchDir string) (strip.Rendered, error)
}

// Extractor probes track metadata for the header.
type Extractor interface {
	Extract(ctx context.Context, inputPath string) (*metadata.Track, error)
}

// Compositor assembles tinted strips and the header into the final image.
type Compositor interface {
	Compose(track *metadata.Track, strips []renderer.Tinted) (*image.RGBA, error)
}

// Options configures one run.
type Options struct {
	Input      string
	OutDir     string
	OutputName string // explicit -o value, empty to derive from input and mode
	Request    config.Request
	Serial     bool // render strips one at a time instead of concurrently
}

// Pipeline wires the stages together.
type Pipeline struct {
	separator  Separator
	generator  StripGenerator
	extractor  Extractor
	compositor Compositor
	cache      *cache.Cache
	log        *logger.Logger
}

// New creates a Pipeline.
func New(sep Separator, gen StripGenerator, ext Extractor, comp Compositor, c *cache.Cache, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		separator:  sep,
		generator:  gen,
		extractor:  ext,
		compositor: comp,
		cache:      c,
		log:        log,
	}
}

// Run executes the full pipeline and returns the written output path. All
// intermediates live in a scratch directory that is removed on every exit
// path; the output file appears in OutDir only after a fully successful run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (string, error) {
	scratch, err := os.MkdirTemp("", "stemmogram-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	track := p.probe(ctx, opts.Input)

	stems, err := p.separateStems(ctx, opts, scratch)
	if err != nil {
		return "", err
	}

	rendered, err := p.renderStrips(ctx, opts, stems, scratch)
	if err != nil {
		return "", err
	}

	tinted := make([]renderer.Tinted, 0, stem.Count)
	for _, r := range rendered {
		tinted = append(tinted, renderer.Tint(r, opts.Request.Palette))
	}

	final, err := p.compositor.Compose(track, tinted)
	if err != nil {
		return "", err
	}

	return p.write(final, opts, scratch)
}

// probe never fails the run: header fields degrade to placeholders.
func (p *Pipeline) probe(ctx context.Context, input string) *metadata.Track {
	track, err := p.extractor.Extract(ctx, input)
	if err != nil {
		p.log.Warn("metadata unavailable, continuing with placeholders", zap.Error(err))
	}
	if track == nil {
		track = &metadata.Track{
			Path:       input,
			Duration:   metadata.NotAvailable,
			Bitrate:    metadata.NotAvailable,
			SampleRt:   metadata.NotAvailable,
			Loudness:   metadata.NotAvailable,
			MeanVolume: metadata.NotAvailable,
			PeakVolume: metadata.NotAvailable,
		}
	}
	return track
}

// separateStems returns the four stem WAVs, reusing cached separation output
// when every stem is present for the request's cache-id.
func (p *Pipeline) separateStems(ctx context.Context, opts Options, scratch string) (separate.StemPaths, error) {
	id := opts.Request.CacheID

	cached := make(separate.StemPaths, stem.Count)
	allHit := true
	for _, st := range stem.All() {
		path, ok := p.cache.LookupStem(id, st)
		if !ok {
			allHit = false
			break
		}
		cached[st] = path
	}
	if allHit {
		p.log.Info("reusing cached stems", zap.String("cache_id", id))
		return cached, nil
	}

	paths, err := p.separator.Run(ctx, opts.Input, scratch)
	if err != nil {
		return nil, err
	}

	for st, src := range paths {
		stored, err := p.cache.StoreStem(id, st, src)
		if err != nil {
			p.log.Warn("failed to cache stem", zap.String("stem", st.String()), zap.Error(err))
			continue
		}
		paths[st] = stored
	}
	return paths, nil
}

// renderStrips produces one strip per stem, concurrently by default. The
// first fatal error wins; remaining goroutines finish against the cancelled
// context.
func (p *Pipeline) renderStrips(ctx context.Context, opts Options, stems separate.StemPaths, scratch string) ([]strip.Rendered, error) {
	results := make([]strip.Rendered, stem.Count)
	errs := make([]error, stem.Count)

	if opts.Serial {
		for _, st := range stem.All() {
			r, err := p.generator.Generate(ctx, stems[st], st, opts.Request, scratch)
			if err != nil {
				return nil, err
			}
			results[st.Index()] = r
		}
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, st := range stem.All() {
		wg.Add(1)
		go func(st stem.Stem) {
			defer wg.Done()
			r, err := p.generator.Generate(ctx, stems[st], st, opts.Request, scratch)
			if err != nil {
				errs[st.Index()] = err
				cancel()
				return
			}
			results[st.Index()] = r
		}(st)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// write encodes the composite into scratch and moves it into the output
// directory, so a failed encode never leaves a partial file in OutDir.
func (p *Pipeline) write(img *image.RGBA, opts Options, scratch string) (string, error) {
	name := config.OutputName(opts.Input, opts.Request.Mode, opts.OutputName)

	tmp := filepath.Join(scratch, name)
	if err := renderer.WritePNG(img, tmp); err != nil {
		return "", fmt.Errorf("failed to encode composite: %w", err)
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	dst := filepath.Join(outDir, name)
	if err := moveFile(tmp, dst); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}

	p.log.Info("wrote composite", zap.String("path", dst))
	return dst, nil
}

// moveFile renames src to dst, falling back to a copy when the rename
// crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// FailedStage names the pipeline stage an error came from, for the CLI's
// exit message.
func FailedStage(err error) string {
	switch pkgerrors.KindOf(err) {
	case pkgerrors.KindSeparation:
		return "separation"
	case pkgerrors.KindRender:
		return "rendering"
	case pkgerrors.KindComposition:
		return "composition"
	case pkgerrors.KindMetadata:
		return "metadata"
	case pkgerrors.KindCacheCorrupt:
		return "cache"
	}
	return "pipeline"
}
