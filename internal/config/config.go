// Package config holds the fixed output geometry and the immutable
// visualization request parsed once at the CLI boundary.
package config

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
)

// Output geometry. The composite is always 1920x1080 regardless of mode:
// an 80px header plus four stacked 250px stem strips.
const (
	Width        = 1920
	StripHeight  = 250
	HeaderHeight = 80
	TotalHeight  = HeaderHeight + 4*StripHeight // 1080
)

// Combined-mode strip geometry: a waveform band above a spectrogram band with
// a gap between them, together filling one StripHeight.
const (
	CombinedBandHeight = 120
	CombinedGap        = 10
)

// Mel spectrogram settings
const (
	MelFrameSize = 2048
	MelHopSize   = 512
	MelBands     = 128
	MelFmin      = 0.0
	MelFmax      = 16000.0
)

// Frequency bounds passed to the external spectrogram filter
const (
	SpectroFreqStart = 18
	SpectroFreqStop  = 18000
)

// Mode selects what each stem strip visualizes.
type Mode string

const (
	ModeSpectrogram Mode = "spectro"
	ModeWaveform    Mode = "wave"
	ModeCombined    Mode = "combined"
	ModeMel         Mode = "mel"
)

// Scale is the amplitude/power axis transform applied before rasterization.
type Scale string

const (
	ScaleLinear Scale = "lin"
	ScaleLog    Scale = "log"
	ScaleSqrt   Scale = "sqrt"
	ScaleCbrt   Scale = "cbrt"
)

// Palette names a tinting colour scheme.
type Palette string

const (
	PaletteSimple  Palette = "simple"
	PaletteOcean   Palette = "ocean"
	PaletteInferno Palette = "inferno"
)

// Request is the validated visualization configuration. It is built once by
// ParseRequest and never mutated; every stage receives it by value.
type Request struct {
	Mode    Mode
	Scale   Scale
	Palette Palette
	CacheID string
}

// ParseMode maps the --visual flag value to a Mode. "spectro,wave" selects
// the combined layout.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spectro", "spectrogram", "":
		return ModeSpectrogram, nil
	case "wave", "waveform":
		return ModeWaveform, nil
	case "spectro,wave", "wave,spectro", "both", "combined":
		return ModeCombined, nil
	case "mel":
		return ModeMel, nil
	}
	return "", fmt.Errorf("invalid visual mode: %q (want spectro, wave, spectro,wave or mel)", s)
}

// ParseScale maps the --scale flag value to a Scale.
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lin", "linear", "":
		return ScaleLinear, nil
	case "log":
		return ScaleLog, nil
	case "sqrt":
		return ScaleSqrt, nil
	case "cbrt":
		return ScaleCbrt, nil
	}
	return "", fmt.Errorf("invalid scale: %q (want lin, log, sqrt or cbrt)", s)
}

// ParsePalette maps the --colors flag value to a Palette.
func ParsePalette(s string) (Palette, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "":
		return PaletteSimple, nil
	case "ocean":
		return PaletteOcean, nil
	case "inferno":
		return PaletteInferno, nil
	}
	return "", fmt.Errorf("invalid palette: %q (want simple, ocean or inferno)", s)
}

// ParseRequest validates the raw CLI values and builds the immutable Request.
// An empty cacheID defaults to the input file's base name, so repeated runs
// over the same file reuse separated stems and rendered strips.
func ParseRequest(visual, scale, palette, cacheID, inputPath string) (Request, error) {
	m, err := ParseMode(visual)
	if err != nil {
		return Request{}, err
	}
	sc, err := ParseScale(scale)
	if err != nil {
		return Request{}, err
	}
	p, err := ParsePalette(palette)
	if err != nil {
		return Request{}, err
	}
	if cacheID == "" {
		cacheID = BaseName(inputPath)
	}
	return Request{Mode: m, Scale: sc, Palette: p, CacheID: cacheID}, nil
}

// BaseName returns the file name without directory or extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// OutputName derives the output file name for a request. An explicit name
// wins (".png" appended when missing); otherwise the name is built from the
// input base name and the mode.
func OutputName(inputPath string, mode Mode, explicit string) string {
	if explicit != "" {
		if !strings.HasSuffix(explicit, ".png") {
			explicit += ".png"
		}
		return filepath.Base(explicit)
	}

	suffix := "_stemmogram"
	switch mode {
	case ModeWaveform:
		suffix = "_waveform"
	case ModeCombined:
		suffix = "_both"
	case ModeMel:
		suffix = "_mel"
	}
	return BaseName(inputPath) + suffix + ".png"
}

// ParseHexColor parses a hex colour string like "CF2E2E" or "#cf2e2e" into
// an opaque RGBA value.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: want 6 hex digits", s)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.ToLower(s), "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
