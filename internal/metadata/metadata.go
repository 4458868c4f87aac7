// Package metadata extracts track metadata from the probing collaborators:
// duration/bitrate/sample rate from ffprobe JSON, integrated loudness from
// the ebur128 filter report, and mean/peak volume from volumedetect.
//
// Probe failures are never fatal: the header must still render, so every
// field degrades independently to the "N/A" sentinel.
package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"go.uber.org/zap"
)

// NotAvailable is the placeholder rendered for any field that could not be
// probed or parsed.
const NotAvailable = "N/A"

// Prober is the slice of the ffmpeg executor the extractor needs.
type Prober interface {
	Probe(ctx context.Context, inputPath string) ([]byte, error)
	RunForStderr(ctx context.Context, args []string) (string, error)
}

// Track is the normalized metadata record for one input file. Built once per
// invocation, immutable afterwards.
type Track struct {
	Path        string
	Fingerprint string // content hash, recorded for diagnostics

	DurationSec float64
	BitrateBPS  int
	SampleRate  int

	// Display strings, already formatted with N/A fallbacks.
	Duration   string
	Bitrate    string
	SampleRt   string
	Loudness   string
	MeanVolume string
	PeakVolume string
}

// Extractor probes input files.
type Extractor struct {
	prober Prober
	log    *logger.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(p Prober, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{prober: p, log: log}
}

// ffprobeOutput maps the fields we use from ffprobe JSON.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// Extract probes inputPath and returns a fully populated Track. The returned
// error is always of kind MetadataUnavailable and only reported when every
// probe failed; callers may log it and continue with the sentinel values.
func (e *Extractor) Extract(ctx context.Context, inputPath string) (*Track, error) {
	t := &Track{
		Path:       inputPath,
		Duration:   NotAvailable,
		Bitrate:    NotAvailable,
		SampleRt:   NotAvailable,
		Loudness:   NotAvailable,
		MeanVolume: NotAvailable,
		PeakVolume: NotAvailable,
	}

	if fp, err := fingerprint(inputPath); err == nil {
		t.Fingerprint = fp
	}

	probeOK := e.probeFormat(ctx, t)
	loudnessOK := e.probeLoudness(ctx, t)
	volumeOK := e.probeVolume(ctx, t)

	if !probeOK && !loudnessOK && !volumeOK {
		return t, pkgerrors.New(pkgerrors.KindMetadata, "metadata",
			fmt.Sprintf("all probes failed for %s", inputPath), nil)
	}
	return t, nil
}

func (e *Extractor) probeFormat(ctx context.Context, t *Track) bool {
	data, err := e.prober.Probe(ctx, t.Path)
	if err != nil {
		e.log.Warn("ffprobe failed, trying decoder fallback", zap.Error(err))
		return e.probeFallback(t)
	}

	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		e.log.Warn("unparseable ffprobe output", zap.Error(err))
		return e.probeFallback(t)
	}

	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		t.DurationSec = d
		t.Duration = FormatDuration(d)
	}
	if b, err := strconv.Atoi(out.Format.BitRate); err == nil {
		t.BitrateBPS = b
		t.Bitrate = fmt.Sprintf("%d kbps", b/1000)
	}
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			t.SampleRate = sr
			t.SampleRt = FormatSampleRate(sr)
		}
		break
	}
	return t.Duration != NotAvailable || t.Bitrate != NotAvailable
}

var (
	loudnessRe = regexp.MustCompile(`I:\s+(-?[\d.]+)\s+LUFS`)
	meanVolRe  = regexp.MustCompile(`mean_volume:\s+(-?[\d.]+)\s+dB`)
	maxVolRe   = regexp.MustCompile(`max_volume:\s+(-?[\d.]+)\s+dB`)
)

// probeLoudness measures integrated loudness with the ebur128 filter. The
// report goes to stderr; a missing "I:" line leaves the sentinel in place.
func (e *Extractor) probeLoudness(ctx context.Context, t *Track) bool {
	stderr, err := e.prober.RunForStderr(ctx, []string{
		"-i", t.Path,
		"-af", "ebur128=framelog=verbose",
		"-f", "null", "-",
	})
	if err != nil && stderr == "" {
		e.log.Warn("ebur128 probe failed", zap.Error(err))
		return false
	}

	if v, ok := ParseLoudness(stderr); ok {
		t.Loudness = fmt.Sprintf("%.1f LUFS", v)
		return true
	}
	return false
}

func (e *Extractor) probeVolume(ctx context.Context, t *Track) bool {
	stderr, err := e.prober.RunForStderr(ctx, []string{
		"-i", t.Path,
		"-af", "volumedetect",
		"-f", "null", "-",
	})
	if err != nil && stderr == "" {
		e.log.Warn("volumedetect probe failed", zap.Error(err))
		return false
	}

	mean, peak, ok := ParseVolumes(stderr)
	if mean != "" {
		t.MeanVolume = mean
	}
	if peak != "" {
		t.PeakVolume = peak
	}
	return ok
}

// ParseLoudness extracts the integrated loudness value from an ebur128
// report. Values are negative for any real-world material.
func ParseLoudness(report string) (float64, bool) {
	m := loudnessRe.FindStringSubmatch(report)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseVolumes extracts formatted mean and max volume from a volumedetect
// report. Either may be empty when its line is missing.
func ParseVolumes(report string) (mean, peak string, ok bool) {
	if m := meanVolRe.FindStringSubmatch(report); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			mean = fmt.Sprintf("%.1f dB", v)
		}
	}
	if m := maxVolRe.FindStringSubmatch(report); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			peak = fmt.Sprintf("%.1f dB", v)
		}
	}
	return mean, peak, mean != "" || peak != ""
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		return NotAvailable
	}
	m := int(seconds) / 60
	s := int(seconds) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatSampleRate renders a sample rate as kHz above 1000 Hz.
func FormatSampleRate(hz int) string {
	if hz >= 1000 {
		return fmt.Sprintf("%dkHz", hz/1000)
	}
	return fmt.Sprintf("%dHz", hz)
}

// fingerprint hashes the file content. Not part of the cache key (the
// caller-supplied cache-id stands in for it) but logged so stale cache hits
// can be diagnosed.
func fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
