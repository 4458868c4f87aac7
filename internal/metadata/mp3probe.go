package metadata

import (
	"os"
	"path/filepath"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
	"go.uber.org/zap"
)

// probeFallback decodes the input directly when ffprobe is unavailable or
// its output is unusable. Only MP3 is supported; duration and sample rate
// are recovered from the decoded stream length.
func (e *Extractor) probeFallback(t *Track) bool {
	if !strings.EqualFold(filepath.Ext(t.Path), ".mp3") {
		return false
	}

	f, err := os.Open(t.Path)
	if err != nil {
		return false
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		e.log.Warn("mp3 fallback decode failed", zap.Error(err))
		return false
	}

	// Length is in bytes of 16-bit stereo PCM: 4 bytes per sample frame.
	sampleRate := dec.SampleRate()
	frames := dec.Length() / 4
	if sampleRate <= 0 || frames <= 0 {
		return false
	}

	t.SampleRate = sampleRate
	t.SampleRt = FormatSampleRate(sampleRate)
	t.DurationSec = float64(frames) / float64(sampleRate)
	t.Duration = FormatDuration(t.DurationSec)

	e.log.Info("metadata recovered via mp3 decoder",
		zap.String("duration", t.Duration),
		zap.Int("sample_rate", sampleRate),
	)
	return true
}
