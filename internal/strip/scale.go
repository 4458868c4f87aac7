package strip

import (
	"math"

	"github.com/pforret/stemmogram/internal/config"
)

// ApplyScale maps a normalized amplitude/power value in [0,1] through the
// requested display scale. Every transform is monotonic and fixes 0 and 1,
// so relative loudness ordering within a strip is scale-invariant even
// though absolute pixel intensities differ.
func ApplyScale(s config.Scale, v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		v = 1
	}

	switch s {
	case config.ScaleLog:
		// log10(1+9v) spans exactly [0,1] for v in [0,1].
		return math.Log10(1 + 9*v)
	case config.ScaleSqrt:
		return math.Sqrt(v)
	case config.ScaleCbrt:
		return math.Cbrt(v)
	}
	return v
}

// FilterToken returns the scale argument understood by the showspectrumpic
// and showwavespic filters. The CLI tokens were chosen to match, so this is
// the identity mapping made explicit.
func FilterToken(s config.Scale) string {
	return string(s)
}
