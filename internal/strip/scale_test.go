package strip

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/pforret/stemmogram/internal/config"
)

var allScales = []config.Scale{
	config.ScaleLinear,
	config.ScaleLog,
	config.ScaleSqrt,
	config.ScaleCbrt,
}

// TestApplyScale_Monotonic checks the ordering property: for a1 < a2 the
// transformed values satisfy a1' <= a2' under every scale mode.
func TestApplyScale_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 200)
	for i := range values {
		values[i] = rng.Float64()
	}
	sort.Float64s(values)

	for _, scale := range allScales {
		t.Run(string(scale), func(t *testing.T) {
			prev := -1.0
			for _, v := range values {
				got := ApplyScale(scale, v)
				if got < prev {
					t.Fatalf("%s not monotonic: f(%v)=%v < previous %v", scale, v, got, prev)
				}
				prev = got
			}
		})
	}
}

func TestApplyScale_FixesEndpoints(t *testing.T) {
	for _, scale := range allScales {
		if got := ApplyScale(scale, 0); got != 0 {
			t.Errorf("%s: f(0) = %v, want 0", scale, got)
		}
		got := ApplyScale(scale, 1)
		if got < 0.999 || got > 1.001 {
			t.Errorf("%s: f(1) = %v, want 1", scale, got)
		}
	}
}

func TestApplyScale_ClampsOutOfRange(t *testing.T) {
	for _, scale := range allScales {
		if got := ApplyScale(scale, -0.5); got != 0 {
			t.Errorf("%s: f(-0.5) = %v, want 0", scale, got)
		}
		if got := ApplyScale(scale, 1.5); got > 1.001 {
			t.Errorf("%s: f(1.5) = %v, want <= 1", scale, got)
		}
	}
}

func TestFilterToken(t *testing.T) {
	testCases := map[config.Scale]string{
		config.ScaleLinear: "lin",
		config.ScaleLog:    "log",
		config.ScaleSqrt:   "sqrt",
		config.ScaleCbrt:   "cbrt",
	}
	for scale, want := range testCases {
		if got := FilterToken(scale); got != want {
			t.Errorf("FilterToken(%s) = %q, want %q", scale, got, want)
		}
	}
}
