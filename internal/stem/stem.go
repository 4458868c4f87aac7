// Package stem defines the closed set of instrument stems produced by the
// separation model, together with each stem's canonical display colour and
// its fixed vertical position in the composite image.
package stem

import (
	"fmt"
	"image/color"
)

// Stem is one of the four fixed stem categories. The set is closed: the
// separation model always emits exactly these four, and the compositor
// reserves exactly four strip slots.
type Stem int

const (
	Vocals Stem = iota
	Other
	Bass
	Drums
)

// Count is the number of stems in a composite. Always 4.
const Count = 4

// All returns the stems in display order, top strip first. The order is
// fixed regardless of the order stems were generated or cached.
func All() [Count]Stem {
	return [Count]Stem{Vocals, Other, Bass, Drums}
}

// String returns the stem name as used by demucs output files and strip labels.
func (s Stem) String() string {
	switch s {
	case Vocals:
		return "vocals"
	case Other:
		return "other"
	case Bass:
		return "bass"
	case Drums:
		return "drums"
	}
	return fmt.Sprintf("Stem(%d)", int(s))
}

// Index returns the stem's vertical slot in the composite, 0..3 from the top.
func (s Stem) Index() int {
	return int(s)
}

// WAVName returns the file name the separation model writes for this stem.
func (s Stem) WAVName() string {
	return s.String() + ".wav"
}

// Color returns the stem's canonical display colour.
func (s Stem) Color() color.RGBA {
	switch s {
	case Vocals:
		return color.RGBA{R: 207, G: 46, B: 46, A: 255}
	case Other:
		return color.RGBA{R: 0, G: 145, B: 110, A: 255}
	case Bass:
		return color.RGBA{R: 30, G: 80, B: 180, A: 255}
	case Drums:
		return color.RGBA{R: 180, G: 120, B: 0, A: 255}
	}
	return color.RGBA{A: 255}
}

// Parse maps a stem name to its Stem value.
func Parse(name string) (Stem, error) {
	for _, s := range All() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stem: %q", name)
}
