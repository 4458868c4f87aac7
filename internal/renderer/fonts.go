package renderer

import (
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Font lookup paths, regular and bold. The header degrades to the built-in
// bitmap face when no TrueType font is installed, so text rendering never
// fails the run.
var (
	regularFontPaths = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/Library/Fonts/DejaVuSans.ttf",
	}
	boldFontPaths = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
		"/Library/Fonts/DejaVuSans-Bold.ttf",
	}
)

// loadFace returns a TrueType face from the first readable path, or the
// basicfont fallback.
func loadFace(paths []string, size float64) font.Face {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		f, err := truetype.Parse(data)
		if err != nil {
			continue
		}
		return truetype.NewFace(f, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
	return basicfont.Face7x13
}

// RegularFace loads the regular text face at the given size.
func RegularFace(size float64) font.Face {
	return loadFace(regularFontPaths, size)
}

// BoldFace loads the bold text face at the given size.
func BoldFace(size float64) font.Face {
	return loadFace(boldFontPaths, size)
}
