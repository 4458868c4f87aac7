package cli

import "github.com/charmbracelet/lipgloss"

// Stem colour palette
// Mirrors the tint colours used in the composite so terminal output and
// image output share a look
var (
	VocalsRed  = lipgloss.Color("#CF2E2E")
	OtherTeal  = lipgloss.Color("#00916E")
	BassBlue   = lipgloss.Color("#1E50B4")
	DrumsAmber = lipgloss.Color("#B47800")

	// Accent colours
	CoolGray = lipgloss.Color("#888888") // subtle text
)
