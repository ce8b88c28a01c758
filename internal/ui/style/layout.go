package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// chromeLines is header + breadcrumb + status bar + help line.
const chromeLines = 4

// Layout manages the arrangement of UI components within terminal dimensions.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a layout for the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the rows available for the list.
func (l Layout) ContentHeight() int {
	if h := l.Height - chromeLines; h > 1 {
		return h
	}
	return 1
}

// ContentWidth returns the width available for the list.
func (l Layout) ContentWidth() int {
	if l.Width < 20 {
		return 20
	}
	return l.Width
}

// BarWidth returns the width of size bars.
func (l Layout) BarWidth() int {
	return min(max(l.ContentWidth()-rowOverhead, 5), 40)
}

// NameWidth returns the width available for names.
func (l Layout) NameWidth() int {
	return max(l.ContentWidth()-rowOverhead-l.BarWidth(), 8)
}

// rowOverhead is the fixed part of a list row:
// cursor(2) + pct(6) + " ["(2) + "] "(2) + " "(1) + size(10)
const rowOverhead = 23

// FullWidth pads s with spaces to width visible cells. Wider strings are
// returned unchanged.
func FullWidth(s string, width int) string {
	if pad := width - lipgloss.Width(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}
