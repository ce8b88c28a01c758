package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/sadopc/diskly/internal/ui/style"
	"github.com/sadopc/diskly/internal/util"
)

// HeaderInfo is what the top line shows about the scanned root.
type HeaderInfo struct {
	Version string
	Root    string
	Size    uint64
	Items   uint64
	Cached  bool
}

// RenderHeader renders the top bar.
func RenderHeader(theme style.Theme, info HeaderInfo, width int) string {
	left := " diskly"
	if info.Version != "" {
		left += " " + info.Version
	}
	right := fmt.Sprintf("%s  %s items ", util.FormatSize(info.Size), util.FormatCount(info.Items))
	if info.Cached {
		right = "cached  " + right
	}

	room := width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	root := ""
	if room > 0 {
		root = "  " + ansi.TruncateLeft(info.Root, max(lipgloss.Width(info.Root)-room, 0), "…")
	}

	line := left + root
	if gap := width - lipgloss.Width(line) - lipgloss.Width(right); gap > 0 {
		line += strings.Repeat(" ", gap)
	}
	return theme.HeaderStyle.Render(line + right)
}

// RenderBreadcrumb renders the navigation path below the root.
func RenderBreadcrumb(theme style.Theme, segments []string, width int) string {
	crumb := " /" + strings.Join(segments, "/")
	crumb = ansi.Truncate(crumb, width, "…")
	return theme.BreadcrumbStyle.Render(style.FullWidth(crumb, width))
}
