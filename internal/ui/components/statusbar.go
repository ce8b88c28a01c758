package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/diskly/internal/model"
	"github.com/sadopc/diskly/internal/ui/style"
	"github.com/sadopc/diskly/internal/util"
)

// StatusInfo holds data for the status bar.
type StatusInfo struct {
	Entries int
	DirSize uint64
	Errors  int
	Sort    model.SortConfig
	Message string
}

// RenderStatusBar renders the bottom status line.
func RenderStatusBar(theme style.Theme, info StatusInfo, width int) string {
	left := fmt.Sprintf(" %d entries  %s", info.Entries, util.FormatSize(info.DirSize))
	if info.Errors > 0 {
		left += theme.ErrorText.Render(fmt.Sprintf("  %d unreadable", info.Errors))
	}
	if info.Message != "" {
		left += "  " + info.Message
	}

	right := "sort: " + sortLabel(info.Sort) + " "

	if gap := width - lipgloss.Width(left) - lipgloss.Width(right); gap > 0 {
		left += strings.Repeat(" ", gap)
	}
	return theme.StatusBarStyle.Render(left + right)
}

func sortLabel(cfg model.SortConfig) string {
	label := "size"
	switch cfg.Field {
	case model.SortByName:
		label = "name"
	case model.SortByCount:
		label = "count"
	}
	if cfg.Order == model.SortAsc {
		label += " ↑"
	} else {
		label += " ↓"
	}
	if cfg.DirsFirst {
		label += " dirs first"
	}
	return label
}
