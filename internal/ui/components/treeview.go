package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/sadopc/diskly/internal/model"
	"github.com/sadopc/diskly/internal/ui/style"
	"github.com/sadopc/diskly/internal/util"
)

// TreeView renders the listing of one directory.
type TreeView struct {
	Theme      style.Theme
	Layout     style.Layout
	Items      []model.Node
	Cursor     int
	Offset     int
	ParentSize uint64
}

// Render returns the visible rows, padded to the content height.
func (tv TreeView) Render() string {
	height := tv.Layout.ContentHeight()
	width := tv.Layout.ContentWidth()

	if len(tv.Items) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(tv.Theme.TextMuted).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("(empty directory)")
		return empty
	}

	var rows []string
	end := min(tv.Offset+height, len(tv.Items))
	for i := tv.Offset; i < end; i++ {
		rows = append(rows, tv.renderRow(tv.Items[i], i == tv.Cursor, width))
	}
	for len(rows) < height {
		rows = append(rows, strings.Repeat(" ", width))
	}
	return strings.Join(rows, "\n")
}

func (tv TreeView) renderRow(item model.Node, selected bool, width int) string {
	nameWidth := tv.Layout.NameWidth()
	barWidth := tv.Layout.BarWidth()

	cursor := "  "
	if selected {
		cursor = tv.Theme.CursorIndicator.Render("> ")
	}

	pct := util.Percent(item.Size, tv.ParentSize)
	pctStr := tv.Theme.PercentText.Render(fmt.Sprintf("%5.1f%%", pct))
	bar := tv.Theme.Bar(barWidth, pct/100)

	name := item.Name
	if item.IsDir() {
		name += "/"
	}
	name = ansi.Truncate(name, nameWidth, "…")

	var nameStyled string
	switch {
	case item.Flag&model.FlagError != 0:
		nameStyled = tv.Theme.ErrorText.Render(name)
	case item.IsDir():
		nameStyled = tv.Theme.DirName.Render(name)
	default:
		nameStyled = tv.Theme.FileName.Render(name)
	}
	if pad := nameWidth - lipgloss.Width(name); pad > 0 {
		nameStyled += strings.Repeat(" ", pad)
	}

	size := util.FormatSize(item.Size)
	if item.Flag&model.FlagUsageEstimated != 0 {
		size = "~" + size
	}
	sizeStr := tv.Theme.SizeText.Width(10).Render(size)

	row := fmt.Sprintf("%s%s [%s] %s %s", cursor, pctStr, bar, nameStyled, sizeStr)
	if selected {
		return tv.Theme.SelectedRow.Render(style.FullWidth(row, width))
	}
	return style.FullWidth(row, width)
}

// EnsureVisible adjusts Offset so the cursor row is on screen.
func (tv *TreeView) EnsureVisible() {
	height := tv.Layout.ContentHeight()
	if tv.Cursor < tv.Offset {
		tv.Offset = tv.Cursor
	}
	if tv.Cursor >= tv.Offset+height {
		tv.Offset = tv.Cursor - height + 1
	}
	if tv.Offset < 0 {
		tv.Offset = 0
	}
}
