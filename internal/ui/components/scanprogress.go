package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/sadopc/diskly/internal/ui/style"
	"github.com/sadopc/diskly/internal/util"
)

// ScanStatus is the latest progress of a running scan.
type ScanStatus struct {
	Root    string
	Path    string
	Items   uint64
	Subtree uint64
	Errors  int
	Elapsed time.Duration
	Spinner string
}

// RenderScanProgress renders the scanning modal centered in the terminal.
func RenderScanProgress(theme style.Theme, st ScanStatus, width, height int) string {
	modalWidth := min(60, max(width-4, 20))
	inner := modalWidth - 4

	title := theme.ModalTitle.Render(strings.TrimSpace(st.Spinner + " Scanning " + ansi.Truncate(st.Root, inner-12, "…")))

	lines := []string{
		title,
		fmt.Sprintf("Items:   %s", util.FormatCount(st.Items)),
		fmt.Sprintf("Elapsed: %s", st.Elapsed.Round(100*time.Millisecond)),
	}
	if st.Path != "" {
		lines = append(lines,
			"",
			lipgloss.NewStyle().Foreground(theme.TextMuted).Render(ansi.TruncateLeft(st.Path, max(lipgloss.Width(st.Path)-inner, 0), "…")),
			fmt.Sprintf("  %s", util.FormatSize(st.Subtree)),
		)
	}
	if st.Errors > 0 {
		lines = append(lines, theme.ErrorText.Render(fmt.Sprintf("%d entries unreadable", st.Errors)))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(theme.TextMuted).Render("c cancel  q quit"))

	modal := theme.ModalStyle.Width(modalWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
