package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Theme holds the colors and styles of the interface.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Success lipgloss.Color

	BgMedium lipgloss.Color
	BgLight  lipgloss.Color

	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color

	// Size bars blend from GradientStart (small share) to GradientEnd.
	GradientStart lipgloss.Color
	GradientEnd   lipgloss.Color

	HeaderStyle     lipgloss.Style
	BreadcrumbStyle lipgloss.Style
	StatusBarStyle  lipgloss.Style
	SelectedRow     lipgloss.Style
	CursorIndicator lipgloss.Style
	DirName         lipgloss.Style
	FileName        lipgloss.Style
	SizeText        lipgloss.Style
	PercentText     lipgloss.Style
	ErrorText       lipgloss.Style
	ModalStyle      lipgloss.Style
	ModalTitle      lipgloss.Style
}

// DefaultTheme returns the default dark theme.
func DefaultTheme() Theme {
	t := Theme{
		Primary: lipgloss.Color("#7B2FBE"),
		Accent:  lipgloss.Color("#61AFEF"),
		Muted:   lipgloss.Color("#5C6370"),
		Error:   lipgloss.Color("#E06C75"),
		Warning: lipgloss.Color("#E5C07B"),
		Success: lipgloss.Color("#98C379"),

		BgMedium: lipgloss.Color("#282A36"),
		BgLight:  lipgloss.Color("#313244"),

		TextPrimary:   lipgloss.Color("#CDD6F4"),
		TextSecondary: lipgloss.Color("#BAC2DE"),
		TextMuted:     lipgloss.Color("#6C7086"),

		GradientStart: lipgloss.Color("#00D4AA"),
		GradientEnd:   lipgloss.Color("#E06C75"),
	}

	t.HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Background(t.BgMedium)
	t.BreadcrumbStyle = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.StatusBarStyle = lipgloss.NewStyle().Foreground(t.TextSecondary).Background(t.BgMedium)
	t.SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#4A4A6A"))
	t.CursorIndicator = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	t.DirName = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	t.FileName = lipgloss.NewStyle().Foreground(t.TextSecondary)
	t.SizeText = lipgloss.NewStyle().Foreground(t.TextMuted).Align(lipgloss.Right)
	t.PercentText = lipgloss.NewStyle().Foreground(t.TextMuted).Width(6).Align(lipgloss.Right)
	t.ErrorText = lipgloss.NewStyle().Foreground(t.Error)
	t.ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2)
	t.ModalTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Padding(0, 0, 1, 0)

	return t
}

// GradientColor returns the bar color for a share of the parent, in [0, 1].
func (t Theme) GradientColor(ratio float64) lipgloss.Color {
	if ratio <= 0 {
		return t.GradientStart
	}
	if ratio >= 1 {
		return t.GradientEnd
	}
	c1, _ := colorful.Hex(string(t.GradientStart))
	c2, _ := colorful.Hex(string(t.GradientEnd))
	return lipgloss.Color(c1.BlendLab(c2, ratio).Hex())
}

// Bar renders a size bar of width cells, ratio of them filled in a single
// color chosen by GradientColor so large entries stand out.
func (t Theme) Bar(width int, ratio float64) string {
	if width <= 0 {
		return ""
	}
	if ratio < 0 {
		ratio = 0
	}
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}

	var buf strings.Builder
	if filled > 0 {
		buf.WriteString(lipgloss.NewStyle().Foreground(t.GradientColor(ratio)).Render(strings.Repeat("━", filled)))
	}
	if filled < width {
		buf.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Render(strings.Repeat("─", width-filled)))
	}
	return buf.String()
}
