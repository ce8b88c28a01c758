package style

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestContentHeight(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{80, 24, 20},
		{10, 5, 1},
		{10, 4, 1},
		{10, 0, 1},
		{80, 50, 46},
	}

	for _, tt := range tests {
		got := NewLayout(tt.w, tt.h).ContentHeight()
		if got != tt.want {
			t.Errorf("NewLayout(%d,%d).ContentHeight() = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestBarAndNameWidth(t *testing.T) {
	tests := []struct {
		width int
		bar   int
	}{
		{10, 5},
		{30, 7},
		{80, 40},
		{200, 40},
	}

	for _, tt := range tests {
		l := NewLayout(tt.width, 24)
		if got := l.BarWidth(); got != tt.bar {
			t.Errorf("NewLayout(%d,24).BarWidth() = %d, want %d", tt.width, got, tt.bar)
		}
		if l.NameWidth() < 8 {
			t.Errorf("NewLayout(%d,24).NameWidth() = %d, want >= 8", tt.width, l.NameWidth())
		}
	}

	l := NewLayout(80, 24)
	if total := l.NameWidth() + l.BarWidth() + rowOverhead; total != l.ContentWidth() {
		t.Errorf("row parts sum to %d, want ContentWidth %d", total, l.ContentWidth())
	}
}

func TestFullWidth(t *testing.T) {
	if got := FullWidth("hi", 5); got != "hi   " {
		t.Errorf("FullWidth(\"hi\", 5) = %q, want %q", got, "hi   ")
	}
	if got := FullWidth("hello", 3); got != "hello" {
		t.Errorf("FullWidth(\"hello\", 3) = %q, want unchanged", got)
	}
}

func TestBar(t *testing.T) {
	theme := DefaultTheme()
	for _, ratio := range []float64{-1, 0, 0.5, 1, 2} {
		bar := theme.Bar(10, ratio)
		if w := lipgloss.Width(bar); w != 10 {
			t.Errorf("Bar(10, %v) width = %d, want 10", ratio, w)
		}
	}
	if bar := theme.Bar(10, 0.5); !strings.Contains(bar, "━━━━━") {
		t.Errorf("expected half-filled bar, got %q", bar)
	}
	if theme.Bar(0, 1) != "" {
		t.Error("zero width bar must be empty")
	}
	if theme.GradientColor(0) != theme.GradientStart || theme.GradientColor(1) != theme.GradientEnd {
		t.Error("gradient endpoints must match the theme")
	}
}
