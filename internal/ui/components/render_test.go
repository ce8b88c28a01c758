package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/diskly/internal/model"
	"github.com/sadopc/diskly/internal/ui/style"
)

func TestRenderScanProgress_SmallWidth(t *testing.T) {
	theme := style.DefaultTheme()
	st := ScanStatus{Root: "/very/long/root/path", Path: "/very/long/root/path/sub", Items: 12, Errors: 1}
	for _, w := range []int{0, 1, 2, 5} {
		t.Run("", func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("RenderScanProgress panicked at width=%d: %v", w, r)
				}
			}()
			RenderScanProgress(theme, st, w, 10)
		})
	}
}

func TestRenderScanProgress_ShowsCounts(t *testing.T) {
	out := RenderScanProgress(style.DefaultTheme(), ScanStatus{Root: "/data", Items: 1234, Errors: 2}, 80, 20)
	if !strings.Contains(out, "1,234") {
		t.Errorf("expected item count in progress modal, got:\n%s", out)
	}
	if !strings.Contains(out, "2 entries unreadable") {
		t.Errorf("expected error count in progress modal, got:\n%s", out)
	}
}

func TestRenderHeaderAndStatus_SmallWidth(t *testing.T) {
	theme := style.DefaultTheme()
	for _, w := range []int{0, 1, 2, 5} {
		t.Run("", func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("render panicked at width=%d: %v", w, r)
				}
			}()
			RenderHeader(theme, HeaderInfo{Root: "/tmp", Size: 10, Items: 3, Cached: true}, w)
			RenderBreadcrumb(theme, []string{"a", "b"}, w)
			RenderStatusBar(theme, StatusInfo{Entries: 2, Errors: 1, Message: "x"}, w)
		})
	}
}

func TestRenderHeader_Cached(t *testing.T) {
	out := RenderHeader(style.DefaultTheme(), HeaderInfo{Version: "v1", Root: "/srv", Size: 2048, Items: 5, Cached: true}, 80)
	for _, want := range []string{"diskly v1", "/srv", "2.0 KiB", "5 items", "cached"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q: %q", want, out)
		}
	}
}

func TestTreeView_RowsFitWidth(t *testing.T) {
	items := []model.Node{
		model.NewLeaf("big.bin", "/r/big.bin", 300, true, model.FlagNone),
		model.NewDir("sub", "/r/sub", []model.Node{model.NewLeaf("x", "/r/sub/x", 100, true, model.FlagNone)}, model.FlagNone),
		model.NewLeaf(strings.Repeat("n", 200), "/r/long", 1, true, model.FlagError),
	}
	tv := TreeView{
		Theme:      style.DefaultTheme(),
		Layout:     style.NewLayout(80, 10),
		Items:      items,
		Cursor:     1,
		ParentSize: 401,
	}

	out := tv.Render()
	lines := strings.Split(out, "\n")
	if len(lines) != tv.Layout.ContentHeight() {
		t.Fatalf("got %d lines, want %d", len(lines), tv.Layout.ContentHeight())
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w != 80 {
			t.Errorf("line %d width = %d, want 80", i, w)
		}
	}
	if !strings.Contains(lines[1], "sub/") {
		t.Errorf("directory rows carry a trailing slash, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "…") {
		t.Errorf("long names are truncated, got %q", lines[2])
	}
}

func TestTreeView_Empty(t *testing.T) {
	tv := TreeView{Theme: style.DefaultTheme(), Layout: style.NewLayout(40, 10)}
	if !strings.Contains(tv.Render(), "(empty directory)") {
		t.Error("expected empty directory placeholder")
	}
}
