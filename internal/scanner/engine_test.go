package scanner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sadopc/diskly/internal/model"
)

type recordingReporter struct {
	mu       sync.Mutex
	progress []Progress
	errs     []error
	onDir    func(Progress)
}

func (r *recordingReporter) ReportDirectory(p Progress) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
	if r.onDir != nil {
		r.onDir(p)
	}
}

func (r *recordingReporter) ReportError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// failingFS wraps the OS filesystem and fails ReadDir for selected paths.
type failingFS struct {
	OSFileSystem
	fail map[string]bool
}

func (f failingFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if f.fail[name] {
		return nil, fs.ErrPermission
	}
	return os.ReadDir(name)
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func scan(t *testing.T, fsys FileSystem, opts Options, root string, reporter Reporter) (model.Node, uint64) {
	t.Helper()
	pool, err := NewPool(4)
	if err != nil {
		t.Fatal(err)
	}
	var counter atomic.Uint64
	node := NewEngine(fsys, opts).Scan(root, pool, NewToken(), NewRegistry(), &counter, reporter)
	return node, counter.Load()
}

func TestScan_ConcreteTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 10)
	writeFile(t, filepath.Join(root, "b.txt"), 30)
	writeFile(t, filepath.Join(root, "sub", "c.txt"), 5)

	node, total := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)

	if node.Size != 45 {
		t.Fatalf("root size = %d, want 45", node.Size)
	}
	if total != 4 {
		t.Fatalf("total scanned = %d, want 4", total)
	}

	want := []struct {
		name string
		size uint64
	}{{"b.txt", 30}, {"a.txt", 10}, {"sub", 5}}
	if len(node.Children) != len(want) {
		t.Fatalf("root has %d children, want %d", len(node.Children), len(want))
	}
	for i, w := range want {
		c := node.Children[i]
		if c.Name != w.name || c.Size != w.size {
			t.Fatalf("child %d = %s(%d), want %s(%d)", i, c.Name, c.Size, w.name, w.size)
		}
	}

	sub := node.Find("sub")
	if sub.IsFile || len(sub.Children) != 1 || sub.Children[0].Name != "c.txt" || sub.Children[0].Size != 5 {
		t.Fatalf("unexpected sub node: %+v", *sub)
	}
	if sub.Path != filepath.Join(root, "sub") {
		t.Fatalf("sub path = %q", sub.Path)
	}
}

func TestScan_RootSizeEqualsLeafSum(t *testing.T) {
	root := t.TempDir()
	var want uint64
	for i, rel := range []string{
		"one.bin", "d1/two.bin", "d1/d2/three.bin", "d1/d2/d3/four.bin", "e/five.bin", "e/f/six.bin",
	} {
		size := (i + 1) * 37
		writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), size)
		want += uint64(size)
	}

	node, _ := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)
	if node.Size != want {
		t.Fatalf("root size = %d, want %d", node.Size, want)
	}

	var leafSum uint64
	node.Walk(func(n *model.Node) bool {
		if n.IsFile {
			leafSum += n.Size
		}
		if !n.IsFile {
			var childSum uint64
			for _, c := range n.Children {
				childSum += c.Size
			}
			if childSum != n.Size {
				t.Errorf("%s: size %d != children sum %d", n.Path, n.Size, childSum)
			}
		}
		return true
	})
	if leafSum != want {
		t.Fatalf("leaf sum = %d, want %d", leafSum, want)
	}
}

func TestScan_HardlinkCountedOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 100)
	if err := os.Mkdir(filepath.Join(root, "hard"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Link(filepath.Join(root, "a.txt"), filepath.Join(root, "hard", "b.txt")); err != nil {
		t.Skipf("hard links not available: %v", err)
	}
	if _, _, ok := IdentityOf(mustLstat(t, filepath.Join(root, "a.txt"))); !ok {
		t.Skip("platform exposes no file identity")
	}

	node, total := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)
	if node.Size != 100 {
		t.Fatalf("root size = %d, want 100", node.Size)
	}
	if total != 3 {
		t.Fatalf("total scanned = %d, want 3", total)
	}

	a, b := node.Find("a.txt"), node.Find("hard", "b.txt")
	if a == nil || b == nil {
		t.Fatal("expected both link paths to appear as nodes")
	}
	if a.Size+b.Size != 100 {
		t.Fatalf("combined link sizes = %d, want 100", a.Size+b.Size)
	}
	zero := a
	if a.Size != 0 {
		zero = b
	}
	if zero.Size != 0 || zero.Flag&model.FlagHardlink == 0 {
		t.Fatalf("expected the second observer to be zero-size and flagged, got %+v", *zero)
	}

	off := DefaultOptions()
	off.Dedup = DedupOff
	node, _ = scan(t, OSFileSystem{}, off, root, nil)
	if node.Size != 200 {
		t.Fatalf("root size with dedup off = %d, want 200", node.Size)
	}
}

func TestScan_DedupAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "linked.txt"), 100)
	writeFile(t, filepath.Join(root, "one.txt"), 7)
	writeFile(t, filepath.Join(root, "two.txt"), 7)
	if err := os.Link(filepath.Join(root, "linked.txt"), filepath.Join(root, "linked-copy.txt")); err != nil {
		t.Skipf("hard links not available: %v", err)
	}
	if _, _, ok := IdentityOf(mustLstat(t, filepath.Join(root, "one.txt"))); !ok {
		t.Skip("platform exposes no file identity")
	}

	opts := DefaultOptions()
	opts.Dedup = DedupAll
	node, total := scan(t, OSFileSystem{}, opts, root, nil)

	// The link pair counts once; distinct single-link files are never merged.
	if node.Size != 114 {
		t.Fatalf("root size = %d, want 114", node.Size)
	}
	if total != 4 {
		t.Fatalf("total scanned = %d, want 4", total)
	}
	for _, name := range []string{"one.txt", "two.txt"} {
		n := node.Find(name)
		if n == nil || n.Size != 7 || n.Flag&model.FlagHardlink != 0 {
			t.Fatalf("%s should count its own 7 bytes, got %+v", name, n)
		}
	}
	a, b := node.Find("linked.txt"), node.Find("linked-copy.txt")
	if a == nil || b == nil || a.Size+b.Size != 100 {
		t.Fatalf("expected the link pair to contribute 100 bytes once, got %+v %+v", a, b)
	}
	if (a.Flag|b.Flag)&model.FlagHardlink == 0 {
		t.Fatal("expected the second link observer to be flagged")
	}
}

func TestScan_SymlinksAreOpaqueLeaves(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "target", "big.bin"), 1000)
	if err := os.Symlink("target", filepath.Join(root, "dirlink")); err != nil {
		t.Skipf("symlink not available on this platform: %v", err)
	}
	if err := os.Symlink("/definitely/missing/target", filepath.Join(root, "broken")); err != nil {
		t.Fatal(err)
	}

	node, total := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)

	link := node.Find("dirlink")
	if link == nil {
		t.Fatal("expected symlink node")
	}
	if link.Flag&model.FlagSymlink == 0 || link.IsDir() || len(link.Children) != 0 {
		t.Fatalf("symlink should be a flagged leaf, got %+v", *link)
	}
	if link.Size != uint64(len("target")) {
		t.Fatalf("symlink size = %d, want link length %d", link.Size, len("target"))
	}

	broken := node.Find("broken")
	if broken == nil || broken.Flag&model.FlagSymlink == 0 {
		t.Fatal("expected broken symlink to be kept as a symlink leaf")
	}

	wantRoot := 1000 + uint64(len("target")) + uint64(len("/definitely/missing/target"))
	if node.Size != wantRoot {
		t.Fatalf("root size = %d, want %d (link target must not be counted twice)", node.Size, wantRoot)
	}
	// target, target/big.bin, dirlink, broken
	if total != 4 {
		t.Fatalf("total scanned = %d, want 4", total)
	}
}

func TestScan_UnreadableDirectoryDegrades(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok", "file.txt"), 8)
	writeFile(t, filepath.Join(root, "locked", "hidden.txt"), 50)

	fsys := failingFS{fail: map[string]bool{filepath.Join(root, "locked"): true}}
	rep := &recordingReporter{}
	node, _ := scan(t, fsys, DefaultOptions(), root, rep)

	if node.Size != 8 {
		t.Fatalf("root size = %d, want 8", node.Size)
	}
	locked := node.Find("locked")
	if locked == nil {
		t.Fatal("expected unreadable directory to stay in the tree")
	}
	if locked.Size != 0 || len(locked.Children) != 0 || locked.Flag&model.FlagError == 0 {
		t.Fatalf("expected empty error-flagged directory, got %+v", *locked)
	}

	if len(rep.errs) != 1 {
		t.Fatalf("expected one reported error, got %v", rep.errs)
	}
	var entryErr *EntryError
	if !errors.As(rep.errs[0], &entryErr) || entryErr.Path != filepath.Join(root, "locked") {
		t.Fatalf("unexpected error: %v", rep.errs[0])
	}
	if !errors.Is(rep.errs[0], fs.ErrPermission) {
		t.Fatalf("expected wrapped permission error, got %v", rep.errs[0])
	}
}

func TestScan_CancelledTokenStopsFanOut(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(root, "dir"+string(rune('a'+i)), "file.txt"), 4)
	}

	pool, _ := NewPool(2)
	token := NewToken()
	token.Cancel()
	var counter atomic.Uint64
	node := NewEngine(OSFileSystem{}, DefaultOptions()).Scan(root, pool, token, NewRegistry(), &counter, nil)

	if len(node.Children) != 0 {
		t.Fatalf("expected no children after pre-cancelled scan, got %d", len(node.Children))
	}
	if counter.Load() != 0 {
		t.Fatalf("expected nothing scanned, got %d", counter.Load())
	}
}

func TestScan_CancelMidScanReturnsPartialTree(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		dir := filepath.Join(root, "d"+string(rune('a'+i)))
		for j := 0; j < 5; j++ {
			writeFile(t, filepath.Join(dir, "s"+string(rune('a'+j)), "f.txt"), 3)
		}
	}

	token := NewToken()
	rep := &recordingReporter{onDir: func(Progress) { token.Cancel() }}
	opts := DefaultOptions()
	opts.ProgressEvery = 1

	pool, _ := NewPool(1)
	var counter atomic.Uint64
	node := NewEngine(OSFileSystem{}, opts).Scan(root, pool, token, NewRegistry(), &counter, rep)

	if !token.Cancelled() {
		t.Fatal("expected token to be cancelled by the reporter")
	}
	// 20 dirs * (1 + 5 subdirs + 5 files) entries
	if counter.Load() >= 220 {
		t.Fatalf("expected cancellation to skip work, scanned %d", counter.Load())
	}
	if node.Size >= 300 {
		t.Fatalf("expected a partial tree, got size %d", node.Size)
	}
}

func TestScan_ProgressSampling(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "x.txt"), 1)
	writeFile(t, filepath.Join(root, "b", "y.txt"), 1)
	writeFile(t, filepath.Join(root, "c", "z.txt"), 1)

	every := DefaultOptions()
	every.ProgressEvery = 1
	rep := &recordingReporter{}
	scan(t, OSFileSystem{}, every, root, rep)
	if len(rep.progress) != 4 {
		t.Fatalf("expected a report per directory (4), got %d", len(rep.progress))
	}
	last := rep.progress[len(rep.progress)-1]
	if last.Path != root || last.TotalScanned != 6 || last.Node.Size != 3 {
		t.Fatalf("unexpected root report: path=%q total=%d size=%d", last.Path, last.TotalScanned, last.Node.Size)
	}

	sampled := DefaultOptions()
	sampled.ProgressEvery = 2
	rep = &recordingReporter{}
	scan(t, OSFileSystem{}, sampled, root, rep)
	if len(rep.progress) != 2 {
		t.Fatalf("expected every second directory reported (2), got %d", len(rep.progress))
	}

	var prev uint64
	for _, p := range rep.progress {
		if p.TotalScanned < prev {
			t.Fatalf("progress counter went backwards: %d after %d", p.TotalScanned, prev)
		}
		prev = p.TotalScanned
	}
}

func TestScan_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"m/1", "a/1", "z/1", "k/1", "b/1"} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), 16)
	}
	writeFile(t, filepath.Join(root, "same1"), 16)
	writeFile(t, filepath.Join(root, "same0"), 16)

	first, _ := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)
	for i := 0; i < 5; i++ {
		again, _ := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("tree shape differs between runs")
		}
	}

	first.Walk(func(n *model.Node) bool {
		for i := 1; i < len(n.Children); i++ {
			a, b := n.Children[i-1], n.Children[i]
			if a.Size < b.Size || (a.Size == b.Size && a.Name >= b.Name) {
				t.Errorf("%s: %s(%d) before %s(%d)", n.Path, a.Name, a.Size, b.Name, b.Size)
			}
		}
		return true
	})
}

func TestScan_DiskUsageAccounting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f.bin"), 10000)
	if _, ok := diskUsage(mustLstat(t, filepath.Join(root, "f.bin"))); !ok {
		t.Skip("platform exposes no block counts")
	}

	opts := DefaultOptions()
	opts.Accounting = AccountDiskUsage
	node, _ := scan(t, OSFileSystem{}, opts, root, nil)
	if node.Size%512 != 0 {
		t.Fatalf("disk usage %d is not a multiple of 512", node.Size)
	}
}

func TestScan_RootIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "only.txt")
	writeFile(t, file, 12)

	node, total := scan(t, OSFileSystem{}, DefaultOptions(), file, nil)
	if !node.IsFile || node.Size != 12 || total != 1 {
		t.Fatalf("unexpected node for file root: %+v total=%d", node, total)
	}
}

func mustLstat(t *testing.T, path string) fs.FileInfo {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestParseModes(t *testing.T) {
	if a, err := ParseAccounting("disk"); err != nil || a != AccountDiskUsage {
		t.Errorf("ParseAccounting(disk) = %v, %v", a, err)
	}
	if _, err := ParseAccounting("blocks"); err == nil {
		t.Error("expected error for unknown accounting mode")
	}
	if d, err := ParseDedupMode("all"); err != nil || d != DedupAll {
		t.Errorf("ParseDedupMode(all) = %v, %v", d, err)
	}
	if _, err := ParseDedupMode("sometimes"); err == nil {
		t.Error("expected error for unknown dedup mode")
	}
}
