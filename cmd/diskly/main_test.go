package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sadopc/diskly/internal/model"
	"github.com/sadopc/diskly/internal/ops"
)

type cliResult struct {
	stdout   string
	stderr   string
	exitCode int
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), exitCode: code}
}

func TestE2E_HeadlessExportImportRoundTrip(t *testing.T) {
	scanRoot := createScanFixture(t)
	exportPath := filepath.Join(t.TempDir(), "scan.json")

	result := runCLI(t, "-export", exportPath, scanRoot)
	if result.exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\nstdout:\n%s\nstderr:\n%s", result.exitCode, result.stdout, result.stderr)
	}
	if !strings.Contains(result.stdout, "Exported to "+exportPath) {
		t.Fatalf("expected export confirmation in stdout, got:\n%s", result.stdout)
	}

	imported, total, err := ops.ImportJSON(exportPath)
	if err != nil {
		t.Fatalf("importing exported JSON failed: %v", err)
	}
	// keep, keep/a.txt, keep/link.txt, keep/sub, keep/sub/b.go, other, other/c.log, .hidden.txt
	if total != 8 {
		t.Fatalf("expected 8 scanned items, got %d", total)
	}
	if imported.Size != 5+13+9+10+linkSize(t, scanRoot) {
		t.Fatalf("unexpected root size %d", imported.Size)
	}

	nested := imported.Find("keep", "sub", "b.go")
	if nested == nil {
		t.Fatal("expected keep/sub/b.go to exist in imported tree")
	}
	if want := filepath.Join(imported.Path, "keep", "sub", "b.go"); nested.Path != want {
		t.Fatalf("unexpected reconstructed path: got %q want %q", nested.Path, want)
	}

	if imported.Find(".hidden.txt") == nil {
		t.Fatal("expected hidden file to be present in export")
	}

	link := imported.Find("keep", "link.txt")
	if link == nil {
		t.Fatal("expected keep/link.txt symlink to exist in imported tree")
	}
	if link.Flag&model.FlagSymlink == 0 {
		t.Fatal("expected FlagSymlink to be preserved after export/import round-trip")
	}

	reExportPath := filepath.Join(t.TempDir(), "rescan.json")
	result = runCLI(t, "-import", exportPath, "-export", reExportPath)
	if result.exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\nstdout:\n%s\nstderr:\n%s", result.exitCode, result.stdout, result.stderr)
	}

	reImported, reTotal, err := ops.ImportJSON(reExportPath)
	if err != nil {
		t.Fatalf("importing re-exported JSON failed: %v", err)
	}
	if reTotal != total || !reflect.DeepEqual(reImported, imported) {
		t.Fatal("tree mismatch after import/export round trip")
	}
}

func TestE2E_HeadlessExportToStdoutWritesJSONOnly(t *testing.T) {
	scanRoot := createScanFixture(t)

	result := runCLI(t, "-export", "-", scanRoot)
	if result.exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr:\n%s", result.exitCode, result.stderr)
	}
	assertNcduDocument(t, result.stdout)
}

func TestE2E_NonTerminalStdoutExports(t *testing.T) {
	scanRoot := createScanFixture(t)

	result := runCLI(t, "-log-level", "error", scanRoot)
	if result.exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr:\n%s", result.exitCode, result.stderr)
	}
	assertNcduDocument(t, result.stdout)
	if strings.TrimSpace(result.stderr) != "" {
		t.Fatalf("expected no log output at error level, got:\n%s", result.stderr)
	}
}

func TestE2E_LogsAsJSON(t *testing.T) {
	scanRoot := createScanFixture(t)

	result := runCLI(t, "-log-format", "json", "-export", "-", scanRoot)
	if result.exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr:\n%s", result.exitCode, result.stderr)
	}
	if !strings.Contains(result.stderr, `"msg":"scan complete"`) {
		t.Fatalf("expected scan completion log line, got:\n%s", result.stderr)
	}
}

func TestE2E_InvalidRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	result := runCLI(t, "-export", "-", missing)
	if result.exitCode == 0 {
		t.Fatal("expected non-zero exit for a missing root")
	}
	if !strings.Contains(result.stderr, "invalid scan root") {
		t.Fatalf("expected invalid root message, got:\n%s", result.stderr)
	}
	if result.stdout != "" {
		t.Fatalf("expected nothing on stdout, got:\n%s", result.stdout)
	}
}

func TestE2E_ImportExportFailsWhenImportFileMissing(t *testing.T) {
	missingImport := filepath.Join(t.TempDir(), "missing.json")
	exportPath := filepath.Join(t.TempDir(), "out.json")

	result := runCLI(t, "-import", missingImport, "-export", exportPath)
	if result.exitCode == 0 {
		t.Fatalf("expected non-zero exit for missing import file\nstdout:\n%s\nstderr:\n%s", result.stdout, result.stderr)
	}
	if !strings.Contains(result.stderr, "Error importing:") {
		t.Fatalf("expected import error message, got:\n%s", result.stderr)
	}
	if _, err := os.Stat(exportPath); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func TestE2E_ImportRejectsScanTargets(t *testing.T) {
	importPath := filepath.Join(t.TempDir(), "scan.json")

	result := runCLI(t, "-import", importPath, "alice@10.0.0.2")
	if result.exitCode == 0 {
		t.Fatalf("expected non-zero exit code\nstdout:\n%s\nstderr:\n%s", result.stdout, result.stderr)
	}
	if !strings.Contains(result.stderr, "-import cannot be used with scan targets") {
		t.Fatalf("unexpected error message:\n%s", result.stderr)
	}
}

func TestE2E_VersionAndBadFlags(t *testing.T) {
	result := runCLI(t, "-version")
	if result.exitCode != 0 || !strings.HasPrefix(result.stdout, "diskly ") {
		t.Fatalf("unexpected version output %q (exit %d)", result.stdout, result.exitCode)
	}

	result = runCLI(t, "-accounting", "bogus", ".")
	if result.exitCode != 1 || !strings.Contains(result.stderr, "unknown accounting mode") {
		t.Fatalf("expected validation error, got exit %d:\n%s", result.exitCode, result.stderr)
	}

	result = runCLI(t, "-no-such-flag")
	if result.exitCode != 2 {
		t.Fatalf("expected exit 2 for an unknown flag, got %d", result.exitCode)
	}
}

func assertNcduDocument(t *testing.T, out string) {
	t.Helper()
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &raw); err != nil {
		t.Fatalf("expected valid JSON in stdout, got error: %v\nstdout:\n%s", err, out)
	}
	if len(raw) < 4 {
		t.Fatalf("expected ncdu root array, got %d elements", len(raw))
	}
}

func createScanFixture(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	mustMkdirAll(t, filepath.Join(root, "keep", "sub"))
	mustMkdirAll(t, filepath.Join(root, "other"))

	mustWriteFile(t, filepath.Join(root, "keep", "a.txt"), "alpha")
	mustWriteFile(t, filepath.Join(root, "keep", "sub", "b.go"), "package main\n")
	mustWriteFile(t, filepath.Join(root, "other", "c.log"), "ignore me")
	mustWriteFile(t, filepath.Join(root, ".hidden.txt"), "top secret")

	if err := os.Symlink(filepath.Join(root, "keep", "a.txt"), filepath.Join(root, "keep", "link.txt")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	return root
}

func linkSize(t *testing.T, root string) uint64 {
	t.Helper()
	info, err := os.Lstat(filepath.Join(root, "keep", "link.txt"))
	if err != nil {
		t.Fatalf("lstat: %v", err)
	}
	return uint64(info.Size())
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %q: %v", path, err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}
