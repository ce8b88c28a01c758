package ops

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sadopc/diskly/internal/model"
)

// ncdu-compatible JSON format:
// [1, 0, {"progname":"diskly","progver":"1.0","timestamp":1234567890,"items":4},
//   [{"name":"/path","asize":45},
//     {"name":"b","asize":20},
//     {"name":"a","asize":10},
//     [{"name":"sub","asize":15},
//       {"name":"c","asize":15}
//     ]
//   ]
// ]
//
// asize carries the scanned (effective) size, so a repeated hard link is
// exported as 0 with hlnkc set.

type ncduHeader struct {
	Progname  string `json:"progname"`
	Progver   string `json:"progver"`
	Timestamp int64  `json:"timestamp"`
	Items     uint64 `json:"items,omitempty"`
}

type ncduEntry struct {
	Name           string `json:"name"`
	Asize          uint64 `json:"asize"`
	Hlnkc          bool   `json:"hlnkc,omitempty"`
	Err            bool   `json:"read_error,omitempty"`
	Symlink        bool   `json:"symlink,omitempty"`
	UsageEstimated bool   `json:"usage_estimated,omitempty"`
}

func entryFor(name string, n model.Node) ncduEntry {
	return ncduEntry{
		Name:           name,
		Asize:          n.Size,
		Hlnkc:          n.Flag&model.FlagHardlink != 0,
		Err:            n.Flag&model.FlagError != 0,
		Symlink:        n.Flag&model.FlagSymlink != 0,
		UsageEstimated: n.Flag&model.FlagUsageEstimated != 0,
	}
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) writeJSON(v any) {
	if ew.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		ew.err = err
		return
	}
	_, ew.err = ew.w.Write(data)
}

// ExportJSON writes a completed tree in ncdu-compatible JSON to path, or to
// stdout when path is "-". File targets are written to a temp file first and
// renamed on success, so a partial file is never left behind.
func ExportJSON(root model.Node, total uint64, path string, version string) (retErr error) {
	if path == "-" {
		return ExportTo(os.Stdout, root, total, version)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".diskly-export-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := ExportTo(tmp, root, total, version); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// On Windows, Rename cannot replace an existing destination.
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("cannot replace export file %s: %w", path, err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return err
		}
	}
	return nil
}

// ExportTo writes the ncdu document for root to out.
func ExportTo(out io.Writer, root model.Node, total uint64, version string) error {
	bw := bufio.NewWriterSize(out, 64*1024)
	ew := &errWriter{w: bw}

	if version == "" {
		version = "dev"
	}
	ew.WriteString("[1, 0, ")
	ew.writeJSON(ncduHeader{
		Progname:  "diskly",
		Progver:   version,
		Timestamp: time.Now().Unix(),
		Items:     total,
	})
	ew.WriteString(",\n")

	// The root entry carries the full path, children carry base names.
	rootName := root.Path
	if rootName == "" {
		rootName = root.Name
	}
	if root.IsDir() {
		writeDir(ew, rootName, root)
	} else {
		ew.writeJSON(entryFor(rootName, root))
	}

	ew.WriteString("\n]\n")
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

func writeDir(ew *errWriter, name string, dir model.Node) {
	ew.WriteString("[")
	ew.writeJSON(entryFor(name, dir))

	for _, child := range dir.Children {
		if ew.err != nil {
			return
		}
		ew.WriteString(",\n")
		if child.IsDir() {
			writeDir(ew, child.Name, child)
		} else {
			ew.writeJSON(entryFor(child.Name, child))
		}
	}

	ew.WriteString("]")
}
