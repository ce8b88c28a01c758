package scanner

import (
	"fmt"

	"github.com/sadopc/diskly/internal/model"
	"go.uber.org/zap"
)

// DefaultProgressEvery is the default sampling interval for directory
// progress: one report per this many completed directories.
const DefaultProgressEvery = 100

// Accounting selects which size unit a file contributes.
type Accounting int

const (
	// AccountApparent counts the file length as reported by stat.
	AccountApparent Accounting = iota
	// AccountDiskUsage counts allocated blocks where the platform exposes them.
	AccountDiskUsage
)

func (a Accounting) String() string {
	switch a {
	case AccountDiskUsage:
		return "disk"
	default:
		return "apparent"
	}
}

// ParseAccounting parses "apparent" or "disk".
func ParseAccounting(s string) (Accounting, error) {
	switch s {
	case "", "apparent":
		return AccountApparent, nil
	case "disk", "usage":
		return AccountDiskUsage, nil
	}
	return AccountApparent, fmt.Errorf("unknown accounting mode %q (want apparent or disk)", s)
}

// DedupMode selects when the identity registry is consulted.
type DedupMode int

const (
	// DedupLinked consults the registry only for files with a link count above one.
	DedupLinked DedupMode = iota
	// DedupAll consults the registry for every file with a stable identity.
	DedupAll
	// DedupOff never deduplicates.
	DedupOff
)

func (d DedupMode) String() string {
	switch d {
	case DedupAll:
		return "all"
	case DedupOff:
		return "off"
	default:
		return "linked"
	}
}

// ParseDedupMode parses "linked", "all" or "off".
func ParseDedupMode(s string) (DedupMode, error) {
	switch s {
	case "", "linked":
		return DedupLinked, nil
	case "all":
		return DedupAll, nil
	case "off", "none":
		return DedupOff, nil
	}
	return DedupLinked, fmt.Errorf("unknown dedup mode %q (want linked, all or off)", s)
}

// Options configures the engine.
type Options struct {
	Accounting Accounting
	Dedup      DedupMode
	// ProgressEvery reports every Nth completed directory. Values <= 1
	// report every directory.
	ProgressEvery int
	Logger        *zap.Logger
}

// DefaultOptions returns apparent-size accounting with hard-link dedup and
// the default progress sampling.
func DefaultOptions() Options {
	return Options{
		Accounting:    AccountApparent,
		Dedup:         DedupLinked,
		ProgressEvery: DefaultProgressEvery,
	}
}

// Progress is a snapshot emitted when a directory completes.
type Progress struct {
	// Path is the directory that just completed.
	Path string
	// Node is the finished subtree of Path. It must be treated as read-only.
	Node model.Node
	// TotalScanned is the scan-wide item count at the time of the report.
	TotalScanned uint64
}

// Reporter receives progress and per-entry errors. Implementations must not
// block: the engine calls them from its worker goroutines.
type Reporter interface {
	ReportDirectory(p Progress)
	ReportError(err error)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) ReportDirectory(Progress) {}
func (NopReporter) ReportError(error)        {}

// ReporterFuncs adapts plain functions to Reporter. Nil fields are skipped.
type ReporterFuncs struct {
	Directory func(Progress)
	Error     func(error)
}

func (r ReporterFuncs) ReportDirectory(p Progress) {
	if r.Directory != nil {
		r.Directory(p)
	}
}

func (r ReporterFuncs) ReportError(err error) {
	if r.Error != nil {
		r.Error(err)
	}
}

// EntryError describes an entry that could not be read. The scan continues
// with a zero-size node in its place.
type EntryError struct {
	Op   string
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
