package coordinator

import "github.com/sadopc/diskly/internal/model"

// EventKind identifies a notification.
type EventKind int

const (
	// EventDirectoryProgress carries a completed subtree.
	EventDirectoryProgress EventKind = iota + 1
	// EventEntryError carries an entry that could not be read.
	EventEntryError
	// EventScanComplete carries the final tree. Terminal.
	EventScanComplete
	// EventScanError carries why a scan produced no tree. Terminal.
	EventScanError
)

func (k EventKind) String() string {
	switch k {
	case EventDirectoryProgress:
		return "directory_progress"
	case EventEntryError:
		return "entry_error"
	case EventScanComplete:
		return "scan_complete"
	case EventScanError:
		return "scan_error"
	default:
		return "unknown"
	}
}

// Event is a notification about one scan attempt, identified by ScanID.
type Event struct {
	Kind   EventKind
	ScanID string
	Root   string

	// Path and Node describe the completed directory for progress events;
	// for completion Node is the whole tree.
	Path         string
	Node         model.Node
	TotalScanned uint64
	// Cached marks a completion served from the scan cache.
	Cached bool

	Err error
}

// Terminal reports whether the event ends its scan attempt.
func (e Event) Terminal() bool {
	return e.Kind == EventScanComplete || e.Kind == EventScanError
}

// Listener receives notifications. Calls for one attempt are sequential and
// in order; calls for different attempts may interleave.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent calls f(e).
func (f ListenerFunc) OnEvent(e Event) { f(e) }
