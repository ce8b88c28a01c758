package coordinator

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sadopc/diskly/internal/metrics"
	"github.com/sadopc/diskly/internal/scanner"
)

// session is the state of one engine invocation.
type session struct {
	id        string
	root      string
	key       string
	token     *scanner.Token
	registry  *scanner.Registry
	counter   atomic.Uint64
	startedAt time.Time

	queue   chan Event
	dropped atomic.Uint64
	metrics *metrics.Metrics
}

func newSession(id, root, key string, queueSize int, m *metrics.Metrics) *session {
	return &session{
		id:        id,
		root:      root,
		key:       key,
		token:     scanner.NewToken(),
		registry:  scanner.NewRegistry(),
		startedAt: time.Now(),
		queue:     make(chan Event, queueSize),
		metrics:   m,
	}
}

// dispatch forwards queued events to l until the queue is closed.
func (s *session) dispatch(l Listener) {
	for ev := range s.queue {
		l.OnEvent(ev)
	}
}

// offer enqueues a non-terminal event, dropping it when the queue is full
// so the engine never waits on the listener.
func (s *session) offer(ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
		s.metrics.NotificationDropped()
	}
}

// finish enqueues the terminal event behind everything already queued and
// closes the queue.
func (s *session) finish(ev Event) {
	s.queue <- ev
	close(s.queue)
}

// ReportDirectory implements scanner.Reporter.
func (s *session) ReportDirectory(p scanner.Progress) {
	s.offer(Event{
		Kind:         EventDirectoryProgress,
		ScanID:       s.id,
		Root:         s.root,
		Path:         p.Path,
		Node:         p.Node,
		TotalScanned: p.TotalScanned,
	})
}

// ReportError implements scanner.Reporter.
func (s *session) ReportError(err error) {
	ev := Event{Kind: EventEntryError, ScanID: s.id, Root: s.root, Err: err}
	var entryErr *scanner.EntryError
	if errors.As(err, &entryErr) {
		ev.Path = entryErr.Path
	}
	s.offer(ev)
}
