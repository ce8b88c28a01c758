package scanner

import (
	"sync"
	"sync/atomic"
)

// Token is a cooperative cancellation flag shared by all tasks of one scan.
// A cancelled token stays cancelled; a new scan needs a new token.
type Token struct {
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the flag. Safe to call repeatedly and from any goroutine.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Done returns a channel that is closed on the first Cancel.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
