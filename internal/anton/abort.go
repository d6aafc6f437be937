package anton

import "sync/atomic"

// AbortSignal is the external cancellation flag Anton's main loop polls
// every 250ms (spec.md §5). It is distinct from a context.Context because
// the spec's stop-condition check order treats it as one named condition
// among several (max_iterations, total_timeout, ...), not as plumbing.
type AbortSignal struct {
	flag atomic.Bool
}

// NewAbortSignal returns a signal that starts unaborted.
func NewAbortSignal() *AbortSignal {
	return &AbortSignal{}
}

// Abort flips the signal. Safe to call from any goroutine, any number of times.
func (s *AbortSignal) Abort() {
	s.flag.Store(true)
}

// Aborted reports whether Abort has been called.
func (s *AbortSignal) Aborted() bool {
	return s.flag.Load()
}
