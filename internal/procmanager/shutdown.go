package procmanager

import "sync"

// ShutdownSignal is a shared flag observed cooperatively by every
// monitoring loop. It is triggered once, during CleanupAll, and is never
// reset.
type ShutdownSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewShutdownSignal creates an untriggered shutdown signal
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{ch: make(chan struct{})}
}

// Trigger fires the signal. Subsequent calls are no-ops.
func (s *ShutdownSignal) Trigger() {
	s.once.Do(func() { close(s.ch) })
}

// Triggered reports whether the signal has fired
func (s *ShutdownSignal) Triggered() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal fires
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.ch
}
