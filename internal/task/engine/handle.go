package engine

import (
	"context"
	"sync"
	"time"
)

// Handle tracks one submitted task until it finishes.
type Handle struct {
	id   string
	name string

	done chan struct{}

	mu       sync.Mutex
	err      error
	started  time.Time
	finished time.Time
}

func newHandle(id, name string) *Handle {
	return &Handle{id: id, name: name, done: make(chan struct{})}
}

func (h *Handle) ID() string   { return h.id }
func (h *Handle) Name() string { return h.name }

// Done is closed once the task has returned (or panicked).
func (h *Handle) Done() <-chan struct{} { return h.done }

// Finished reports completion without blocking.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the task error. It is nil until the task finished.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the task finished or ctx is done. It returns the task
// error, or ctx.Err() if the wait was abandoned.
func (h *Handle) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Duration is the task's run time, zero while it is still running.
func (h *Handle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished.IsZero() {
		return 0
	}
	return h.finished.Sub(h.started)
}

func (h *Handle) start(now time.Time) {
	h.mu.Lock()
	h.started = now
	h.mu.Unlock()
}

func (h *Handle) finish(now time.Time, err error) {
	h.mu.Lock()
	h.err = err
	h.finished = now
	h.mu.Unlock()
	close(h.done)
}
