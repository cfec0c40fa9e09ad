package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Result is what a job callable returns besides its error.
type Result int

const (
	// Continue keeps the job scheduled.
	Continue Result = iota
	// Cancel removes the job once the dispatch is reaped.
	Cancel
)

func (r Result) String() string {
	if r == Cancel {
		return "cancel"
	}
	return "continue"
}

// Call is the invocation passed to a job callable.
type Call struct {
	JobID     string
	Func      string
	Args      []any
	Kwargs    map[string]any
	Scheduled time.Time // the next run that made the job due
	Started   time.Time
}

// Func is a job callable. A returned error is logged and never retried.
type Func func(ctx context.Context, call Call) (Result, error)

// Registry maps stable callable names to functions so that restored
// snapshots can find their work again.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register adds or replaces fn under name.
func (r *Registry) Register(name string, fn Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("func name required")
	}
	if fn == nil {
		return fmt.Errorf("func %q is nil", name)
	}
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
	return nil
}

func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	fn, ok := r.funcs[strings.TrimSpace(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunc, name)
	}
	return fn, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
