package scheduler

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cadence/internal/eventbus"
	logx "cadence/pkg/logx"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t.UTC()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// 2024-01-01 is a Monday.
var (
	monday    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

func newTestScheduler(t *testing.T, clock Clock, opts ...Option) *Scheduler {
	t.Helper()
	base := []Option{
		WithClock(clock),
		WithLogger(logx.Nop()),
		WithRand(rand.NewPCG(1, 2)),
	}
	return New(append(base, opts...)...)
}

// counter returns a callable that counts its invocations.
func counter() (Func, *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context, Call) (Result, error) {
		n.Add(1)
		return Continue, nil
	}, &n
}

func noop(context.Context, Call) (Result, error) { return Continue, nil }

// collect drains whatever is buffered on ch without blocking.
func collect(ch <-chan eventbus.Event, typ string) []any {
	var out []any
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				out = append(out, e.Data)
			}
		default:
			return out
		}
	}
}
