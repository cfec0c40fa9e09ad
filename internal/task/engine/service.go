package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cadence/internal/eventbus"
	rtsup "cadence/internal/runtime/supervisor"
	logx "cadence/pkg/logx"

	"github.com/google/uuid"
)

const defaultHistorySize = 200

// Service runs submitted tasks on supervised goroutines and hands back a
// Handle per task. There is no queue: Submit never blocks.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	sup     *rtsup.Supervisor
	stopped bool

	inflight sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem

	submitted uint64
	running   int64
	failed    uint64
	panics    uint64
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log.With(logx.String("comp", "engine")),
		bus: bus,
	}
}

func (s *Service) Apply(cfg Config) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Start binds the engine to ctx. Tasks observe ctx cancellation.
// Start is idempotent; it also re-opens an engine after Stop.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil && !s.stopped {
		return
	}
	s.sup = s.newSupervisor(ctx)
	s.stopped = false
	s.log.Debug("task engine started")
}

func (s *Service) newSupervisor(ctx context.Context) *rtsup.Supervisor {
	return rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		// Task failures belong to the task handle, not to the process.
		rtsup.WithCancelOnError(false),
	)
}

// Submit starts t on its own goroutine and returns immediately.
func (s *Service) Submit(t Task) (*Handle, error) {
	if t.Run == nil {
		return nil, ErrNilTask
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return nil, ErrNoName
	}
	t.Name = name
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	if s.sup == nil {
		s.sup = s.newSupervisor(context.Background())
	}
	sup := s.sup
	s.inflight.Add(1)
	s.mu.Unlock()

	atomic.AddUint64(&s.submitted, 1)
	atomic.AddInt64(&s.running, 1)

	h := newHandle(t.ID, t.Name)
	sup.Go("task."+t.Name, func(ctx context.Context) error {
		s.execute(ctx, t, h)
		return nil
	})
	return h, nil
}

func (s *Service) execute(ctx context.Context, t Task, h *Handle) {
	defer s.inflight.Done()
	defer atomic.AddInt64(&s.running, -1)

	start := time.Now()
	h.start(start)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddUint64(&s.panics, 1)
				pe := &PanicError{Task: t.Name, Value: r, Stack: string(debug.Stack())}
				s.log.Error("task panicked", logx.String("task", t.Name), logx.String("id", t.ID), logx.Any("panic", r), logx.Stack(pe.Stack))
				err = pe
			}
		}()
		err = t.Run(ctx)
	}()

	finish := time.Now()
	dur := finish.Sub(start)
	item := HistoryItem{ID: t.ID, Name: t.Name, Started: start, Duration: dur}
	if err != nil {
		atomic.AddUint64(&s.failed, 1)
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", t.Name), logx.String("id", t.ID), logx.Duration("dur", dur), logx.Err(err))
	} else if dur >= 750*time.Millisecond {
		s.log.Info("task completed", logx.String("task", t.Name), logx.Duration("dur", dur))
	} else {
		s.log.Trace("task completed", logx.String("task", t.Name), logx.Duration("dur", dur))
	}
	s.record(item)

	// Publish before closing the handle so waiters observe the event first.
	s.bus.Publish(eventbus.Event{Type: eventbus.TaskFinished, Time: finish, Data: TaskEvent{ID: t.ID, Name: t.Name, Started: start, Duration: dur, Error: item.Error}})
	h.finish(finish, err)
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

// Stop rejects further submissions and waits (bounded by ctx) for in-flight
// tasks. Running tasks are not interrupted unless ctx expires first.
func (s *Service) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	sup := s.sup
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Debug("task engine stopped")
	case <-ctx.Done():
		err = fmt.Errorf("engine stop: %w", ctx.Err())
		s.log.Warn("task engine stop timed out", logx.Int64("in_flight", atomic.LoadInt64(&s.running)), logx.Err(ctx.Err()))
	}
	if sup != nil {
		sup.Cancel()
	}
	return err
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.sup != nil && !s.stopped
	s.mu.Unlock()

	s.hmu.Lock()
	h := make([]HistoryItem, len(s.history))
	copy(h, s.history)
	s.hmu.Unlock()

	return Snapshot{
		Running:   running,
		Submitted: atomic.LoadUint64(&s.submitted),
		InFlight:  atomic.LoadInt64(&s.running),
		Failed:    atomic.LoadUint64(&s.failed),
		Panics:    atomic.LoadUint64(&s.panics),
		History:   h,
	}
}
