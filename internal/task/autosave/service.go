package autosave

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cadence/internal/eventbus"
	"cadence/internal/runtime/supervisor"
	"cadence/internal/storage"
	logx "cadence/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Config controls snapshot autosaving.
type Config struct {
	Enabled    bool
	Schedule   string
	SaveOnStop bool
}

// Saver writes the current schedule to a store. *scheduler.Scheduler
// implements it.
type Saver interface {
	SaveTo(ctx context.Context, st storage.Store) error
}

// Status is a point-in-time view of the service.
type Status struct {
	Running bool
	Trigger string
	Next    time.Time
	Dirty   bool
	Saves   uint64
	Failed  uint64
}

type Service struct {
	mu sync.Mutex

	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	saver Saver
	store storage.Store

	base    context.Context
	c       *cron.Cron
	trigger Trigger
	sup     *supervisor.Supervisor
	events  <-chan eventbus.Event
	unsub   func()

	dirty  atomic.Bool
	saves  atomic.Uint64
	failed atomic.Uint64
}

func New(cfg Config, saver Saver, store storage.Store, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log.With(logx.String("comp", "autosave")),
		bus:   bus,
		saver: saver,
		store: store,
	}
}

// Start subscribes to job changes and starts the trigger. It is a no-op when
// autosave is disabled, there is no store, or it is already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = ctx
	return s.startLocked(ctx)
}

func (s *Service) startLocked(ctx context.Context) error {
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled || s.store == nil {
		s.log.Debug("autosave disabled", logx.Bool("enabled", s.cfg.Enabled), logx.Bool("store", s.store != nil))
		return nil
	}
	trig, err := ParseTrigger(s.cfg.Schedule)
	if err != nil {
		return err
	}
	sched, err := trig.Schedule()
	if err != nil {
		return err
	}

	sup := supervisor.NewSupervisor(ctx, supervisor.WithLogger(s.log))
	events, unsub := s.bus.Subscribe(64)
	sup.Go0("autosave.events", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				s.observe(e)
			}
		}
	})

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	runCtx := sup.Context()
	c.Schedule(sched, cron.FuncJob(func() {
		if err := s.Flush(runCtx); err != nil {
			s.log.Warn("autosave failed", logx.Err(err))
		}
	}))
	c.Start()

	s.c, s.trigger, s.sup, s.events, s.unsub = c, trig, sup, events, unsub
	// Jobs bound before Start produced no events we could see.
	s.dirty.Store(true)
	s.log.Info("autosave started", logx.String("trigger", trig.String()), logx.String("source", trig.Source))
	return nil
}

// Stop halts the trigger, waits for a running save and, when SaveOnStop is
// set, writes any pending changes.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.c != nil
	s.base = nil
	s.stopLocked(ctx)
	saveOnStop := s.cfg.SaveOnStop
	s.mu.Unlock()

	if !running || !saveOnStop {
		return nil
	}
	return s.Flush(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.c == nil {
		return
	}
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
	_ = s.sup.Stop(ctx)
	// Changes published right before stop may still sit in the buffer.
	for drained := false; !drained; {
		select {
		case e, ok := <-s.events:
			if !ok {
				drained = true
				break
			}
			s.observe(e)
		default:
			drained = true
		}
	}
	s.unsub()
	s.c, s.sup, s.events, s.unsub = nil, nil, nil, nil
	s.log.Info("autosave stopped")
}

// Apply swaps the config. After Start, a changed config restarts the trigger
// under the original start context; ctx only bounds the stop.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if old == cfg || s.base == nil {
		return nil
	}
	s.stopLocked(ctx)
	return s.startLocked(s.base)
}

func (s *Service) observe(e eventbus.Event) {
	if e.Is("job") || e.Type == eventbus.ScheduleRestored {
		s.dirty.Store(true)
	}
}

// MarkDirty forces the next Flush to save.
func (s *Service) MarkDirty() { s.dirty.Store(true) }

// Flush saves the schedule if it changed since the last successful save.
// A failed save leaves the service dirty so the next trigger tries again.
func (s *Service) Flush(ctx context.Context) error {
	if s.store == nil {
		return storage.ErrDisabled
	}
	if !s.dirty.Swap(false) {
		return nil
	}
	start := time.Now()
	if err := s.saver.SaveTo(ctx, s.store); err != nil {
		s.dirty.Store(true)
		s.failed.Add(1)
		return err
	}
	s.saves.Add(1)
	s.log.Debug("snapshot flushed", logx.Duration("took", time.Since(start)))
	return nil
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running: s.c != nil,
		Dirty:   s.dirty.Load(),
		Saves:   s.saves.Load(),
		Failed:  s.failed.Load(),
	}
	if s.c != nil {
		st.Trigger = s.trigger.String()
		if entries := s.c.Entries(); len(entries) > 0 {
			st.Next = entries[0].Next
		}
	}
	return st
}
