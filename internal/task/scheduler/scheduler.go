package scheduler

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"cadence/internal/eventbus"
	"cadence/internal/task/engine"
	logx "cadence/pkg/logx"
)

// DrainPolicy decides whether a tick waits for outstanding dispatches.
type DrainPolicy int

const (
	// DrainAll makes every tick wait for all outstanding dispatches, including
	// ones from earlier ticks, before returning.
	DrainAll DrainPolicy = iota
	// DrainNone only prunes finished dispatches; ticks never block on jobs.
	DrainNone
)

func (p DrainPolicy) String() string {
	if p == DrainNone {
		return "none"
	}
	return "all"
}

// ParseDrainPolicy accepts "all" (or empty) and "none".
func ParseDrainPolicy(s string) (DrainPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return DrainAll, nil
	case "none":
		return DrainNone, nil
	}
	return DrainAll, valueErrorf("invalid drain policy %q (valid: all, none)", s)
}

// Config controls the scheduler. The zero value is usable.
type Config struct {
	// Tick is the delay RunForever sleeps between ticks (default 1s).
	Tick  time.Duration
	Drain DrainPolicy
	// Epoch is the reference instant of numeric snapshot timestamps (default Unix epoch).
	Epoch time.Time
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.Epoch.IsZero() {
		c.Epoch = time.Unix(0, 0).UTC()
	}
	return c
}

// Executor runs dispatched callables. *engine.Service implements it.
type Executor interface {
	Submit(t engine.Task) (*engine.Handle, error)
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithRand sets the source used for jitter draws.
func WithRand(src rand.Source) Option { return func(s *Scheduler) { s.rng = rand.New(src) } }

func WithExecutor(e Executor) Option { return func(s *Scheduler) { s.exec = e } }

func WithBus(b eventbus.Bus) Option { return func(s *Scheduler) { s.bus = b } }

func WithLogger(l logx.Logger) Option { return func(s *Scheduler) { s.log = l } }

func WithRegistry(r *Registry) Option { return func(s *Scheduler) { s.registry = r } }

func WithConfig(c Config) Option { return func(s *Scheduler) { s.cfg = c } }

// Scheduler owns the registered jobs and the outstanding dispatches.
type Scheduler struct {
	// tickMu serializes ticks and RunAll so that they never overlap.
	tickMu sync.Mutex

	mu          sync.Mutex
	cfg         Config
	jobs        []*Job
	outstanding []*dispatch

	clock    Clock
	exec     Executor
	bus      eventbus.Bus
	log      logx.Logger
	registry *Registry

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, o := range opts {
		o(s)
	}
	s.cfg = s.cfg.withDefaults()
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "scheduler"))
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.exec == nil {
		s.exec = engine.New(engine.Config{}, s.log, s.bus)
	}
	return s
}

func (s *Scheduler) now() time.Time { return s.clock.Now().UTC() }

func (s *Scheduler) randInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	if s.rng == nil {
		return lo + rand.IntN(hi-lo+1)
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return lo + s.rng.IntN(hi-lo+1)
}

func (s *Scheduler) Registry() *Registry { return s.registry }

func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply swaps the runtime config. It takes effect on the next tick.
func (s *Scheduler) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Debug("config applied", logx.Duration("tick", cfg.Tick), logx.String("drain", cfg.Drain.String()))
}

// Every starts the configuration of a new job.
func (s *Scheduler) Every(interval int) *Job {
	return newJob(interval, s)
}

// add registers j. The job set holds one entry per job and per id: binding a
// registered job again only reschedules it, and a different job with the
// same id takes the old one's place.
func (s *Scheduler) add(j *Job) {
	id := j.ID()
	var replaced *Job
	s.mu.Lock()
	idx := -1
	for i, cur := range s.jobs {
		if cur == j || cur.ID() == id {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		s.jobs = append(s.jobs, j)
	case s.jobs[idx] != j:
		replaced = s.jobs[idx]
		s.jobs[idx] = j
	}
	s.mu.Unlock()

	if replaced != nil {
		s.log.Debug("job replaced", logx.String("job", id))
		s.bus.Publish(eventbus.Event{Type: eventbus.JobCancelled, Data: id})
	}
	s.log.Debug("job scheduled", logx.String("job", id), logx.String("func", j.FuncName()), logx.Time("next_run", j.NextRun()))
	s.bus.Publish(eventbus.Event{Type: eventbus.JobScheduled, Data: id})
}

// CancelJob removes j. Cancelling a job that is not registered is a no-op.
func (s *Scheduler) CancelJob(j *Job) {
	s.cancel(j, "cancelled")
}

// CancelByID removes the job with the given id and reports whether it existed.
func (s *Scheduler) CancelByID(id string) bool {
	j, ok := s.Get(id)
	if ok {
		s.cancel(j, "cancelled")
	}
	return ok
}

func (s *Scheduler) cancel(j *Job, reason string) {
	if j == nil {
		return
	}
	s.mu.Lock()
	removed := false
	for i, cur := range s.jobs {
		if cur == j {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if !removed {
		s.log.Debug("cancelling not-scheduled job", logx.String("job", j.ID()))
		return
	}
	s.log.Debug("job cancelled", logx.String("job", j.ID()), logx.String("reason", reason))
	s.bus.Publish(eventbus.Event{Type: eventbus.JobCancelled, Data: j.ID()})
}

// Clear removes every job. Outstanding dispatches are still tracked.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	n := len(s.jobs)
	s.jobs = nil
	s.mu.Unlock()
	s.log.Debug("deleting all jobs", logx.Int("jobs", n))
}

// Jobs returns the registered jobs in registration order.
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

func (s *Scheduler) Get(id string) (*Job, bool) {
	for _, j := range s.Jobs() {
		if j.ID() == id {
			return j, true
		}
	}
	return nil, false
}

func (s *Scheduler) has(j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.jobs {
		if cur == j {
			return true
		}
	}
	return false
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Outstanding is the number of tracked dispatches not yet reaped.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// NextRun is the earliest next run across all jobs.
func (s *Scheduler) NextRun() (time.Time, bool) {
	var best time.Time
	for _, j := range s.Jobs() {
		if n := j.NextRun(); best.IsZero() || n.Before(best) {
			best = n
		}
	}
	return best, !best.IsZero()
}

// IdleSeconds is the time until NextRun, in seconds. It is negative when a
// job is already due and undefined (false) when no job is registered.
func (s *Scheduler) IdleSeconds() (float64, bool) {
	next, ok := s.NextRun()
	if !ok {
		return 0, false
	}
	return next.Sub(s.now()).Seconds(), true
}
