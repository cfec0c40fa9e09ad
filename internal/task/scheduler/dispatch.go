package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"cadence/internal/eventbus"
	"cadence/internal/task/engine"
	logx "cadence/pkg/logx"
)

// dispatch is one handed-off execution of a job callable.
type dispatch struct {
	job    *Job
	handle *engine.Handle
	// result is written by the task before its handle finishes.
	result Result
}

// RunPending runs one tick: every due job is dispatched in next-run order,
// finished dispatches are reaped and, under DrainAll, the tick returns only
// once every outstanding dispatch has finished.
//
// Missed runs are not backfilled: a job that became due several times since
// the last tick runs once.
//
// A next-run recomputation error aborts the tick and is returned as is.
func (s *Scheduler) RunPending(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	var due []*Job
	for _, j := range s.Jobs() {
		if j.ShouldRun(now) {
			due = append(due, j)
		}
	}
	sort.SliceStable(due, func(a, b int) bool { return due[a].NextRun().Before(due[b].NextRun()) })

	for _, j := range due {
		if _, err := s.runJob(j); err != nil {
			return err
		}
	}

	s.prune()

	s.mu.Lock()
	drain := s.cfg.Drain
	s.mu.Unlock()
	if drain == DrainAll {
		return s.drain(ctx)
	}
	return nil
}

// RunAll dispatches every job once regardless of whether it is due, waiting
// for each dispatch before starting the next and keeping delay between them.
func (s *Scheduler) RunAll(ctx context.Context, delay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	jobs := s.Jobs()
	s.log.Debug("running all jobs", logx.Int("jobs", len(jobs)), logx.Duration("delay", delay))

	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := s.runJob(j)
		if err != nil {
			return err
		}
		if d != nil {
			if err := d.handle.Wait(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if i < len(jobs)-1 {
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
	}
	s.prune()
	return nil
}

// sleepCtx waits d, or returns ctx.Err() if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunForever ticks, then sleeps Config.Tick, until ctx is done or a tick fails.
func (s *Scheduler) RunForever(ctx context.Context) error {
	for {
		if err := s.RunPending(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		tick := s.cfg.Tick
		s.mu.Unlock()

		if err := sleepCtx(ctx, tick); err != nil {
			return err
		}
	}
}

// runJob dispatches j once. It returns a nil dispatch when the job was
// cancelled instead of invoked.
func (s *Scheduler) runJob(j *Job) (*dispatch, error) {
	if !s.has(j) {
		return nil, nil
	}

	j.mu.Lock()
	now := s.now()
	if j.overdue(now) {
		j.mu.Unlock()
		s.cancel(j, "deadline passed")
		return nil, nil
	}

	d := &dispatch{job: j}
	call := Call{
		JobID:     j.id,
		Func:      j.funcName,
		Args:      append([]any(nil), j.args...),
		Kwargs:    maps.Clone(j.kwargs),
		Scheduled: j.nextRun,
		Started:   now,
	}
	fn := j.fn
	if fn == nil {
		j.mu.Unlock()
		return nil, scheduleErrorf("job %s has no callable bound", call.JobID)
	}
	h, err := s.exec.Submit(engine.Task{
		Name: "job." + call.Func,
		Run: func(ctx context.Context) error {
			res, err := fn(ctx, call)
			d.result = res
			return err
		},
	})
	if err != nil {
		j.mu.Unlock()
		return nil, fmt.Errorf("dispatch job %s: %w", call.JobID, err)
	}
	d.handle = h

	j.lastRun = s.now()
	err = j.scheduleNextRun(s.now(), s.randInt)
	next := j.nextRun
	cancel := err == nil && j.overdue(next)
	j.mu.Unlock()

	s.mu.Lock()
	s.outstanding = append(s.outstanding, d)
	s.mu.Unlock()

	s.log.Debug("job dispatched", logx.String("job", call.JobID), logx.String("func", call.Func), logx.String("task", h.ID()), logx.Time("next_run", next))
	s.bus.Publish(eventbus.Event{Type: eventbus.JobDispatched, Data: call.JobID})

	if err != nil {
		return d, fmt.Errorf("reschedule job %s: %w", call.JobID, err)
	}
	if cancel {
		s.cancel(j, "next run past deadline")
	}
	return d, nil
}

// prune drops finished dispatches and applies their outcome.
func (s *Scheduler) prune() {
	s.mu.Lock()
	var finished []*dispatch
	kept := s.outstanding[:0]
	for _, d := range s.outstanding {
		if d.handle.Finished() {
			finished = append(finished, d)
		} else {
			kept = append(kept, d)
		}
	}
	for i := len(kept); i < len(s.outstanding); i++ {
		s.outstanding[i] = nil
	}
	s.outstanding = kept
	s.mu.Unlock()

	for _, d := range finished {
		s.reap(d)
	}
}

func (s *Scheduler) reap(d *dispatch) {
	if err := d.handle.Err(); err != nil {
		var pe *engine.PanicError
		if errors.As(err, &pe) {
			s.log.Error("job panicked", logx.String("job", d.job.ID()), logx.Any("panic", pe.Value))
		} else {
			s.log.Warn("job failed", logx.String("job", d.job.ID()), logx.String("func", d.job.FuncName()), logx.Err(err))
		}
	}
	if d.result == Cancel {
		s.cancel(d.job, "callable returned cancel")
	}
}

// drain waits for every outstanding dispatch, then reaps them.
func (s *Scheduler) drain(ctx context.Context) error {
	s.mu.Lock()
	pending := append([]*dispatch(nil), s.outstanding...)
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	s.log.Debug("jobs to await", logx.Int("count", len(pending)))
	for _, d := range pending {
		select {
		case <-d.handle.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.prune()
	return nil
}
