package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cadence/internal/eventbus"
	"cadence/internal/storage"
	logx "cadence/pkg/logx"

	"github.com/google/uuid"
)

// Records snapshots every registered job.
func (s *Scheduler) Records() []Record {
	jobs := s.Jobs()
	out := make([]Record, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Record())
	}
	return out
}

// Encode serializes every registered job as a JSON array of records.
func (s *Scheduler) Encode() ([]byte, error) {
	return EncodeRecords(s.Records())
}

// Decode restores jobs from an encoded snapshot. See Restore.
func (s *Scheduler) Decode(data []byte, keepExisting bool) (int, error) {
	records, decodeErr := DecodeRecords(data)
	if records == nil && decodeErr != nil {
		return 0, decodeErr
	}
	n, err := s.Restore(records, keepExisting)
	return n, errors.Join(decodeErr, err)
}

// Restore binds one job per record and returns how many were restored.
//
// Unless keepExisting is set, registered jobs are removed first. A record
// with a next_run keeps it verbatim; one without gets a fresh computation.
// Records that cannot be restored (unknown callable, bad unit, failed
// computation) are dropped and reported in the joined error.
func (s *Scheduler) Restore(records []Record, keepExisting bool) (int, error) {
	if !keepExisting {
		for _, j := range s.Jobs() {
			s.cancel(j, "restore replaces schedule")
		}
	}

	s.mu.Lock()
	epoch := s.cfg.Epoch
	s.mu.Unlock()

	var errs []error
	restored := 0
	for i, r := range records {
		j, err := s.fromRecord(r, epoch)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d (%s): %w", i, r.JobFuncName, err))
			continue
		}
		s.add(j)
		restored++
	}

	s.bus.Publish(eventbus.Event{Type: eventbus.ScheduleRestored, Data: restored})
	return restored, errors.Join(errs...)
}

func (s *Scheduler) fromRecord(r Record, epoch time.Time) (*Job, error) {
	fn, err := s.registry.Lookup(r.JobFuncName)
	if err != nil {
		return nil, err
	}
	unit, err := ParseUnit(r.Unit)
	if err != nil {
		return nil, err
	}

	j := newJob(r.Interval, s)
	if j.err != nil {
		return nil, j.err
	}
	if id := strings.TrimSpace(r.ID); id != "" {
		j.id = id
	} else {
		j.id = uuid.NewString()
	}
	j.unit = unit
	j.funcName = strings.TrimSpace(r.JobFuncName)
	j.fn = fn
	j.args = append([]any(nil), r.Args...)
	if r.Kwargs != nil {
		j.kwargs = r.Kwargs
	}
	if r.Latest != nil {
		j.latest = *r.Latest
		j.jitter = true
	}
	if r.StartDay != nil {
		d, err := ParseWeekday(*r.StartDay)
		if err != nil {
			return nil, err
		}
		j.startDay = d
		j.anchored = true
	}
	if r.AtTime != nil {
		at, err := ParseTimeOfDay(*r.AtTime)
		if err != nil {
			return nil, err
		}
		j.atTime = at
		j.hasAt = true
	}
	j.deadline = r.CancelAfter.Resolve(epoch)
	j.lastRun = r.LastRun.Resolve(epoch)
	j.nextRun = r.NextRun.Resolve(epoch)

	if err := j.validate(); err != nil {
		return nil, err
	}
	if j.nextRun.IsZero() {
		if err := j.scheduleNextRun(s.now(), s.randInt); err != nil {
			return nil, fmt.Errorf("calculating next run: %w", err)
		}
	}
	return j, nil
}

// SaveTo writes the encoded snapshot to st, replacing prior contents.
// Failures are returned, never retried.
func (s *Scheduler) SaveTo(ctx context.Context, st storage.Store) error {
	if st == nil {
		return storage.ErrDisabled
	}
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := st.Save(ctx, data); err != nil {
		s.log.Error("snapshot save failed", logx.Err(err))
		return fmt.Errorf("save snapshot: %w", err)
	}
	n := s.Len()
	s.log.Debug("snapshot saved", logx.Int("jobs", n), logx.Int("bytes", len(data)))
	s.bus.Publish(eventbus.Event{Type: eventbus.ScheduleSaved, Data: n})
	return nil
}

// LoadFrom restores jobs from st and returns how many were restored.
//
// Reading is best effort: a missing snapshot restores nothing, and a failed
// read or an unreadable snapshot is logged and leaves the schedule untouched.
// Records that cannot be restored are dropped and logged. The only error is
// ErrDisabled for a nil store.
func (s *Scheduler) LoadFrom(ctx context.Context, st storage.Store, keepExisting bool) (int, error) {
	if st == nil {
		return 0, storage.ErrDisabled
	}
	data, err := st.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("schedule snapshot not found")
		return 0, nil
	}
	if err != nil {
		s.log.Error("snapshot load failed, starting without it", logx.Err(err))
		return 0, nil
	}

	records, decodeErr := DecodeRecords(data)
	if records == nil && decodeErr != nil {
		s.log.Error("snapshot unreadable, starting without it", logx.Int("bytes", len(data)), logx.Err(decodeErr))
		return 0, nil
	}
	n, restoreErr := s.Restore(records, keepExisting)
	if dropped := errors.Join(decodeErr, restoreErr); dropped != nil {
		s.log.Warn("snapshot records dropped", logx.Err(dropped))
	}
	s.log.Info("schedule restored", logx.Int("jobs", n))
	return n, nil
}
