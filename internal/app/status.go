package app

import (
	"time"

	"cadence/internal/task/autosave"
	"cadence/internal/task/engine"
)

// JobStatus is one row of the /status view.
type JobStatus struct {
	ID       string     `json:"id"`
	Func     string     `json:"func"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  time.Time  `json:"next_run"`
}

type Status struct {
	Jobs        []JobStatus     `json:"jobs"`
	NextRun     *time.Time      `json:"next_run,omitempty"`
	IdleSeconds *float64        `json:"idle_seconds,omitempty"`
	Outstanding int             `json:"outstanding"`
	Engine      engine.Snapshot `json:"engine"`
	Autosave    autosave.Status `json:"autosave"`
}

// Status reports the live schedule, executor counters and autosave state.
func (a *App) Status() Status {
	jobs := a.sched.Jobs()
	st := Status{
		Jobs:        make([]JobStatus, 0, len(jobs)),
		Outstanding: a.sched.Outstanding(),
		Engine:      a.engine.Snapshot(),
		Autosave:    a.autosave.Status(),
	}
	for _, j := range jobs {
		row := JobStatus{ID: j.ID(), Func: j.FuncName(), Schedule: j.String(), NextRun: j.NextRun()}
		if last := j.LastRun(); !last.IsZero() {
			row.LastRun = &last
		}
		st.Jobs = append(st.Jobs, row)
	}
	if next, ok := a.sched.NextRun(); ok {
		st.NextRun = &next
	}
	if idle, ok := a.sched.IdleSeconds(); ok {
		st.IdleSeconds = &idle
	}
	return st
}
