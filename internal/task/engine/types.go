package engine

import (
	"context"
	"time"
)

// Config controls the task execution engine.
type Config struct {
	// HistorySize bounds the ring of finished tasks kept for diagnostics.
	HistorySize int
}

// Task is a unit of work executed by the engine.
//
// Run receives the engine context; it is canceled only when the process
// shuts the engine down, never to preempt a slow task.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

type HistoryItem struct {
	ID       string
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

// TaskEvent is emitted on the event bus when a task finishes.
type TaskEvent struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Running   bool
	Submitted uint64
	InFlight  int64
	Failed    uint64
	Panics    uint64

	History []HistoryItem
}
