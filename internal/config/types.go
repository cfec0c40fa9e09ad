package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Executor  ExecutorConfig  `json:"executor,omitempty"`

	// Storage is optional; nil means snapshots are never persisted.
	Storage  *StorageConfig `json:"storage,omitempty"`
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// Jobs are bound at startup and reconciled by id on reload.
	Jobs []JobConfig `json:"jobs,omitempty"`

	Debug DebugConfig `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// Format is the console encoding: "pretty" (default) or "json".
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the tick driver.
//
// All durations are Go duration strings (e.g. "500ms", "1s").
//
// Defaults (when fields are omitted/zero):
//   - tick: "1s"
//   - drain: "all"
//   - run_all_delay: "0s"
//   - epoch: "unix"
type SchedulerConfig struct {
	Tick  string `json:"tick,omitempty"`
	Drain string `json:"drain,omitempty"`

	// RunAllDelay paces RunAll dispatches.
	RunAllDelay string `json:"run_all_delay,omitempty"`

	// Epoch anchors numeric snapshot timestamps: "unix", "2000" or an RFC3339 instant.
	Epoch string `json:"epoch,omitempty"`

	RunAllOnStart bool `json:"run_all_on_start,omitempty"`
}

// ExecutorConfig controls the task engine. history_size defaults to 200.
type ExecutorConfig struct {
	HistorySize int `json:"history_size,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cadence.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SnapshotConfig controls schedule persistence.
type SnapshotConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression, "@every 1m", a Go duration or an HH:MM interval.
	Schedule     string `json:"schedule,omitempty"`
	Restore      bool   `json:"restore"`
	KeepExisting bool   `json:"keep_existing,omitempty"`
	SaveOnStop   bool   `json:"save_on_stop,omitempty"`
}

// DebugConfig controls the optional HTTP endpoint serving /healthz, /status
// and pprof. Binding to a non-loopback addr requires token or allow_insecure.
//
// Defaults: addr "127.0.0.1:6060", prefix "/debug/pprof/", read_timeout "5s",
// idle_timeout "120s".
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
	MemProfileRate       int `json:"mem_profile_rate,omitempty"`
}

// JobConfig declares one recurring job.
//
//	- id: nightly-report
//	  func: log
//	  every: 1
//	  weekday: monday
//	  at: "09:00"
//	  args: ["weekly report"]
type JobConfig struct {
	ID      string         `json:"id,omitempty"`
	Func    string         `json:"func"`
	Every   int            `json:"every"`
	To      int            `json:"to,omitempty"`
	Unit    string         `json:"unit,omitempty"`
	Weekday string         `json:"weekday,omitempty"`
	At      string         `json:"at,omitempty"`
	Until   string         `json:"until,omitempty"`
	Args    []any          `json:"args,omitempty"`
	Kwargs  map[string]any `json:"kwargs,omitempty"`
}

// UnmarshalJSON rejects unknown keys (a misspelled "weekday" would silently
// change the schedule) and defaults every to 1.
func (j *JobConfig) UnmarshalJSON(b []byte) error {
	type plain JobConfig
	t := plain{Every: 1}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*j = JobConfig(t)
	return nil
}
