package config

import (
	"errors"
	"fmt"
	"strings"
)

var validDrivers = map[string]bool{"": true, "none": true, "file": true, "sqlite": true, "sqlite3": true}

// Validate checks shape and syntax. Scheduling semantics (units, at formats)
// are checked by the app when it binds jobs.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := ParseDurationField("scheduler.tick", c.Scheduler.Tick)
	add(err)
	_, err = ParseDurationField("scheduler.run_all_delay", c.Scheduler.RunAllDelay)
	add(err)
	if c.Executor.HistorySize < 0 {
		add(errors.New("executor.history_size must be >= 0"))
	}

	if c.Storage != nil {
		driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
		if !validDrivers[driver] {
			add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
		}
		if driver != "" && driver != "none" && strings.TrimSpace(c.Storage.Path) == "" {
			add(errors.New("storage.path required"))
		}
		_, err = ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
		add(err)
	}
	if c.Snapshot.Enabled && strings.TrimSpace(c.Snapshot.Schedule) == "" {
		add(errors.New("snapshot.schedule required when snapshot.enabled"))
	}

	seen := map[string]int{}
	for i, j := range c.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		if strings.TrimSpace(j.Func) == "" {
			add(fmt.Errorf("%s.func required", path))
		}
		if j.Every < 1 {
			add(fmt.Errorf("%s.every must be >= 1", path))
		}
		if j.To != 0 && j.To < j.Every {
			add(fmt.Errorf("%s.to must be >= every", path))
		}
		key := JobKey(j)
		if prev, dup := seen[key]; dup {
			add(fmt.Errorf("%s duplicates jobs[%d] (key %q)", path, prev, key))
		}
		seen[key] = i
	}
	return errors.Join(errs...)
}
