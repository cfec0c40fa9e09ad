package app

import (
	"errors"
	"fmt"
	"strings"

	"cadence/internal/config"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

// bindJob translates a declared job into a builder chain and binds it.
func bindJob(s *scheduler.Scheduler, jc config.JobConfig) (*scheduler.Job, error) {
	j := s.Every(jc.Every).WithID(config.JobKey(jc))
	if jc.To > 0 {
		j.To(jc.To)
	}

	switch {
	case strings.TrimSpace(jc.Weekday) != "":
		if u := strings.TrimSpace(jc.Unit); u != "" && !strings.HasPrefix(strings.ToLower(u), "week") {
			return nil, fmt.Errorf("weekday %q needs unit weeks, got %q", jc.Weekday, jc.Unit)
		}
		d, err := scheduler.ParseWeekday(jc.Weekday)
		if err != nil {
			return nil, err
		}
		j.On(d)
	case strings.TrimSpace(jc.Unit) != "":
		u, err := scheduler.ParseUnit(jc.Unit)
		if err != nil {
			return nil, err
		}
		setUnit(j, u)
	default:
		return nil, errors.New("unit or weekday required")
	}

	if at := strings.TrimSpace(jc.At); at != "" {
		j.At(at)
	}
	if until := strings.TrimSpace(jc.Until); until != "" {
		j.UntilString(until)
	}
	if len(jc.Kwargs) > 0 {
		j.Kwargs(jc.Kwargs)
	}
	return j.Do(jc.Func, jc.Args...)
}

func setUnit(j *scheduler.Job, u scheduler.Unit) {
	switch u {
	case scheduler.Seconds:
		j.Seconds()
	case scheduler.Minutes:
		j.Minutes()
	case scheduler.Hours:
		j.Hours()
	case scheduler.Days:
		j.Days()
	case scheduler.Weeks:
		j.Weeks()
	}
}

// bindDeclared binds every declared job whose key is not already scheduled
// (a restored snapshot wins over the file so run history survives restarts).
func bindDeclared(s *scheduler.Scheduler, jobs []config.JobConfig, log logx.Logger) (int, error) {
	var errs []error
	bound := 0
	for i, jc := range jobs {
		key := config.JobKey(jc)
		if _, ok := s.Get(key); ok {
			log.Debug("declared job already restored", logx.String("job", key))
			continue
		}
		if _, err := bindJob(s, jc); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d] (%s): %w", i, key, err))
			continue
		}
		bound++
	}
	return bound, errors.Join(errs...)
}

// reconcileJobs applies a reload: every changed key is cancelled and, if
// still declared, bound again from its new declaration.
func reconcileJobs(s *scheduler.Scheduler, next []config.JobConfig, changed []string, log logx.Logger) error {
	declared := make(map[string]config.JobConfig, len(next))
	for _, jc := range next {
		declared[config.JobKey(jc)] = jc
	}

	var errs []error
	for _, key := range changed {
		if s.CancelByID(key) {
			log.Info("declared job removed", logx.String("job", key))
		}
		jc, ok := declared[key]
		if !ok {
			continue
		}
		j, err := bindJob(s, jc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		log.Info("declared job bound", logx.String("job", key), logx.String("schedule", j.String()))
	}
	return errors.Join(errs...)
}

// validateJobs dry-runs every declaration against a throwaway scheduler that
// shares the real registry.
func validateJobs(reg *scheduler.Registry, jobs []config.JobConfig) error {
	dry := scheduler.New(scheduler.WithRegistry(reg), scheduler.WithLogger(logx.Nop()))
	var errs []error
	for i, jc := range jobs {
		if _, err := bindJob(dry, jc); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d] (%s): %w", i, config.JobKey(jc), err))
		}
	}
	return errors.Join(errs...)
}
