package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cadence/internal/config"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 2024-01-03 is a Wednesday.
var wednesday = time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)

func testScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	reg := scheduler.NewRegistry()
	require.NoError(t, registerBuiltins(reg, logx.Nop(), &fakeUnits{}))
	return scheduler.New(
		scheduler.WithRegistry(reg),
		scheduler.WithClock(fixedClock{t: wednesday}),
		scheduler.WithLogger(logx.Nop()),
	)
}

func TestBindJob(t *testing.T) {
	t.Parallel()

	s := testScheduler(t)

	j, err := bindJob(s, config.JobConfig{ID: "report", Func: "log", Every: 1, Weekday: "Monday", At: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, "report", j.ID())
	assert.Equal(t, scheduler.Weeks, j.Unit())
	assert.Equal(t, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), j.NextRun())

	j, err = bindJob(s, config.JobConfig{Func: "noop", Every: 1, Unit: "day", At: "03:30"})
	require.NoError(t, err)
	assert.Equal(t, scheduler.Days, j.Unit())
	assert.Equal(t, time.Date(2024, 1, 4, 3, 30, 0, 0, time.UTC), j.NextRun())
	assert.True(t, strings.HasPrefix(j.ID(), "cfg-"), "anonymous jobs get a content key")

	j, err = bindJob(s, config.JobConfig{ID: "jitter", Func: "noop", Every: 5, To: 10, Unit: "minutes", Kwargs: map[string]any{"once": true}})
	require.NoError(t, err)
	latest, ok := j.Latest()
	assert.True(t, ok)
	assert.Equal(t, 10, latest)
	assert.Equal(t, map[string]any{"once": true}, j.NamedArgs())

	assert.Equal(t, 3, s.Len())
}

func TestBindJobRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		jc      config.JobConfig
		wantErr error
		msg     string
	}{
		{name: "no unit", jc: config.JobConfig{Func: "noop", Every: 1}, msg: "unit or weekday required"},
		{name: "weekday with days", jc: config.JobConfig{Func: "noop", Every: 1, Unit: "days", Weekday: "friday"}, msg: "needs unit weeks"},
		{name: "weekday every 2", jc: config.JobConfig{Func: "noop", Every: 2, Weekday: "friday"}, wantErr: scheduler.ErrInterval},
		{name: "bad weekday", jc: config.JobConfig{Func: "noop", Every: 1, Weekday: "someday"}, wantErr: scheduler.ErrValue},
		{name: "bad unit", jc: config.JobConfig{Func: "noop", Every: 1, Unit: "fortnights"}, wantErr: scheduler.ErrValue},
		{name: "bad at", jc: config.JobConfig{Func: "noop", Every: 1, Unit: "days", At: "25:00"}, wantErr: scheduler.ErrValue},
		{name: "past until", jc: config.JobConfig{Func: "noop", Every: 1, Unit: "hours", Until: "2023-12-31"}, wantErr: scheduler.ErrValue},
		{name: "unknown func", jc: config.JobConfig{Func: "launch", Every: 1, Unit: "hours"}, wantErr: scheduler.ErrUnknownFunc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testScheduler(t)
			_, err := bindJob(s, tt.jc)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
			assert.Zero(t, s.Len())
		})
	}
}

func TestBindDeclaredSkipsRestored(t *testing.T) {
	t.Parallel()

	s := testScheduler(t)
	_, err := s.Every(3).Hours().WithID("heartbeat").Do("noop")
	require.NoError(t, err)

	jobs := []config.JobConfig{
		{ID: "heartbeat", Func: "log", Every: 10, Unit: "minutes"},
		{ID: "cleanup", Func: "noop", Every: 1, Unit: "days"},
		{ID: "broken", Func: "nope", Every: 1, Unit: "days"},
	}
	n, err := bindDeclared(s, jobs, logx.Nop())
	assert.ErrorIs(t, err, scheduler.ErrUnknownFunc)
	assert.ErrorContains(t, err, "jobs[2] (broken)")
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, s.Len())

	j, ok := s.Get("heartbeat")
	require.True(t, ok)
	assert.Equal(t, scheduler.Hours, j.Unit(), "restored job wins")
}

func TestReconcileJobs(t *testing.T) {
	t.Parallel()

	s := testScheduler(t)
	prev := []config.JobConfig{
		{ID: "a", Func: "noop", Every: 1, Unit: "hours"},
		{ID: "b", Func: "noop", Every: 1, Unit: "hours"},
		{ID: "c", Func: "noop", Every: 1, Unit: "hours"},
	}
	_, err := bindDeclared(s, prev, logx.Nop())
	require.NoError(t, err)

	next := []config.JobConfig{
		{ID: "a", Func: "noop", Every: 1, Unit: "hours"},
		{ID: "b", Func: "noop", Every: 30, Unit: "minutes"},
		{ID: "d", Func: "noop", Every: 1, Unit: "days"},
	}
	_, _, changed := config.SummarizeConfigChange(&config.Config{Jobs: prev}, &config.Config{Jobs: next})
	assert.ElementsMatch(t, []string{"b", "c", "d"}, changed)

	require.NoError(t, reconcileJobs(s, next, changed, logx.Nop()))

	var ids []string
	for _, j := range s.Jobs() {
		ids = append(ids, j.ID())
	}
	assert.ElementsMatch(t, []string{"a", "b", "d"}, ids)
	b, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, scheduler.Minutes, b.Unit())
	assert.Equal(t, 30, b.Interval())
}

func TestValidateJobsIsDryRun(t *testing.T) {
	t.Parallel()

	reg := scheduler.NewRegistry()
	require.NoError(t, registerBuiltins(reg, logx.Nop(), &fakeUnits{}))

	err := validateJobs(reg, []config.JobConfig{
		{ID: "ok", Func: "noop", Every: 1, Unit: "hours"},
		{ID: "bad", Func: "noop", Every: 1, Unit: "days", At: "noon"},
	})
	assert.ErrorIs(t, err, scheduler.ErrValue)
	assert.ErrorContains(t, err, "jobs[1] (bad)")
	assert.NoError(t, validateJobs(reg, nil))
}

const appConfig = `
logging:
  level: error
  console: false
scheduler:
  tick: 50ms
storage:
  driver: file
  path: %s
snapshot:
  enabled: true
  schedule: 1h
  restore: true
  save_on_stop: true
jobs:
%s
`

func writeConfig(t *testing.T, path, snapshot, jobs string) {
	t.Helper()
	body := strings.Replace(strings.Replace(appConfig, "%s", snapshot, 1), "%s", jobs, 1)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func startApp(t *testing.T, cfgPath string, opts Options) *App {
	t.Helper()
	a, err := New(cfgPath, opts)
	require.NoError(t, err)
	require.NoError(t, a.Start(t.Context()))
	return a
}

func stopApp(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.Stop(t.Context(), StopRunOnce))
}

func TestAppPersistsAndRestores(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	snapshot := filepath.Join(dir, "data", "schedule.json")

	writeConfig(t, cfgPath, snapshot, `
  - id: heartbeat
    func: noop
    every: 10
    unit: minutes
  - id: report
    func: log
    weekday: monday
    at: "09:00"
    args: ["weekly"]`)

	a := startApp(t, cfgPath, Options{})
	assert.Equal(t, 2, a.Scheduler().Len())
	restored, ok := a.Scheduler().Get("report")
	require.True(t, ok)
	want := restored.NextRun()
	stopApp(t, a)

	data, err := os.ReadFile(snapshot)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"heartbeat"`)
	assert.Contains(t, string(data), `"id":"report"`)

	writeConfig(t, cfgPath, snapshot, `
  - id: heartbeat
    func: noop
    every: 10
    unit: minutes
  - id: report
    func: log
    weekday: monday
    at: "09:00"
    args: ["weekly"]
  - id: cleanup
    func: noop
    every: 1
    unit: day`)

	b := startApp(t, cfgPath, Options{})
	defer stopApp(t, b)
	assert.Equal(t, 3, b.Scheduler().Len(), "restored jobs are not bound twice")
	got, ok := b.Scheduler().Get("report")
	require.True(t, ok)
	assert.True(t, want.Equal(got.NextRun()), "restored next run %s, want %s", got.NextRun(), want)
	_, ok = b.Scheduler().Get("cleanup")
	assert.True(t, ok)
}

func TestAppStartsWithCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	snapshot := filepath.Join(dir, "schedule.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{not json`), 0o644))

	writeConfig(t, cfgPath, snapshot, `
  - id: heartbeat
    func: noop
    every: 10
    unit: minutes`)

	a := startApp(t, cfgPath, Options{})
	assert.Equal(t, 1, a.Scheduler().Len())
	_, ok := a.Scheduler().Get("heartbeat")
	assert.True(t, ok)
	stopApp(t, a)

	data, err := os.ReadFile(snapshot)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"heartbeat"`, "save on stop replaces the unreadable snapshot")
}

func TestAppRejectsUnknownFunc(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	writeConfig(t, cfgPath, filepath.Join(dir, "schedule.json"), `
  - id: launch
    func: rockets
    every: 1
    unit: hours`)

	_, err := New(cfgPath, Options{})
	assert.ErrorIs(t, err, scheduler.ErrUnknownFunc)
}

func TestAppRunAllOnStartCancelsOnceJobs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	writeConfig(t, cfgPath, filepath.Join(dir, "schedule.json"), `
  - id: bootstrap
    func: noop
    every: 1
    unit: hours
    kwargs:
      once: true
  - id: heartbeat
    func: noop
    every: 1
    unit: hours`)

	a := startApp(t, cfgPath, Options{RunAllOnStart: true})
	defer stopApp(t, a)

	_, ok := a.Scheduler().Get("bootstrap")
	assert.False(t, ok, "once job cancels itself after its first run")
	hb, ok := a.Scheduler().Get("heartbeat")
	require.True(t, ok)
	assert.False(t, hb.LastRun().IsZero())
}

func TestAppApplyConfigReconcilesJobs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	snapshot := filepath.Join(dir, "schedule.json")
	writeConfig(t, cfgPath, snapshot, `
  - id: a
    func: noop
    every: 1
    unit: hours
  - id: b
    func: noop
    every: 1
    unit: hours`)

	a := startApp(t, cfgPath, Options{})
	defer stopApp(t, a)

	writeConfig(t, cfgPath, snapshot, `
  - id: a
    func: noop
    every: 1
    unit: hours
  - id: c
    func: noop
    every: 2
    unit: days`)
	next, err := a.cfgm.Parse()
	require.NoError(t, err)
	a.applyConfig(t.Context(), next)

	_, ok := a.Scheduler().Get("b")
	assert.False(t, ok)
	c, ok := a.Scheduler().Get("c")
	require.True(t, ok)
	assert.Equal(t, scheduler.Days, c.Unit())
	assert.Equal(t, 2, a.Scheduler().Len())
	assert.Same(t, next, a.currentConfig())
}

func TestStopBeforeStart(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	writeConfig(t, cfgPath, filepath.Join(dir, "schedule.json"), "  []")

	a, err := New(cfgPath, Options{})
	require.NoError(t, err)
	assert.NoError(t, a.Stop(t.Context(), StopUnknown))
	select {
	case <-a.Done():
	default:
		t.Fatal("Done must be closed for an app that never started")
	}
}

func TestMapDebugConfig(t *testing.T) {
	t.Parallel()

	out, err := mapDebugConfig(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6060", out.Addr)
	assert.Equal(t, "/debug/pprof/", out.Prefix)
	assert.Equal(t, 5*time.Second, out.ReadTimeout)
	assert.Equal(t, 120*time.Second, out.IdleTimeout)

	_, err = mapDebugConfig(&config.Config{Debug: config.DebugConfig{Enabled: true, Addr: "0.0.0.0:6060"}})
	assert.ErrorContains(t, err, "non-loopback")
	_, err = mapDebugConfig(&config.Config{Debug: config.DebugConfig{Enabled: true, Addr: "0.0.0.0:6060", Token: "t"}})
	assert.NoError(t, err)
	_, err = mapDebugConfig(&config.Config{Debug: config.DebugConfig{Enabled: true, Addr: "6060"}})
	assert.ErrorContains(t, err, "debug.addr")
	_, err = mapDebugConfig(&config.Config{Debug: config.DebugConfig{ReadTimeout: "soon"}})
	assert.Error(t, err)
	_, err = mapDebugConfig(&config.Config{Debug: config.DebugConfig{BlockProfileRate: -1}})
	assert.Error(t, err)
}

func TestAppStatus(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cadence.yaml")
	writeConfig(t, cfgPath, filepath.Join(dir, "schedule.json"), `
  - id: heartbeat
    func: noop
    every: 10
    unit: minutes`)

	a := startApp(t, cfgPath, Options{})
	defer stopApp(t, a)

	st := a.Status()
	require.Len(t, st.Jobs, 1)
	assert.Equal(t, "heartbeat", st.Jobs[0].ID)
	assert.Equal(t, "noop", st.Jobs[0].Func)
	assert.Nil(t, st.Jobs[0].LastRun)
	require.NotNil(t, st.NextRun)
	assert.True(t, st.NextRun.Equal(st.Jobs[0].NextRun))
	assert.True(t, st.Engine.Running)
	assert.True(t, st.Autosave.Running)
	assert.Equal(t, "@every 1h0m0s", st.Autosave.Trigger)
}
