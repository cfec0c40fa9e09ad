package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cadence/internal/storage"
	logx "cadence/pkg/logx"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreTarget(t *testing.T, clock Clock, cfg Config) *Scheduler {
	t.Helper()
	s := newTestScheduler(t, clock, WithConfig(cfg))
	require.NoError(t, s.Registry().Register("noop", noop))
	require.NoError(t, s.Registry().Register("report", noop))
	return s
}

func TestRecordShape(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, newFakeClock(wednesday))
	j, err := s.Every(3).Hours().DoFunc("report", noop, "daily")
	require.NoError(t, err)

	b, err := json.Marshal(j.Record())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, j.ID(), m["id"])
	assert.EqualValues(t, 3, m["interval"])
	assert.Nil(t, m["latest"])
	assert.Contains(t, m, "latest")
	assert.Equal(t, []any{"daily"}, m["args"])
	assert.Equal(t, map[string]any{}, m["kwargs"])
	assert.Equal(t, "report", m["job_func_name"])
	assert.Equal(t, "hours", m["unit"])
	assert.Contains(t, m, "start_day")
	assert.Nil(t, m["start_day"])
	assert.Contains(t, m, "cancel_after")
	assert.NotContains(t, m, "at_time")
	assert.NotContains(t, m, "last_run")
	assert.Equal(t, "2024-01-03T03:00:00Z", m["next_run"])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(wednesday.Add(8 * time.Hour))
	src := newTestScheduler(t, clock)
	_, err := src.Every(1).Monday().At("09:00").UntilString("2024-02-01").DoFunc("report", noop, "weekly", 1.5)
	require.NoError(t, err)
	_, err = src.Every(2).To(7).Minutes().Kwargs(map[string]any{"region": "eu"}).DoFunc("noop", noop)
	require.NoError(t, err)
	ran, err := src.Every(1).Day().At("10:30:15").DoFunc("noop", noop)
	require.NoError(t, err)

	clock.Set(ran.NextRun())
	require.NoError(t, src.RunPending(t.Context()))
	require.Equal(t, 3, src.Len())

	data, err := src.Encode()
	require.NoError(t, err)

	// Restored in a later process: recomputing would shift every schedule.
	dst := restoreTarget(t, newFakeClock(wednesday.Add(72*time.Hour)), Config{})
	n, err := dst.Decode(data, false)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	want, got := src.Jobs(), dst.Jobs()
	for i := range want {
		assert.Equal(t, want[i].ID(), got[i].ID())
		assert.Equal(t, want[i].NextRun(), got[i].NextRun())
		assert.Equal(t, want[i].LastRun(), got[i].LastRun())
		wantJSON, err := json.Marshal(want[i].Record())
		require.NoError(t, err)
		gotJSON, err := json.Marshal(got[i].Record())
		require.NoError(t, err)
		assert.JSONEq(t, string(wantJSON), string(gotJSON))
	}
	day, ok := got[0].StartDay()
	assert.True(t, ok)
	assert.Equal(t, time.Monday, day)
	latest, ok := got[1].Latest()
	assert.True(t, ok)
	assert.Equal(t, 7, latest)
	assert.Equal(t, map[string]any{"region": "eu"}, got[1].NamedArgs())
}

func TestRestoreComputesMissingNextRun(t *testing.T) {
	t.Parallel()

	now := wednesday.Add(8 * time.Hour)
	s := restoreTarget(t, newFakeClock(now), Config{})
	n, err := s.Decode([]byte(`[
		{"interval": 5, "latest": null, "args": [], "kwargs": {}, "job_func_name": "noop",
		 "unit": "minutes", "start_day": null, "cancel_after": null}
	]`), false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	j := s.Jobs()[0]
	assert.Equal(t, now.Add(5*time.Minute), j.NextRun())
	assert.NotEmpty(t, j.ID())
}

func TestRestoreKeepsPastNextRun(t *testing.T) {
	t.Parallel()

	now := wednesday.Add(8 * time.Hour)
	s := restoreTarget(t, newFakeClock(now), Config{})
	_, err := s.Decode([]byte(`[{"interval": 1, "job_func_name": "noop", "unit": "days",
		"at_time": "06:00:00", "next_run": "2024-01-02T06:00:00+00:00"}]`), false)
	require.NoError(t, err)

	j := s.Jobs()[0]
	assert.Equal(t, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC), j.NextRun())
	assert.True(t, j.ShouldRun(now))
}

func TestRestoreTimestampForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		epoch string
		next  string
		want  time.Time
	}{
		{"iso offset", "", `"2024-01-08T09:00:00+00:00"`, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)},
		{"iso other offset", "", `"2024-01-08T11:00:00+02:00"`, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)},
		{"iso naive", "", `"2024-01-08T09:00:00.250000"`, time.Date(2024, 1, 8, 9, 0, 0, 250_000_000, time.UTC)},
		{"space separated", "", `"2024-01-08 09:00:00"`, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)},
		{"unix number", "", `1704704400`, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)},
		{"unix string", "unix", `"1704704400.5"`, time.Date(2024, 1, 8, 9, 0, 0, 500_000_000, time.UTC)},
		{"2000 epoch", "2000", `758019600`, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			epoch, err := ParseEpoch(tt.epoch)
			require.NoError(t, err)
			s := restoreTarget(t, newFakeClock(wednesday), Config{Epoch: epoch})
			_, err = s.Decode([]byte(`[{"interval":1,"job_func_name":"noop","unit":"seconds","next_run":`+tt.next+`}]`), false)
			require.NoError(t, err)
			require.Equal(t, 1, s.Len())
			assert.Equal(t, tt.want, s.Jobs()[0].NextRun())
		})
	}
}

func TestRestoreDropsBadRecords(t *testing.T) {
	t.Parallel()

	s := restoreTarget(t, newFakeClock(wednesday), Config{})
	n, err := s.Decode([]byte(`[
		{"interval": 1, "job_func_name": "noop", "unit": "seconds"},
		{"interval": 1, "job_func_name": "gone", "unit": "seconds"},
		{"interval": 1, "job_func_name": "noop", "unit": "fortnights"},
		{"interval": 1, "job_func_name": "noop", "unit": "days", "at_time": "noon"},
		{"interval": "x", "job_func_name": "noop", "unit": "seconds"},
		{"interval": 1, "job_func_name": "noop", "unit": "seconds", "next_run": "yesterday"},
		{"interval": 5, "latest": 2, "job_func_name": "noop", "unit": "seconds"},
		{"interval": 1, "job_func_name": "noop", "unit": "days", "start_day": "monday"},
		{"interval": 0, "job_func_name": "noop", "unit": "seconds"},
		{"interval": 2, "job_func_name": "report", "unit": "weeks", "start_day": "friday"}
	]`), false)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFunc)
	assert.ErrorIs(t, err, ErrValue)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, s.Len())
}

func TestRestoreReplacesOrKeepsExisting(t *testing.T) {
	t.Parallel()

	snapshot := []byte(`[{"interval":1,"job_func_name":"noop","unit":"seconds"}]`)

	s := restoreTarget(t, newFakeClock(wednesday), Config{})
	_, err := s.Every(1).Hour().Do("noop")
	require.NoError(t, err)
	_, err = s.Decode(snapshot, true)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = s.Decode(snapshot, false)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, Seconds, s.Jobs()[0].Unit())
}

func TestRestoreKeepingExistingReplacesSameID(t *testing.T) {
	t.Parallel()

	s := restoreTarget(t, newFakeClock(wednesday), Config{})
	_, err := s.Every(1).Hour().WithID("sync").Do("noop")
	require.NoError(t, err)

	n, err := s.Decode([]byte(`[{"id":"sync","interval":1,"job_func_name":"noop","unit":"seconds"}]`), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, s.Len())
	j, ok := s.Get("sync")
	require.True(t, ok)
	assert.Equal(t, Seconds, j.Unit())
}

func TestDecodeRejectsNonArray(t *testing.T) {
	t.Parallel()

	s := restoreTarget(t, newFakeClock(wednesday), Config{})
	_, err := s.Decode([]byte(`{"interval":1}`), false)
	assert.Error(t, err)
}

func TestParseEpoch(t *testing.T) {
	got, err := ParseEpoch("2000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseEpoch("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Unix())

	got, err = ParseEpoch("1980-01-06T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 1980, got.Year())

	_, err = ParseEpoch("genesis")
	assert.Error(t, err)
}

func TestSaveToLoadFrom(t *testing.T) {
	t.Parallel()

	st, err := storage.Open(storage.Config{Driver: "file", Path: "/var/lib/cadence/schedule.json", Fs: afero.NewMemMapFs()}, logx.Nop())
	require.NoError(t, err)

	clock := newFakeClock(wednesday)
	dst := restoreTarget(t, clock, Config{})
	n, err := dst.LoadFrom(t.Context(), st, false)
	require.NoError(t, err, "missing snapshot is not an error")
	assert.Zero(t, n)

	src := restoreTarget(t, clock, Config{})
	for i := 1; i <= 2; i++ {
		_, err := src.Every(i).Minutes().Do("noop")
		require.NoError(t, err)
	}
	require.NoError(t, src.SaveTo(t.Context(), st))

	n, err = dst.LoadFrom(t.Context(), st, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	want, err := src.Encode()
	require.NoError(t, err)
	got, err := dst.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

type failingStore struct{ err error }

func (f failingStore) Save(context.Context, []byte) error   { return f.err }
func (f failingStore) Load(context.Context) ([]byte, error) { return nil, f.err }
func (f failingStore) Close() error                         { return nil }

func TestStoreFailuresSurface(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	s := restoreTarget(t, newFakeClock(wednesday), Config{})
	_, err := s.Every(1).Hour().Do("noop")
	require.NoError(t, err)

	n, err := s.LoadFrom(t.Context(), failingStore{err: boom}, false)
	require.NoError(t, err, "a failed read is logged, not returned")
	assert.Zero(t, n)
	assert.Equal(t, 1, s.Len(), "a failed read leaves the schedule alone")

	assert.ErrorIs(t, s.SaveTo(t.Context(), failingStore{err: boom}), boom)

	_, err = s.LoadFrom(t.Context(), nil, false)
	assert.ErrorIs(t, err, storage.ErrDisabled)
}

type bytesStore struct{ data []byte }

func (b bytesStore) Save(context.Context, []byte) error   { return nil }
func (b bytesStore) Load(context.Context) ([]byte, error) { return b.data, nil }
func (b bytesStore) Close() error                         { return nil }

func TestLoadFromUnreadableSnapshot(t *testing.T) {
	t.Parallel()

	for _, data := range []string{`{not json`, `{"interval": 1}`, ``} {
		s := restoreTarget(t, newFakeClock(wednesday), Config{})
		kept, err := s.Every(2).Minutes().Do("noop")
		require.NoError(t, err)

		n, err := s.LoadFrom(t.Context(), bytesStore{data: []byte(data)}, false)
		require.NoError(t, err, "snapshot %q", data)
		assert.Zero(t, n)
		require.Equal(t, 1, s.Len())
		assert.Same(t, kept, s.Jobs()[0])
	}
}
