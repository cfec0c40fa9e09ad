package autosave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTriggerVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   TriggerKind
		source string
		every  time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: TriggerCron, source: "cron"},
		{name: "cron with seconds", raw: "0 30 * * * *", kind: TriggerCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: TriggerCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: TriggerCron, source: "cron"},
		{name: "every descriptor", raw: "@every 1m", kind: TriggerCron, source: "cron"},
		{name: "duration", raw: "10m", kind: TriggerInterval, source: "duration", every: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: TriggerInterval, source: "duration", every: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: TriggerInterval, source: "hhmm", every: 90 * time.Minute},
		{name: "prefixed hhmm", raw: "Every: 00:05", kind: TriggerInterval, source: "hhmm", every: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTrigger(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.source, got.Source)
			assert.Equal(t, tt.every, got.Every)

			sched, err := got.Schedule()
			require.NoError(t, err)
			from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			assert.True(t, sched.Next(from).After(from))
		})
	}
}

func TestParseTriggerInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "  ", "not-a-schedule", "cron:", "61 * * * *", "@fortnightly", "500ms", "0s", "00:75", "every:"} {
		_, err := ParseTrigger(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestTriggerString(t *testing.T) {
	t.Parallel()
	tr, err := ParseTrigger("00:05")
	require.NoError(t, err)
	assert.Equal(t, "@every 5m0s", tr.String())

	tr, err = ParseTrigger("cron:*/10 * * * *")
	require.NoError(t, err)
	assert.Equal(t, "*/10 * * * *", tr.String())
}
