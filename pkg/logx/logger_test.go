package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFieldsInOrder(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "scheduler"))

	log.Info("job dispatched", String("job", "abc"), Int("due", 2), Err(errors.New("boom")))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "job dispatched", m["message"])
	assert.Equal(t, "scheduler", m["comp"])
	assert.Equal(t, "abc", m["job"])
	assert.EqualValues(t, 2, m["due"])
	assert.Equal(t, "boom", m["err"])
	assert.Contains(t, m["caller"], "logger_test.go:")
}

func TestLoggerCallerIsCallSite(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")

	_, _, line, ok := runtime.Caller(0)
	require.True(t, ok)
	log.Warn("here")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "logger_test.go:"+strconv.Itoa(line+2), m["caller"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, log.Enabled(LevelDebug))
	assert.True(t, log.Enabled(LevelError))

	log.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	assert.True(t, log.IsZero())
	assert.NotPanics(t, func() { log.Error("nothing", String("k", "v")) })
	assert.False(t, log.With(String("k", "v")).IsZero())
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warning", " error "} {
		assert.True(t, ValidLevel(lvl), lvl)
	}
	assert.False(t, ValidLevel("loud"))
}

func TestTimeAndStackFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")
	log.Info("x",
		Time("never", time.Time{}),
		Time("at", time.Date(2024, 1, 8, 11, 0, 0, 0, time.FixedZone("EET", 2*3600))),
		Stack(strings.Repeat("a", maxStack+10)),
	)

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Contains(t, m, "never")
	assert.Nil(t, m["never"])
	assert.Equal(t, "2024-01-08T09:00:00.000Z", m["at"])
	assert.True(t, strings.HasSuffix(m["stack"].(string), "...truncated"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, parseLevel("Warning", LevelInfo))
	assert.Equal(t, LevelTrace, parseLevel("trace", LevelInfo))
	assert.Equal(t, LevelInfo, parseLevel("", LevelInfo))
	assert.Equal(t, LevelInfo, parseLevel("fatal", LevelInfo))
	assert.Equal(t, LevelInfo, parseLevel("loud", LevelInfo))
}

func TestServiceFileSink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("one")
	f := svc.file
	require.NotNil(t, f)

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: first}})
	assert.Same(t, f, svc.file, "same path keeps the file open")
	log.Debug("two")

	second := filepath.Join(dir, "b.log")
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: second}})
	log.Info("three")

	b, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"one"`)
	assert.Contains(t, string(b), `"message":"two"`)
	assert.NotContains(t, string(b), "three")

	b, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"three"`)
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat(""))
	assert.True(t, ValidFormat("JSON"))
	assert.True(t, ValidFormat("pretty"))
	assert.False(t, ValidFormat("xml"))
}
