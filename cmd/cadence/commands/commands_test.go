package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
logging:
  level: error
  console: false
jobs:
  - id: heartbeat
    func: log
    every: 10
    unit: minutes
  - id: report
    func: noop
    weekday: monday
    at: "09:00"
`

func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "cadence", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringP("config", "c", "./cadence.yaml", "")
	root.AddCommand(sub)
	t.Cleanup(func() { root.RemoveCommand(sub) })

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{sub.Name()}, args...))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cadence.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestValidate(t *testing.T) {
	path := writeFile(t, sampleConfig)
	out, err := execute(t, ValidateCmd, "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (2 jobs)")

	bad := writeFile(t, "jobs:\n  - func: log\n    every: 1\n    unit: fortnights\n")
	_, err = execute(t, ValidateCmd, "-c", bad)
	assert.ErrorContains(t, err, "invalid unit")

	_, err = execute(t, ValidateCmd, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJobsJSON(t *testing.T) {
	path := writeFile(t, sampleConfig)
	out, err := execute(t, JobsCmd, "-c", path, "--json")
	require.NoError(t, err)

	var rows []struct {
		ID   string `json:"id"`
		Func string `json:"func"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "heartbeat", rows[0].ID)
	assert.Equal(t, "noop", rows[1].Func)
}

func TestJobsTable(t *testing.T) {
	path := writeFile(t, sampleConfig)
	out, err := execute(t, JobsCmd, "-c", path, "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "heartbeat")
	assert.Contains(t, out, "Every 10 minutes")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, VersionCmd, "--json")
	require.NoError(t, err)
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
