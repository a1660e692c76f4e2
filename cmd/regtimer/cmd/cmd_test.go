package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/regtimer/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "regtimer dev"), out)
}

func TestConfigShow(t *testing.T) {
	out, err := execute(t, "config", "show", "-o", "json", "--clock", "realtime", "--log-level", "error")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "realtime", got["clock"])
	assert.Equal(t, "json", got["output"])
	assert.Equal(t, "error", got["log"].(map[string]interface{})["level"])
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--label", "quick", "-o", "json", "--clock", "monotonic", "--log-level", "error",
		"--", "/bin/sh", "-c", "exit 0")
	require.NoError(t, err)

	var results []report.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Completed)
	require.Len(t, results[0].Measurements, 1)
	assert.Equal(t, "quick", results[0].Measurements[0].Label)
	assert.GreaterOrEqual(t, results[0].Total, 0.0)
	require.NotNil(t, results[0].Host)
	assert.NotZero(t, results[0].Host.CPUThreads)
}

func TestRunCommandFailure(t *testing.T) {
	out, err := execute(t, "run", "--label", "broken", "-o", "text", "--log-level", "error",
		"--", "/bin/sh", "-c", "exit 4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken failed")
	assert.Contains(t, out, "TOT:\t")
}

func TestBench(t *testing.T) {
	plan := writePlan(t, `
name: smoke
exe: /bin/sh
additional_flags: ["-c"]
repeat: 2
steps:
  - label: load
    args: ["exit 0"]
  - label: match
    args: ["exit 0"]
`)

	out, err := execute(t, "bench", plan, "-o", "text", "--label-width", "8", "--log-level", "error")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "load    :\t"))
	assert.Equal(t, 2, strings.Count(out, "TOT:\t"))
	assert.Contains(t, strings.ToUpper(out), "SAMPLES")
}

func TestBenchJSONToFile(t *testing.T) {
	plan := writePlan(t, `
name: smoke
exe: /bin/sh
additional_flags: ["-c"]
steps:
  - label: only
    args: ["exit 0"]
`)
	dest := filepath.Join(t.TempDir(), "results.json")

	out, err := execute(t, "bench", plan, "-o", "json", "--out", dest, "--repeat", "3", "--log-level", "error")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var results []report.Result
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 3)
}

func TestBenchReportsFailedRuns(t *testing.T) {
	plan := writePlan(t, `
name: failing
exe: /bin/sh
additional_flags: ["-c"]
steps:
  - label: bad
    args: ["exit 1"]
`)

	_, err := execute(t, "bench", plan, "-o", "text", "--repeat", "1", "--out", "", "--log-level", "error")
	require.Error(t, err)
	assert.Equal(t, "1 of 1 runs failed", err.Error())
}

func TestBenchInvalidPlan(t *testing.T) {
	plan := writePlan(t, "name: broken\nsteps: []\n")
	_, err := execute(t, "bench", plan, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exe: required")
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "version", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestBenchWritesMetricsFile(t *testing.T) {
	// the sweep arguments land in $0 and $@ of the shell script
	plan := writePlan(t, `
name: sweep
exe: /bin/sh
additional_flags: ["-c", "exit 0"]
parameters:
  - name: div
    flag: "--div"
    values: ["1.2", "1.4"]
    nominal: "1.4"
dataset:
  - name: tiny
    p: a.ply
    q: b.ply
`)
	dest := filepath.Join(t.TempDir(), "regtimer.prom")
	t.Cleanup(func() { benchMetrics = "" })

	_, err := execute(t, "bench", plan, "-o", "json", "--repeat", "2", "--out", "", "--metrics-file", dest, "--log-level", "error")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `regtimer_runs_total{plan="sweep",status="completed"} 2`)
	assert.Contains(t, text, `regtimer_step_duration_seconds_count{label="div=1.2/tiny",plan="sweep"} 2`)
	assert.Contains(t, text, `regtimer_step_duration_seconds_count{label="div=1.4/tiny",plan="sweep"} 2`)
}
