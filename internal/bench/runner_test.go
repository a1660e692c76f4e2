package bench

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/regtimer/internal/config"
	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/pkg/clock"
	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// tickingClock advances one second on every reading, so each start/stop
// pair measures exactly one second.
func tickingClock() clock.Clock {
	var sec int64
	return clock.Func(func() clock.Timestamp {
		sec++
		return clock.Timestamp{Sec: sec}
	})
}

func shPlan(steps ...config.Step) *config.Plan {
	return &config.Plan{
		Name:            "sh-plan",
		Exe:             "/bin/sh",
		AdditionalFlags: []string{"-c"},
		Repeat:          1,
		Steps:           steps,
	}
}

func newTestRunner(plan *config.Plan) *Runner {
	r := NewRunner(plan)
	r.Clock = tickingClock()
	return r
}

func TestRunTimesEveryStep(t *testing.T) {
	plan := shPlan(
		config.Step{Label: "load", Args: []string{"exit 0"}},
		config.Step{Label: "match", Args: []string{"exit 0"}},
	)
	plan.Repeat = 3

	var seen []int
	r := newTestRunner(plan)
	r.OnResult = func(res *report.Result) { seen = append(seen, res.Iteration) }

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, seen)

	for _, res := range results {
		assert.True(t, res.Completed)
		assert.Equal(t, []stopwatch.Measurement{
			{Label: "load", Seconds: 1},
			{Label: "match", Seconds: 1},
		}, res.Measurements)
		assert.Equal(t, 2.0, res.Total)
		assert.Equal(t, "sh-plan", res.Plan)
	}
}

func TestRunRecordsFailures(t *testing.T) {
	plan := shPlan(
		config.Step{Label: "bad", Args: []string{"exit 3"}},
		config.Step{Label: "good", Args: []string{"exit 0"}},
	)

	results, err := newTestRunner(plan).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.False(t, res.Completed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad", res.Failures[0].Label)
	assert.Equal(t, 3, res.Failures[0].ExitCode)
	assert.Len(t, res.Measurements, 2, "failed steps keep their timing")
}

func TestRunMissingExecutable(t *testing.T) {
	plan := &config.Plan{
		Name:   "missing",
		Exe:    "/nonexistent/registration-binary",
		Repeat: 1,
		Steps:  []config.Step{{Label: "run"}},
	}

	results, err := newTestRunner(plan).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, -1, results[0].Failures[0].ExitCode)
}

func TestRunTimeout(t *testing.T) {
	plan := shPlan(config.Step{Label: "slow", Args: []string{"sleep 5"}})
	plan.Timeout = 100 * time.Millisecond

	r := NewRunner(plan)
	start := time.Now()
	results, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	require.Len(t, results[0].Failures, 1)
	f := results[0].Failures[0]
	assert.Equal(t, -1, f.ExitCode)
	assert.Contains(t, f.Reason, "timed out after 100ms")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newTestRunner(shPlan(config.Step{Label: "a", Args: []string{"exit 0"}})).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRunIterationInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	plan := shPlan(
		config.Step{Label: "first", Args: []string{"exit 0"}},
		config.Step{Label: "second", Args: []string{"exit 0"}},
	)

	r := newTestRunner(plan)
	r.Observer = stopwatch.ObserverFunc(func(e stopwatch.Event) {
		if e.Label == "first" {
			cancel()
		}
	})

	results, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.False(t, results[0].Completed)
	assert.Equal(t, []stopwatch.Measurement{{Label: "first", Seconds: 1}}, results[0].Measurements)
}

const reportScript = `for a; do last=$a; done; printf '{"completed":true,"timing":[{"tag":"icp","time":0.5},{"tag":"normals","time":"0.25"}]}' > "$last"`

func TestRunCollectsChildReport(t *testing.T) {
	plan := shPlan(config.Step{Label: "fgr", Args: []string{reportScript, "sh"}})
	plan.ReportFlag = "-r"

	results, err := newTestRunner(plan).Run(context.Background())
	require.NoError(t, err)

	res := results[0]
	assert.True(t, res.Completed)
	assert.Equal(t, []stopwatch.Measurement{
		{Label: "fgr/icp", Seconds: 0.5},
		{Label: "fgr/normals", Seconds: 0.25},
	}, res.Reported)
}

func TestRunMissingChildReport(t *testing.T) {
	plan := shPlan(config.Step{Label: "fgr", Args: []string{"exit 0"}})
	plan.ReportFlag = "-r"

	results, err := newTestRunner(plan).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, ErrNoReport.Error(), results[0].Failures[0].Reason)
}

func TestRunIncompleteChildReport(t *testing.T) {
	script := `for a; do last=$a; done; printf '{"completed":false,"timing":[{"tag":"icp","time":1}]}' > "$last"`
	plan := shPlan(config.Step{Label: "fgr", Args: []string{script, "sh"}})
	plan.ReportFlag = "-r"

	results, err := newTestRunner(plan).Run(context.Background())
	require.NoError(t, err)
	res := results[0]
	assert.False(t, res.Completed)
	assert.Equal(t, ErrReportIncomplete.Error(), res.Failures[0].Reason)
	assert.Len(t, res.Reported, 1)
}

func TestRunPassesEnvAndOutput(t *testing.T) {
	plan := shPlan(config.Step{
		Label: "env",
		Args:  []string{`printf '%s' "$REGTIMER_TEST_VALUE"`},
		Env:   map[string]string{"REGTIMER_TEST_VALUE": "sigma=0.01"},
	})

	var stdout bytes.Buffer
	r := newTestRunner(plan)
	r.Stdout = &stdout

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sigma=0.01", stdout.String())
}

func TestRunLogsSteps(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRunner(shPlan(config.Step{Label: "bad", Args: []string{"exit 1"}}))
	r.Logger = logging.New(&buf, logging.DEBUG, false)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "WARN: step failed")
	assert.Contains(t, out, "label=bad")
	assert.True(t, strings.Contains(out, "RUN "), out)
}

func TestRunInvalidPlan(t *testing.T) {
	_, err := NewRunner(&config.Plan{Name: "x"}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	r := NewRunner(nil)
	r.Clock = tickingClock()

	res, err := RunCommand(context.Background(), r, "true", "/bin/sh", []string{"-c", "exit 0"})
	require.NoError(t, err)
	assert.Equal(t, "true", res.Plan)
	assert.Equal(t, []stopwatch.Measurement{{Label: "true", Seconds: 1}}, res.Measurements)
}

func TestStepError(t *testing.T) {
	cause := errors.New("exit status 2")
	err := &StepError{Label: "icp", ExitCode: 2, Err: cause}
	assert.Equal(t, "step icp failed (exit 2): exit status 2", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(cause))
}

func TestEnvList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}
