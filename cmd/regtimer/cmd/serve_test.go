package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/regtimer/internal/bench"
	"github.com/psantana5/regtimer/internal/config"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/internal/server"
)

func loopPlan() *config.Plan {
	return &config.Plan{
		Name:            "loop",
		Exe:             "/bin/sh",
		AdditionalFlags: []string{"-c"},
		Repeat:          1,
		Steps:           []config.Step{{Label: "noop", Args: []string{"exit 0"}}},
	}
}

func TestServePlanFeedsMetricsAndHistory(t *testing.T) {
	metrics := report.NewMetrics()
	history := report.NewHistory(10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := record(metrics, history)
	runner := bench.NewRunner(loopPlan())
	runner.OnResult = func(r *report.Result) {
		feed(r)
		if history.Count() >= 2 {
			cancel()
		}
	}

	err := servePlan(ctx, runner, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, history.Count())

	text, err := metrics.Exposition()
	require.NoError(t, err)
	assert.Contains(t, text, `regtimer_runs_total{plan="loop",status="completed"} 2`)
	assert.Contains(t, text, `regtimer_step_duration_seconds_count{label="noop",plan="loop"} 2`)
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func TestServeStopsServerWhenPlanFails(t *testing.T) {
	// Name is missing, so every run is rejected
	plan := loopPlan()
	plan.Name = ""
	srv := server.New(report.NewMetrics(), report.NewHistory(1), nil)

	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), srv, bench.NewRunner(plan), "127.0.0.1:0", time.Minute)
	}()

	err := waitServe(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan execution failed")
}

func TestServeStopsLoopWhenServerFails(t *testing.T) {
	srv := server.New(report.NewMetrics(), report.NewHistory(1), nil)

	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), srv, bench.NewRunner(loopPlan()), "127.0.0.1:-1", 10*time.Millisecond)
	}()

	err := waitServe(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestServeCommandStopsOnCancel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	plan := writePlan(t, "name: loop\nexe: /bin/sh\nadditional_flags: [\"-c\"]\nsteps:\n  - label: noop\n    args: [\"exit 0\"]\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	rootCmd.SetArgs([]string{"serve", plan, "--listen", "127.0.0.1:0", "--interval", "10ms", "--log-level", "error"})
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	assert.NoError(t, waitServe(t, done))
}
