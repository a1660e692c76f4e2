// Package bench runs experiment plans, timing every step with a stopwatch.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/psantana5/regtimer/internal/config"
	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/pkg/clock"
	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// Runner executes a plan. Steps run sequentially; each iteration gets its
// own stopwatch.
type Runner struct {
	Plan     *config.Plan
	Clock    clock.Clock        // defaults to clock.Monotonic()
	Observer stopwatch.Observer // optional
	Logger   *logging.Logger    // defaults to logging.Discard()
	Host     *report.HostInfo   // attached to every result, optional

	// Stdout and Stderr of the steps. Nil discards the output.
	Stdout io.Writer
	Stderr io.Writer

	// OnResult is called after each iteration, optional
	OnResult func(*report.Result)
}

// NewRunner creates a runner for plan with default settings
func NewRunner(plan *config.Plan) *Runner {
	return &Runner{
		Plan:   plan,
		Clock:  clock.Monotonic(),
		Logger: logging.Discard(),
	}
}

// RunCommand times a single command under label
func RunCommand(ctx context.Context, r *Runner, label, name string, args []string) (*report.Result, error) {
	r.Plan = &config.Plan{
		Name:   label,
		Exe:    name,
		Repeat: 1,
		Steps:  []config.Step{{Label: label, Args: args}},
	}
	results, err := r.Run(ctx)
	if len(results) == 0 {
		return nil, err
	}
	return results[0], err
}

// Run executes every iteration of the plan. On context cancellation it
// returns the results gathered so far (the last one marked not completed)
// together with the context error.
func (r *Runner) Run(ctx context.Context) ([]*report.Result, error) {
	if err := r.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	r.defaults()

	results := make([]*report.Result, 0, r.Plan.Repeat)
	for i := 1; i <= r.Plan.Repeat; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := r.RunIteration(ctx, i)
		results = append(results, result)
		if r.OnResult != nil {
			r.OnResult(result)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// RunIteration executes all steps once. The only error returned is the
// context's; step failures are recorded in the result.
func (r *Runner) RunIteration(ctx context.Context, iteration int) (*report.Result, error) {
	r.defaults()
	logger := r.Logger.WithFields(logging.Fields{"plan": r.Plan.Name, "iteration": iteration})

	opts := []stopwatch.Option{stopwatch.WithClock(r.Clock)}
	if r.Observer != nil {
		opts = append(opts, stopwatch.WithObserver(r.Observer))
	}
	sw := stopwatch.New(opts...)

	result := report.NewResult(r.Plan.Name, iteration, time.Now())
	result.Host = r.Host

	for _, step := range r.Plan.Steps {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", logging.Fields{"before": step.Label})
			result.Complete(sw, time.Now(), true)
			return result, err
		}

		sw.Start()
		reported, err := r.runStep(ctx, step)
		sw.StopNamed(step.Label)

		seconds, _ := sw.Get(step.Label)
		if err != nil {
			var stepErr *StepError
			if errors.As(err, &stepErr) {
				result.AddFailure(step.Label, stepErr.ExitCode, stepErr.Err)
			} else {
				result.AddFailure(step.Label, -1, err)
			}
			logger.Warn("step failed", logging.Fields{"label": step.Label, "seconds": seconds, "error": err.Error()})
		} else {
			logger.Debug("step done", logging.Fields{"label": step.Label, "seconds": seconds})
		}
		if len(reported) > 0 {
			result.AddReported(step.Label, reported)
		}
	}

	result.Complete(sw, time.Now(), false)
	result.LogSummary(logger)
	return result, nil
}

func (r *Runner) defaults() {
	if r.Clock == nil {
		r.Clock = clock.Monotonic()
	}
	if r.Logger == nil {
		r.Logger = logging.Discard()
	}
}

// runStep executes one step and returns the timings the child reported
func (r *Runner) runStep(ctx context.Context, step config.Step) ([]stopwatch.Measurement, error) {
	if r.Plan.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Plan.Timeout)
		defer cancel()
	}

	args := r.Plan.Command(step)

	var reportPath string
	if r.Plan.ReportFlag != "" {
		f, err := os.CreateTemp("", "regtimer-report-*.json")
		if err != nil {
			return nil, fmt.Errorf("failed to create report file: %w", err)
		}
		reportPath = f.Name()
		f.Close()
		// The child must create the file itself
		os.Remove(reportPath)
		defer os.Remove(reportPath)
		args = append(args, r.Plan.ReportFlag, reportPath)
	}

	cmd := exec.CommandContext(ctx, r.Plan.Exe, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if len(step.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(step.Env)...)
	}
	isolate(cmd)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.Plan.Timeout, err)
		}
		return nil, &StepError{Label: step.Label, ExitCode: exitCode(err), Err: err}
	}

	if reportPath == "" {
		return nil, nil
	}
	return readReport(step.Label, reportPath)
}

func readReport(label, path string) ([]stopwatch.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &StepError{Label: label, ExitCode: 0, Err: ErrNoReport}
		}
		return nil, fmt.Errorf("failed to open timing report: %w", err)
	}
	defer f.Close()

	rep, err := report.ParseTimingReport(f)
	if err != nil {
		return nil, &StepError{Label: label, ExitCode: 0, Err: err}
	}
	if !rep.Completed {
		return rep.Measurements(), &StepError{Label: label, ExitCode: 0, Err: ErrReportIncomplete}
	}
	return rep.Measurements(), nil
}

// envList renders env as sorted KEY=VALUE pairs
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
