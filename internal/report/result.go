package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// Result is the record of one timed run: a plan iteration or a single
// command. It is filled in while the run executes and frozen by Complete.
type Result struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Plan      string `json:"plan" yaml:"plan"`
	Iteration int    `json:"iteration" yaml:"iteration"`

	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`

	// Completed is false when any step failed or the run was interrupted
	Completed bool `json:"completed" yaml:"completed"`

	Measurements []stopwatch.Measurement `json:"timing" yaml:"timing"`
	Total        float64                 `json:"total" yaml:"total"`

	// Reported holds timings the child processes wrote themselves,
	// labeled <step>/<tag>
	Reported []stopwatch.Measurement `json:"reported,omitempty" yaml:"reported,omitempty"`

	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Host     *HostInfo `json:"host,omitempty" yaml:"host,omitempty"`
}

// Failure records a step that did not finish cleanly
type Failure struct {
	Label    string `json:"label" yaml:"label"`
	ExitCode int    `json:"exit_code" yaml:"exit_code"` // -1 when the process never ran or was killed
	Reason   string `json:"reason" yaml:"reason"`
}

// NewResult starts a result with a fresh run ID
func NewResult(plan string, iteration int, start time.Time) *Result {
	return &Result{
		RunID:     uuid.NewString(),
		Plan:      plan,
		Iteration: iteration,
		StartTime: start,
	}
}

// AddFailure records a failed step
func (r *Result) AddFailure(label string, exitCode int, err error) {
	r.Failures = append(r.Failures, Failure{
		Label:    label,
		ExitCode: exitCode,
		Reason:   err.Error(),
	})
}

// AddReported appends child-reported timings under the step label
func (r *Result) AddReported(step string, ms []stopwatch.Measurement) {
	for _, m := range ms {
		r.Reported = append(r.Reported, stopwatch.Measurement{
			Label:   step + "/" + m.Label,
			Seconds: m.Seconds,
		})
	}
}

// Complete freezes the result with the stopwatch's measurements. interrupted
// marks a run that did not reach its last step.
func (r *Result) Complete(sw *stopwatch.Stopwatch, end time.Time, interrupted bool) {
	r.EndTime = end
	r.Measurements = sw.Measurements()
	r.Total = stopwatch.Sum(r.Measurements)
	r.Completed = !interrupted && len(r.Failures) == 0
}

// Status is "completed" or "failed"
func (r *Result) Status() string {
	if r.Completed {
		return "completed"
	}
	return "failed"
}

// LogSummary emits a one-line summary of the run
func (r *Result) LogSummary(logger *logging.Logger) {
	fields := logging.Fields{
		"run_id":    r.RunID,
		"plan":      r.Plan,
		"iteration": r.Iteration,
		"status":    r.Status(),
		"total":     stopwatch.FormatSeconds(r.Total),
		"labels":    len(r.Measurements),
	}
	if len(r.Failures) > 0 {
		fields["failures"] = len(r.Failures)
		logger.Warn(fmt.Sprintf("RUN %s | %s #%d | %s", r.RunID, r.Plan, r.Iteration, r.Status()), fields)
		return
	}
	logger.Info(fmt.Sprintf("RUN %s | %s #%d | %s", r.RunID, r.Plan, r.Iteration, r.Status()), fields)
}
