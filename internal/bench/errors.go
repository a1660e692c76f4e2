package bench

import (
	"errors"
	"fmt"
	"os/exec"
)

// StepError reports a plan step that did not finish cleanly.
type StepError struct {
	Label    string
	ExitCode int // -1 when the process did not start or was killed
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed (exit %d): %v", e.Label, e.ExitCode, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrNoReport is returned when a plan asks for a timing report and the step
// did not write one.
var ErrNoReport = errors.New("step did not produce a timing report")

// ErrReportIncomplete is returned when the step's own report says it did not
// complete.
var ErrReportIncomplete = errors.New("timing report marked not completed")

// exitCode extracts the process exit code from a Wait error
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
