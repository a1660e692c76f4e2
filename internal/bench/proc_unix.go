//go:build unix

package bench

import (
	"os/exec"
	"syscall"
)

// isolate puts the step in its own process group so a timeout kills the
// whole tree, not just the direct child.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
