package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/psantana5/regtimer/internal/bench"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/internal/shutdown"
)

var runLabel string

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Time a single command",
	Long: `Run executes a command, measures its wall-clock duration and prints
the timing report. The command's output is forwarded unchanged.

Example:
  regtimer run -- ./FastGlobalRegistration -p bunny_p.ply -q bunny_q.ply
  regtimer run --label fgr -o json -- ./FastGlobalRegistration -p a.ply -q b.ply`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runLabel, "label", "", "measurement label (default: command base name)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	label := runLabel
	if label == "" {
		label = filepath.Base(args[0])
	}

	ctx, stop := shutdown.SignalContext(cmd.Context())
	defer stop()

	inst, err := newInstruments(ctx, label)
	if err != nil {
		return err
	}
	defer inst.shutdown.Shutdown()

	runner := bench.NewRunner(nil)
	runner.Clock = inst.clock
	runner.Observer = inst.observer
	runner.Logger = logger
	runner.Host = inst.host
	runner.Stdout = os.Stdout
	runner.Stderr = os.Stderr

	result, err := bench.RunCommand(ctx, runner, label, args[0], args[1:])
	if result != nil {
		if werr := report.Write(cmd.OutOrStdout(), cfg.Output, []*report.Result{result}, cfg.LabelWidth); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if !result.Completed {
		return fmt.Errorf("%s failed: %s", label, result.Failures[0].Reason)
	}
	return nil
}
