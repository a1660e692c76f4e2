package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/regtimer/internal/bench"
	"github.com/psantana5/regtimer/internal/config"
	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/internal/shutdown"
)

var (
	benchRepeat  int
	benchOut     string
	benchSummary bool
	benchVerbose bool
	benchMetrics string
)

var benchCmd = &cobra.Command{
	Use:   "bench <plan.yaml>",
	Short: "Run an experiment plan and time every step",
	Long: `Bench runs every step of a plan, each one timed under its label, as
many times as the plan's repeat count. Each repetition produces one result;
with more than one repetition a per-label summary (min, mean, max) follows.

Steps are listed explicitly or generated from a parameter sweep: each
parameter is varied over its values, the others held at their nominal
value, on every dataset entry. Generated labels read <param>=<value>/<dataset>.

If the plan sets report_flag, the executable is also asked to write its own
timing report, which is merged into the result as <step>/<tag> entries.

With --metrics-file the run is also written in the Prometheus text format,
ready for the node_exporter textfile collector.

Example:
  regtimer bench sweep.yaml
  regtimer bench sweep.yaml --repeat 10 -o json --out results.json
  regtimer bench sweep.yaml --metrics-file /var/lib/node_exporter/regtimer.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVar(&benchRepeat, "repeat", 0, "override the plan's repeat count")
	benchCmd.Flags().StringVar(&benchOut, "out", "", "write results to this file instead of stdout")
	benchCmd.Flags().BoolVar(&benchSummary, "summary", false, "print the per-label summary even for a single repetition")
	benchCmd.Flags().BoolVarP(&benchVerbose, "verbose", "v", false, "forward the steps' stdout and stderr")
	benchCmd.Flags().StringVar(&benchMetrics, "metrics-file", "", "also write Prometheus metrics of the run to this file")
}

func runBench(cmd *cobra.Command, args []string) error {
	plan, err := config.LoadPlan(args[0])
	if err != nil {
		return err
	}
	if benchRepeat > 0 {
		plan.Repeat = benchRepeat
	}

	ctx, stop := shutdown.SignalContext(cmd.Context())
	defer stop()

	inst, err := newInstruments(ctx, plan.Name)
	if err != nil {
		return err
	}
	defer inst.shutdown.Shutdown()

	runner := bench.NewRunner(plan)
	runner.Clock = inst.clock
	runner.Observer = inst.observer
	runner.Logger = logger
	runner.Host = inst.host
	if benchVerbose {
		runner.Stdout = os.Stderr
		runner.Stderr = os.Stderr
	}
	metrics := report.NewMetrics()
	runner.OnResult = metrics.RecordResult

	logger.Info(fmt.Sprintf("Evaluating '%s'", plan.Name), logging.Fields{
		"steps":       len(plan.Steps),
		"experiments": plan.CountExperiments(),
		"repeat":      plan.Repeat,
	})
	results, runErr := runner.Run(ctx)

	var out io.Writer = cmd.OutOrStdout()
	if benchOut != "" {
		f, err := os.Create(benchOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", benchOut, err)
		}
		defer f.Close()
		out = f
	}

	if err := report.Write(out, cfg.Output, results, cfg.LabelWidth); err != nil {
		return err
	}
	if (benchSummary || len(results) > 1) && cfg.Output != report.FormatJSON && cfg.Output != report.FormatYAML {
		fmt.Fprintln(out)
		if err := report.WriteSummaryTable(out, report.Summarize(results)); err != nil {
			return err
		}
	}

	if benchMetrics != "" {
		if err := metrics.WriteFile(benchMetrics); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	failed := 0
	for _, r := range results {
		if !r.Completed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}
