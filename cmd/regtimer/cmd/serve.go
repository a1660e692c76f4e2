package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/regtimer/internal/bench"
	"github.com/psantana5/regtimer/internal/config"
	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/internal/server"
	"github.com/psantana5/regtimer/internal/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve <plan.yaml>",
	Short: "Run a plan periodically and expose the timings over HTTP",
	Long: `Serve runs the plan once per interval and keeps the most recent
results in memory. It exposes:

  GET /metrics     Prometheus metrics (regtimer_* families)
  GET /runs        recent results, newest first (?limit=N)
  GET /runs/{id}   one result
  GET /healthz     liveness

Example:
  regtimer serve sweep.yaml --listen :9102 --interval 15m`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":9102", "HTTP listen address")
	serveCmd.Flags().Duration("interval", 5*time.Minute, "time between plan executions")
	serveCmd.Flags().Int("history", 50, "number of results kept for /runs")

	v.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	v.BindPFlag("serve.interval", serveCmd.Flags().Lookup("interval"))
	v.BindPFlag("server.history_size", serveCmd.Flags().Lookup("history"))
}

func runServe(cmd *cobra.Command, args []string) error {
	plan, err := config.LoadPlan(args[0])
	if err != nil {
		return err
	}

	ctx, stop := shutdown.SignalContext(cmd.Context())
	defer stop()

	inst, err := newInstruments(ctx, plan.Name)
	if err != nil {
		return err
	}
	defer inst.shutdown.Shutdown()

	metrics := report.NewMetrics()
	history := report.NewHistory(cfg.Server.HistorySize)

	runner := bench.NewRunner(plan)
	runner.Clock = inst.clock
	runner.Observer = inst.observer
	runner.Logger = logger
	runner.Host = inst.host
	runner.OnResult = record(metrics, history)

	logger.Info("serving plan", logging.Fields{
		"plan":     plan.Name,
		"interval": cfg.Serve.Interval.String(),
		"listen":   cfg.Server.Listen,
	})
	return serve(ctx, server.New(metrics, history, logger), runner, cfg.Server.Listen, cfg.Serve.Interval)
}

// serve runs the HTTP server and the plan loop until ctx ends or either
// fails. Whichever stops first takes the other one down.
func serve(ctx context.Context, srv *server.Server, runner *bench.Runner, listen string, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ctx, listen)
		if err != nil {
			cancel()
		}
		srvErr <- err
	}()

	loopErr := servePlan(ctx, runner, interval)
	cancel()
	if err := <-srvErr; err != nil {
		return err
	}
	if errors.Is(loopErr, context.Canceled) {
		return nil
	}
	return loopErr
}

// record feeds every result into metrics and history
func record(metrics *report.Metrics, history *report.History) func(*report.Result) {
	return func(r *report.Result) {
		metrics.RecordResult(r)
		history.Record(r)
	}
}

// servePlan runs the plan immediately and then on every tick until ctx ends
func servePlan(ctx context.Context, runner *bench.Runner, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := runner.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("plan execution failed: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
