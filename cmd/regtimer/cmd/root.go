package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/regtimer/internal/config"
	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/internal/observe"
	"github.com/psantana5/regtimer/internal/report"
	"github.com/psantana5/regtimer/internal/shutdown"
	"github.com/psantana5/regtimer/internal/tracing"
	"github.com/psantana5/regtimer/pkg/clock"
	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	logger  *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "regtimer",
	Short: "Wall-clock timing for registration pipelines",
	Long: `regtimer measures named durations of external programs and reports them.

It times single commands, runs experiment plans repeatedly and aggregates
the results, and can expose the measurements as Prometheus metrics.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.regtimer/config.yaml)")
	flags.StringP("output", "o", "text", "output format: text, table, json or yaml")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("log-file", "", "also append logs to this file")
	flags.String("clock", "monotonic", "time source: monotonic or realtime")
	flags.Int("label-width", 20, "label column width of text reports")

	v.BindPFlag("output", flags.Lookup("output"))
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("log.format", flags.Lookup("log-format"))
	v.BindPFlag("log.file", flags.Lookup("log-file"))
	v.BindPFlag("clock", flags.Lookup("clock"))
	v.BindPFlag("label_width", flags.Lookup("label-width"))
}

// setup loads configuration and builds the logger before any command runs
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	jsonLogs := cfg.Log.Format == "json"
	if cfg.Log.File != "" {
		logger, err = logging.NewFileLogger(cfg.Log.File, level, jsonLogs)
		if err != nil {
			return err
		}
	} else {
		logger = logging.NewLogger(level, jsonLogs)
	}
	return nil
}

// instruments holds what a timing command needs besides the plan
type instruments struct {
	clock    clock.Clock
	observer stopwatch.Observer
	host     *report.HostInfo
	shutdown *shutdown.Manager
}

// newInstruments builds the clock, observers and host info from cfg.
// Cleanups are registered on the returned shutdown manager.
func newInstruments(ctx context.Context, plan string) (*instruments, error) {
	c, err := clock.Parse(cfg.Clock)
	if err != nil {
		return nil, err
	}

	sd := shutdown.New(10*time.Second, logger)
	sd.RegisterCloser("logger", logger)

	provider, err := tracing.New(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}
	sd.Register("tracing", provider.Shutdown)

	host, err := report.DetectHost(ctx)
	if err != nil {
		logger.Warn("host detection incomplete", logging.Fields{"error": err.Error()})
	}

	var spans stopwatch.Observer
	if cfg.Tracing.Enabled {
		spans = observe.SpanObserver{
			Tracer: provider.Tracer(),
			Ctx:    ctx,
			Attrs:  []attribute.KeyValue{attribute.String("regtimer.plan", plan)},
		}
	}

	return &instruments{
		clock:    c,
		observer: observe.Multi(observe.LogObserver{Logger: logger}, spans),
		host:     host,
		shutdown: sd,
	}, nil
}
