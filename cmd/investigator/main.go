package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/investigator/pkg/investigator/config"
	"github.com/cognicore/investigator/pkg/investigator/telemetry"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the global flags and the process-wide logger.
type app struct {
	dbPath     string
	enginePath string
	logLevel   string
	exporter   string

	logger   *zap.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "investigator",
		Short: "Build causal networks, assert evidence and find contradictions",
		Long: `investigator evaluates networks of boolean causes and effects.

Networks are YAML documents or names saved in the local database. A run
either conditions every node on the asserted evidence (bayes) or fits the
model to the evidence and reports which assertions it cannot explain
(investigation).`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dbPath, "db", config.DatabasePath(), "sqlite file holding saved networks")
	flags.StringVar(&a.enginePath, "engine", config.EngineConfigPath(), "YAML file with engine tunables")
	flags.StringVar(&a.logLevel, "log-level", config.LogLevel(), "debug, info, warn or error")
	flags.StringVar(&a.exporter, "telemetry", config.TelemetryExporter(), "trace and metric exporter: stdout or none")

	root.AddCommand(
		a.runCmd(),
		a.printCmd(),
		a.cyclesCmd(),
		a.saveCmd(),
		a.loadCmd(),
		a.listCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(a.logLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	tcfg := telemetry.DefaultConfig()
	tcfg.TraceExporter = a.exporter
	tcfg.MetricExporter = a.exporter
	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	_ = a.logger.Sync()
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown(context.Background())
}

// newLogger builds a production logger, or a development one at debug
// level. Both write to stderr.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
