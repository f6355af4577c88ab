// Package app is the reports command line: it loads the configuration, wires
// the survey database, the report catalog and the artifact directory, and
// exposes report runs as cobra commands.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reports/internal/config"
)

// Version is set at build time with -ldflags "-X reports/internal/app.Version=...".
var Version = "dev"

// options is the state shared by all commands of one invocation.
type options struct {
	cfgFile string
	verbose bool

	cfg *config.Config
	log *zap.Logger
}

// Execute runs the root command with os.Args.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "reports",
		Short: "Flatten survey responses into CSV reports",
		Long: `reports turns the recorded answers of a form into a CSV data file, a meta
file describing multi-select columns and a zip archive of the photos taken,
and records each run (queued -> saved | failed) in the report catalog.

Quick start:
  reports generate FORM_ID          Run one form report
  reports make-reports              Run every published form of every study
  reports status REPORT_ID          Show a report and its files
  reports schedule                  Run batches on cron / source changes`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			log, err := newLogger(cfg.Log, opts.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", defaultConfigFile(), "config file (TOML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newMakeReportsCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newScheduleCmd(opts))
	root.AddCommand(newMCPCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func defaultConfigFile() string {
	if p := os.Getenv("REPORTS_CONFIG"); p != "" {
		return p
	}
	return "reports.toml"
}

// newLogger builds a JSON (production) or console (development) zap logger.
// Both write to stderr, which keeps stdout free for command output and MCP.
func newLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level := zapcore.InfoLevel
	if lc.Level != "" {
		lvl, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		level = lvl
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
