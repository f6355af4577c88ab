package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "reports/internal/mcp"
	"reports/internal/report"
	"reports/internal/service"
)

// withRuntime opens the runtime for the duration of fn.
func withRuntime(ctx context.Context, opts *options, fn func(rt *runtime) error) error {
	rt, err := openRuntime(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			opts.log.Warn("close connections", zap.Error(err))
		}
	}()
	return fn(rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── generate ───────────────────────────────────────────────

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		reportID       string
		locale         string
		useChoiceNames bool
	)
	cmd := &cobra.Command{
		Use:   "generate <form-id>",
		Short: "Generate the report of one form",
		Long: `Flattens every survey of the form into <report-id>.csv, writes
<report-id>-meta.csv for multi-select columns and <report-id>.zip with the
linked photos, then prints the run result as JSON. The report ends saved or
failed in the catalog either way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := report.Config{
				Locale:         opts.cfg.Report.Locale,
				UseChoiceNames: opts.cfg.Report.UseChoiceNames,
			}
			if cmd.Flags().Changed("locale") {
				cfg.Locale = locale
			}
			if cmd.Flags().Changed("use-choice-names") {
				cfg.UseChoiceNames = useChoiceNames
			}

			return withRuntime(cmd.Context(), opts, func(rt *runtime) error {
				res, err := rt.svc.RunForm(cmd.Context(), service.RunInput{
					FormID:   args[0],
					ReportID: reportID,
					Config:   cfg,
				})
				if res != nil {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return errors.Join(err, perr)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&reportID, "report-id", "", "report id (default: new UUID)")
	cmd.Flags().StringVar(&locale, "locale", "", "locale for choice and geo names (default from config)")
	cmd.Flags().BoolVar(&useChoiceNames, "use-choice-names", false, "write choice names instead of choice values")
	return cmd
}

// ── make-reports ───────────────────────────────────────────

func newMakeReportsCmd(opts *options) *cobra.Command {
	var in service.BatchInput
	cmd := &cobra.Command{
		Use:   "make-reports",
		Short: "Generate reports for every published form of the selected studies",
		Long: `Runs one report per published form, with choice names and the study's
default locale. A failing form does not stop the batch; the command exits
non-zero when any form failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(rt *runtime) error {
				res, err := rt.svc.RunStudies(cmd.Context(), in)
				if res != nil {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return errors.Join(err, perr)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringArrayVar(&in.StudyIDs, "study", nil, "study id (repeatable, default: all studies)")
	cmd.Flags().StringVar(&in.FormID, "form", "", "only this form")
	cmd.Flags().StringVar(&in.Locale, "locale", "", "override the study default locale")
	return cmd
}

// ── status ─────────────────────────────────────────────────

func newStatusCmd(opts *options) *cobra.Command {
	var preview int
	cmd := &cobra.Command{
		Use:   "status <report-id>",
		Short: "Show a report, its files and optionally the first data rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(rt *runtime) error {
				details, err := rt.svc.GetReport(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := struct {
					*service.ReportDetails
					Preview *service.PreviewResult `json:"preview,omitempty"`
				}{ReportDetails: details}
				if preview > 0 {
					if out.Preview, err = rt.svc.PreviewData(cmd.Context(), args[0], preview); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&preview, "preview", 0, "also print the first N data rows")
	return cmd
}

// ── schedule ───────────────────────────────────────────────

func newScheduleCmd(opts *options) *cobra.Command {
	var in service.BatchInput
	var drain time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run report batches on the configured cron and file-watch triggers",
		Long: `Starts the triggers from the [schedule] section: schedule.cron runs a batch
on a cron expression, schedule.watch runs one 500ms after the watched file
(normally the SQLite source) stops changing. Runs until interrupted, then
waits for running reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := opts.cfg.Schedule
			if sc.Cron == "" && sc.Watch == "" {
				return errors.New("nothing to schedule: set schedule.cron or schedule.watch")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withRuntime(ctx, opts, func(rt *runtime) error {
				err := rt.svc.StartTriggers(ctx, service.TriggerConfig{Cron: sc.Cron, Watch: sc.Watch, Batch: in})
				if err != nil {
					return err
				}
				opts.log.Info("scheduler running", zap.String("cron", sc.Cron), zap.String("watch", sc.Watch))
				<-ctx.Done()

				opts.log.Info("shutting down")
				rt.svc.Stop()
				waitCtx, cancel := context.WithTimeout(context.Background(), drain)
				defer cancel()
				rt.svc.WaitRunning(waitCtx)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&in.StudyIDs, "study", nil, "study id (repeatable, default: all studies)")
	cmd.Flags().StringVar(&in.FormID, "form", "", "only this form")
	cmd.Flags().StringVar(&in.Locale, "locale", "", "override the study default locale")
	cmd.Flags().DurationVar(&drain, "drain", 30*time.Second, "how long to wait for running reports on shutdown")
	return cmd
}

// ── mcp ────────────────────────────────────────────────────

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve report tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(rt *runtime) error {
				srv := mcpserver.New(mcpserver.Deps{
					Reports: rt.svc,
					Defaults: report.Config{
						Locale:         opts.cfg.Report.Locale,
						UseChoiceNames: opts.cfg.Report.UseChoiceNames,
					},
					PreviewRows: opts.cfg.Report.PreviewRows,
					Logger:      opts.log,
					Version:     Version,
				})
				return srv.ServeStdio()
			})
		},
	}
}

// ── version ────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "reports", Version)
		},
	}
}
