package commands

import (
	"context"
	"log/slog"
	"time"

	"sphnotify/lib/notify"
	"sphnotify/lib/pushover"
	"sphnotify/lib/schedule"
	"sphnotify/lib/scrapers/sph"
	"sphnotify/lib/telemetry"
	"sphnotify/lib/util/serviceutil"
	"sphnotify/services/vertretung"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the substitution plan on the configured schedule and push new entries.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		err := telemetry.SetupFromEnv(ctx, "sphnotify")
		if err != nil {
			slog.Warn("telemetry export is not configured", "err", err)
		}
		telemetry.InstrumentPerfStats(ctx)

		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		schoolId, err := cfg.schoolId(ctx)
		if err != nil {
			serviceutil.Fatal("failed to resolve the school id", err)
		}
		slog.Info("watching substitution plan", "school", schoolId, "class", cfg.Filter.Class)

		session, err := sph.NewSession(sph.Options{
			BaseUrl:  cfg.Scraper.BaseUrl,
			SchoolId: schoolId,
			Username: cfg.Scraper.Username,
			Password: cfg.Scraper.Password,
		})
		if err != nil {
			serviceutil.Fatal("failed to create the portal session", err)
		}

		notifier := notify.New(notify.Options{
			Enabled:    cfg.Notify.Enabled,
			Recipients: cfg.Notify.Recipients,
			Push:       pushover.NewClient(""),
			Smtp:       cfg.Notify.Smtp,
		})

		ledger, err := vertretung.OpenLedger(cfg.Storage.Ledger)
		if err != nil {
			serviceutil.Fatal("failed to open the event ledger", err)
		}
		defer ledger.Close()

		var history *vertretung.History
		if cfg.Storage.History != "" {
			history, err = vertretung.OpenHistory(cfg.Storage.History)
			if err != nil {
				serviceutil.Fatal("failed to open the notification history", err)
			}
			defer history.Close()
		}

		calendar, err := cfg.holidayCalendar()
		if err != nil {
			serviceutil.Fatal("failed to read the holiday calendar", err)
		}

		opts := vertretung.Options{
			Session:      session,
			Notifier:     notifier,
			Ledger:       ledger,
			History:      history,
			Filter:       cfg.filter(),
			PlanPage:     cfg.Scraper.PlanPage,
			SnapshotPath: cfg.Storage.Snapshot,
		}
		if calendar != nil {
			opts.Holidays = calendar
		}
		service := vertretung.NewService(opts)

		runner, err := schedule.New(schedule.Options{
			Cron:         cfg.Execution.Cron,
			PollInterval: time.Duration(cfg.Execution.PollIntervalSeconds) * time.Second,
			OnError: func(ctx context.Context, err error) {
				slog.ErrorContext(ctx, "check failed", "err", err)
				notifier.ReportError(ctx, err)
			},
		})
		if err != nil {
			serviceutil.Fatal("failed to build the schedule", err)
		}

		runner.Run(ctx, service.Check)

		// the signal context is gone at this point, shut down on a fresh one
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		service.Shutdown(shutdownCtx)
		err = telemetry.Shutdown(shutdownCtx)
		if err != nil {
			slog.Error("failed to shut down telemetry", "err", err)
		}
		slog.Info("goodbye")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
