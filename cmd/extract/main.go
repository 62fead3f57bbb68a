// Command extract runs single extractions from the shell and prints JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/app"
	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/config"
	"github.com/JustJay7/ecourts-extractor/internal/database"
	"github.com/JustJay7/ecourts-extractor/internal/extractor"
	"github.com/JustJay7/ecourts-extractor/internal/jobs"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	root, r := newRootCmd()
	err := root.Execute()
	r.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

type runner struct {
	app   *app.App
	log   *logger.Logger
	cfg   *config.Config
	db    *gorm.DB
	store *database.Store
}

func newRootCmd() (*cobra.Command, *runner) {
	r := &runner{}
	var logLevel string

	root := &cobra.Command{
		Use:           "extract",
		Short:         "Query Indian court portals for case status and cause lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			// Logs go to stderr so stdout stays machine readable.
			log, err := logger.NewLogger(cfg.LogLevel, "console")
			if err != nil {
				return err
			}
			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			r.app, r.log, r.cfg = a, log, cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		r.caseCmd(),
		r.refreshCmd(),
		r.causeListCmd(),
		r.checkCmd(),
		r.cleanupCmd(),
	)
	return root, r
}

func (r *runner) close() {
	if r.app == nil {
		return
	}
	if err := r.app.Close(); err != nil {
		r.log.Error("Failed to close browser", "error", err)
	}
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = r.log.Sync()
}

func (r *runner) caseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "case TYPE NUMBER YEAR",
		Short: "Look up a case",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[2])
			}
			ctx, stop := signalContext()
			defer stop()
			return emit(r.app.Engine.SearchCase(ctx, args[0], args[1], year))
		},
	}
}

func (r *runner) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh FINGERPRINT",
		Short: "Re-extract a case by fingerprint, e.g. case:WP(C):1234:2024",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return emit(r.app.Engine.RefreshCase(ctx, cache.Fingerprint(args[0])))
		},
	}
}

func (r *runner) causeListCmd() *cobra.Command {
	var (
		date  string
		days  int
		court string
		save  bool
	)
	cmd := &cobra.Command{
		Use:   "causelist",
		Short: "Fetch cause lists for one or more days and store them",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := r.parseDay(date)
			if err != nil {
				return err
			}
			if days < 1 {
				days = 1
			}
			var store *database.Store
			if save {
				if store, err = r.openStore(); err != nil {
					return err
				}
			}
			ctx, stop := signalContext()
			defer stop()

			var failed error
			for i := 0; i < days; i++ {
				res, err := r.app.Engine.FetchCauseList(ctx, start.AddDate(0, 0, i), court)
				if err == nil && store != nil {
					if n, serr := store.SaveCauseList(ctx, res.CauseList); serr != nil {
						r.log.Error("Failed to save cause list", "date", res.CauseList.HearingDate.Format("2006-01-02"), "error", serr)
						failed = serr
					} else {
						r.log.Info("Cause list stored", "date", res.CauseList.HearingDate.Format("2006-01-02"), "entries", n)
					}
				}
				if err := emit(res, err); err != nil {
					failed = err
				}
			}
			return failed
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "hearing date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", 1, "number of consecutive days")
	cmd.Flags().StringVar(&court, "court", "", "court name filter")
	cmd.Flags().BoolVar(&save, "save", true, "store fetched lists in the database")
	return cmd
}

func (r *runner) cleanupCmd() *cobra.Command {
	var (
		causeListDays int
		logDays       int
		failedDays    int
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored cause lists and logs past their retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			retention := r.retention()
			if cmd.Flags().Changed("days") {
				retention.CauseLists = dayCount(causeListDays)
			}
			if cmd.Flags().Changed("log-days") {
				retention.Logs = dayCount(logDays)
			}
			if cmd.Flags().Changed("failed-days") {
				retention.FailedLogs = dayCount(failedDays)
			}

			ctx, stop := signalContext()
			defer stop()
			res, err := jobs.NewRunner(r.app.Engine, store, r.cfg.CourtTimezone, retention, r.log).Cleanup(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().IntVar(&causeListDays, "days", 0, "keep cause lists heard within this many days (default DATA_RETENTION_DAYS)")
	cmd.Flags().IntVar(&logDays, "log-days", 0, "keep attempt logs this many days (default LOG_RETENTION_DAYS)")
	cmd.Flags().IntVar(&failedDays, "failed-days", 0, "keep failed attempt logs this many days (default FAILED_LOG_RETENTION_DAYS)")
	return cmd
}

func (r *runner) openStore() (*database.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	db, err := database.Initialize(r.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	r.db, r.store = db, database.NewStore(db)
	return r.store, nil
}

func (r *runner) retention() database.Retention {
	return database.Retention{
		CauseLists: r.cfg.CauseListRetention,
		Logs:       r.cfg.LogRetention,
		FailedLogs: r.cfg.FailedLogRetention,
	}
}

func dayCount(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * 24 * time.Hour
}

func (r *runner) checkCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "check TYPE NUMBER YEAR",
		Short: "Check whether a case is listed on a date",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[2])
			}
			day, err := r.parseDay(date)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return emit(r.app.Engine.CheckCaseInCauseList(ctx, args[0], args[1], year, day))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "hearing date YYYY-MM-DD (default today)")
	return cmd
}

func (r *runner) parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Now().In(r.cfg.CourtTimezone), nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, r.cfg.CourtTimezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// emit prints the result and passes err through so the exit code reflects it.
func emit(res *extractor.Result, err error) error {
	if encErr := printJSON(res); encErr != nil {
		return encErr
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
