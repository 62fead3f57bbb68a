// Package jobs holds the background work that keeps stored data current:
// refreshing upcoming cause lists and dropping data past its retention.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/database"
	"github.com/JustJay7/ecourts-extractor/internal/extractor"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

// CauseLists fetches hearing lists.
type CauseLists interface {
	FetchCauseList(ctx context.Context, date time.Time, court string) (*extractor.Result, error)
}

// Store is where job results are written.
type Store interface {
	SaveCauseList(ctx context.Context, list *models.CauseList) (int, error)
	LogAttempt(ctx context.Context, entry *database.ScrapingLog) error
	Cleanup(ctx context.Context, now time.Time, r database.Retention) (*database.CleanupResult, error)
}

// RefreshReport sums up one cause list refresh.
type RefreshReport struct {
	Dates       int      `json:"dates_processed"`
	Entries     int      `json:"total_entries_saved"`
	FailedDates []string `json:"failed_dates,omitempty"`
}

// Runner performs the jobs against an engine and a store.
type Runner struct {
	engine    CauseLists
	store     Store
	location  *time.Location
	retention database.Retention
	now       func() time.Time
	logger    *logger.Logger
}

// NewRunner creates a runner. Dates are taken in loc.
func NewRunner(engine CauseLists, store Store, loc *time.Location, retention database.Retention, log *logger.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		engine:    engine,
		store:     store,
		location:  loc,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// RefreshUpcoming refreshes today's list and the days-1 lists after it.
func (r *Runner) RefreshUpcoming(ctx context.Context, days int) error {
	_, err := r.RefreshCauseLists(ctx, r.now().In(r.location), days)
	return err
}

// RefreshCauseLists fetches the full cause list for each of days consecutive
// days from start and stores it. A day that fails is logged and skipped; the
// error is only returned when no day succeeded or ctx ended.
func (r *Runner) RefreshCauseLists(ctx context.Context, start time.Time, days int) (*RefreshReport, error) {
	if days < 1 {
		days = 1
	}
	report := &RefreshReport{}

	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		label := day.Format("2006-01-02")
		report.Dates++

		res, err := r.engine.FetchCauseList(ctx, day, "")
		r.logAttempt(ctx, day, res)
		if err != nil {
			r.logger.Warn("Cause list refresh failed", "date", label, "error", err)
			report.FailedDates = append(report.FailedDates, label)
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			continue
		}

		n, err := r.store.SaveCauseList(ctx, res.CauseList)
		if err != nil {
			r.logger.Error("Failed to save cause list", "date", label, "error", err)
			report.FailedDates = append(report.FailedDates, label)
			continue
		}
		report.Entries += n
		r.logger.Info("Cause list refreshed", "date", label, "entries", n, "cached", res.Cached)
	}

	if len(report.FailedDates) == report.Dates {
		return report, fmt.Errorf("no cause list could be refreshed for %d day(s)", days)
	}
	return report, nil
}

// Cleanup removes stored data past its retention.
func (r *Runner) Cleanup(ctx context.Context) (*database.CleanupResult, error) {
	res, err := r.store.Cleanup(ctx, r.now(), r.retention)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Data cleanup completed",
		"cause_list_rows", res.CauseListRows,
		"logs", res.Logs,
		"failed_logs", res.FailedLogs,
	)
	return res, nil
}

func (r *Runner) logAttempt(ctx context.Context, day time.Time, res *extractor.Result) {
	if res == nil {
		return
	}
	entry := &database.ScrapingLog{
		Operation:       "daily_cause_list",
		Fingerprint:     string(cache.CauseListKey(day, "")),
		Success:         res.Success,
		Cached:          res.Cached,
		Reason:          res.Reason,
		ExecutionTimeMs: res.ExecutionTimeMs,
	}
	if !res.Success {
		entry.ErrorMessage = res.Message
	}
	if err := r.store.LogAttempt(ctx, entry); err != nil {
		r.logger.Error("Failed to log attempt", "error", err)
	}
}
