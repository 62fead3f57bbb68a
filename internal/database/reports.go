package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Court is one court seen in stored cause lists or cases.
type Court struct {
	Name      string `json:"name"`
	CourtType string `json:"court_type"`
}

// CauseListStats summarises stored cause list rows over a date range.
type CauseListStats struct {
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	TotalCases int64            `json:"total_cases"`
	CourtWise  map[string]int64 `json:"court_wise_breakdown"`
	CaseTypes  map[string]int64 `json:"case_type_breakdown"`
}

// Retention says how long each kind of stored data is kept. A zero duration
// keeps that kind forever.
type Retention struct {
	CauseLists time.Duration
	Logs       time.Duration
	FailedLogs time.Duration
}

// DefaultRetention keeps cause lists for 30 days, logs for 90 and failed
// attempts for a week.
var DefaultRetention = Retention{
	CauseLists: 30 * 24 * time.Hour,
	Logs:       90 * 24 * time.Hour,
	FailedLogs: 7 * 24 * time.Hour,
}

// CleanupResult counts the rows removed by Cleanup.
type CleanupResult struct {
	CauseListRows int64 `json:"deleted_cause_list_rows"`
	Logs          int64 `json:"deleted_logs"`
	FailedLogs    int64 `json:"deleted_failed_logs"`
}

// Courts lists the distinct courts known from cause lists and cases.
func (s *Store) Courts(ctx context.Context) ([]Court, error) {
	var courts []Court
	err := s.db.WithContext(ctx).Raw(`
		SELECT court_name AS name, court_type FROM cause_lists WHERE deleted_at IS NULL AND court_name <> ''
		UNION
		SELECT court_name AS name, court_type FROM cases WHERE deleted_at IS NULL AND court_name <> ''
		ORDER BY name, court_type`).Scan(&courts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list courts: %w", err)
	}
	return courts, nil
}

// CauseListStats counts stored rows with hearing dates in [from, to],
// optionally only for courts whose name contains court.
func (s *Store) CauseListStats(ctx context.Context, from, to time.Time, court string) (*CauseListStats, error) {
	from, to = dateOnly(from), dateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("date range ends before it starts")
	}

	rows := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&CauseListRow{}).Where("hearing_date BETWEEN ? AND ?", from, to)
		if court != "" {
			q = q.Where("LOWER(court_name) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(court))+"%")
		}
		return q
	}

	type bucket struct {
		Label string
		N     int64
	}
	var byCourt, byType []bucket
	if err := rows().Select("court_name AS label, COUNT(*) AS n").Group("court_name").Scan(&byCourt).Error; err != nil {
		return nil, fmt.Errorf("failed to count cause lists by court: %w", err)
	}
	if err := rows().Select("case_type AS label, COUNT(*) AS n").Group("case_type").Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("failed to count cause lists by case type: %w", err)
	}

	stats := &CauseListStats{
		From:      from,
		To:        to,
		CourtWise: make(map[string]int64, len(byCourt)),
		CaseTypes: make(map[string]int64, len(byType)),
	}
	for _, b := range byCourt {
		stats.CourtWise[b.Label] = b.N
		stats.TotalCases += b.N
	}
	for _, b := range byType {
		stats.CaseTypes[b.Label] = b.N
	}
	return stats, nil
}

// Cleanup removes cause list rows heard before the retention window and old
// attempt logs. Failed attempts have their own, shorter window.
func (s *Store) Cleanup(ctx context.Context, now time.Time, r Retention) (*CleanupResult, error) {
	res := &CleanupResult{}
	now = now.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.CauseLists > 0 {
			q := tx.Unscoped().Where("hearing_date < ?", dateOnly(now.Add(-r.CauseLists))).Delete(&CauseListRow{})
			if q.Error != nil {
				return q.Error
			}
			res.CauseListRows = q.RowsAffected
		}
		if r.FailedLogs > 0 {
			q := tx.Unscoped().Where("success = ? AND query_time < ?", false, now.Add(-r.FailedLogs)).Delete(&ScrapingLog{})
			if q.Error != nil {
				return q.Error
			}
			res.FailedLogs = q.RowsAffected
		}
		if r.Logs > 0 {
			q := tx.Unscoped().Where("query_time < ?", now.Add(-r.Logs)).Delete(&ScrapingLog{})
			if q.Error != nil {
				return q.Error
			}
			res.Logs = q.RowsAffected
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clean up old data: %w", err)
	}
	return res, nil
}
