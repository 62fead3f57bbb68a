package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"gorm.io/gorm"
)

// Store persists extraction results written by the API layer.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveCase upserts a case by type, number and year. Parties and judgments are
// replaced with the record's current ones.
func (s *Store) SaveCase(ctx context.Context, rec *models.CaseRecord) (uint, error) {
	var id uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Case
		err := tx.Where("case_type = ? AND case_number = ? AND year = ?", rec.CaseType, rec.CaseNumber, rec.Year).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		}

		row := caseRow(rec)
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt

		if existing.ID != 0 {
			if err := tx.Unscoped().Where("case_id = ?", existing.ID).Delete(&Party{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("case_id = ?", existing.ID).Delete(&Judgment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save case %s/%s/%d: %w", rec.CaseType, rec.CaseNumber, rec.Year, err)
	}
	return id, nil
}

// FindCase loads a stored case with its parties and judgments.
func (s *Store) FindCase(ctx context.Context, caseType, caseNumber string, year int) (*Case, error) {
	var c Case
	err := s.db.WithContext(ctx).
		Preload("Parties").
		Preload("Judgments").
		Where("case_type = ? AND case_number = ? AND year = ?", caseType, caseNumber, year).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCauseList replaces the stored rows for the list's date and sources.
func (s *Store) SaveCauseList(ctx context.Context, list *models.CauseList) (int, error) {
	sources := make(map[string]bool)
	rows := make([]CauseListRow, 0, len(list.Entries))
	for _, e := range list.Entries {
		sources[e.DataSource] = true
		rows = append(rows, CauseListRow{
			HearingDate:    dateOnly(list.HearingDate),
			CaseType:       e.CaseType,
			CaseNumber:     e.CaseNumber,
			CaseYear:       e.CaseYear,
			CourtName:      e.CourtName,
			CourtType:      string(e.CourtType),
			JudgeName:      e.JudgeName,
			HearingTime:    e.HearingTime,
			CourtHall:      e.CourtHall,
			Parties:        e.Parties,
			HearingPurpose: e.HearingPurpose,
			DataSource:     e.DataSource,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for source := range sources {
			if err := tx.Unscoped().
				Where("hearing_date = ? AND data_source = ?", dateOnly(list.HearingDate), source).
				Delete(&CauseListRow{}).Error; err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save cause list for %s: %w", list.HearingDate.Format("2006-01-02"), err)
	}
	return len(rows), nil
}

// CauseListRows returns stored rows for a date, optionally for courts whose
// name contains court.
func (s *Store) CauseListRows(ctx context.Context, date time.Time, court string) ([]CauseListRow, error) {
	q := s.db.WithContext(ctx).Where("hearing_date = ?", dateOnly(date))
	if court != "" {
		q = q.Where("LOWER(court_name) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(court))+"%")
	}
	var rows []CauseListRow
	if err := q.Order("court_name, hearing_time").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LogAttempt records one API extraction attempt.
func (s *Store) LogAttempt(ctx context.Context, entry *ScrapingLog) error {
	if entry.QueryTime.IsZero() {
		entry.QueryTime = time.Now()
	}
	// stored as text, so one zone keeps range comparisons ordered
	entry.QueryTime = entry.QueryTime.UTC()
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log attempt: %w", err)
	}
	return nil
}

// RecentLogs returns the newest attempts first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]ScrapingLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []ScrapingLog
	err := s.db.WithContext(ctx).Order("query_time DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func caseRow(rec *models.CaseRecord) Case {
	row := Case{
		CaseType:         rec.CaseType,
		CaseNumber:       rec.CaseNumber,
		Year:             rec.Year,
		CourtName:        rec.CourtName,
		CourtType:        string(rec.CourtType),
		Petitioner:       rec.PartiesPetitioner,
		Respondent:       rec.PartiesRespondent,
		FilingDate:       rec.FilingDate,
		RegistrationDate: rec.RegistrationDate,
		NextHearingDate:  rec.NextHearingDate,
		Status:           rec.CaseStatus,
		Judge:            rec.JudgeName,
		CourtHall:        rec.CourtHall,
		Category:         rec.CaseCategory,
		DataSource:       rec.DataSource,
		SourceURL:        rec.SourceURL,
		FetchedAt:        rec.FetchedAt,
	}

	for _, name := range splitNames(rec.PartiesPetitioner) {
		row.Parties = append(row.Parties, Party{Name: name, Type: "petitioner"})
	}
	for _, name := range splitNames(rec.PartiesRespondent) {
		row.Parties = append(row.Parties, Party{Name: name, Type: "respondent"})
	}
	for _, j := range rec.Judgments {
		row.Judgments = append(row.Judgments, Judgment{
			ExternalID:   j.ID,
			JudgmentType: string(j.JudgmentType),
			JudgmentDate: j.JudgmentDate,
			Title:        j.Title,
			PDFURL:       j.PDFURL,
			FileSize:     j.FileSize,
			IsAvailable:  j.IsAvailable,
		})
	}
	return row
}

func splitNames(parties string) []string {
	var names []string
	for _, name := range strings.Split(parties, ",") {
		if name = scraper.CleanText(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
