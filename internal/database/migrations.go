package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations creates the secondary indexes AutoMigrate does not declare.
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_scraping_logs_time ON scraping_logs(query_time)`,
		`CREATE INDEX IF NOT EXISTS idx_cause_lists_case ON cause_lists(case_type, case_number, case_year)`,
		`CREATE INDEX IF NOT EXISTS idx_cause_lists_court ON cause_lists(hearing_date, court_name)`,
		`CREATE INDEX IF NOT EXISTS idx_judgments_date ON judgments(judgment_date)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
