package database

import (
	"time"

	"gorm.io/gorm"
)

// ScrapingLog records one extraction request as seen by the API layer.
type ScrapingLog struct {
	gorm.Model
	Operation       string    `json:"operation" gorm:"index"`
	Fingerprint     string    `json:"fingerprint"`
	Success         bool      `json:"success"`
	Cached          bool      `json:"cached"`
	Reason          string    `json:"reason"`
	ErrorMessage    string    `json:"error_message"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	QueryTime       time.Time `json:"query_time"`
	IPAddress       string    `json:"ip_address"`
}

// Case is the stored form of a case record, unique by type, number and year.
type Case struct {
	gorm.Model
	CaseType         string     `json:"case_type" gorm:"uniqueIndex:idx_case_identity"`
	CaseNumber       string     `json:"case_number" gorm:"uniqueIndex:idx_case_identity"`
	Year             int        `json:"year" gorm:"uniqueIndex:idx_case_identity"`
	CourtName        string     `json:"court_name"`
	CourtType        string     `json:"court_type"`
	Petitioner       string     `json:"petitioner"`
	Respondent       string     `json:"respondent"`
	FilingDate       *time.Time `json:"filing_date"`
	RegistrationDate *time.Time `json:"registration_date"`
	NextHearingDate  *time.Time `json:"next_hearing_date"`
	Status           string     `json:"status"`
	Judge            string     `json:"judge"`
	CourtHall        string     `json:"court_hall"`
	Category         string     `json:"category"`
	DataSource       string     `json:"data_source"`
	SourceURL        string     `json:"source_url"`
	FetchedAt        time.Time  `json:"fetched_at"`
	Parties          []Party    `json:"parties" gorm:"foreignKey:CaseID"`
	Judgments        []Judgment `json:"judgments" gorm:"foreignKey:CaseID"`
}

type Party struct {
	gorm.Model
	CaseID uint   `json:"case_id" gorm:"index"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

type Judgment struct {
	gorm.Model
	CaseID       uint       `json:"case_id" gorm:"index"`
	ExternalID   string     `json:"external_id" gorm:"index"`
	JudgmentType string     `json:"judgment_type"`
	JudgmentDate *time.Time `json:"judgment_date"`
	Title        string     `json:"title"`
	PDFURL       string     `json:"pdf_url"`
	FileSize     int64      `json:"file_size"`
	IsAvailable  bool       `json:"is_available"`
}

// CauseListRow is one stored cause list entry.
type CauseListRow struct {
	gorm.Model
	HearingDate    time.Time `json:"hearing_date" gorm:"index"`
	CaseType       string    `json:"case_type"`
	CaseNumber     string    `json:"case_number"`
	CaseYear       int       `json:"case_year"`
	CourtName      string    `json:"court_name"`
	CourtType      string    `json:"court_type"`
	JudgeName      string    `json:"judge_name"`
	HearingTime    string    `json:"hearing_time"`
	CourtHall      string    `json:"court_hall"`
	Parties        string    `json:"parties"`
	HearingPurpose string    `json:"hearing_purpose"`
	DataSource     string    `json:"data_source"`
}

func (ScrapingLog) TableName() string {
	return "scraping_logs"
}

func (Case) TableName() string {
	return "cases"
}

func (Party) TableName() string {
	return "parties"
}

func (Judgment) TableName() string {
	return "judgments"
}

func (CauseListRow) TableName() string {
	return "cause_lists"
}
