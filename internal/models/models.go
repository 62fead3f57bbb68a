// Package models holds the canonical, source-independent records produced by
// the extraction engine.
package models

import (
	"strings"
	"time"
)

type CourtType string

const (
	HighCourt     CourtType = "HIGH_COURT"
	DistrictCourt CourtType = "DISTRICT_COURT"
	SupremeCourt  CourtType = "SUPREME_COURT"
)

type JudgmentType string

const (
	JudgmentTypeJudgment JudgmentType = "JUDGMENT"
	JudgmentTypeOrder    JudgmentType = "ORDER"
	JudgmentTypeNotice   JudgmentType = "NOTICE"
)

// Closed status vocabulary. Statuses that match none of these are kept as free text.
const (
	StatusPending   = "Pending"
	StatusDisposed  = "Disposed"
	StatusAdmitted  = "Admitted"
	StatusDismissed = "Dismissed"
)

// CaseRecord is the canonical case representation. Once cached it is never
// mutated; a refresh replaces it wholesale.
type CaseRecord struct {
	CaseType          string     `json:"case_type"`
	CaseNumber        string     `json:"case_number"`
	Year              int        `json:"year"`
	CourtName         string     `json:"court_name"`
	CourtType         CourtType  `json:"court_type"`
	PartiesPetitioner string     `json:"parties_petitioner"`
	PartiesRespondent string     `json:"parties_respondent"`
	FilingDate        *time.Time `json:"filing_date,omitempty"`
	RegistrationDate  *time.Time `json:"registration_date,omitempty"`
	NextHearingDate   *time.Time `json:"next_hearing_date,omitempty"`
	CaseStatus        string     `json:"case_status"`
	JudgeName         string     `json:"judge_name"`
	CourtHall         string     `json:"court_hall,omitempty"`
	CaseCategory      string     `json:"case_category,omitempty"`
	Judgments         []Judgment `json:"judgment_list"`
	DataSource        string     `json:"data_source"`
	SourceURL         string     `json:"source_url,omitempty"`
	FetchedAt         time.Time  `json:"fetched_at"`
}

// Judgment is a judgment, order or notice attached to exactly one case.
type Judgment struct {
	ID           string       `json:"id"`
	JudgmentType JudgmentType `json:"judgment_type"`
	JudgmentDate *time.Time   `json:"judgment_date,omitempty"`
	Title        string       `json:"title,omitempty"`
	PDFURL       string       `json:"pdf_url,omitempty"`
	FileSize     int64        `json:"file_size"`
	IsAvailable  bool         `json:"is_available"`
}

// CauseListEntry is one case listed for hearing on a date.
type CauseListEntry struct {
	CaseType       string    `json:"case_type"`
	CaseNumber     string    `json:"case_number"`
	CaseYear       int       `json:"case_year"`
	CourtName      string    `json:"court_name"`
	CourtType      CourtType `json:"court_type"`
	JudgeName      string    `json:"judge_name"`
	HearingTime    string    `json:"hearing_time"`
	CourtHall      string    `json:"court_hall"`
	Parties        string    `json:"parties"`
	HearingPurpose string    `json:"hearing_purpose"`
	DataSource     string    `json:"data_source"`
}

// SourceFailure records why one portal could not contribute to a result.
type SourceFailure struct {
	Portal  string `json:"portal"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// CauseList is the merged hearing list for a date.
type CauseList struct {
	HearingDate    time.Time        `json:"hearing_date"`
	CourtFilter    string           `json:"court_filter,omitempty"`
	Entries        []CauseListEntry `json:"entries"`
	TotalCases     int              `json:"total_cases"`
	CourtWiseCount map[string]int   `json:"court_wise_count"`
	Partial        bool             `json:"partial"`
	Failures       []SourceFailure  `json:"failures,omitempty"`
	FetchedAt      time.Time        `json:"fetched_at"`
}

// NormalizeStatus maps free-form portal status text onto the closed vocabulary
// where it can be recognised. Only past-tense outcomes that are not negated
// ("not admitted", "yet to be disposed") count as terminal; anything else that
// is unclear is returned as trimmed text.
func NormalizeStatus(raw string) string {
	status := strings.Join(strings.Fields(raw), " ")
	lower := strings.ToLower(status)

	switch {
	case lower == "":
		return ""
	case asserts(lower, "dismissed"):
		return StatusDismissed
	case asserts(lower, "disposed"), asserts(lower, "decided"):
		return StatusDisposed
	case asserts(lower, "admitted"):
		return StatusAdmitted
	case strings.Contains(lower, "pending"), strings.Contains(lower, "listed"):
		return StatusPending
	}
	return status
}

// asserts reports whether word occurs in s at least once without a negation
// or future-tense marker in front of it.
func asserts(s, word string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		i += from
		from = i + len(word)

		head := s[:i]
		if strings.HasSuffix(head, "un") || strings.HasSuffix(head, "non") {
			continue
		}
		words := strings.Fields(strings.NewReplacer("-", " ", ":", " ", ",", " ").Replace(head))
		if len(words) > 0 {
			switch words[len(words)-1] {
			case "not", "never", "be", "yet":
				continue
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *CaseRecord) Clone() *CaseRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.FilingDate = cloneTime(r.FilingDate)
	out.RegistrationDate = cloneTime(r.RegistrationDate)
	out.NextHearingDate = cloneTime(r.NextHearingDate)
	if r.Judgments != nil {
		out.Judgments = make([]Judgment, len(r.Judgments))
		for i, j := range r.Judgments {
			j.JudgmentDate = cloneTime(j.JudgmentDate)
			out.Judgments[i] = j
		}
	}
	return &out
}

// Clone returns a deep copy of the list.
func (l *CauseList) Clone() *CauseList {
	if l == nil {
		return nil
	}
	out := *l
	if l.Entries != nil {
		out.Entries = append([]CauseListEntry(nil), l.Entries...)
	}
	if l.Failures != nil {
		out.Failures = append([]SourceFailure(nil), l.Failures...)
	}
	if l.CourtWiseCount != nil {
		out.CourtWiseCount = make(map[string]int, len(l.CourtWiseCount))
		for k, v := range l.CourtWiseCount {
			out.CourtWiseCount[k] = v
		}
	}
	return &out
}

// CountByCourt groups entries by court name.
func CountByCourt(entries []CauseListEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		name := e.CourtName
		if name == "" {
			name = "Unknown"
		}
		counts[name]++
	}
	return counts
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
