package extractor

import (
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/portal"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/google/uuid"
)

// judgmentNamespace scopes judgment ids so the same document always gets the same id.
var judgmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ecourts-extractor/judgment"))

// NormalizeCase turns raw adapter output into a canonical record. Query values
// fill in identity fields the page did not repeat.
func NormalizeCase(raw *portal.RawCaseData, q portal.CaseQuery, fetchedAt time.Time) *models.CaseRecord {
	rec := &models.CaseRecord{
		CaseType:          cache.NormalizeCaseType(firstNonEmpty(raw.CaseType, q.CaseType)),
		CaseNumber:        strings.TrimSpace(firstNonEmpty(raw.CaseNumber, q.CaseNumber)),
		Year:              raw.Year,
		CourtName:         scraper.CleanText(raw.CourtName),
		CourtType:         raw.CourtType,
		PartiesPetitioner: parties(raw.Petitioner),
		PartiesRespondent: parties(raw.Respondent),
		FilingDate:        datePtr(raw.FilingDate),
		RegistrationDate:  datePtr(raw.RegistrationDate),
		NextHearingDate:   datePtr(raw.NextHearingDate),
		CaseStatus:        models.NormalizeStatus(raw.Status),
		JudgeName:         scraper.CleanText(raw.Judge),
		CourtHall:         scraper.CleanText(raw.CourtHall),
		CaseCategory:      scraper.CleanText(raw.Category),
		DataSource:        raw.Portal,
		SourceURL:         raw.SourceURL,
		FetchedAt:         fetchedAt,
	}
	if rec.Year == 0 {
		rec.Year = q.Year
	}

	fp := cache.CaseKey(rec.CaseType, rec.CaseNumber, rec.Year)
	rec.Judgments = normalizeJudgments(raw.Orders, fp)
	return rec
}

func normalizeJudgments(orders []portal.RawOrder, fp cache.Fingerprint) []models.Judgment {
	out := make([]models.Judgment, 0, len(orders))
	seen := make(map[string]bool, len(orders))

	for _, o := range orders {
		id := JudgmentID(fp, o.Href, o.Date)
		if seen[id] {
			continue
		}
		seen[id] = true

		kind := o.Kind
		if kind == "" {
			kind = models.JudgmentTypeOrder
		}
		out = append(out, models.Judgment{
			ID:           id,
			JudgmentType: kind,
			JudgmentDate: datePtr(o.Date),
			Title:        scraper.CleanText(o.Title),
			PDFURL:       o.Href,
			FileSize:     scraper.ParseSize(o.Size),
			IsAvailable:  o.Href != "",
		})
	}
	return out
}

// JudgmentID derives a stable id from the owning case, document url and date.
func JudgmentID(fp cache.Fingerprint, href, date string) string {
	return uuid.NewSHA1(judgmentNamespace, []byte(string(fp)+"|"+href+"|"+date)).String()
}

// NormalizeCauseList converts one portal's rows into entries. Rows without a
// parseable case reference are dropped.
func NormalizeCauseList(raw *portal.RawCauseListData) []models.CauseListEntry {
	entries := make([]models.CauseListEntry, 0, len(raw.Rows))

	for _, row := range raw.Rows {
		caseType, number, year, ok := scraper.ParseCaseRef(row.CaseRef)
		if !ok && row.CaseType != "" {
			// some lists carry the type in its own column and only "number/year" here
			_, number, year, ok = scraper.ParseCaseRef(row.CaseType + "/" + row.CaseRef)
		}
		if !ok {
			continue
		}
		if row.CaseType != "" {
			caseType = row.CaseType
		}

		entries = append(entries, models.CauseListEntry{
			CaseType:       cache.NormalizeCaseType(caseType),
			CaseNumber:     number,
			CaseYear:       year,
			CourtName:      scraper.CleanText(firstNonEmpty(row.Court, raw.CourtName)),
			CourtType:      raw.CourtType,
			JudgeName:      scraper.CleanText(row.Judge),
			HearingTime:    scraper.CleanText(row.Time),
			CourtHall:      scraper.CleanText(row.CourtHall),
			Parties:        scraper.CleanText(row.Parties),
			HearingPurpose: scraper.CleanText(row.Purpose),
			DataSource:     raw.Portal,
		})
	}
	return entries
}

// FilterCourt keeps entries whose court name contains filter, case-insensitively.
func FilterCourt(entries []models.CauseListEntry, filter string) []models.CauseListEntry {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.CourtName), filter) {
			out = append(out, e)
		}
	}
	return out
}

// MatchCase returns the entries listing the given case.
func MatchCase(entries []models.CauseListEntry, caseType, caseNumber string, year int) []models.CauseListEntry {
	caseType = cache.NormalizeCaseType(caseType)
	caseNumber = strings.TrimLeft(strings.TrimSpace(caseNumber), "0")

	var out []models.CauseListEntry
	for _, e := range entries {
		if e.CaseType == caseType && e.CaseYear == year && strings.TrimLeft(e.CaseNumber, "0") == caseNumber {
			out = append(out, e)
		}
	}
	return out
}

func parties(raw string) string {
	if joined := scraper.JoinParties(raw); joined != "" {
		return joined
	}
	return scraper.CleanText(raw)
}

func datePtr(s string) *time.Time {
	d, ok := scraper.ParseDate(s)
	if !ok {
		return nil
	}
	return &d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
