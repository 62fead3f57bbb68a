package extractor

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCase(t *testing.T) {
	fetched := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	raw := &portal.RawCaseData{
		Portal:           "delhi_hc",
		CourtType:        models.HighCourt,
		CourtName:        "  High Court of Delhi ",
		SourceURL:        "https://hc.example/case",
		Petitioner:       "1) Ram Kumar Advocate- S. Gupta",
		Respondent:       "1) Union of India 2) State of Delhi",
		Status:           "  CASE PENDING  ",
		FilingDate:       "05-01-2024",
		RegistrationDate: "not a date",
		NextHearingDate:  "Friday, 15th March 2024",
		Judge:            "Hon'ble Mr. Justice A. Sharma",
		Orders: []portal.RawOrder{
			{Title: "Order", Date: "2024-01-15", Href: "https://hc.example/1.pdf", Size: "245 KB"},
			{Title: "Order", Date: "2024-01-15", Href: "https://hc.example/1.pdf", Size: "245 KB"},
			{Title: "Final Judgment", Date: "2024-02-20", Kind: models.JudgmentTypeJudgment},
		},
	}

	rec := NormalizeCase(raw, portal.CaseQuery{CaseType: "wp (c)", CaseNumber: " 1234 ", Year: 2024}, fetched)

	assert.Equal(t, "WP(C)", rec.CaseType)
	assert.Equal(t, "1234", rec.CaseNumber)
	assert.Equal(t, 2024, rec.Year)
	assert.Equal(t, "High Court of Delhi", rec.CourtName)
	assert.Equal(t, "Ram Kumar", rec.PartiesPetitioner)
	assert.Equal(t, "Union of India, State of Delhi", rec.PartiesRespondent)
	assert.Equal(t, models.StatusPending, rec.CaseStatus)
	require.NotNil(t, rec.FilingDate)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *rec.FilingDate)
	assert.Nil(t, rec.RegistrationDate)
	require.NotNil(t, rec.NextHearingDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *rec.NextHearingDate)
	assert.Equal(t, "delhi_hc", rec.DataSource)
	assert.Equal(t, fetched, rec.FetchedAt)

	require.Len(t, rec.Judgments, 2, "duplicate documents collapse into one judgment")
	order := rec.Judgments[0]
	assert.Equal(t, models.JudgmentTypeOrder, order.JudgmentType)
	assert.True(t, order.IsAvailable)
	assert.Equal(t, int64(245*1024), order.FileSize)

	judgment := rec.Judgments[1]
	assert.Equal(t, models.JudgmentTypeJudgment, judgment.JudgmentType)
	assert.False(t, judgment.IsAvailable)
	assert.Empty(t, judgment.PDFURL)

	again := NormalizeCase(raw, portal.CaseQuery{CaseType: "WP(C)", CaseNumber: "1234", Year: 2024}, fetched.Add(time.Hour))
	assert.Equal(t, order.ID, again.Judgments[0].ID, "judgment ids are deterministic")
}

func TestJudgmentIDDependsOnCase(t *testing.T) {
	a := JudgmentID(cache.CaseKey("WP", "1", 2024), "https://x/1.pdf", "2024-01-01")
	b := JudgmentID(cache.CaseKey("WP", "2", 2024), "https://x/1.pdf", "2024-01-01")
	c := JudgmentID(cache.CaseKey("WP", "1", 2024), "https://x/1.pdf", "2024-01-02")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}

func TestNormalizeCauseList(t *testing.T) {
	raw := &portal.RawCauseListData{
		Portal:    "delhi_hc",
		CourtType: models.HighCourt,
		CourtName: "Delhi High Court",
		Rows: []portal.RawCauseListRow{
			{CaseRef: "WP(C)/1234/2024", Parties: " Ram Kumar vs Union of India ", Court: "COURT NO. 1", Time: "10:30 AM", Purpose: "For Admission"},
			{CaseRef: "100/2023", CaseType: "cs", Parties: "ABC vs XYZ"},
			{CaseRef: "CS 100/2023", CaseType: "cs (os)"},
			{CaseRef: "no reference"},
		},
	}

	entries := NormalizeCauseList(raw)
	require.Len(t, entries, 3)

	assert.Equal(t, "WP(C)", entries[0].CaseType)
	assert.Equal(t, "1234", entries[0].CaseNumber)
	assert.Equal(t, 2024, entries[0].CaseYear)
	assert.Equal(t, "COURT NO. 1", entries[0].CourtName)
	assert.Equal(t, "Ram Kumar vs Union of India", entries[0].Parties)
	assert.Equal(t, "For Admission", entries[0].HearingPurpose)
	assert.Equal(t, models.HighCourt, entries[0].CourtType)

	assert.Equal(t, "CS", entries[1].CaseType)
	assert.Equal(t, "100", entries[1].CaseNumber)
	assert.Equal(t, 2023, entries[1].CaseYear)
	assert.Equal(t, "Delhi High Court", entries[1].CourtName)

	assert.Equal(t, "CS(OS)", entries[2].CaseType)
}

func TestFilterCourtAndMatchCase(t *testing.T) {
	entries := []models.CauseListEntry{
		{CaseType: "WP(C)", CaseNumber: "0042", CaseYear: 2024, CourtName: "Court No. 3"},
		{CaseType: "WP(C)", CaseNumber: "42", CaseYear: 2023, CourtName: "Court No. 4"},
		{CaseType: "CS", CaseNumber: "42", CaseYear: 2024, CourtName: "court no. 3"},
	}

	assert.Len(t, FilterCourt(entries, ""), 3)
	assert.Len(t, FilterCourt(entries, " COURT NO. 3 "), 2)
	assert.Empty(t, FilterCourt(entries, "Court No. 9"))

	matches := MatchCase(entries, "wp(c)", "42", 2024)
	require.Len(t, matches, 1)
	assert.Equal(t, "Court No. 3", matches[0].CourtName)
}

func TestBackoffNonDecreasingAndCapped(t *testing.T) {
	b := NewBackoff(50*time.Millisecond, 2*time.Second, 0.3)
	rng := rand.New(rand.NewPCG(1, 2))
	b.rand = rng.Float64

	var prev time.Duration
	for attempt := 0; attempt < 12; attempt++ {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 2*time.Second)
		prev = d
	}
	assert.Equal(t, 2*time.Second, b.Delay(40))
}

func TestBackoffWithoutJitter(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 0)
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 800*time.Millisecond, b.Delay(3))
	assert.Equal(t, time.Second, b.Delay(4))

	clamped := NewBackoff(time.Second, 10*time.Millisecond, 5)
	assert.Equal(t, time.Second, clamped.Cap)
	assert.Equal(t, 1.0, clamped.Jitter)
	assert.Equal(t, time.Duration(0), Backoff{}.Delay(3))
}
