package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Pending", StatusPending},
		{"  PENDING ", StatusPending},
		{"Listed for hearing", StatusPending},
		{"Case Disposed", StatusDisposed},
		{"Decided on 12-01-2024", StatusDisposed},
		{"Dismissed in default", StatusDismissed},
		{"ADMITTED", StatusAdmitted},
		{"Notice  issued", "Notice issued"},
		{"Pending for disposal", StatusPending},
		{"Pending - Not Disposed", StatusPending},
		{"Disposal pending", StatusPending},
		{"Not Admitted", "Not Admitted"},
		{"Yet to be decided", "Yet to be decided"},
		{"Undisposed", "Undisposed"},
		{"Pending, not admitted", StatusPending},
		{"Admitted and disposed", StatusDisposed},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestCaseRecordCloneIsDeep(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rec := &CaseRecord{
		CaseType:        "WP",
		NextHearingDate: &day,
		Judgments:       []Judgment{{ID: "a", JudgmentDate: &day}},
	}

	cp := rec.Clone()
	cp.Judgments[0].ID = "b"
	*cp.NextHearingDate = day.AddDate(0, 0, 1)
	*cp.Judgments[0].JudgmentDate = day.AddDate(0, 0, 2)

	assert.Equal(t, "a", rec.Judgments[0].ID)
	assert.Equal(t, day, *rec.NextHearingDate)
	assert.Equal(t, day, *rec.Judgments[0].JudgmentDate)
}

func TestCauseListCloneAndCounts(t *testing.T) {
	entries := []CauseListEntry{
		{CaseNumber: "1", CourtName: "Court 1"},
		{CaseNumber: "2", CourtName: "Court 1"},
		{CaseNumber: "3", CourtName: ""},
	}
	list := &CauseList{Entries: entries, CourtWiseCount: CountByCourt(entries)}

	assert.Equal(t, map[string]int{"Court 1": 2, "Unknown": 1}, list.CourtWiseCount)

	cp := list.Clone()
	cp.Entries[0].CaseNumber = "changed"
	cp.CourtWiseCount["Court 1"] = 9
	assert.Equal(t, "1", list.Entries[0].CaseNumber)
	assert.Equal(t, 2, list.CourtWiseCount["Court 1"])
}
