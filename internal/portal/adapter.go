// Package portal holds one adapter per court portal family. Adapters turn a
// query into raw extracted fields; they never retry and never cache.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/captcha"
	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
)

// Kind classifies an adapter failure.
type Kind string

const (
	KindCaptchaRequired Kind = "captcha_required"
	KindNotFound        Kind = "not_found"
	KindTransient       Kind = "transient"
	KindParseFailed     Kind = "parse_failed"
	KindFatal           Kind = "fatal"
)

// Error is the only error type adapters return, apart from context errors.
type Error struct {
	Kind      Kind
	Portal    string
	Message   string
	Challenge *captcha.Challenge
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Portal, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an adapter error, or "" for other errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// CaseQuery identifies one case.
type CaseQuery struct {
	CaseType   string
	CaseNumber string
	Year       int
}

func (q CaseQuery) String() string {
	return fmt.Sprintf("%s %s/%d", q.CaseType, q.CaseNumber, q.Year)
}

// CauseListQuery asks for the hearing list of one date.
type CauseListQuery struct {
	Date  time.Time
	Court string
}

// Answer is a solved captcha to resubmit with.
type Answer struct {
	Challenge *captcha.Challenge
	Text      string
}

// Session is the per-attempt context an adapter works in. The challenge in an
// Answer is only valid with the same Identity that received it.
type Session struct {
	Transport scraper.Transport
	Identity  identity.Identity
	Answer    *Answer
}

// RawOrder is one order or judgment row as found on the page.
type RawOrder struct {
	Title string
	Date  string
	Href  string
	Size  string
	Kind  models.JudgmentType
}

// RawCaseData is what an adapter extracted for a case, before normalization.
type RawCaseData struct {
	Portal    string
	CourtType models.CourtType
	CourtName string
	SourceURL string

	CaseType   string
	CaseNumber string
	Year       int

	Petitioner       string
	Respondent       string
	Status           string
	FilingDate       string
	RegistrationDate string
	NextHearingDate  string
	Judge            string
	CourtHall        string
	Category         string

	Orders []RawOrder
	Fields scraper.Fields
}

// RawCauseListRow is one row of a hearing list table.
type RawCauseListRow struct {
	CaseRef   string
	CaseType  string
	Parties   string
	CourtHall string
	Judge     string
	Time      string
	Purpose   string
	Court     string
}

// RawCauseListData is one portal's hearing list for a date.
type RawCauseListData struct {
	Portal    string
	CourtType models.CourtType
	CourtName string
	SourceURL string
	Date      time.Time
	Rows      []RawCauseListRow
}

// Adapter is implemented by every portal family.
type Adapter interface {
	Name() string
	CourtType() models.CourtType
	SearchCase(ctx context.Context, q CaseQuery, sess *Session) (*RawCaseData, error)
	FetchCauseList(ctx context.Context, q CauseListQuery, sess *Session) (*RawCauseListData, error)
}
