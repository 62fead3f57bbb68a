package extractor

import (
	"errors"
	"fmt"

	"github.com/JustJay7/ecourts-extractor/internal/models"
)

// Kind classifies a failed query.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindTransient    Kind = "transient"
	KindParseFailed  Kind = "parse_failed"
	KindTimeout      Kind = "timeout"
	KindSystem       Kind = "system_error"
	KindInvalidInput Kind = "invalid_input"
)

// Reason codes let operators tell a truly absent record from a broken source.
const (
	ReasonNotFound           = "not_found"
	ReasonSourcesUnavailable = "sources_unavailable"
	ReasonParseFailed        = "adapter_parse_failed"
	ReasonDeadlineExceeded   = "deadline_exceeded"
	ReasonInvalidQuery       = "invalid_query"
	ReasonNoAdapters         = "no_adapters"
	ReasonSystem             = "system_error"

	reasonFatal = "fatal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrTimeout      = errors.New("deadline exceeded")
	ErrSystem       = errors.New("system error")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is returned by every orchestrator operation that fails.
type Error struct {
	Kind     Kind
	Reason   string
	Message  string
	Failures []models.SourceFailure
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%s)", e.Message, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrSystem:
		return e.Kind == KindSystem
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	}
	return false
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Reason: ReasonInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

func timeoutError(err error) *Error {
	return &Error{Kind: KindTimeout, Reason: ReasonDeadlineExceeded, Message: "extraction deadline exceeded", Err: err}
}

// exhausted builds the NotFound returned when no source produced a result.
// The reason says whether sources were reachable at all.
func exhausted(failures []models.SourceFailure) *Error {
	reason := ReasonNotFound
	message := "record not found in any source"

	transient, parse, fatal := 0, 0, 0
	for _, f := range failures {
		switch f.Reason {
		case string(KindTransient):
			transient++
		case string(KindParseFailed):
			parse++
		case reasonFatal:
			fatal++
		}
	}
	switch {
	case len(failures) == 0:
	case fatal == len(failures):
		return &Error{Kind: KindSystem, Reason: ReasonSystem, Message: "no source could be queried", Failures: failures}
	case parse > 0 && parse+transient+fatal == len(failures):
		reason = ReasonParseFailed
		message = "sources returned pages that could not be parsed"
	case transient+fatal == len(failures):
		reason = ReasonSourcesUnavailable
		message = "sources unavailable after retries"
	}

	return &Error{Kind: KindNotFound, Reason: reason, Message: message, Failures: failures}
}

// ReasonOf returns the reason code of err, or ReasonSystem for foreign errors.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonSystem
}
