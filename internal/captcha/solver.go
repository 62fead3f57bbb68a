package captcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

var (
	ErrImageFetchFailed = errors.New("captcha image fetch failed")
	ErrLowConfidence    = errors.New("captcha answer below confidence")
	ErrTimeout          = errors.New("captcha solve timed out")
)

// SolveError wraps one of the solve sentinels with the underlying cause.
type SolveError struct {
	Kind        error
	ChallengeID string
	Err         error
}

func (e *SolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *SolveError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Charset presets.
const (
	CharsetAlnum  = "alnum"
	CharsetDigits = "digits"
)

const (
	alnumChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	digitChars = "0123456789"
)

// Options tune answer validation.
type Options struct {
	Charset string
	MinLen  int
	MaxLen  int
	Timeout time.Duration
}

// Solver fetches, cleans and reads captcha images. Each call is a single
// attempt; retry policy belongs to the caller.
type Solver struct {
	recognizer Recognizer
	chars      string
	opts       Options
	logger     *logger.Logger
}

// NewSolver creates a solver. Charset is "alnum", "digits" or a literal set of
// allowed characters.
func NewSolver(recognizer Recognizer, opts Options, log *logger.Logger) *Solver {
	if opts.MinLen <= 0 {
		opts.MinLen = 4
	}
	if opts.MaxLen < opts.MinLen {
		opts.MaxLen = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Solver{
		recognizer: recognizer,
		chars:      CharsFor(opts.Charset),
		opts:       opts,
		logger:     log,
	}
}

// CharsFor expands a charset preset.
func CharsFor(charset string) string {
	switch strings.ToLower(charset) {
	case "", CharsetAlnum:
		return alnumChars
	case CharsetDigits:
		return digitChars
	}
	return charset
}

// Solve returns the answer for ch. The image is fetched through tr with the
// same identity that received the challenge so the portal session matches.
func (s *Solver) Solve(ctx context.Context, ch *Challenge, tr scraper.Transport, id identity.Identity) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	fail := func(kind, err error) (string, error) {
		if ctx.Err() != nil {
			kind = ErrTimeout
		}
		s.logger.Warn("Captcha solve failed",
			"challenge", ch.ID,
			"reason", kind.Error(),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", &SolveError{Kind: kind, ChallengeID: ch.ID, Err: err}
	}

	img := ch.Image
	if len(img) == 0 {
		if ch.ImageURL == "" {
			return fail(ErrImageFetchFailed, errors.New("challenge has no image"))
		}
		resp, err := tr.Do(ctx, &scraper.Request{
			Method:   http.MethodGet,
			URL:      ch.ImageURL,
			Identity: id,
			Headers:  http.Header{"Accept": {"image/*"}},
		})
		if err != nil {
			return fail(ErrImageFetchFailed, err)
		}
		if resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
			return fail(ErrImageFetchFailed, fmt.Errorf("image status %d, %d bytes", resp.StatusCode, len(resp.Body)))
		}
		img = resp.Body
	}

	cleaned, err := Preprocess(img)
	if err != nil {
		return fail(ErrImageFetchFailed, err)
	}

	text, err := s.recognizer.Recognize(ctx, cleaned)
	if err != nil {
		return fail(ErrLowConfidence, err)
	}

	answer := Clean(text, s.chars)
	if len(answer) < s.opts.MinLen || len(answer) > s.opts.MaxLen {
		return fail(ErrLowConfidence, fmt.Errorf("answer %q has length %d, want %d-%d", answer, len(answer), s.opts.MinLen, s.opts.MaxLen))
	}

	s.logger.Debug("Captcha solved",
		"challenge", ch.ID,
		"length", len(answer),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

// Clean keeps only characters in chars.
func Clean(text, chars string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(chars, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
