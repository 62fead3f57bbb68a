package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JustJay7/ecourts-extractor/internal/captcha"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

// base carries what every adapter shares: identity of the portal and the
// GET form / detect captcha / POST flow.
type base struct {
	cfg       Config
	courtType models.CourtType
	logger    *logger.Logger
}

func (b *base) Name() string                { return b.cfg.Name }
func (b *base) CourtType() models.CourtType { return b.courtType }

func (b *base) url(path string) string {
	return strings.TrimRight(b.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (b *base) fail(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Portal: b.cfg.Name, Message: msg, Err: err}
}

// formStep describes one captcha-gated form submission.
type formStep struct {
	formURL     string
	actionURL   string
	fields      url.Values
	answerField string
	headers     http.Header
}

// submit runs the form flow. Without an answer it loads the form page first and
// returns a CaptchaRequired error when the page carries a captcha. With an
// answer it posts straight away using the challenge's hidden fields, so the
// token bound to the identity's session is reused.
func (b *base) submit(ctx context.Context, sess *Session, step formStep) (*scraper.Response, error) {
	var form url.Values

	if sess.Answer != nil && sess.Answer.Challenge != nil {
		form = sess.Answer.Challenge.Form(sess.Answer.Text)
		if step.answerField != "" {
			form.Set(step.answerField, sess.Answer.Text)
		}
	} else {
		page, err := b.do(ctx, sess, &scraper.Request{Method: http.MethodGet, URL: step.formURL})
		if err != nil {
			return nil, err
		}
		if ch := captcha.Detect(page.Body); ch != nil {
			ch.Resolve(page.URL.String())
			b.logger.Debug("Captcha challenge on form", "portal", b.cfg.Name, "challenge", ch.ID)
			return nil, &Error{Kind: KindCaptchaRequired, Portal: b.cfg.Name, Challenge: ch}
		}
		form = hiddenFields(page.Body)
	}

	for k, vs := range step.fields {
		form[k] = vs
	}

	return b.do(ctx, sess, &scraper.Request{
		Method:  http.MethodPost,
		URL:     step.actionURL,
		Form:    form,
		Headers: step.headers,
	})
}

// do sends a request through the session and maps transport outcomes to kinds.
func (b *base) do(ctx context.Context, sess *Session, req *scraper.Request) (*scraper.Response, error) {
	req.Identity = sess.Identity
	resp, err := sess.Transport.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, b.fail(KindTransient, "request failed", err)
	}
	return resp, b.classify(resp)
}

// classify maps HTTP statuses. A 404 means the endpoint moved, which no retry fixes.
func (b *base) classify(resp *scraper.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case scraper.IsRateLimited(resp):
		return b.fail(KindTransient, fmt.Sprintf("rate limited (status %d)", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return b.fail(KindTransient, fmt.Sprintf("server error (status %d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return b.fail(KindParseFailed, "endpoint not found", nil)
	}
	return b.fail(KindFatal, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
}

// checkPage looks for the portal telling us the answer was wrong or the record
// is absent. A fresh challenge on a results page is reported with the challenge.
func (b *base) checkPage(body []byte, text string, base string) error {
	if scraper.IsCaptchaRejected(text) {
		e := b.fail(KindCaptchaRequired, "captcha rejected", nil)
		if ch := captcha.Detect(body); ch != nil {
			ch.Resolve(base)
			e.Challenge = ch
		}
		return e
	}
	if scraper.IsNotFoundText(text) {
		return b.fail(KindNotFound, "portal reported no record", nil)
	}
	return nil
}

// safeParse converts a parser panic into ParseFailed.
func (b *base) safeParse(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Parser panic", "portal", b.cfg.Name, "panic", r)
			err = b.fail(KindParseFailed, fmt.Sprintf("parser panic: %v", r), nil)
		}
	}()
	return fn()
}

// hiddenFields collects hidden inputs from the first form on a page.
func hiddenFields(body []byte) url.Values {
	out := url.Values{}
	doc, err := scraper.NewDocument(body)
	if err != nil {
		return out
	}
	form := doc.Find("form").First()
	if form.Length() == 0 {
		form = doc.Selection
	}
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok && name != "" {
			value, _ := s.Attr("value")
			out.Set(name, value)
		}
	})
	return out
}

func responseURL(resp *scraper.Response, fallback string) string {
	if resp != nil && resp.URL != nil {
		return resp.URL.String()
	}
	return fallback
}
