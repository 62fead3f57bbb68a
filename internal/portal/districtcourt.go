package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JustJay7/ecourts-extractor/internal/captcha"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

// DistrictCourt talks to ecourts v6-style district portals. Searches post to an
// ajax endpoint that answers with a JSON envelope wrapping an HTML fragment.
type DistrictCourt struct {
	base
}

// envelope is the ajax response shape.
type envelope struct {
	Status     json.RawMessage `json:"status"`
	ErrorMsg   string          `json:"errormsg"`
	CaseData   string          `json:"case_data"`
	CauseList  string          `json:"cause_list"`
	DivCaptcha string          `json:"div_captcha"`
}

func (e envelope) ok() bool {
	s := strings.Trim(string(e.Status), `" `)
	return s == "1" || strings.EqualFold(s, "true") || strings.EqualFold(s, "success")
}

var ajaxHeaders = http.Header{"X-Requested-With": {"XMLHttpRequest"}}

// NewDistrictCourt creates the adapter.
func NewDistrictCourt(cfg Config, log *logger.Logger) *DistrictCourt {
	if cfg.CourtName == "" {
		cfg.CourtName = "District Court"
	}
	return &DistrictCourt{base{cfg: cfg, courtType: models.DistrictCourt, logger: log}}
}

func (d *DistrictCourt) SearchCase(ctx context.Context, q CaseQuery, sess *Session) (*RawCaseData, error) {
	fields := url.Values{
		"case_type":          {q.CaseType},
		"search_case_no":     {q.CaseNumber},
		"rgyear":             {strconv.Itoa(q.Year)},
		"state_code":         {d.cfg.StateCode},
		"dist_code":          {d.cfg.DistrictCode},
		"court_complex_code": {d.cfg.CourtCode},
		"ajax_req":           {"true"},
	}

	d.logger.Debug("Searching District Court", "portal", d.cfg.Name, "case", q.String(), "identity", sess.Identity.Name)

	resp, err := d.submit(ctx, sess, formStep{
		formURL:     d.url("?p=casestatus/index"),
		actionURL:   d.url("?p=casestatus/submitCaseNo"),
		fields:      fields,
		answerField: "case_captcha_code",
		headers:     ajaxHeaders,
	})
	if err != nil {
		return nil, err
	}

	raw := &RawCaseData{
		Portal:    d.cfg.Name,
		CourtType: models.DistrictCourt,
		CourtName: d.cfg.CourtName,
		SourceURL: responseURL(resp, d.url("?p=casestatus/index")),
	}

	err = d.safeParse(func() error {
		fragment, err := d.unwrap(resp.Body, raw.SourceURL, false)
		if err != nil {
			return err
		}
		doc, err := scraper.NewDocument([]byte(fragment))
		if err != nil {
			return d.fail(KindParseFailed, "invalid html fragment", err)
		}
		if !parseCaseDetails(doc.Selection, raw) {
			if scraper.IsNotFoundText(doc.Text()) {
				return d.fail(KindNotFound, "portal reported no record", nil)
			}
			return d.fail(KindParseFailed, "no case details in fragment", nil)
		}
		raw.CaseType, raw.CaseNumber, raw.Year = q.CaseType, q.CaseNumber, q.Year
		raw.Orders = parseOrders(doc.Selection, raw.SourceURL)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (d *DistrictCourt) FetchCauseList(ctx context.Context, q CauseListQuery, sess *Session) (*RawCauseListData, error) {
	fields := url.Values{
		"causelist_date":     {q.Date.Format("02-01-2006")},
		"state_code":         {d.cfg.StateCode},
		"dist_code":          {d.cfg.DistrictCode},
		"court_complex_code": {d.cfg.CourtCode},
		"cicri":              {"civ"},
		"ajax_req":           {"true"},
	}

	d.logger.Debug("Fetching District Court cause list", "portal", d.cfg.Name, "date", q.Date.Format("2006-01-02"))

	resp, err := d.submit(ctx, sess, formStep{
		formURL:     d.url("?p=cause_list/index"),
		actionURL:   d.url("?p=cause_list/submitCauseList"),
		fields:      fields,
		answerField: "cause_list_captcha_code",
		headers:     ajaxHeaders,
	})
	if err != nil {
		return nil, err
	}

	data := &RawCauseListData{
		Portal:    d.cfg.Name,
		CourtType: models.DistrictCourt,
		CourtName: d.cfg.CourtName,
		SourceURL: responseURL(resp, d.url("?p=cause_list/index")),
		Date:      q.Date,
	}

	err = d.safeParse(func() error {
		fragment, err := d.unwrap(resp.Body, data.SourceURL, true)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return nil
			}
			return err
		}
		doc, err := scraper.NewDocument([]byte(fragment))
		if err != nil {
			return d.fail(KindParseFailed, "invalid html fragment", err)
		}
		data.Rows = parseCauseListTables(doc.Selection, d.cfg.CourtName)
		if len(data.Rows) == 0 && !scraper.IsNotFoundText(doc.Text()) && doc.Find("table").Length() == 0 {
			return d.fail(KindParseFailed, "no cause list table in fragment", nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// unwrap decodes the JSON envelope and returns the HTML fragment. Portals fall
// back to a full HTML page when the session expired, which is read as-is.
func (d *DistrictCourt) unwrap(body []byte, pageURL string, causeList bool) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		if err := d.checkPage(body, trimmed, pageURL); err != nil {
			return "", err
		}
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return "", d.fail(KindParseFailed, "invalid json envelope", err)
	}

	if env.ErrorMsg != "" {
		msg := scraper.CleanText(env.ErrorMsg)
		switch {
		case scraper.IsCaptchaRejected(msg):
			e := d.fail(KindCaptchaRequired, msg, nil)
			if env.DivCaptcha != "" {
				if ch := captcha.Detect([]byte(env.DivCaptcha)); ch != nil {
					ch.Resolve(pageURL)
					e.Challenge = ch
				}
			}
			return "", e
		case scraper.IsNotFoundText(msg):
			return "", d.fail(KindNotFound, msg, nil)
		}
		if !env.ok() {
			return "", d.fail(KindTransient, msg, nil)
		}
	}

	fragment := env.CaseData
	if causeList && env.CauseList != "" {
		fragment = env.CauseList
	}
	if strings.TrimSpace(fragment) == "" {
		if !env.ok() {
			return "", d.fail(KindTransient, "empty envelope", nil)
		}
		return "", d.fail(KindNotFound, "empty result", nil)
	}
	return fragment, nil
}
