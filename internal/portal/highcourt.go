package portal

import (
	"context"
	"net/url"
	"strconv"

	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

// HighCourt talks to hcservices-style High Court portals: an HTML case status
// form with a securimage captcha posting to index_qry.php.
type HighCourt struct {
	base
}

// NewHighCourt creates the adapter.
func NewHighCourt(cfg Config, log *logger.Logger) *HighCourt {
	if cfg.CourtName == "" {
		cfg.CourtName = "High Court"
	}
	return &HighCourt{base{cfg: cfg, courtType: models.HighCourt, logger: log}}
}

func (h *HighCourt) SearchCase(ctx context.Context, q CaseQuery, sess *Session) (*RawCaseData, error) {
	fields := url.Values{
		"court_code":           {h.cfg.CourtCode},
		"state_code":           {h.cfg.StateCode},
		"caseStatusSearchType": {"CScaseNumber"},
		"case_type":            {q.CaseType},
		"case_no":              {q.CaseNumber},
		"rgyear":               {strconv.Itoa(q.Year)},
	}

	h.logger.Debug("Searching High Court", "portal", h.cfg.Name, "case", q.String(), "identity", sess.Identity.Name)

	resp, err := h.submit(ctx, sess, formStep{
		formURL:     h.url("main.php"),
		actionURL:   h.url("cases_qry/index_qry.php?action_code=showRecords"),
		fields:      fields,
		answerField: "captcha",
	})
	if err != nil {
		return nil, err
	}

	raw := &RawCaseData{
		Portal:     h.cfg.Name,
		CourtType:  models.HighCourt,
		CourtName:  h.cfg.CourtName,
		SourceURL:  responseURL(resp, h.url("main.php")),
		CaseType:   q.CaseType,
		CaseNumber: q.CaseNumber,
		Year:       q.Year,
	}

	err = h.safeParse(func() error {
		doc, err := scraper.NewDocument(resp.Body)
		if err != nil {
			return h.fail(KindParseFailed, "invalid html", err)
		}
		text := doc.Text()

		found := parseCaseDetails(doc.Selection, raw)
		raw.CaseType, raw.CaseNumber, raw.Year = q.CaseType, q.CaseNumber, q.Year
		if found {
			raw.Orders = parseOrders(doc.Selection, raw.SourceURL)
			return nil
		}
		if err := h.checkPage(resp.Body, text, raw.SourceURL); err != nil {
			return err
		}
		if msg := scraper.ErrorMessage(doc); msg != "" {
			return h.fail(KindParseFailed, msg, nil)
		}
		return h.fail(KindParseFailed, "no case details on page", nil)
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *HighCourt) FetchCauseList(ctx context.Context, q CauseListQuery, sess *Session) (*RawCauseListData, error) {
	fields := url.Values{
		"court_code":     {h.cfg.CourtCode},
		"state_code":     {h.cfg.StateCode},
		"causelist_date": {q.Date.Format("02-01-2006")},
	}

	h.logger.Debug("Fetching High Court cause list", "portal", h.cfg.Name, "date", q.Date.Format("2006-01-02"))

	resp, err := h.submit(ctx, sess, formStep{
		formURL:     h.url("main.php?p=cause_list"),
		actionURL:   h.url("cases_qry/index_qry.php?action_code=showCauseList"),
		fields:      fields,
		answerField: "captcha",
	})
	if err != nil {
		return nil, err
	}

	data := &RawCauseListData{
		Portal:    h.cfg.Name,
		CourtType: models.HighCourt,
		CourtName: h.cfg.CourtName,
		SourceURL: responseURL(resp, h.url("main.php")),
		Date:      q.Date,
	}

	err = h.safeParse(func() error {
		doc, err := scraper.NewDocument(resp.Body)
		if err != nil {
			return h.fail(KindParseFailed, "invalid html", err)
		}
		data.Rows = parseCauseListTables(doc.Selection, h.cfg.CourtName)
		if len(data.Rows) > 0 {
			return nil
		}
		if scraper.IsCaptchaRejected(doc.Text()) {
			return h.checkPage(resp.Body, doc.Text(), data.SourceURL)
		}
		if scraper.IsNotFoundText(doc.Text()) {
			// an empty list is a valid answer for a date with no sittings
			return nil
		}
		return h.fail(KindParseFailed, "no cause list table on page", nil)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
