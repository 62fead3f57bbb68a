package portal

import (
	"context"
	"net/url"
	"strconv"

	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

// SupremeCourt talks to the Supreme Court case status service, which guards
// its form with a numeric captcha.
type SupremeCourt struct {
	base
}

// NewSupremeCourt creates the adapter.
func NewSupremeCourt(cfg Config, log *logger.Logger) *SupremeCourt {
	if cfg.CourtName == "" {
		cfg.CourtName = "Supreme Court of India"
	}
	return &SupremeCourt{base{cfg: cfg, courtType: models.SupremeCourt, logger: log}}
}

func (s *SupremeCourt) SearchCase(ctx context.Context, q CaseQuery, sess *Session) (*RawCaseData, error) {
	fields := url.Values{
		"ct": {q.CaseType},
		"cn": {q.CaseNumber},
		"cy": {strconv.Itoa(q.Year)},
	}

	s.logger.Debug("Searching Supreme Court", "portal", s.cfg.Name, "case", q.String(), "identity", sess.Identity.Name)

	resp, err := s.submit(ctx, sess, formStep{
		formURL:     s.url("case-status"),
		actionURL:   s.url("php/case_status/case_status_process.php"),
		fields:      fields,
		answerField: "ansCaptcha",
	})
	if err != nil {
		return nil, err
	}

	raw := &RawCaseData{
		Portal:    s.cfg.Name,
		CourtType: models.SupremeCourt,
		CourtName: s.cfg.CourtName,
		SourceURL: responseURL(resp, s.url("case-status")),
	}

	err = s.safeParse(func() error {
		doc, err := scraper.NewDocument(resp.Body)
		if err != nil {
			return s.fail(KindParseFailed, "invalid html", err)
		}
		if !parseCaseDetails(doc.Selection, raw) {
			if err := s.checkPage(resp.Body, doc.Text(), raw.SourceURL); err != nil {
				return err
			}
			return s.fail(KindParseFailed, "no case details on page", nil)
		}
		raw.CaseType, raw.CaseNumber, raw.Year = q.CaseType, q.CaseNumber, q.Year
		// the Supreme Court sits as one court; benches are reported as the judge
		raw.CourtName = s.cfg.CourtName
		raw.Orders = parseOrders(doc.Selection, raw.SourceURL)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *SupremeCourt) FetchCauseList(ctx context.Context, q CauseListQuery, sess *Session) (*RawCauseListData, error) {
	fields := url.Values{
		"listing_date": {q.Date.Format("02-01-2006")},
		"list_type":    {"daily"},
	}

	s.logger.Debug("Fetching Supreme Court cause list", "portal", s.cfg.Name, "date", q.Date.Format("2006-01-02"))

	resp, err := s.submit(ctx, sess, formStep{
		formURL:     s.url("causelist"),
		actionURL:   s.url("php/cause_list/cause_list_process.php"),
		fields:      fields,
		answerField: "ansCaptcha",
	})
	if err != nil {
		return nil, err
	}

	data := &RawCauseListData{
		Portal:    s.cfg.Name,
		CourtType: models.SupremeCourt,
		CourtName: s.cfg.CourtName,
		SourceURL: responseURL(resp, s.url("causelist")),
		Date:      q.Date,
	}

	err = s.safeParse(func() error {
		doc, err := scraper.NewDocument(resp.Body)
		if err != nil {
			return s.fail(KindParseFailed, "invalid html", err)
		}
		data.Rows = parseCauseListTables(doc.Selection, s.cfg.CourtName)
		if len(data.Rows) > 0 || scraper.IsNotFoundText(doc.Text()) {
			return nil
		}
		if scraper.IsCaptchaRejected(doc.Text()) {
			return s.checkPage(resp.Body, doc.Text(), data.SourceURL)
		}
		return s.fail(KindParseFailed, "no cause list table on page", nil)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
