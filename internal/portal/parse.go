package portal

import (
	"strings"

	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

// Label keywords, most specific first.
var (
	petitionerLabels   = []string{"petitioner", "appellant", "plaintiff", "complainant", "applicant"}
	respondentLabels   = []string{"respondent", "defendant", "appellee", "accused", "opposite party"}
	filingLabels       = []string{"filing date", "date of filing", "filed on", "filing"}
	registrationLabels = []string{"registration date", "date of registration", "registered on"}
	nextHearingLabels  = []string{"next hearing", "next date", "hearing date", "next listing", "tentative date", "likely to be listed"}
	statusLabels       = []string{"case status", "status", "stage of case", "stage"}
	judgeLabels        = []string{"judge", "coram", "bench", "before"}
	hallLabels         = []string{"court hall", "court no", "court number", "hall", "room"}
	categoryLabels     = []string{"category", "nature of", "subject"}
	courtNameLabels    = []string{"court name", "court establishment", "establishment"}
	caseTypeLabels     = []string{"case type"}
	caseNumberLabels   = []string{"registration number", "registration no", "case number", "case no", "filing number"}
)

var (
	petitionerSelectors = "span.Petitioner_Advocate_table, .petitioner-name, .petitioner, #petitioner"
	respondentSelectors = "span.Respondent_Advocate_table, .respondent-name, .respondent, #respondent"
)

// parseCaseDetails fills raw from the label/value pairs found in sel. It
// reports whether anything case-like was found.
func parseCaseDetails(sel *goquery.Selection, raw *RawCaseData) bool {
	fields := scraper.LabelFields(sel)
	raw.Fields = fields

	raw.Petitioner = fields.Find(petitionerLabels, "advocate")
	raw.Respondent = fields.Find(respondentLabels, "advocate")
	raw.FilingDate = fields.Find(filingLabels, "number", " no")
	raw.RegistrationDate = fields.Find(registrationLabels, "number", " no")
	raw.NextHearingDate = fields.Find(nextHearingLabels)
	raw.Status = fields.Find(statusLabels)
	raw.Judge = fields.Find(judgeLabels)
	raw.CourtHall = fields.Find(hallLabels, "judge")
	raw.Category = fields.Find(categoryLabels)
	if name := fields.Find(courtNameLabels); name != "" {
		raw.CourtName = name
	}

	if raw.Petitioner == "" {
		raw.Petitioner = scraper.JoinParties(sel.Find(petitionerSelectors).First().Text())
	} else {
		raw.Petitioner = scraper.JoinParties(raw.Petitioner)
	}
	if raw.Respondent == "" {
		raw.Respondent = scraper.JoinParties(sel.Find(respondentSelectors).First().Text())
	} else {
		raw.Respondent = scraper.JoinParties(raw.Respondent)
	}

	// "2 - Hon'ble Justice X" style cells carry both hall and judge
	if raw.Judge != "" && raw.CourtHall == "" {
		if hall, judge, ok := strings.Cut(raw.Judge, " - "); ok && len(hall) <= 10 {
			raw.CourtHall = strings.TrimSpace(hall)
			raw.Judge = strings.TrimSpace(judge)
		}
	}

	if t := fields.Find(caseTypeLabels); t != "" && raw.CaseType == "" {
		raw.CaseType = t
	}
	if ref := fields.Find(caseNumberLabels, "date"); ref != "" {
		if typ, number, year, ok := scraper.ParseCaseRef(ref); ok {
			if raw.CaseType == "" {
				raw.CaseType = typ
			}
			raw.CaseNumber, raw.Year = number, year
		} else if number, year, ok := strings.Cut(ref, "/"); ok {
			raw.CaseNumber = strings.TrimSpace(number)
			raw.Year = scraper.FindYear(year)
		}
	}

	return raw.Petitioner != "" || raw.Respondent != "" || raw.Status != ""
}

// parseOrders collects order and judgment links. Rows of tables that look like
// order listings come first, then any remaining link whose text names a
// judgment, order or decree.
func parseOrders(sel *goquery.Selection, pageURL string) []RawOrder {
	var orders []RawOrder
	seen := map[string]bool{}

	add := func(link *goquery.Selection, context string) {
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		if href == "" || href == "#" || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			return
		}
		abs := scraper.ResolveURL(pageURL, href)
		if seen[abs] {
			return
		}
		seen[abs] = true

		title := scraper.CleanText(link.Text())
		if title == "" {
			title = scraper.CleanText(context)
		}
		order := RawOrder{
			Title: title,
			Href:  abs,
			Size:  context,
			Kind:  orderKind(context + " " + title),
		}
		if d, ok := scraper.FindDate(context); ok {
			order.Date = d.Format("2006-01-02")
		}
		orders = append(orders, order)
	}

	sel.Find("table").Each(func(_ int, table *goquery.Selection) {
		header := strings.ToLower(table.Find("tr").First().Text() + " " + table.Find("caption").Text())
		if !strings.Contains(header, "order") && !strings.Contains(header, "judgment") && !strings.Contains(header, "judgement") {
			return
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if link := row.Find("a[href]").First(); link.Length() > 0 {
				add(link, scraper.RowText(row))
			}
		})
	})

	sel.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		text := strings.ToLower(link.Text())
		if strings.Contains(text, "judgment") || strings.Contains(text, "judgement") ||
			strings.Contains(text, "order") || strings.Contains(text, "decree") {
			add(link, link.Text())
		}
	})

	return orders
}

func orderKind(text string) models.JudgmentType {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "judgment"), strings.Contains(text, "judgement"), strings.Contains(text, "decree"):
		return models.JudgmentTypeJudgment
	case strings.Contains(text, "notice"):
		return models.JudgmentTypeNotice
	}
	return models.JudgmentTypeOrder
}

type column int

const (
	colUnknown column = iota
	colCase
	colType
	colParties
	colHall
	colJudge
	colTime
	colPurpose
)

// positional is the column order used when a table has no recognisable header.
var positional = []column{colCase, colType, colParties, colHall, colJudge, colTime, colPurpose}

func headerColumn(text string) column {
	text = scraper.NormalizeLabel(text)
	switch {
	case text == "":
		return colUnknown
	case strings.Contains(text, "type"):
		return colType
	case strings.Contains(text, "part"), strings.Contains(text, "petitioner"),
		strings.Contains(text, "versus"), strings.Contains(text, " vs"), strings.HasPrefix(text, "vs"):
		return colParties
	case strings.Contains(text, "case"), strings.Contains(text, "cino"), strings.Contains(text, "diary"):
		return colCase
	case strings.Contains(text, "hall"), strings.Contains(text, "court no"), strings.Contains(text, "room"):
		return colHall
	case strings.Contains(text, "judge"), strings.Contains(text, "coram"), strings.Contains(text, "bench"):
		return colJudge
	case strings.Contains(text, "time"):
		return colTime
	case strings.Contains(text, "purpose"), strings.Contains(text, "stage"), strings.Contains(text, "remark"):
		return colPurpose
	}
	return colUnknown
}

// parseCauseListTables reads hearing list tables. Columns are mapped from the
// header row when one is recognisable, otherwise by position. Single-cell rows
// are court headings that apply to the rows after them.
func parseCauseListTables(sel *goquery.Selection, defaultCourt string) []RawCauseListRow {
	var rows []RawCauseListRow

	sel.Find("table").Each(func(_ int, table *goquery.Selection) {
		court := tableCourt(table, defaultCourt)
		trs := table.Find("tr")
		if trs.Length() == 0 {
			return
		}

		columns := positional
		start := 1
		if mapped, ok := headerColumns(trs.First()); ok {
			columns = mapped
		}

		trs.Slice(start, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := tr.ChildrenFiltered("td, th")
			if cells.Length() == 1 {
				if heading := scraper.CleanText(cells.Text()); heading != "" {
					court = heading
				}
				return
			}
			if cells.Length() < 3 {
				return
			}

			var row RawCauseListRow
			cells.Each(func(i int, cell *goquery.Selection) {
				if i >= len(columns) {
					return
				}
				text := scraper.CleanText(cell.Text())
				switch columns[i] {
				case colCase:
					row.CaseRef = text
				case colType:
					row.CaseType = text
				case colParties:
					row.Parties = text
				case colHall:
					row.CourtHall = text
				case colJudge:
					row.Judge = text
				case colTime:
					row.Time = text
				case colPurpose:
					row.Purpose = text
				}
			})
			row.Court = court

			if row.CaseRef != "" && row.Parties != "" {
				rows = append(rows, row)
			}
		})
	})

	return rows
}

func headerColumns(tr *goquery.Selection) ([]column, bool) {
	cells := tr.ChildrenFiltered("td, th")
	columns := make([]column, cells.Length())
	known := 0
	hasCase := false
	cells.Each(func(i int, cell *goquery.Selection) {
		columns[i] = headerColumn(cell.Text())
		if columns[i] != colUnknown {
			known++
		}
		if columns[i] == colCase {
			hasCase = true
		}
	})
	return columns, known >= 2 && hasCase
}

func tableCourt(table *goquery.Selection, fallback string) string {
	if caption := scraper.CleanText(table.Find("caption").First().Text()); caption != "" {
		return caption
	}
	if heading := scraper.CleanText(table.PrevAllFiltered("h1, h2, h3, h4, h5, .court-name, .court_name").First().Text()); heading != "" {
		return heading
	}
	return fallback
}
