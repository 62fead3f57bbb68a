package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reLabelJunk  = regexp.MustCompile(`[^a-z0-9 ]+`)
	reDate       = regexp.MustCompile(`\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}(?:st|nd|rd|th)?[ -][A-Za-z]{3,9}[ -,]+\d{4}|\d{4}-\d{2}-\d{2}`)
	reOrdinal    = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)
	reDayName    = regexp.MustCompile(`(?i)(monday|tuesday|wednesday|thursday|friday|saturday|sunday),?\s*`)
	reCaseRef    = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z.()&\- ]*?)\s*[/\- ]\s*(?:No\.?\s*)?(\d+)\s*[/\-]\s*(\d{4})\b`)
	reYear       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reSize       = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kb|mb|bytes|b)\b`)
	reSeparator  = regexp.MustCompile(`\s+(?:and|AND|And|&)\s+|\s*\d+\)\s*`)
	reAdvocate   = regexp.MustCompile(`(?i)\s*advocate\s*[-:]?.*$`)
	reTrailing   = regexp.MustCompile(`\s*(?:etc\.?|\d+\.?)$`)
)

// Date layouts used by Indian court portals
var dateFormats = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2-1-2006",
	"2/1/2006",
	"02-01-06",
	"02/01/06",
	"02-Jan-2006",
	"02-January-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// Field is one label/value pair in document order.
type Field struct {
	Label string
	Value string
}

// Fields keeps label/value pairs in the order they appear on the page.
type Fields []Field

// Find returns the value of the first field matching the earliest keyword.
// Labels containing any of the excludes are skipped.
func (f Fields) Find(keywords []string, excludes ...string) string {
	for _, k := range keywords {
		for _, field := range f {
			if field.Value == "" || containsAny(field.Label, excludes) {
				continue
			}
			if strings.Contains(field.Label, k) {
				return field.Value
			}
		}
	}
	return ""
}

// ToMap flattens fields, keeping the first value for duplicate labels.
func (f Fields) ToMap() map[string]string {
	out := make(map[string]string, len(f))
	for _, field := range f {
		if _, ok := out[field.Label]; !ok {
			out[field.Label] = field.Value
		}
	}
	return out
}

// NewDocument parses an HTML body.
func NewDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// CleanText collapses whitespace and trims.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// NormalizeLabel lower-cases a label and strips punctuation.
func NormalizeLabel(s string) string {
	s = strings.ToLower(CleanText(s))
	s = reLabelJunk.ReplaceAllString(s, " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// IsBlank treats the usual placeholder values as empty.
func IsBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "--", "n/a", "na", "nil", "none", "null":
		return true
	}
	return false
}

// LabelFields collects label/value pairs from table rows, definition lists and
// "Label: value" spans inside sel. Rows with four cells are read as two pairs.
func LabelFields(sel *goquery.Selection) Fields {
	var fields Fields

	add := func(label, value string) {
		label = NormalizeLabel(label)
		value = CleanText(value)
		if label == "" || IsBlank(value) {
			return
		}
		fields = append(fields, Field{Label: label, Value: value})
	}

	sel.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td, th")
		for i := 0; i+1 < cells.Length(); i += 2 {
			add(cells.Eq(i).Text(), cells.Eq(i+1).Text())
		}
	})

	sel.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		add(dt.Text(), dt.NextFiltered("dd").Text())
	})

	sel.Find("label, span, strong, b").Each(func(_ int, s *goquery.Selection) {
		text := CleanText(s.Text())
		if !strings.HasSuffix(text, ":") || len(text) > 60 {
			return
		}
		if next := s.Next(); next.Length() > 0 {
			add(text, next.Text())
			return
		}
		// "<label>Status:</label> Pending" keeps the value as a trailing text node
		parent := CleanText(s.Parent().Text())
		if idx := strings.Index(parent, text); idx >= 0 {
			add(text, parent[idx+len(text):])
		}
	})

	return fields
}

// RowText joins the cell texts of a table row with single spaces.
func RowText(row *goquery.Selection) string {
	var parts []string
	row.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
		if text := CleanText(cell.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

// ParseDate parses the date layouts used by court portals. Years outside
// 1950-2100 are rejected as misparses.
func ParseDate(s string) (time.Time, bool) {
	s = CleanText(s)
	if IsBlank(s) {
		return time.Time{}, false
	}
	s = reDayName.ReplaceAllString(s, "")
	s = reOrdinal.ReplaceAllString(s, "$1")

	candidates := []string{s}
	if m := reDate.FindString(s); m != "" && m != s {
		candidates = append(candidates, reOrdinal.ReplaceAllString(m, "$1"))
	}

	for _, c := range candidates {
		for _, format := range dateFormats {
			if d, err := time.Parse(format, c); err == nil {
				if d.Year() >= 1950 && d.Year() <= 2100 {
					return d, true
				}
			}
		}
	}
	return time.Time{}, false
}

// FindDate returns the first parseable date in free text.
func FindDate(s string) (time.Time, bool) {
	for _, m := range reDate.FindAllString(s, -1) {
		if d, ok := ParseDate(m); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// ParseCaseRef splits references like "WP(C)/1234/2024" or "CS 100/2023".
func ParseCaseRef(s string) (caseType, number string, year int, ok bool) {
	m := reCaseRef.FindStringSubmatch(CleanText(s))
	if m == nil {
		return "", "", 0, false
	}
	year, _ = strconv.Atoi(m[3])
	return strings.ToUpper(strings.TrimSpace(m[1])), m[2], year, true
}

// FindYear returns the first plausible four digit year in s.
func FindYear(s string) int {
	if m := reYear.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

// ParseSize reads sizes such as "245 KB" or "(1.2 MB)".
func ParseSize(s string) int64 {
	m := reSize.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "kb":
		v *= 1024
	case "mb":
		v *= 1024 * 1024
	}
	return int64(v)
}

// SplitParties splits a party cell into individual names, dropping advocate
// annotations and trailing "etc".
func SplitParties(text string) []string {
	var names []string
	for _, part := range reSeparator.Split(CleanText(text), -1) {
		name := reAdvocate.ReplaceAllString(part, "")
		name = strings.TrimSpace(reTrailing.ReplaceAllString(strings.TrimSpace(name), ""))
		if len(name) > 2 {
			names = append(names, name)
		}
	}
	return names
}

// JoinParties normalizes a party cell into a single comma separated string.
func JoinParties(text string) string {
	return strings.Join(SplitParties(text), ", ")
}

var notFoundPhrases = []string{
	"no record found",
	"no records found",
	"record not found",
	"case not found",
	"no data available",
	"no data found",
	"invalid case number",
	"this case code does not exists",
	"no cases listed",
}

var captchaErrorPhrases = []string{
	"invalid captcha",
	"wrong captcha",
	"incorrect captcha",
	"captcha mismatch",
	"invalid security code",
}

// IsNotFoundText reports whether page text says the record is absent.
func IsNotFoundText(text string) bool {
	return containsAny(strings.ToLower(text), notFoundPhrases)
}

// IsCaptchaRejected reports whether page text says the captcha answer was wrong.
func IsCaptchaRejected(text string) bool {
	return containsAny(strings.ToLower(text), captchaErrorPhrases)
}

// ErrorMessage extracts a visible error message from common error containers.
func ErrorMessage(doc *goquery.Document) string {
	selectors := []string{
		".error-message",
		".alert-danger",
		"#errorMsg",
		"#errormsg",
		"div.error",
		"span.error",
		"div[style*='color:red']",
		"span[style*='color:red']",
		"font[color='red']",
	}
	for _, s := range selectors {
		if text := CleanText(doc.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
