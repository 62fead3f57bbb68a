package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fingerprint is the normalized cache key of a query. Two queries share a
// fingerprint exactly when their normalized inputs are equal.
type Fingerprint string

const (
	casePrefix      = "case:"
	causeListPrefix = "causelist:"
)

// NormalizeCaseType upper-cases a case type and strips all whitespace.
func NormalizeCaseType(caseType string) string {
	return strings.Join(strings.Fields(strings.ToUpper(caseType)), "")
}

// NormalizeCourt lower-cases and trims a court filter; empty means all courts.
func NormalizeCourt(court string) string {
	court = strings.ToLower(strings.TrimSpace(court))
	if court == "" {
		return "all"
	}
	return court
}

// CaseKey returns "case:<TYPE>:<number>:<year>".
func CaseKey(caseType, caseNumber string, year int) Fingerprint {
	return Fingerprint(fmt.Sprintf("%s%s:%s:%d", casePrefix, NormalizeCaseType(caseType), strings.TrimSpace(caseNumber), year))
}

// CauseListKey returns "causelist:<yyyy-mm-dd>:<court|all>".
func CauseListKey(date time.Time, court string) Fingerprint {
	return Fingerprint(fmt.Sprintf("%s%s:%s", causeListPrefix, date.Format("2006-01-02"), NormalizeCourt(court)))
}

// IsCase reports whether fp is a case fingerprint.
func (fp Fingerprint) IsCase() bool {
	return strings.HasPrefix(string(fp), casePrefix)
}

// ParseCaseFingerprint reverses CaseKey.
func ParseCaseFingerprint(fp Fingerprint) (caseType, caseNumber string, year int, err error) {
	rest, ok := strings.CutPrefix(string(fp), casePrefix)
	if !ok {
		return "", "", 0, fmt.Errorf("not a case fingerprint: %q", fp)
	}

	caseType, rest, ok = strings.Cut(rest, ":")
	idx := strings.LastIndex(rest, ":")
	if !ok || idx < 0 || caseType == "" {
		return "", "", 0, fmt.Errorf("malformed case fingerprint: %q", fp)
	}

	caseNumber = rest[:idx]
	year, err = strconv.Atoi(rest[idx+1:])
	if err != nil || caseNumber == "" {
		return "", "", 0, fmt.Errorf("malformed case fingerprint: %q", fp)
	}
	return caseType, caseNumber, year, nil
}
