package cache

import "time"

// CauseListTTL keeps a hearing list until the end of its hearing date in loc.
// Lists for dates already over are kept for pastTTL.
func CauseListTTL(now, hearingDate time.Time, loc *time.Location, pastTTL time.Duration) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := hearingDate.Date()
	endOfDay := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	if !now.Before(endOfDay) {
		return pastTTL
	}
	return endOfDay.Sub(now)
}
