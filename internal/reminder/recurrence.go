package reminder

import (
	"time"

	"github.com/nhle/ims-notify/internal/model"
)

// NextOccurrence returns the occurrence after t for the given pattern.
// Daily and weekly steps are fixed durations. Monthly and yearly steps move
// along the calendar to the pattern's anchor day (t's day when unset),
// clamped to the end of the resulting month: a series anchored on the 31st
// runs Jan 31, Feb 28, Mar 31.
func NextOccurrence(t time.Time, p model.RecurringPattern) time.Time {
	interval := p.Interval
	if interval < 1 {
		interval = 1
	}

	switch p.Type {
	case model.RecurDaily:
		return t.Add(time.Duration(interval) * 24 * time.Hour)
	case model.RecurWeekly:
		return t.Add(time.Duration(interval) * 7 * 24 * time.Hour)
	case model.RecurMonthly:
		return addMonths(t, interval, p.AnchorDay)
	case model.RecurYearly:
		return addMonths(t, 12*interval, p.AnchorDay)
	default:
		return t
	}
}

// HasNext reports whether an occurrence at next is allowed by the pattern's
// end date.
func HasNext(next time.Time, p model.RecurringPattern) bool {
	return p.EndDate == nil || !next.After(*p.EndDate)
}

func addMonths(t time.Time, months, anchor int) time.Time {
	y, m, d := t.Date()
	if anchor > 0 {
		d = anchor
	}
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// anchorPattern pins a monthly or yearly pattern to target's day of month.
func anchorPattern(p *model.RecurringPattern, target time.Time) {
	switch p.Type {
	case model.RecurMonthly, model.RecurYearly:
		p.AnchorDay = target.Day()
	default:
		p.AnchorDay = 0
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
