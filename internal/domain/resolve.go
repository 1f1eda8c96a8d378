package domain

import "time"

// LoadLocation resolves an IANA zone name, failing closed to fallback when the
// name is unknown. degraded is true when the fallback was used; the caller must
// log it, never treat it as fatal. An unloadable fallback degrades to UTC.
func LoadLocation(tz, fallback string) (loc *time.Location, degraded bool) {
	if l, err := time.LoadLocation(tz); err == nil {
		return l, false
	}
	if l, err := time.LoadLocation(fallback); err == nil {
		return l, true
	}
	return time.UTC, true
}

// NextFire computes the next instant at which the call should fire, with the
// call's wall-clock time interpreted in loc. It is pure: the same
// (call, loc, now) triple always yields the same answer.
//
// Daily: next occurrence of Time at or after now (today if not yet passed).
// Weekly: next occurrence of Time on Weekday at or after now.
// Once: the single Date+Time instant iff strictly after now, else ok=false and
// the caller must retire the record.
func NextFire(c *Call, loc *time.Location, now time.Time) (at time.Time, ok bool) {
	hour, minute, err := ParseClock(c.Time)
	if err != nil {
		return time.Time{}, false
	}
	localNow := now.In(loc)

	switch c.Recurrence {
	case RecurDaily:
		cand := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), hour, minute, 0, 0, loc)
		if cand.Before(now) {
			cand = time.Date(localNow.Year(), localNow.Month(), localNow.Day()+1, hour, minute, 0, 0, loc)
		}
		return cand, true

	case RecurWeekly:
		wd, err := ParseWeekday(c.Weekday)
		if err != nil {
			return time.Time{}, false
		}
		offset := (int(wd) - int(localNow.Weekday()) + 7) % 7
		cand := time.Date(localNow.Year(), localNow.Month(), localNow.Day()+offset, hour, minute, 0, 0, loc)
		if cand.Before(now) {
			cand = time.Date(localNow.Year(), localNow.Month(), localNow.Day()+offset+7, hour, minute, 0, 0, loc)
		}
		return cand, true

	case RecurOnce:
		year, month, day, err := ParseDate(c.Date)
		if err != nil {
			return time.Time{}, false
		}
		cand := time.Date(year, month, day, hour, minute, 0, 0, loc)
		if !cand.After(now) {
			return time.Time{}, false // elapsed
		}
		return cand, true
	}
	return time.Time{}, false
}

// LocalizeTime formats t as a local timestamp in the given zone, for display.
func LocalizeTime(t time.Time, tz string) string {
	loc, _ := LoadLocation(tz, "UTC")
	return t.In(loc).Format("Mon 2006-01-02 15:04")
}
