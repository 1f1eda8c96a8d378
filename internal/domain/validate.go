package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Weekdays are the accepted weekday names for weekly calls, in order.
var Weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

var weekdayIndex = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseClock parses an HH:MM wall-clock string (24-hour).
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, invalid("time must be HH:MM (24-hour)")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, invalid("invalid hour in HH:MM")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, invalid("invalid minute in HH:MM")
	}
	return h, m, nil
}

// ParseWeekday maps a canonical weekday name to time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayIndex[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, invalid("weekday must be one of " + strings.Join(Weekdays, ", "))
	}
	return wd, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (year int, month time.Month, day int, err error) {
	t, perr := time.Parse("2006-01-02", strings.TrimSpace(s))
	if perr != nil {
		return 0, 0, 0, invalid("date must be YYYY-MM-DD")
	}
	return t.Year(), t.Month(), t.Day(), nil
}

// ValidateTZ checks that tz is a valid IANA location and returns its
// canonical name.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(tz))
	if err != nil {
		return "", invalid("unknown timezone: " + tz)
	}
	return loc.String(), nil
}

// MessageBounds bounds the spoken message length.
type MessageBounds struct {
	Min int
	Max int
}

// ValidateCall checks the shape constraints of a call before it is stored:
// recurrence value, HH:MM time, message bounds, weekday presence for weekly,
// date presence for once.
func ValidateCall(c *Call, bounds MessageBounds) error {
	switch c.Recurrence {
	case RecurOnce, RecurDaily, RecurWeekly:
	default:
		return invalid(fmt.Sprintf("schedule type must be %s, %s or %s", RecurOnce, RecurDaily, RecurWeekly))
	}

	if _, _, err := ParseClock(c.Time); err != nil {
		return err
	}

	// Bounds are in characters, not bytes; multi-byte scripts count per rune.
	msg := strings.TrimSpace(c.Message)
	if utf8.RuneCountInString(msg) < bounds.Min {
		return invalid(fmt.Sprintf("message too short, minimum %d characters", bounds.Min))
	}
	if utf8.RuneCountInString(msg) > bounds.Max {
		return invalid(fmt.Sprintf("message too long, maximum %d characters", bounds.Max))
	}

	if c.Recurrence == RecurWeekly {
		if _, err := ParseWeekday(c.Weekday); err != nil {
			return err
		}
	}
	if c.Recurrence == RecurOnce {
		if c.Date == "" {
			return invalid("one-time calls need a date")
		}
		if _, _, _, err := ParseDate(c.Date); err != nil {
			return err
		}
	}
	return nil
}
