package scheduler

import (
	"strings"
	"time"
)

// Unit is the calendar granularity of a job's recurrence.
type Unit string

const (
	Seconds Unit = "seconds"
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
	Weeks   Unit = "weeks"
)

func (u Unit) Valid() bool {
	switch u {
	case Seconds, Minutes, Hours, Days, Weeks:
		return true
	}
	return false
}

func (u Unit) size() time.Duration {
	switch u {
	case Seconds:
		return time.Second
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	case Days:
		return 24 * time.Hour
	case Weeks:
		return 7 * 24 * time.Hour
	}
	return 0
}

// ParseUnit accepts the plural unit names and their singular forms.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() && u != "" && !strings.HasSuffix(string(u), "s") {
		u += "s"
	}
	if !u.Valid() {
		return "", valueErrorf("invalid unit %q (valid units are seconds, minutes, hours, days, weeks)", s)
	}
	return u, nil
}

// Weekday numbering runs Monday=0 .. Sunday=6.
func weekdayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }

func weekdayName(d time.Weekday) string { return strings.ToLower(d.String()) }

// ParseWeekday parses a lower- or mixed-case English weekday name.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if weekdayName(d) == name {
			return d, nil
		}
	}
	return 0, valueErrorf("invalid start day %q (valid start days are monday..sunday)", s)
}
