package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) sinceMidnight() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

// On returns the instant at t on the UTC calendar day of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	day = day.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, time.UTC)
}

var (
	reAtDaily    = regexp.MustCompile(`^[0-2]\d:[0-5]\d(:[0-5]\d)?$`)
	reAtHourly   = regexp.MustCompile(`^([0-5]\d)?:[0-5]\d$`)
	reAtMinutely = regexp.MustCompile(`^:[0-5]\d$`)
)

// parseAt validates s against the at() grammar of the given unit.
//
//	daily or weekday-anchored: HH:MM or HH:MM:SS
//	hourly:                    MM:SS or :MM
//	minutely:                  :SS
func parseAt(unit Unit, anchored bool, s string) (TimeOfDay, error) {
	daily := unit == Days || anchored
	switch {
	case daily:
		if !reAtDaily.MatchString(s) {
			return TimeOfDay{}, valueErrorf("invalid time format %q for a daily job (valid format is HH:MM(:SS)?)", s)
		}
	case unit == Hours:
		if !reAtHourly.MatchString(s) {
			return TimeOfDay{}, valueErrorf("invalid time format %q for an hourly job (valid format is (MM)?:SS)", s)
		}
	case unit == Minutes:
		if !reAtMinutely.MatchString(s) {
			return TimeOfDay{}, valueErrorf("invalid time format %q for a minutely job (valid format is :SS)", s)
		}
	default:
		return TimeOfDay{}, valueErrorf("invalid unit for at() (valid units are days, hours, and minutes)")
	}

	parts := strings.Split(s, ":")
	var hh, mm, ss string
	switch {
	case len(parts) == 3:
		hh, mm, ss = parts[0], parts[1], parts[2]
	case unit == Minutes:
		ss = parts[1]
	case unit == Hours && parts[0] != "":
		mm, ss = parts[0], parts[1]
	default:
		hh, mm = parts[0], parts[1]
	}

	t := TimeOfDay{Hour: atoi(hh), Minute: atoi(mm), Second: atoi(ss)}
	switch {
	case daily:
		if t.Hour > 23 {
			return TimeOfDay{}, valueErrorf("invalid number of hours (%d is not between 0 and 23)", t.Hour)
		}
	case unit == Hours:
		t.Hour = 0
	case unit == Minutes:
		t.Hour, t.Minute = 0, 0
	}
	return t, nil
}

// ParseTimeOfDay parses the stored at_time form: HH:MM, HH:MM:SS or
// HH:MM:SS.ffffff (fractions are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, valueErrorf("invalid time of day %q", s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
