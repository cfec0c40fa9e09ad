package scheduler

import "time"

const week = 7 * 24 * time.Hour

// validate checks the parts of the configuration that the next-run
// computation depends on, without computing anything.
func (j *Job) validate() error {
	if j.interval < 1 {
		return valueErrorf("interval must be a positive integer, got %d", j.interval)
	}
	if !j.unit.Valid() {
		return valueErrorf("invalid unit %q (valid units are seconds, minutes, hours, days, and weeks)", j.unit)
	}
	if j.jitter && j.latest < j.interval {
		return valueErrorf("latest (%d) must be greater than or equal to interval (%d)", j.latest, j.interval)
	}
	if j.anchored && j.unit != Weeks {
		return valueErrorf("unit should be weeks when a start day is set, got %s", j.unit)
	}
	if j.hasAt && !j.anchored && j.unit != Days && j.unit != Hours && j.unit != Minutes {
		return valueErrorf("invalid unit %s for an at-time without a start day", j.unit)
	}
	return nil
}

// scheduleNextRun computes nextRun from the current state. The caller holds j.mu.
//
// The steps compose in order and each one nudges the instant produced by the
// previous one:
//  1. the base instant: lastRun+period, the existing nextRun, or now+period
//  2. weekday anchoring
//  3. time-of-day alignment, pulled back one unit when today's (this hour's,
//     this minute's) slot is still ahead
//  4. an anchored at-time never lands a full week or more ahead
func (j *Job) scheduleNextRun(now time.Time, randInt func(lo, hi int) int) error {
	if err := j.validate(); err != nil {
		return err
	}

	interval := j.interval
	if j.jitter {
		interval = randInt(j.interval, j.latest)
	}
	j.period = time.Duration(interval) * j.unit.size()

	switch {
	case !j.lastRun.IsZero():
		j.nextRun = j.lastRun.Add(j.period)
	case !j.nextRun.IsZero():
		// Restored schedule: keep it.
	default:
		j.nextRun = now.Add(j.period)
	}

	if j.anchored {
		daysAhead := weekdayIndex(j.startDay) - weekdayIndex(j.nextRun.Weekday())
		if daysAhead <= 0 {
			daysAhead += 7
		}
		j.nextRun = j.nextRun.Add(time.Duration(daysAhead)*24*time.Hour - j.period)
	}

	if j.hasAt {
		j.alignAt(now)
	}

	if j.anchored && j.hasAt && j.nextRun.Sub(now) >= week {
		j.nextRun = j.nextRun.Add(-j.period)
	}
	return nil
}

func (j *Job) alignAt(now time.Time) {
	n := j.nextRun
	hour, minute := n.Hour(), n.Minute()
	if j.unit == Days || j.anchored {
		hour = j.atTime.Hour
	}
	if j.unit == Days || j.unit == Hours || j.anchored {
		minute = j.atTime.Minute
	}
	j.nextRun = time.Date(n.Year(), n.Month(), n.Day(), hour, minute, j.atTime.Second, 0, time.UTC)

	// Run at the specified time in the current cycle too, also after a run
	// that overran its period.
	if !j.lastRun.IsZero() && j.nextRun.Sub(j.lastRun) <= j.period {
		return
	}
	switch j.unit {
	case Days:
		sinceMidnight := now.Sub(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
		if j.atTime.sinceMidnight() > sinceMidnight && j.interval == 1 {
			j.nextRun = j.nextRun.Add(-24 * time.Hour)
		}
	case Hours:
		if j.atTime.Minute > now.Minute() || (j.atTime.Minute == now.Minute() && j.atTime.Second > now.Second()) {
			j.nextRun = j.nextRun.Add(-time.Hour)
		}
	case Minutes:
		if j.atTime.Second > now.Second() {
			j.nextRun = j.nextRun.Add(-time.Minute)
		}
	}
}
