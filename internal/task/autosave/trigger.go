package autosave

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerKind tells how a save schedule string was understood.
type TriggerKind int

const (
	TriggerCron TriggerKind = iota
	TriggerInterval
)

// Trigger is a parsed snapshot.schedule value.
//
// Accepted forms:
//   - cron: "*/5 * * * *", "0 30 * * * *" (seconds optional), "@hourly", "@every 1m"
//   - Go duration: "30s", "2h30m"
//   - HH:MM interval: "00:05" (five minutes), "01:30"
//
// A "cron:" prefix forces cron parsing; "every:" or "interval:" forces an interval.
type Trigger struct {
	Kind   TriggerKind
	Expr   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

var reInterval = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// cronParser accepts 5-field and 6-field specs plus descriptors.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseTrigger parses a save schedule. Cron expressions are validated here so
// a typo fails at config load rather than at Start.
func ParseTrigger(raw string) (Trigger, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Trigger{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronTrigger(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return intervalTrigger(strings.TrimSpace(s[len("every:"):]))
	case strings.HasPrefix(low, "interval:"):
		return intervalTrigger(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return cronTrigger(s)
	}

	t, err := intervalTrigger(s)
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '00:05', or duration like '1m')", raw)
	}
	return t, nil
}

func cronTrigger(expr string) (Trigger, error) {
	if expr == "" {
		return Trigger{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Trigger{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Trigger{Kind: TriggerCron, Expr: expr, Source: "cron"}, nil
}

func intervalTrigger(v string) (Trigger, error) {
	if v == "" {
		return Trigger{}, fmt.Errorf("interval required")
	}
	src := "duration"
	var d time.Duration
	if m := reInterval.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Trigger{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		src = "hhmm"
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return Trigger{}, fmt.Errorf("invalid interval %q", v)
		}
	}
	if d < time.Second {
		return Trigger{}, fmt.Errorf("interval must be at least 1s, got %s", d)
	}
	return Trigger{Kind: TriggerInterval, Every: d, Source: src}, nil
}

// Schedule returns the cron schedule that fires this trigger.
func (t Trigger) Schedule() (cron.Schedule, error) {
	if t.Kind == TriggerInterval {
		return cron.Every(t.Every), nil
	}
	return cronParser.Parse(t.Expr)
}

func (t Trigger) String() string {
	if t.Kind == TriggerInterval {
		return "@every " + t.Every.String()
	}
	return t.Expr
}
