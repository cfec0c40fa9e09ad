package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job is one recurring unit of work.
//
// Configure it through the chain returned by Scheduler.Every and bind it with
// Do or DoFunc. The first failing step is kept (see Err) and returned by Do.
type Job struct {
	mu sync.Mutex

	id       string
	interval int
	latest   int
	jitter   bool
	unit     Unit

	startDay time.Weekday
	anchored bool

	atTime TimeOfDay
	hasAt  bool

	deadline time.Time

	lastRun time.Time
	nextRun time.Time
	period  time.Duration

	funcName string
	fn       Func
	args     []any
	kwargs   map[string]any

	err   error
	sched *Scheduler
}

// NewJob returns a job that is not associated with any scheduler. Binding it
// fails with ErrSchedule; use Scheduler.Every for jobs that should run.
func NewJob(interval int) *Job {
	return newJob(interval, nil)
}

func newJob(interval int, s *Scheduler) *Job {
	j := &Job{id: uuid.NewString(), interval: interval, sched: s}
	if interval < 1 {
		j.err = valueErrorf("interval must be a positive integer, got %d", interval)
	}
	return j
}

func (j *Job) fail(err error) *Job {
	if j.err == nil {
		j.err = err
	}
	return j
}

func (j *Job) now() time.Time {
	if j.sched != nil {
		return j.sched.now()
	}
	return SystemClock{}.Now()
}

// Err returns the first configuration error of the chain, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// WithID replaces the generated identifier.
func (j *Job) WithID(id string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	if id = strings.TrimSpace(id); id != "" {
		j.id = id
	}
	return j
}

func (j *Job) unitSingular(u Unit, plural string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.interval != 1 {
		return j.fail(intervalErrorf("use %s instead of %s", plural, strings.TrimSuffix(plural, "s")))
	}
	j.unit = u
	return j
}

func (j *Job) setUnit(u Unit) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.unit = u
	return j
}

func (j *Job) Second() *Job  { return j.unitSingular(Seconds, "Seconds") }
func (j *Job) Seconds() *Job { return j.setUnit(Seconds) }
func (j *Job) Minute() *Job  { return j.unitSingular(Minutes, "Minutes") }
func (j *Job) Minutes() *Job { return j.setUnit(Minutes) }
func (j *Job) Hour() *Job    { return j.unitSingular(Hours, "Hours") }
func (j *Job) Hours() *Job   { return j.setUnit(Hours) }
func (j *Job) Day() *Job     { return j.unitSingular(Days, "Days") }
func (j *Job) Days() *Job    { return j.setUnit(Days) }
func (j *Job) Week() *Job    { return j.unitSingular(Weeks, "Weeks") }
func (j *Job) Weeks() *Job   { return j.setUnit(Weeks) }

// On anchors a weekly job to d. Only valid when the interval is 1.
func (j *Job) On(d time.Weekday) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.interval != 1 {
		return j.fail(intervalErrorf("scheduling .%s() jobs is only allowed for weekly jobs; every %d weeks is not supported", weekdayName(d), j.interval))
	}
	j.startDay = d
	j.anchored = true
	j.unit = Weeks
	return j
}

func (j *Job) Monday() *Job    { return j.On(time.Monday) }
func (j *Job) Tuesday() *Job   { return j.On(time.Tuesday) }
func (j *Job) Wednesday() *Job { return j.On(time.Wednesday) }
func (j *Job) Thursday() *Job  { return j.On(time.Thursday) }
func (j *Job) Friday() *Job    { return j.On(time.Friday) }
func (j *Job) Saturday() *Job  { return j.On(time.Saturday) }
func (j *Job) Sunday() *Job    { return j.On(time.Sunday) }

// At pins the time of day. The accepted format depends on the unit, so the
// unit (or weekday) must be chosen first:
//
//	days, weekday: "HH:MM" or "HH:MM:SS"
//	hours:         "MM:SS", or ":MM" which sets the minute (second 0)
//	minutes:       ":SS"
//
// Note the hourly ":MM" form: a lone component after the colon is a minute,
// not a second, so Every(1).Hour().At(":30") runs at half past each hour.
func (j *Job) At(s string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, err := parseAt(j.unit, j.anchored, s)
	if err != nil {
		return j.fail(err)
	}
	j.atTime = t
	j.hasAt = true
	return j
}

// To makes the interval random in [interval, latest]. The bound is checked
// when the next run is computed.
func (j *Job) To(latest int) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.latest = latest
	j.jitter = true
	return j
}

// Until sets an absolute deadline after which the job is cancelled.
func (j *Job) Until(t time.Time) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.setDeadline(t.UTC())
}

// UntilDuration sets the deadline relative to now.
func (j *Job) UntilDuration(d time.Duration) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.setDeadline(j.now().Add(d))
}

// UntilTime sets the deadline to today at t.
func (j *Job) UntilTime(t TimeOfDay) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.setDeadline(t.On(j.now()))
}

var untilLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05",
	"15:04",
}

// UntilString parses the deadline from one of
// "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02", "15:04:05", "15:04".
// Time-only forms mean today. All forms are UTC.
func (j *Job) UntilString(s string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	s = strings.TrimSpace(s)
	for _, layout := range untilLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !strings.Contains(s, "-") {
			t = TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}.On(j.now())
		}
		return j.setDeadline(t)
	}
	return j.fail(valueErrorf("invalid string format %q for until()", s))
}

func (j *Job) setDeadline(t time.Time) *Job {
	if t.Before(j.now()) {
		return j.fail(valueErrorf("cannot schedule a job to run until a time in the past (%s)", t.Format(time.RFC3339)))
	}
	j.deadline = t
	return j
}

// Kwargs sets named arguments passed to the callable as Call.Kwargs.
func (j *Job) Kwargs(kw map[string]any) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.kwargs = make(map[string]any, len(kw))
	for k, v := range kw {
		j.kwargs[k] = v
	}
	return j
}

// Do binds the job to the callable registered under name, computes its first
// run and registers it with the scheduler.
func (j *Job) Do(name string, args ...any) (*Job, error) {
	j.mu.Lock()
	if j.err != nil {
		err := j.err
		j.mu.Unlock()
		return nil, err
	}
	s := j.sched
	if s == nil {
		j.mu.Unlock()
		return nil, scheduleErrorf("unable to add job to schedule: job is not associated with a scheduler")
	}
	fn, err := s.registry.Lookup(name)
	if err != nil {
		j.mu.Unlock()
		return nil, err
	}
	j.funcName = strings.TrimSpace(name)
	j.fn = fn
	j.args = append([]any(nil), args...)
	if err := j.scheduleNextRun(s.now(), s.randInt); err != nil {
		j.err = err
		j.mu.Unlock()
		return nil, err
	}
	j.mu.Unlock()

	s.add(j)
	return j, nil
}

// DoFunc registers fn under name and binds the job to it.
func (j *Job) DoFunc(name string, fn Func, args ...any) (*Job, error) {
	j.mu.Lock()
	s := j.sched
	j.mu.Unlock()
	if s != nil {
		if err := s.registry.Register(name, fn); err != nil {
			return nil, scheduleErrorf("register %q: %v", name, err)
		}
	}
	return j.Do(name, args...)
}

func (j *Job) ShouldRun(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.nextRun.IsZero() && !now.Before(j.nextRun)
}

func (j *Job) overdue(when time.Time) bool {
	return !j.deadline.IsZero() && when.After(j.deadline)
}

func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

func (j *Job) Interval() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.interval
}

func (j *Job) Latest() (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.latest, j.jitter
}

func (j *Job) Unit() Unit {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.unit
}

func (j *Job) StartDay() (time.Weekday, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startDay, j.anchored
}

func (j *Job) AtTime() (TimeOfDay, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.atTime, j.hasAt
}

func (j *Job) Deadline() (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.deadline, !j.deadline.IsZero()
}

func (j *Job) LastRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun
}

func (j *Job) NextRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextRun
}

// Period is the duration used by the last next-run computation.
func (j *Job) Period() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.period
}

func (j *Job) FuncName() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.funcName
}

func (j *Job) Args() []any {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]any(nil), j.args...)
}

func (j *Job) NamedArgs() map[string]any {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]any, len(j.kwargs))
	for k, v := range j.kwargs {
		out[k] = v
	}
	return out
}

func (j *Job) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Every %d", j.interval)
	if j.jitter {
		fmt.Fprintf(&b, " to %d", j.latest)
	}
	unit := string(j.unit)
	if j.interval == 1 && !j.jitter {
		unit = strings.TrimSuffix(unit, "s")
	}
	fmt.Fprintf(&b, " %s", unit)
	if j.anchored {
		fmt.Fprintf(&b, " on %s", weekdayName(j.startDay))
	}
	if j.hasAt {
		fmt.Fprintf(&b, " at %s", j.atTime)
	}
	if !j.deadline.IsZero() {
		fmt.Fprintf(&b, " until %s", j.deadline.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, " do %s(%v)", j.funcName, j.args)
	fmt.Fprintf(&b, " (last run: %s, next run: %s)", fmtInstant(j.lastRun), fmtInstant(j.nextRun))
	return b.String()
}

func fmtInstant(t time.Time) string {
	if t.IsZero() {
		return "[never]"
	}
	return t.Format("2006-01-02 15:04:05")
}
