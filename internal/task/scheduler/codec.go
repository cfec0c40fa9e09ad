package scheduler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is the persisted shape of one job.
type Record struct {
	ID          string         `json:"id,omitempty"`
	Interval    int            `json:"interval"`
	Latest      *int           `json:"latest"`
	Args        []any          `json:"args"`
	Kwargs      map[string]any `json:"kwargs"`
	JobFuncName string         `json:"job_func_name"`
	Unit        string         `json:"unit"`
	StartDay    *string        `json:"start_day"`
	CancelAfter *Timestamp     `json:"cancel_after"`
	AtTime      *string        `json:"at_time,omitempty"`
	LastRun     *Timestamp     `json:"last_run,omitempty"`
	NextRun     *Timestamp     `json:"next_run,omitempty"`
}

// Timestamp is an instant that decodes from either a calendar string or a
// number of seconds since an epoch. The epoch is applied by the Codec, so a
// numeric Timestamp stays unresolved until then.
type Timestamp struct {
	time    time.Time
	seconds float64
	numeric bool
}

// At wraps an absolute instant.
func At(t time.Time) *Timestamp {
	if t.IsZero() {
		return nil
	}
	return &Timestamp{time: t.UTC()}
}

// EpochSeconds wraps a numeric timestamp.
func EpochSeconds(sec float64) *Timestamp { return &Timestamp{seconds: sec, numeric: true} }

// Resolve returns the absolute instant, interpreting numeric values relative to epoch.
func (t *Timestamp) Resolve(epoch time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	if !t.numeric {
		return t.time
	}
	whole, frac := math.Modf(t.seconds)
	return epoch.UTC().Add(time.Duration(whole) * time.Second).Add(time.Duration(frac * float64(time.Second)))
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.numeric {
		return []byte(strconv.FormatFloat(t.seconds, 'f', -1, 64)), nil
	}
	return json.Marshal(t.time.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' {
		sec, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("invalid numeric timestamp %s", b)
		}
		*t = Timestamp{seconds: sec, numeric: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = *ts
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts a bare number of epoch seconds or an ISO calendar
// form. Calendar forms without an offset are UTC.
func ParseTimestamp(s string) (*Timestamp, error) {
	s = strings.TrimSpace(s)
	if sec, err := strconv.ParseFloat(s, 64); err == nil {
		return EpochSeconds(sec), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &Timestamp{time: t.UTC()}, nil
		}
	}
	return nil, fmt.Errorf("invalid date/time %q", s)
}

// ParseEpoch reads the configured epoch: "unix" (or empty), "2000", or an
// RFC 3339 instant.
func ParseEpoch(s string) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unix", "1970":
		return time.Unix(0, 0).UTC(), nil
	case "2000":
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q (use unix, 2000 or an RFC3339 instant)", s)
	}
	return t.UTC(), nil
}

// Record captures the job's configuration and schedule state.
func (j *Job) Record() Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	r := Record{
		ID:          j.id,
		Interval:    j.interval,
		Args:        append([]any{}, j.args...),
		Kwargs:      map[string]any{},
		JobFuncName: j.funcName,
		Unit:        string(j.unit),
		CancelAfter: At(j.deadline),
		LastRun:     At(j.lastRun),
		NextRun:     At(j.nextRun),
	}
	for k, v := range j.kwargs {
		r.Kwargs[k] = v
	}
	if j.jitter {
		latest := j.latest
		r.Latest = &latest
	}
	if j.anchored {
		day := weekdayName(j.startDay)
		r.StartDay = &day
	}
	if j.hasAt {
		at := j.atTime.String()
		r.AtTime = &at
	}
	return r
}

// EncodeRecords renders records as a JSON array.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// DecodeRecords parses a JSON array of records. An entry that does not decode
// is skipped and reported in the joined error; the others are returned.
func DecodeRecords(data []byte) ([]Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	out := make([]Record, 0, len(raw))
	var errs []error
	for i, msg := range raw {
		var r Record
		if err := json.Unmarshal(msg, &r); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}
