package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field mutates a zerolog event. Fields apply in order, so a repeated key
// keeps the last value.
type Field func(e *zerolog.Event)

func String(k, v string) Field          { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field         { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field     { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Uint64(k string, v uint64) Field   { return func(e *zerolog.Event) { e.Uint64(k, v) } }
func Bool(k string, v bool) Field       { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Float64(k string, v float64) Field { return func(e *zerolog.Event) { e.Float64(k, v) } }
func Any(k string, v any) Field         { return func(e *zerolog.Event) { e.Interface(k, v) } }

func Duration(k string, v time.Duration) Field { return func(e *zerolog.Event) { e.Dur(k, v) } }

// Time writes t in UTC; the zero time is written as null.
func Time(k string, t time.Time) Field {
	return func(e *zerolog.Event) {
		if t.IsZero() {
			e.Interface(k, nil)
			return
		}
		e.Time(k, t.UTC())
	}
}

// Err is a no-op for a nil error.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

const maxStack = 8 << 10

// Stack attaches a goroutine stack, truncated to 8KB.
func Stack(stack string) Field {
	return func(e *zerolog.Event) {
		if stack == "" {
			return
		}
		if len(stack) > maxStack {
			stack = stack[:maxStack] + "\n...truncated"
		}
		e.Str("stack", stack)
	}
}
