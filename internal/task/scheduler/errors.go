package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrSchedule matches every configuration error produced by this package.
	ErrSchedule = errors.New("schedule error")
	// ErrValue matches bad values (unit, at/until formats, jitter bounds) and interval errors.
	ErrValue = errors.New("schedule value error")
	// ErrInterval matches singular unit or weekday accessors used with interval != 1.
	ErrInterval = errors.New("interval error")

	ErrUnknownFunc = errors.New("unknown job func")
)

type ErrorKind int

const (
	KindSchedule ErrorKind = iota
	KindValue
	KindInterval
)

func (k ErrorKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindInterval:
		return "interval"
	default:
		return "schedule"
	}
}

// Error is a configuration or recomputation failure.
//
// The kinds nest: an interval error is a value error, and both are schedule
// errors, so errors.Is(err, ErrSchedule) holds for all of them.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrSchedule:
		return true
	case ErrValue:
		return e.Kind == KindValue || e.Kind == KindInterval
	case ErrInterval:
		return e.Kind == KindInterval
	}
	return false
}

func scheduleErrorf(format string, args ...any) error {
	return &Error{Kind: KindSchedule, Msg: fmt.Sprintf(format, args...)}
}

func valueErrorf(format string, args ...any) error {
	return &Error{Kind: KindValue, Msg: fmt.Sprintf(format, args...)}
}

func intervalErrorf(format string, args ...any) error {
	return &Error{Kind: KindInterval, Msg: fmt.Sprintf(format, args...)}
}
