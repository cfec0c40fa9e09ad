package engine

import (
	"errors"
	"fmt"
)

var (
	ErrStopped = errors.New("task engine stopped")
	ErrNilTask = errors.New("task Run is nil")
	ErrNoName  = errors.New("task Name is required")
)

// PanicError is the handle error of a task whose Run panicked.
type PanicError struct {
	Task  string
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value) }
