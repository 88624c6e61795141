package batch

import (
	"errors"
	"fmt"
)

// ErrIncomplete means the result channel closed before every dispatched task
// reported. It signals a broken run, never a failed target.
var ErrIncomplete = errors.New("batch incomplete")

// TaskError reports a task that terminated abnormally.
type TaskError struct {
	Index int    // position of the target in the input list
	URL   string // target the task was probing
	Err   error  // recovered cause
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
