package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrLauncherNil = errors.New("browser launcher must not be nil")
	// ErrConditionTimeout is returned by a bounded wait that ran out of time
	// while its caller was still waiting.
	ErrConditionTimeout = errors.New("condition not met before timeout")
)

// StepFailedError means a UI target could not be located or acted on. The
// run stops there; steps are never retried because the page state is
// unknown after a failed interaction.
type StepFailedError struct {
	Step  string
	State State
	Cause error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %q in %s failed: %v", e.Step, e.State, e.Cause)
}

func (e *StepFailedError) Unwrap() error { return e.Cause }
