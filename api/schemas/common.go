package schemas

import (
	"errors"
	"time"
)

// ErrCancelledByUser marks an interrupt during a wait or a prompt. It is a
// graceful abort, not a crash.
var ErrCancelledByUser = errors.New("operation cancelled by user")

// -- Result Schemas --

// BatchStatus is the outcome of one batch entry.
type BatchStatus string

const (
	StatusSuccess BatchStatus = "success"
	StatusFailure BatchStatus = "failure"
)

// BatchResult is the recorded outcome of one record's workflow run within a
// batch. It is written once and never modified afterwards.
type BatchResult struct {
	// Index is the 1-based position of the entry in the input list.
	Index       int          `json:"index"`
	RunID       string       `json:"run_id,omitempty"`
	Status      BatchStatus  `json:"status"`
	ProcessedAt time.Time    `json:"processed_at"`
	Record      SignupRecord `json:"entry_data"`
	Error       string       `json:"error,omitempty"`
}

// Succeeded is shorthand for Status == StatusSuccess.
func (r BatchResult) Succeeded() bool {
	return r.Status == StatusSuccess
}
