package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateJob = errors.New("duplicate job id")
	ErrUnknownJob   = errors.New("unknown job id")
	ErrInboxFull    = errors.New("control inbox is full")
	ErrCallTimeout  = errors.New("external call timed out")
	ErrDraining     = errors.New("controller is draining")
)

// SubmitError is returned by a Transport when the external scheduler rejected
// or could not accept a submission. It counts as one failed attempt.
type SubmitError struct {
	JobID string
	Cause error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit of job %s failed: %v", e.JobID, e.Cause)
}

func (e *SubmitError) Unwrap() error { return e.Cause }

// PollTransientError means the status of a job could not be determined.
// The job's state is left unchanged.
type PollTransientError struct {
	ExternalID string
	Attempts   int
	Cause      error
}

func (e *PollTransientError) Error() string {
	return fmt.Sprintf("status of %s unknown after %d attempts: %v", e.ExternalID, e.Attempts, e.Cause)
}

func (e *PollTransientError) Unwrap() error { return e.Cause }

// JobExecutionFailure is recorded when the external scheduler reports a job failed.
type JobExecutionFailure struct {
	ExternalID string
	Attempt    int
}

func (e *JobExecutionFailure) Error() string {
	return fmt.Sprintf("job %s failed on attempt %d", e.ExternalID, e.Attempt)
}

// ReconfigurationError is a malformed or out of range operator request. It is logged and ignored.
type ReconfigurationError struct {
	Request string
	Reason  string
}

func (e *ReconfigurationError) Error() string {
	return fmt.Sprintf("ignoring reconfiguration %q: %s", e.Request, e.Reason)
}

// ValidatePoolSize checks a requested pool size.
func ValidatePoolSize(size int) error {
	if size < 1 {
		return &ReconfigurationError{Request: fmt.Sprintf("pool_size=%d", size), Reason: "pool size must be >= 1"}
	}
	return nil
}
