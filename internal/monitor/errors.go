package monitor

import (
	"errors"
	"fmt"
)

// ErrNoJob is returned when a calibrated submission lists no usable job id.
var ErrNoJob = errors.New("calibrated submission reported no job id")

// SubmissionError reports an upload that was accepted without a submission id.
type SubmissionError struct {
	Path   string
	Status string
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("submit %s: no submission id returned (status %q)", e.Path, e.Status)
	}
	return fmt.Sprintf("submit %s: no submission id returned", e.Path)
}

// KilledError reports a solve stopped by Kill or by context cancellation
// while waiting on a submission.
type KilledError struct {
	SubmissionID int64
	Cause        error
}

// Error implements the error interface.
func (e *KilledError) Error() string {
	return fmt.Sprintf("submission %d was killed", e.SubmissionID)
}

// Unwrap returns the context error when cancellation caused the kill.
func (e *KilledError) Unwrap() error {
	return e.Cause
}

// StageError wraps a failure with the stage and the ids known at that point.
type StageError struct {
	Stage        Stage
	Path         string
	SubmissionID int64
	JobID        int64
	Err          error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	msg := string(e.Stage) + " " + e.Path
	if e.SubmissionID != 0 {
		msg += fmt.Sprintf(" (submission %d", e.SubmissionID)
		if e.JobID != 0 {
			msg += fmt.Sprintf(", job %d", e.JobID)
		}
		msg += ")"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}
