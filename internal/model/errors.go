package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTask the referenced task id does not exist
	ErrInvalidTask = errors.New("invalid task")
	// ErrMissingPreDeploymentWindow canary/blue-green job without a pre-deployment range
	ErrMissingPreDeploymentWindow = errors.New("missing pre-deployment window")
	// ErrMissingBaselineRun load test configured with a baseline run that does not exist
	ErrMissingBaselineRun = errors.New("missing baseline run")
	// ErrUnknownVerificationMode task type or dispatch mode not recognized
	ErrUnknownVerificationMode = errors.New("unknown verification mode")
	// ErrStoreUnavailable the persistent store failed
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoTasks Enqueue called with an empty list
	ErrNoTasks = errors.New("no tasks to enqueue")
	// ErrWindowInFlight an earlier window of the same source is still queued or running
	ErrWindowInFlight = errors.New("previous window still in flight")
	// ErrTaskNotRunning a verdict arrived for a task that already failed or timed out
	ErrTaskNotRunning = errors.New("task is not running")
	// ErrUnknownSource the monitored source does not exist
	ErrUnknownSource = errors.New("unknown verification task")
	// ErrUnknownJobInstance the verification job instance does not exist
	ErrUnknownJobInstance = errors.New("unknown verification job instance")
	// ErrInvalidWindow the window end is not after its start
	ErrInvalidWindow = errors.New("invalid window")
	// ErrInvalidVerdict the verdict body could not be decoded for the task type
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// AnalysisError carries the task / source / window context of a failure
type AnalysisError struct {
	Op       string
	TaskID   string
	SourceID string
	Window   *Window
	Err      error
}

func (e *AnalysisError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.TaskID != "" {
		fmt.Fprintf(&b, " task_id=%s", e.TaskID)
	}
	if e.SourceID != "" {
		fmt.Fprintf(&b, " verification_task_id=%s", e.SourceID)
	}
	if e.Window != nil {
		fmt.Fprintf(&b, " window=%s", e.Window)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// StoreError marks err as a store failure while keeping the cause in the chain
func StoreError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
