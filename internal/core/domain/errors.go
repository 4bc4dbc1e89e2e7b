package domain

import (
	"errors"
	"fmt"
)

// Stage names a step of the fetch pipeline.
type Stage string

const (
	StageAuth     Stage = "auth"
	StageSubmit   Stage = "submit"
	StagePoll     Stage = "poll"
	StageBundle   Stage = "bundle"
	StageDownload Stage = "download"
)

// Sentinel errors, one per failure point. Match with errors.Is.
var (
	ErrAuth       = errors.New("authentication failed")
	ErrSubmission = errors.New("task submission failed")
	ErrPoll       = errors.New("status poll failed")
	ErrJobFailed  = errors.New("task failed")
	ErrBundle     = errors.New("bundle lookup failed")
	ErrDownload   = errors.New("file download failed")
)

var stageSentinels = map[Stage]error{
	StageAuth:     ErrAuth,
	StageSubmit:   ErrSubmission,
	StagePoll:     ErrPoll,
	StageBundle:   ErrBundle,
	StageDownload: ErrDownload,
}

// StageError reports a failure of one pipeline stage. StatusCode is the HTTP
// status of the failing response, or 0 when there was none.
type StageError struct {
	Stage      Stage
	StatusCode int
	Err        error
}

// NewStageError wraps err for stage. An err that already is a *StageError or a
// *JobFailedError is returned unchanged.
func NewStageError(stage Stage, statusCode int, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	var jf *JobFailedError
	if errors.As(err, &jf) {
		return err
	}
	return &StageError{Stage: stage, StatusCode: statusCode, Err: err}
}

func (e *StageError) Error() string {
	msg := stageSentinels[e.Stage].Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's stage.
func (e *StageError) Is(target error) bool {
	return target == stageSentinels[e.Stage]
}

// JobFailedError reports a task that reached a failure terminal status.
type JobFailedError struct {
	Handle JobHandle
	Status JobStatus
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("task %s finished with status %q", e.Handle, e.Status)
}

func (e *JobFailedError) Is(target error) bool {
	return target == ErrJobFailed
}

// FailedStage returns the stage err belongs to, or "" if it is not a pipeline error.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	if errors.Is(err, ErrJobFailed) {
		return StagePoll
	}
	return ""
}
