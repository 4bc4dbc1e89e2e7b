package domain

import "strings"

// JobStatus is a task status as reported by the service, lower-cased.
type JobStatus string

const (
	// StatusUnknown marks a status response with no status in any known location.
	StatusUnknown    JobStatus = ""
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
	StatusFailed     JobStatus = "failed"
)

// ParseJobStatus normalizes a raw status string.
func ParseJobStatus(s string) JobStatus {
	return JobStatus(strings.ToLower(strings.TrimSpace(s)))
}

// IsSuccess reports whether s is the success terminal state.
func (s JobStatus) IsSuccess() bool {
	return s == StatusDone
}

// IsFailure reports whether s is a recognized failure terminal state.
func (s JobStatus) IsFailure() bool {
	return s == StatusError || s == StatusFailed
}

// IsTerminal reports whether no further transition follows s.
func (s JobStatus) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

func (s JobStatus) String() string {
	if s == StatusUnknown {
		return "unknown"
	}
	return string(s)
}
