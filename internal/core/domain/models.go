package domain

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the MM-DD-YYYY form AppEEARS expects for task dates.
const DateLayout = "01-02-2006"

// Credentials are the Earthdata Login username and password.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either half of the credentials is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// AuthToken is the bearer token returned by the login endpoint.
type AuthToken string

// JobHandle is the task id returned by the service on submission.
type JobHandle string

// JobRequest describes a point extraction task.
type JobRequest struct {
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Latitude     float64
	Longitude    float64
	Product      string // e.g. "SPL4SMGP.008"
	Layer        string // e.g. "Geophysical_Data_sm_rootzone"
	OutputFormat string // "CSV"
}

// Validate checks that the request is well formed. Date order and coordinate
// ranges are left to the service.
func (r JobRequest) Validate() error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, errors.New("task name is empty"))
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		errs = append(errs, errors.New("start and end dates are required"))
	}
	if r.Product == "" || r.Layer == "" {
		errs = append(errs, errors.New("product and layer are required"))
	}
	if r.OutputFormat == "" {
		errs = append(errs, errors.New("output format is empty"))
	}
	return errors.Join(errs...)
}

// FileDescriptor is one entry of a task bundle.
type FileDescriptor struct {
	ID   string `json:"file_id"`
	Name string `json:"file_name"`
	Type string `json:"file_type"`
	Size int64  `json:"file_size,omitempty"`
}

// ResultBundle lists the output files of a completed task, in service order.
type ResultBundle struct {
	TaskID JobHandle        `json:"task_id"`
	Files  []FileDescriptor `json:"files"`
}

// Select returns the first file whose type matches format, ignoring case.
func (b ResultBundle) Select(format string) (FileDescriptor, bool) {
	for _, f := range b.Files {
		if strings.EqualFold(f.Type, format) {
			return f, true
		}
	}
	return FileDescriptor{}, false
}

// RunResult holds the outcome of a completed run.
type RunResult struct {
	RunID       string
	Handle      JobHandle
	Status      JobStatus
	File        FileDescriptor
	Path        string
	Bytes       int64
	Success     bool
	StartedAt   time.Time
	CompletedAt time.Time
}
