package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/core/ports"
)

// ---- TaskService mock ----

var _ ports.TaskService = (*TaskService)(nil)

// TaskService is a test double for ports.TaskService. With no StatusFn set,
// TaskStatus replays Statuses in order and repeats the last one.
type TaskService struct {
	mu sync.Mutex

	SubmitTaskFn func(ctx context.Context, token domain.AuthToken, req domain.JobRequest) (domain.JobHandle, error)
	StatusFn     func(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (domain.JobStatus, error)
	BundleFn     func(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (*domain.ResultBundle, error)

	Statuses []domain.JobStatus

	// Recorded calls for assertions.
	Submitted   []domain.JobRequest
	StatusCalls []domain.JobHandle
	BundleCalls []domain.JobHandle
}

func (m *TaskService) SubmitTask(ctx context.Context, token domain.AuthToken, req domain.JobRequest) (domain.JobHandle, error) {
	m.mu.Lock()
	m.Submitted = append(m.Submitted, req)
	m.mu.Unlock()
	if m.SubmitTaskFn != nil {
		return m.SubmitTaskFn(ctx, token, req)
	}
	return "task-1", nil
}

func (m *TaskService) TaskStatus(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (domain.JobStatus, error) {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, handle)
	n := len(m.StatusCalls)
	m.mu.Unlock()
	if m.StatusFn != nil {
		return m.StatusFn(ctx, token, handle)
	}
	if len(m.Statuses) == 0 {
		return domain.StatusDone, nil
	}
	return m.Statuses[min(n, len(m.Statuses))-1], nil
}

func (m *TaskService) Bundle(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (*domain.ResultBundle, error) {
	m.mu.Lock()
	m.BundleCalls = append(m.BundleCalls, handle)
	m.mu.Unlock()
	if m.BundleFn != nil {
		return m.BundleFn(ctx, token, handle)
	}
	return &domain.ResultBundle{TaskID: handle, Files: []domain.FileDescriptor{}}, nil
}

func (m *TaskService) FileURL(handle domain.JobHandle, fileID string) string {
	return fmt.Sprintf("mock://bundle/%s/%s", handle, fileID)
}

// ---- Sleeper mock ----

// Sleeper records requested waits without blocking. Pass its Sleep method to
// the poller in place of a real timer.
type Sleeper struct {
	mu sync.Mutex

	SleepFn func(ctx context.Context, d time.Duration) error

	Waits []time.Duration
}

func (m *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	m.Waits = append(m.Waits, d)
	m.mu.Unlock()
	if m.SleepFn != nil {
		return m.SleepFn(ctx, d)
	}
	return ctx.Err()
}
