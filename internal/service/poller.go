package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/core/ports"
	"appeearsfetch/internal/metrics"
)

// DefaultPollInterval is the wait between two status queries.
const DefaultPollInterval = 10 * time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller waits for a submitted task to reach a terminal status.
type Poller struct {
	tasks    ports.TaskService
	interval time.Duration
	sleep    SleepFunc
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewPoller creates a Poller that queries every interval.
func NewPoller(tasks ports.TaskService, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		tasks:    tasks,
		interval: interval,
		sleep:    sleepContext,
		logger:   logger,
		metrics:  m,
	}
}

// WithSleep replaces the wait between queries.
func (p *Poller) WithSleep(sleep SleepFunc) *Poller {
	p.sleep = sleep
	return p
}

// AwaitCompletion queries the task status until it is done or failed. There is
// no attempt limit; a status missing from the response keeps the loop going.
// A failed query ends the wait with the query's error.
func (p *Poller) AwaitCompletion(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (domain.JobStatus, error) {
	for attempt := 1; ; attempt++ {
		p.metrics.PollAttempts.Inc()

		status, err := p.tasks.TaskStatus(ctx, token, handle)
		if err != nil {
			return domain.StatusUnknown, domain.NewStageError(domain.StagePoll, 0, err)
		}
		p.logger.Info("Task status",
			zap.String("task_id", string(handle)),
			zap.Stringer("status", status),
			zap.Int("attempt", attempt),
		)

		switch {
		case status.IsSuccess():
			return status, nil
		case status.IsFailure():
			return status, &domain.JobFailedError{Handle: handle, Status: status}
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return status, domain.NewStageError(domain.StagePoll, 0, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
