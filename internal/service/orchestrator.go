package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/core/ports"
	"appeearsfetch/internal/metrics"
)

// Orchestrator coordinates the fetch workflow: login, submit, poll, bundle, download.
type Orchestrator struct {
	auth       ports.Authenticator
	tasks      ports.TaskService
	poller     *Poller
	downloader ports.Downloader
	storage    ports.Storage
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	auth ports.Authenticator,
	tasks ports.TaskService,
	poller *Poller,
	downloader ports.Downloader,
	storage ports.Storage,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		auth:       auth,
		tasks:      tasks,
		poller:     poller,
		downloader: downloader,
		storage:    storage,
		logger:     logger,
		metrics:    m,
	}
}

// RunJob submits req and carries it through to a downloaded file.
func (o *Orchestrator) RunJob(ctx context.Context, creds domain.Credentials, req domain.JobRequest) (result *domain.RunResult, err error) {
	result, logger := o.start()
	defer func() { o.finish(result, err) }()

	if err := req.Validate(); err != nil {
		return result, domain.NewStageError(domain.StageSubmit, 0, err)
	}

	token, err := o.login(ctx, logger, creds)
	if err != nil {
		return result, err
	}

	logger.Info("Submitting task",
		zap.String("task_name", req.Name),
		zap.String("product", req.Product),
		zap.String("layer", req.Layer),
		zap.Float64("latitude", req.Latitude),
		zap.Float64("longitude", req.Longitude),
	)
	began := time.Now()
	handle, err := o.tasks.SubmitTask(ctx, token, req)
	o.observe(domain.StageSubmit, began)
	if err != nil {
		logger.Error("Task submission failed", zap.Error(err))
		return result, domain.NewStageError(domain.StageSubmit, 0, err)
	}
	logger.Info("Task submitted", zap.String("task_id", string(handle)))

	return result, o.complete(ctx, logger, token, handle, req.OutputFormat, result)
}

// ResumeJob waits for an already submitted task and downloads its result.
func (o *Orchestrator) ResumeJob(ctx context.Context, creds domain.Credentials, handle domain.JobHandle, format string) (result *domain.RunResult, err error) {
	result, logger := o.start()
	defer func() { o.finish(result, err) }()

	token, err := o.login(ctx, logger, creds)
	if err != nil {
		return result, err
	}
	logger.Info("Attaching to task", zap.String("task_id", string(handle)))

	return result, o.complete(ctx, logger, token, handle, format, result)
}

func (o *Orchestrator) start() (*domain.RunResult, *zap.Logger) {
	result := &domain.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	return result, o.logger.With(zap.String("run_id", result.RunID))
}

func (o *Orchestrator) finish(result *domain.RunResult, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(domain.FailedStage(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	o.metrics.Runs.WithLabelValues(outcome).Inc()
}

func (o *Orchestrator) login(ctx context.Context, logger *zap.Logger, creds domain.Credentials) (domain.AuthToken, error) {
	began := time.Now()
	token, err := o.auth.Login(ctx, creds)
	o.observe(domain.StageAuth, began)
	if err != nil {
		logger.Error("Login failed", zap.Error(err))
		return "", domain.NewStageError(domain.StageAuth, 0, err)
	}
	logger.Info("Logged in, token received")
	return token, nil
}

// complete runs the poll, bundle and download stages for handle.
func (o *Orchestrator) complete(
	ctx context.Context,
	logger *zap.Logger,
	token domain.AuthToken,
	handle domain.JobHandle,
	format string,
	result *domain.RunResult,
) error {
	logger = logger.With(zap.String("task_id", string(handle)))
	result.Handle = handle

	began := time.Now()
	status, err := o.poller.AwaitCompletion(ctx, token, handle)
	o.observe(domain.StagePoll, began)
	result.Status = status
	if err != nil {
		logger.Error("Task did not complete", zap.Error(err))
		return err
	}
	logger.Info("Task is done")

	began = time.Now()
	bundle, err := o.tasks.Bundle(ctx, token, handle)
	o.observe(domain.StageBundle, began)
	if err != nil {
		logger.Error("Bundle lookup failed", zap.Error(err))
		return domain.NewStageError(domain.StageBundle, 0, err)
	}
	logger.Info("Bundle info received", zap.Int("files", len(bundle.Files)))

	file, ok := bundle.Select(format)
	if !ok {
		err := domain.NewStageError(domain.StageBundle, 0,
			fmt.Errorf("no %s file among %d bundle files", format, len(bundle.Files)))
		logger.Error("No matching file in bundle", zap.Error(err))
		return err
	}
	result.File = file

	began = time.Now()
	path, written, err := o.download(ctx, token, handle, file)
	o.observe(domain.StageDownload, began)
	result.Bytes = written
	if err != nil {
		logger.Error("Download failed", zap.String("file_name", file.Name), zap.Error(err))
		return err
	}

	result.Path = path
	result.Success = true
	result.CompletedAt = time.Now().UTC()
	logger.Info("File saved", zap.String("path", path), zap.Int64("bytes", written))
	return nil
}

func (o *Orchestrator) download(ctx context.Context, token domain.AuthToken, handle domain.JobHandle, file domain.FileDescriptor) (string, int64, error) {
	dl, err := o.downloader.Download(ctx, o.tasks.FileURL(handle, file.ID), token)
	if err != nil {
		return "", 0, domain.NewStageError(domain.StageDownload, 0, err)
	}
	defer dl.Body.Close()

	path, written, err := o.storage.SaveFile(ctx, file.Name, dl.Body, dl.Size)
	o.metrics.DownloadedBytes.Add(float64(written))
	if err != nil {
		return "", written, domain.NewStageError(domain.StageDownload, 0, err)
	}
	return path, written, nil
}

func (o *Orchestrator) observe(stage domain.Stage, began time.Time) {
	o.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(began).Seconds())
}
