package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"appeearsfetch/internal/adapters/appeears"
	"appeearsfetch/internal/adapters/downloader"
	"appeearsfetch/internal/adapters/localstorage"
	"appeearsfetch/internal/config"
	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/logger"
	"appeearsfetch/internal/metrics"
	"appeearsfetch/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "appeears-fetch",
		Usage: "Fetch point-based satellite data from NASA AppEEARS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to an environment file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "destination directory (overrides SAVE_FOLDER)",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "wait between status queries (overrides POLL_INTERVAL)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write prometheus metrics to this file on exit (overrides METRICS_FILE)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "submit a point task, wait for it and download the result",
				Action: runAction,
			},
			{
				Name:  "fetch",
				Usage: "wait for an existing task and download the result",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "task-id",
						Usage:    "id of a submitted task",
						Required: true,
					},
				},
				Action: fetchAction,
			},
		},
		Action: runAction,
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *appContext) (*domain.RunResult, error) {
		req, err := a.cfg.JobRequest()
		if err != nil {
			return nil, fmt.Errorf("invalid task settings: %w", err)
		}
		return a.orchestrator.RunJob(ctx, a.cfg.Credentials, req)
	})
}

func fetchAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *appContext) (*domain.RunResult, error) {
		handle := domain.JobHandle(cmd.String("task-id"))
		return a.orchestrator.ResumeJob(ctx, a.cfg.Credentials, handle, a.cfg.Task.OutputFormat)
	})
}

type appContext struct {
	cfg          *config.Config
	orchestrator *service.Orchestrator
}

// withApp loads configuration, wires the components, runs fn and reports the result.
func withApp(ctx context.Context, cmd *cli.Command, fn func(*appContext) (*domain.RunResult, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer log.Sync()

	m := metrics.New()
	defer func() {
		if cfg.Metrics.File == "" {
			return
		}
		if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
			log.Warn("Failed to write metrics file", zap.String("path", cfg.Metrics.File), zap.Error(err))
		}
	}()

	client, err := appeears.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log, m)
	if err != nil {
		return err
	}
	storage := localstorage.NewLocalStorage(cfg.Output.Dir)
	if err := storage.Init(ctx); err != nil {
		return err
	}
	poller := service.NewPoller(client, cfg.Poll.Interval, log, m)
	dl := downloader.NewHTTPDownloader(cfg.API.DownloadTimeout, m)

	a := &appContext{
		cfg:          cfg,
		orchestrator: service.NewOrchestrator(client, client, poller, dl, storage, log, m),
	}

	log.Info("Starting AppEEARS fetch",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("save_folder", cfg.Output.Dir),
		zap.Duration("poll_interval", cfg.Poll.Interval),
	)

	result, err := fn(a)
	if err != nil {
		if stage := domain.FailedStage(err); stage != "" {
			return fmt.Errorf("%s stage failed: %w", stage, err)
		}
		return err
	}

	printSummary(result)
	return nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("out-dir") {
		cfg.Output.Dir = cmd.String("out-dir")
	}
	if cmd.IsSet("poll-interval") {
		cfg.Poll.Interval = cmd.Duration("poll-interval")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("metrics-file") {
		cfg.Metrics.File = cmd.String("metrics-file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid configuration"), err)
	}
	return cfg, nil
}

func printSummary(result *domain.RunResult) {
	fmt.Println("\n=== Task Summary ===")
	fmt.Printf("Run ID:       %s\n", result.RunID)
	fmt.Printf("Task ID:      %s\n", result.Handle)
	fmt.Printf("Status:       %s\n", result.Status)
	fmt.Printf("File:         %s (%s)\n", result.File.Name, result.File.Type)
	fmt.Printf("Saved To:     %s\n", result.Path)
	fmt.Printf("Bytes:        %d\n", result.Bytes)
	fmt.Printf("Completed At: %s\n", result.CompletedAt.Format(time.RFC3339))
}
