package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cascade/internal/common"
	"github.com/ternarybob/cascade/internal/gitlab"
	"github.com/ternarybob/cascade/internal/queue"
	"github.com/ternarybob/cascade/internal/reconciler"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Executor   *gitlab.Executor
	Client     *gitlab.Client
	Queue      *queue.JobQueue
	Reconciler *reconciler.Reconciler

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// New creates the application with all components wired together
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	a.Executor = gitlab.NewExecutor(
		cfg.GitLab.BaseURL,
		cfg.GitLab.Token,
		gitlab.WithLogger(logger),
		gitlab.WithRetryConfig(gitlab.RetryConfig{
			MaxAttempts: cfg.Executor.MaxAttempts,
			Backoff:     cfg.Executor.Backoff,
			Timeout:     cfg.Executor.Timeout,
		}),
	)
	a.Client = gitlab.NewClient(a.Executor, logger)

	a.Queue = queue.New(ctx, logger, func(results []queue.Result) {
		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				logger.Warn().
					Err(res.Err).
					Str("key", res.Key).
					Msg("Reconcile job failed")
			}
		}
		logger.Info().
			Int("jobs", len(results)).
			Int("failed", failed).
			Msg("Queue drained")
	})

	a.Reconciler = reconciler.New(a.Client, a.Queue, cfg.Reconciler.Projects, logger)

	return a, nil
}

// Start verifies credentials and begins the reconcile schedule
func (a *App) Start() error {
	user, err := a.Client.CurrentUser(a.ctx)
	if err != nil {
		return fmt.Errorf("failed to verify GitLab credentials: %w", err)
	}

	a.Logger.Info().
		Str("username", user.Username).
		Str("url", a.Config.GitLab.BaseURL).
		Msg("Authenticated against GitLab")

	if err := a.Reconciler.Start(a.Config.Reconciler.Schedule); err != nil {
		return err
	}

	// Kick off an immediate poll rather than waiting for the first tick.
	common.SafeGo(a.Logger, "initial-poll", func() {
		a.Reconciler.Poll(a.ctx)
	})

	return nil
}

// Close stops the reconcile schedule and cancels outstanding work
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down")

	if a.Reconciler != nil {
		a.Reconciler.Stop()
	}
	a.cancelCtx()

	return nil
}
