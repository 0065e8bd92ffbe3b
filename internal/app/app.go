package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"NewsAgent/internal/api"
	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/infrastructure/llm"
	"NewsAgent/internal/infrastructure/lock"
	"NewsAgent/internal/infrastructure/ml"
	"NewsAgent/internal/infrastructure/parser"
	"NewsAgent/internal/infrastructure/ratelimit"
	"NewsAgent/internal/infrastructure/scheduler"
	"NewsAgent/internal/infrastructure/storage"
	"NewsAgent/internal/infrastructure/telegram"
	"NewsAgent/internal/logging"
	"NewsAgent/internal/ports"
	"NewsAgent/internal/relevance"
	"NewsAgent/internal/scanner"
	"NewsAgent/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      *storage.Repository
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *api.Server
	closers   []func() error
}

// New opens the store and builds every component once.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &Application{cfg: cfg, logger: baseLogger}
	a.closers = append(a.closers, db.Close)
	a.repo = storage.NewRepository(db)

	chat := llm.NewClient(cfg.LLM)
	classifier := relevance.NewClassifier(
		cfg.Filter.EnableLLMFilter,
		ml.NewJudge(chat, cfg.LLM),
		cfg.LLM.ClassifyTimeout,
		baseLogger,
	)

	limiter := ratelimit.NewHostLimiter(cfg.Fetch.HostInterval)
	feedClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	apiClient := &http.Client{Timeout: cfg.Fetch.APITimeout}
	feeds := parser.NewFeedFetcher(feedClient, cfg.Fetch.UserAgent, limiter, baseLogger.With("component", "feed"))

	registry := scanner.NewRegistry(
		parser.NewRSSScanner(feeds),
		parser.NewArxivScanner(feeds, apiClient),
		parser.NewHNScanner(feedClient, limiter, cfg.HN),
	)

	ingestor := usecase.NewIngestor(usecase.IngestDeps{
		Repository:        a.repo,
		Registry:          registry,
		Classifier:        classifier,
		DefaultMaxAgeDays: cfg.Filter.MaxAgeDays(),
		Logger:            baseLogger,
	})
	summarizer := usecase.NewSummarizer(usecase.SummarizeDeps{
		Repository:    a.repo,
		Remote:        ml.NewSummarizer(chat, cfg.LLM),
		RemoteTimeout: cfg.LLM.SummaryTimeout,
		Logger:        baseLogger,
	})

	pipelineDeps := usecase.PipelineDeps{
		Ingestor:   ingestor,
		Summarizer: summarizer,
		Sites:      cfg.Sites,
		HNEnabled:  cfg.HN.Enabled(),
		Logger:     baseLogger,
	}
	if notifier := telegram.NewNotifier(cfg.Notifications.Telegram); notifier != nil {
		pipelineDeps.Notifier = notifier
	}
	a.pipeline = usecase.NewPipeline(pipelineDeps)

	driver := scheduler.NewIntervalScheduler(a.runLock(ctx), cfg.Scheduler.RunOnStart, baseLogger.With("component", "scheduler"))
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, cfg.Scheduler, cfg.HN.Enabled())

	a.server = api.NewServer(cfg.HTTP, api.Deps{
		Items:     a.repo,
		Refresher: a.pipeline,
		Logger:    baseLogger,
	})

	baseLogger.Info("application wired",
		"app", cfg.App.Name,
		"env", cfg.App.Environment,
		"db", db.DriverName(),
		"sites", len(cfg.Sites),
		"scanners", registry.Names(),
	)
	return a, nil
}

// runLock prefers Redis so replicas share job locks; without Redis, or when it
// is unreachable at startup, jobs are guarded in-process only.
func (a *Application) runLock(ctx context.Context) ports.RunLock {
	if a.cfg.Redis.Addr == "" {
		return lock.NewLocalLock()
	}

	redisLock := lock.NewRedisLock(a.cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisLock.Ping(pingCtx); err != nil {
		a.logger.Warn("redis unavailable, using in-process job lock", "addr", a.cfg.Redis.Addr, "error", err)
		_ = redisLock.Close()
		return lock.NewLocalLock()
	}
	a.closers = append(a.closers, redisLock.Close)
	return redisLock
}

// Migrate creates the item tables when missing.
func (a *Application) Migrate(ctx context.Context) error {
	if err := a.repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Serve migrates, starts the scheduler and serves HTTP until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.Migrate(ctx); err != nil {
		return err
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	return a.server.Run(ctx)
}

// Refresh runs one refresh pass per kind, streaming progress lines to emit.
func (a *Application) Refresh(ctx context.Context, kinds []domain.Kind, req usecase.RefreshRequest, emit func(string)) ([]usecase.RefreshReport, error) {
	if err := a.Migrate(ctx); err != nil {
		return nil, err
	}
	reports := make([]usecase.RefreshReport, 0, len(kinds))
	for _, kind := range kinds {
		req.Kind = kind
		reports = append(reports, a.pipeline.Refresh(ctx, req, emit))
	}
	return reports, nil
}

// Close releases the database and Redis connections.
func (a *Application) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
