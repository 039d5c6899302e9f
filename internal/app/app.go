package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsDesk/internal/config"
	"NewsDesk/internal/domain"
	"NewsDesk/internal/guard"
	"NewsDesk/internal/httpapi"
	"NewsDesk/internal/infrastructure/llm"
	"NewsDesk/internal/infrastructure/scheduler"
	"NewsDesk/internal/infrastructure/settings"
	"NewsDesk/internal/infrastructure/storage"
	"NewsDesk/internal/infrastructure/telegram"
	"NewsDesk/internal/logging"
	"NewsDesk/internal/ports"
	"NewsDesk/internal/rewrite"
	"NewsDesk/internal/usecase"
	"NewsDesk/internal/verify"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	guard     *guard.Guard
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	settings  *settings.FileStore
	mux       *http.ServeMux
	closers   []func() error
}

// New opens the store, resolves the active provider and builds the pipeline.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	st, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, store: st}
	a.closers = append(a.closers, st.Close)

	provider, err := a.buildProvider(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var configStore ports.GuardConfigStore = st
	if cfg.Guard.Source == "file" {
		a.settings = settings.NewFileStore(cfg.Guard.File)
		configStore = a.settings
	}

	policy := guard.FailOpen
	if !cfg.Guard.FailOpen() {
		policy = guard.FailClosed
	}
	a.guard = guard.New(configStore, st, guard.Options{
		TTL:      cfg.Guard.CacheTTL,
		Policy:   policy,
		Location: cfg.Newsroom.Location(),
		Logger:   baseLogger.With("component", "guard"),
	})

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram, nil); tg.Configured() {
		notifier = tg
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Queue:    st,
		Ledger:   st,
		Gate:     a.guard,
		Rewriter: rewrite.NewStage(provider),
		Verifier: verify.NewStage(provider),
		Notifier: notifier,
		Provider: provider.Name(),
		Logger:   baseLogger.With("component", "pipeline"),
		Location: cfg.Newsroom.Location(),
	}, usecase.PipelineOptions{
		BatchSize:   cfg.Pipeline.BatchSize,
		CallTimeout: cfg.Pipeline.CallTimeout,
		ItemDelay:   cfg.Pipeline.ItemDelay,
		Retry: usecase.RetryPolicy{
			MaxAttempts:    cfg.Pipeline.Retry.MaxAttempts,
			InitialBackoff: cfg.Pipeline.Retry.InitialBackoff,
			MaxBackoff:     cfg.Pipeline.Retry.MaxBackoff,
		},
	})

	if cfg.Scheduler.Enabled {
		a.scheduler = usecase.NewScheduler(
			scheduler.NewIntervalScheduler(cfg.Scheduler.Interval),
			a.pipeline,
			cfg.Newsroom.Regions,
			baseLogger.With("component", "scheduler"),
		)
	}

	a.mux = http.NewServeMux()
	httpapi.NewRouter(httpapi.Deps{
		Batches:  a.pipeline,
		Guard:    a.guard,
		Queue:    st,
		Ledger:   st,
		Health:   st.Health,
		Location: cfg.Newsroom.Location(),
		Logger:   baseLogger.With("component", "http"),
	}).Register(a.mux)

	baseLogger.Info("application ready",
		"provider", provider.Name(),
		"driver", cfg.Database.Driver,
		"guardSource", cfg.Guard.Source,
		"guardPolicy", policy.String(),
		"regions", cfg.Newsroom.Regions,
	)
	return a, nil
}

func (a *Application) buildProvider(ctx context.Context) (ports.Provider, error) {
	registry := llm.NewRegistry()
	if a.cfg.Providers.ChatGPT.APIKey != "" {
		registry.Register(llm.NewChatGPTClient(a.cfg.Providers.ChatGPT, a.cfg.Providers.SystemPrompt, nil))
	}
	if a.cfg.Providers.Vertex.ProjectID != "" {
		vertex, err := llm.NewVertexClient(ctx, a.cfg.Providers.Vertex, a.cfg.Providers.SystemPrompt)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, vertex.Close)
		registry.Register(vertex)
	}

	provider, err := registry.Resolve(a.cfg.Providers.Active)
	if err != nil {
		return nil, fmt.Errorf("resolve active provider: %w", err)
	}
	return provider, nil
}

// RunOnce processes one batch per configured region and returns.
func (a *Application) RunOnce(ctx context.Context) (map[string][]domain.ItemResult, error) {
	return a.pipeline.RunRegions(ctx, a.cfg.Newsroom.Regions, 0)
}

// Run starts the settings watcher, the scheduler and the HTTP server, and blocks until ctx
// is done or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if a.settings != nil {
		err := settings.Watch(ctx, a.settings.Path(), a.guard.Invalidate, a.logger.With("component", "settings"))
		if err != nil {
			return err
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := a.scheduler.Stop(stopCtx); err != nil {
				a.logger.Warn("scheduler stop", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("http listening", "addr", a.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the HTTP routes for tests and embedding.
func (a *Application) Handler() http.Handler { return a.mux }

// Close releases the store and provider clients.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
