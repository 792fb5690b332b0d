// Package app wires together the bridge's components into the two runtime
// modes: api (ambient HTTP surface only) and worker (queue consumer plus
// the durable-tier sweep loop).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/bridge/internal/bootstrap"
	"github.com/wisbric/bridge/internal/cache/distributed"
	"github.com/wisbric/bridge/internal/cache/durable"
	"github.com/wisbric/bridge/internal/cache/engine"
	"github.com/wisbric/bridge/internal/cache/memory"
	"github.com/wisbric/bridge/internal/chatplatform"
	"github.com/wisbric/bridge/internal/config"
	"github.com/wisbric/bridge/internal/dispatch"
	"github.com/wisbric/bridge/internal/httpserver"
	"github.com/wisbric/bridge/internal/platform"
	"github.com/wisbric/bridge/internal/queue"
	"github.com/wisbric/bridge/internal/store"
	"github.com/wisbric/bridge/internal/sweep"
	"github.com/wisbric/bridge/internal/telemetry"
	"github.com/wisbric/bridge/internal/threadlookup"
)

// Run is the main application entry point: it reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting bridge",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	pool, err := platform.NewPostgresPool(ctx, cfg.PostgresURL, cfg.DatabaseSSLValidate, cfg.DatabaseSSLCA)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := bootstrap.Run(ctx, pool, logger); err != nil {
		return fmt.Errorf("bootstrapping schema: %w", err)
	}
	logger.Info("schema bootstrap complete")

	platformRDB, err := platform.NewRedisClient(ctx, cfg.PlatformRedisURL)
	if err != nil {
		return fmt.Errorf("connecting to platform redis: %w", err)
	}
	defer func() {
		if err := platformRDB.Close(); err != nil {
			logger.Error("closing platform redis", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	l1, err := memory.New(cfg.L1MaxEntries)
	if err != nil {
		return fmt.Errorf("creating in-memory tier: %w", err)
	}
	l2 := distributed.New(platformRDB)
	l3 := durable.New(pool)

	defaultTTL, err := time.ParseDuration(cfg.DefaultTTL)
	if err != nil {
		return fmt.Errorf("parsing BRIDGE_DEFAULT_CACHE_TTL %q: %w", cfg.DefaultTTL, err)
	}
	eng := engine.New(l1, l2, l3, defaultTTL, logger, cfg.DebugMode)

	domainStore := store.New(eng, l3, logger)

	chatClient := chatplatform.NewSlackAdapter(cfg.SlackBotToken)

	lookupPolicy, err := loadLookupPolicy(cfg)
	if err != nil {
		return fmt.Errorf("parsing thread-lookup policy: %w", err)
	}
	lookup := threadlookup.New(domainStore, chatClient, lookupPolicy)

	table := dispatch.NewTable()
	registerHandlers(table, lookup, chatClient, logger)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, eng, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, eng, l3, table, metricsReg)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func loadLookupPolicy(cfg *config.Config) (threadlookup.Policy, error) {
	window, err := time.ParseDuration(cfg.LookupWindow)
	if err != nil {
		return threadlookup.Policy{}, fmt.Errorf("BRIDGE_LOOKUP_WINDOW: %w", err)
	}
	base, err := time.ParseDuration(cfg.LookupBaseDelay)
	if err != nil {
		return threadlookup.Policy{}, fmt.Errorf("BRIDGE_LOOKUP_BASE_DELAY: %w", err)
	}
	maxDelay, err := time.ParseDuration(cfg.LookupMaxDelay)
	if err != nil {
		return threadlookup.Policy{}, fmt.Errorf("BRIDGE_LOOKUP_MAX_DELAY: %w", err)
	}
	return threadlookup.Policy{
		MaxAttempts: cfg.LookupMaxAttempts,
		Window:      window,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
	}, nil
}

// registerHandlers binds C9's routing table to the event types from spec
// §6. message.created resolves the thread via C8 and relays the message;
// the remaining types update mapping lifecycle state only.
func registerHandlers(table *dispatch.Table, lookup *threadlookup.Lookup, chatClient chatplatform.Client, logger *slog.Logger) {
	table.Register(queue.EventMessageCreated, func(ctx context.Context, event queue.Event) error {
		thread, err := lookup.FindByTicketWithRetry(ctx, event.ConversationID)
		if err != nil {
			return fmt.Errorf("resolving thread for ticket %q: %w", event.ConversationID, err)
		}
		if event.MessageText == "" {
			logger.Warn("message.created event carried no text", "conversation_id", event.ConversationID)
			return nil
		}
		return chatClient.SendMessage(ctx, thread.ID, event.MessageText)
	})

	table.Register(queue.EventStatusUpdated, func(ctx context.Context, event queue.Event) error {
		logger.Info("conversation status updated", "conversation_id", event.ConversationID)
		return nil
	})

	table.Register(queue.EventConversationNew, func(ctx context.Context, event queue.Event) error {
		logger.Info("conversation created", "conversation_id", event.ConversationID)
		return nil
	})
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, eng *engine.Engine, metricsReg *prometheus.Registry) error {
	storageHealth := func(r *http.Request) map[string]bool {
		return eng.Health(r.Context())
	}

	srv := httpserver.NewServer(cfg, logger, metricsReg, storageHealth, nil)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, eng *engine.Engine, l3 *durable.Store, table *dispatch.Table, metricsReg *prometheus.Registry) error {
	popRDB, err := platform.NewRedisClient(ctx, cfg.WebhookRedisURL)
	if err != nil {
		return fmt.Errorf("connecting to webhook redis: %w", err)
	}
	defer func() {
		if err := popRDB.Close(); err != nil {
			logger.Error("closing webhook redis pop connection", "error", err)
		}
	}()
	inspectRDB, err := platform.NewRedisClient(ctx, cfg.WebhookRedisURL)
	if err != nil {
		return fmt.Errorf("connecting to webhook redis (inspect): %w", err)
	}
	defer func() {
		if err := inspectRDB.Close(); err != nil {
			logger.Error("closing webhook redis inspect connection", "error", err)
		}
	}()

	pollInterval, err := time.ParseDuration(cfg.QueuePollInterval)
	if err != nil {
		return fmt.Errorf("BRIDGE_QUEUE_POLL_INTERVAL: %w", err)
	}
	blockTimeout, err := time.ParseDuration(cfg.QueueBlockTimeout)
	if err != nil {
		return fmt.Errorf("BRIDGE_QUEUE_BLOCK_TIMEOUT: %w", err)
	}

	consumer := queue.New(popRDB, inspectRDB, queue.Config{
		QueueName:    cfg.QueueName,
		PollInterval: pollInterval,
		BlockTimeout: blockTimeout,
	}, table, logger)

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("starting queue consumer: %w", err)
	}
	defer consumer.Stop()

	sweepInterval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("BRIDGE_SWEEP_INTERVAL: %w", err)
	}
	scheduler := sweep.New(l3, sweepInterval, logger)

	storageHealth := func(r *http.Request) map[string]bool {
		return eng.Health(r.Context())
	}
	srv := httpserver.NewServer(cfg, logger, metricsReg, storageHealth, consumer.GetHealth)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("worker http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	schedulerDone := make(chan struct{})
	go func() {
		_ = scheduler.Run(ctx)
		close(schedulerDone)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-schedulerDone
		return nil
	case err := <-errCh:
		return err
	}
}
