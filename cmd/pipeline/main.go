package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/api/rest"
	"github.com/drossen/ticketsmith/internal/clock"
	"github.com/drossen/ticketsmith/internal/config"
	"github.com/drossen/ticketsmith/internal/generate"
	"github.com/drossen/ticketsmith/internal/jira"
	"github.com/drossen/ticketsmith/internal/notify"
	"github.com/drossen/ticketsmith/internal/observability"
	"github.com/drossen/ticketsmith/internal/orchestrator"
	"github.com/drossen/ticketsmith/internal/resilience"
	"github.com/drossen/ticketsmith/internal/retry"
	"github.com/drossen/ticketsmith/internal/sourcehost"
	"github.com/drossen/ticketsmith/internal/store"
	"github.com/drossen/ticketsmith/internal/track"
	"github.com/drossen/ticketsmith/pkg/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Optional .env for local development; the config file expands ${VAR}
	// references from whatever is in the environment by then.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("pipeline exited", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.System()

	recordStore, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}
	defer closeStore()

	schedule, err := retry.NewSchedule(cfg.Pipeline.Backoff, cfg.Pipeline.MaxAttempts)
	if err != nil {
		return fmt.Errorf("invalid retry schedule: %w", err)
	}

	trackOpts := track.DefaultOptions
	if len(cfg.Tracker.ReprocessLabels) > 0 {
		trackOpts.OverrideLabels = cfg.Tracker.ReprocessLabels
	}
	if len(cfg.Tracker.TriggerComments) > 0 {
		trackOpts.TriggerComments = cfg.Tracker.TriggerComments
	}
	trackOpts.StaleAfter = cfg.Pipeline.StaleAfter

	tracker, err := track.NewTracker(ctx, recordStore, schedule, clk, trackOpts, logger)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	breakers := resilience.NewManager(cfg.BreakerSettings(), clk, logger)

	jiraClient, err := jira.NewClient(cfg.Tracker.BaseURL, cfg.Tracker.Username, cfg.Tracker.APIToken, logger)
	if err != nil {
		return fmt.Errorf("failed to create tracker client: %w", err)
	}

	generator := generate.NewOpenAIGenerator(cfg.Generation.APIKey, cfg.Generation.Model, logger)
	host := sourcehost.NewClient(cfg.SourceHost.AccessToken, cfg.SourceHost.WorkspaceDir, logger)
	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, logger)

	orch := orchestrator.New(tracker, breakers, jiraClient, generator, host, notifier, orchestrator.Config{
		Query: jira.Query{
			Project:         cfg.Tracker.Project,
			Statuses:        cfg.Tracker.Statuses,
			ReprocessLabels: trackOpts.OverrideLabels,
			TriggerComments: trackOpts.TriggerComments,
			LookbackDays:    cfg.Tracker.LookbackDays,
		},
		Target: types.Repository{
			Owner:      cfg.SourceHost.Owner,
			Name:       cfg.SourceHost.Repo,
			BaseBranch: cfg.SourceHost.BaseBranch,
		},
		DoneStatus:        cfg.Tracker.DoneStatus,
		PollInterval:      cfg.Pipeline.PollInterval,
		TrackerTimeout:    cfg.Pipeline.TrackerTimeout,
		GenerationTimeout: cfg.Generation.Timeout,
		PublishTimeout:    cfg.SourceHost.Timeout,
	}, logger)

	router := rest.NewHandler(tracker, breakers, logger).Routes()
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("starting management API server", zap.String("address", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start management API server", zap.Error(err))
		}
	}()

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		if err := orch.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("orchestrator failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	<-orchDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}

func buildStore(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (track.Store, func(), error) {
	switch cfg.Store.Type {
	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.Store.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	default:
		return store.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}
