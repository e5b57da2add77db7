package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ballotaudit "agora/contexts/governance/ballot-audit-service"
	auditpostgres "agora/contexts/governance/ballot-audit-service/adapters/postgres"
	auditworkers "agora/contexts/governance/ballot-audit-service/application/workers"
	ballotengine "agora/contexts/governance/ballot-engine"
	ballotpostgres "agora/contexts/governance/ballot-engine/adapters/postgres"
	ballotworkers "agora/contexts/governance/ballot-engine/application/workers"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/messaging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	outboxRelay     ballotworkers.OutboxRelay
	expirer         ballotworkers.BallotExpirer
	consumer        auditworkers.BallotEventConsumer
	expirerEnabled  bool
	consumerEnabled bool
	registry        *prometheus.Registry
	metricsAddr     string
	pollInterval    time.Duration
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)
	ballotModule := ballotengine.NewModule(ballotengine.Dependencies{
		Ballots:        ballotRepo,
		Idempotency:    ballotRepo,
		Clock:          ballotpostgres.SystemClock{},
		IDGen:          ballotpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	auditRepo := auditpostgres.NewRepository(pg.DB, logger)
	auditModule := ballotaudit.NewModule(ballotaudit.Dependencies{
		Repository: auditRepo,
		IDGen:      auditpostgres.UUIDGenerator{},
		Clock:      auditpostgres.SystemClock{},
		Logger:     logger,
	})

	var registry *prometheus.Registry
	if cfg.EnableMetrics {
		registry = prometheus.NewRegistry()
	}

	server := httpserver.New(ballotModule, auditModule, registry, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	var registry *prometheus.Registry
	if cfg.EnableMetrics {
		registry = prometheus.NewRegistry()
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, registry, logger)
	if err != nil {
		return nil, err
	}

	ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)
	auditRepo := auditpostgres.NewRepository(pg.DB, logger)
	auditModule := ballotaudit.NewModule(ballotaudit.Dependencies{
		Repository: auditRepo,
		IDGen:      auditpostgres.UUIDGenerator{},
		Clock:      auditpostgres.SystemClock{},
		Logger:     logger,
	})

	return &WorkerApp{
		postgres: pg,
		outboxRelay: ballotworkers.OutboxRelay{
			Outbox:    ballotRepo,
			Publisher: kafka,
			Clock:     ballotpostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		expirer: ballotworkers.BallotExpirer{
			Ballots:   ballotRepo,
			IDGen:     ballotpostgres.UUIDGenerator{},
			Clock:     ballotpostgres.SystemClock{},
			BatchSize: cfg.ExpirerBatchSize,
			Logger:    logger,
		},
		consumer: auditworkers.BallotEventConsumer{
			Subscriber: kafka,
			Audit:      auditModule.Service,
			Dedup:      auditRepo,
			Clock:      auditpostgres.SystemClock{},
			DedupTTL:   cfg.IdempotencyTTL,
			Logger:     logger,
		},
		expirerEnabled:  cfg.EnableBallotExpirer,
		consumerEnabled: cfg.EnableAuditConsumer,
		registry:        registry,
		metricsAddr:     normalizeAddr(cfg.HTTPPort),
		pollInterval:    cfg.WorkerPollInterval,
		logger:          logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.registry != nil {
		go w.serveMetrics()
	}
	if w.consumerEnabled {
		if err := w.consumer.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"expirer_enabled", w.expirerEnabled,
		"consumer_enabled", w.consumerEnabled,
	)

	for {
		if w.expirerEnabled {
			if err := w.expirer.RunOnce(ctx); err != nil {
				return err
			}
		}
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// serveMetrics exposes the worker registry; the worker has no other HTTP
// surface, so the listener owns the whole port.
func (w *WorkerApp) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(w.metricsAddr, mux); err != nil {
		w.logger.Error("metrics listener stopped",
			"event", "bootstrap_metrics_listener_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
