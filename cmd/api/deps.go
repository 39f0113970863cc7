package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func openDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Driver != "postgres" {
		return nil, fmt.Errorf("database driver %q has no schema to migrate", cfg.Driver)
	}
	return postgres.NewDB(cfg)
}

func openStore(cfg config.DatabaseConfig, log *logger.Logger) (repository.Store, error) {
	if cfg.Driver == "memory" {
		log.Warn("using the in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(db), nil
}

func newRegistry(cfg config.MetricsConfig, subsystem string) (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewMetrics(reg, cfg.Namespace, subsystem)
}

func newBroker(cfg config.RedisConfig, log *logger.Logger) (messaging.Broker, error) {
	if !cfg.Enabled {
		return messaging.NewLogBroker(log), nil
	}
	return redis.NewRedisBroker(redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, log.Zerolog())
}

func newOutboxProcessor(cfg config.OutboxConfig, store repository.Store, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *worker.OutboxProcessor {
	return worker.NewOutboxProcessor(store, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		MaxDeliveries: cfg.MaxDeliveries,
		ClaimLease:    cfg.ClaimLease,
	}, log, m)
}
