// Package worker relays outbox events to the message broker.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxDeliveries is how many batches may fail an event before it is
	// parked (FAILED without retry_at).
	MaxDeliveries int
	// ClaimLease is how long a claimed event stays hidden from other
	// workers while it is being published.
	ClaimLease time.Duration
}

type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = 10
	}
	if config.ClaimLease <= 0 {
		config.ClaimLease = 30 * time.Second
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims up to BatchSize events under a lease, publishes them
// with no transaction open and records the outcomes in a second
// transaction. An event whose outcome is never recorded becomes due again
// when its lease runs out. It returns how many events were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.claim(ctx)
	if err != nil || len(events) == 0 {
		return 0, err
	}

	failures := make(map[uuid.UUID]error, len(events))
	attempted := make([]*model.OutboxEvent, 0, len(events))
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.publish(ctx, event); err != nil {
			failures[event.ID] = err
		}
		attempted = append(attempted, event)
	}

	// Outcomes are recorded even when shutdown interrupted the batch.
	recordCtx := context.WithoutCancel(ctx)
	published := 0
	err = p.store.WithTx(recordCtx, func(tx repository.Tx) error {
		published = 0
		for _, event := range attempted {
			if err := p.record(recordCtx, tx, event, failures[event.ID]); err != nil {
				return err
			}
			if failures[event.ID] == nil {
				published++
			}
		}
		return nil
	})
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("record_outcomes", "error").Inc()
		return 0, err
	}
	p.metrics.DatabaseOperations.WithLabelValues("record_outcomes", "success").Inc()
	return published, nil
}

func (p *OutboxProcessor) claim(ctx context.Context) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		events, err = tx.Outbox().GetPendingEventsWithLock(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		ids := make([]uuid.UUID, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := tx.Outbox().Lease(ctx, ids, p.now().Add(p.config.ClaimLease)); err != nil {
			return fmt.Errorf("failed to lease events: %w", err)
		}
		return nil
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", status).Inc()
	return events, err
}

func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) error {
	channel, err := channelFor(event)
	if err != nil {
		return err
	}
	return retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, channel, messaging.Message{
			ID:      event.ID.String(),
			Type:    event.EventType,
			Payload: event.Payload,
		})
	}, func() {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	})
}

// record marks the event processed, or failed with a backoff retry_at.
// After MaxDeliveries failures the event is parked.
func (p *OutboxProcessor) record(ctx context.Context, tx repository.Tx, event *model.OutboxEvent, publishErr error) error {
	if publishErr != nil {
		p.metrics.OutboxEventsFailed.Inc()
		var retryAt *time.Time
		if event.RetryCount+1 < p.config.MaxDeliveries {
			at := p.now().Add(p.config.RetryDelay * time.Duration(event.RetryCount+1))
			retryAt = &at
		}
		p.logger.Error(publishErr, "Failed to publish event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"parked", retryAt == nil)
		if err := tx.Outbox().MarkFailed(ctx, event.ID, publishErr.Error(), retryAt); err != nil {
			return fmt.Errorf("failed to update event status: %w", err)
		}
		return nil
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := tx.Outbox().MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	event.Status = model.OutboxStatusProcessed
	return nil
}

// channelFor routes queue events to their clinic's channel and anything
// else to a channel named after the event type.
func channelFor(event *model.OutboxEvent) (string, error) {
	if event.EventType != model.EventQueueUpdated {
		return event.EventType, nil
	}
	var payload model.QueueUpdatedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return "", fmt.Errorf("malformed %s payload: %w", event.EventType, err)
	}
	return messaging.QueueChannel(payload.ClinicID.String()), nil
}

// retry calls fn up to attempts times, waiting delay between calls. It
// gives up early when ctx is done.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, onRetry func()) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		onRetry()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", err, ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}
