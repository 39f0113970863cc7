package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type recordingBroker struct {
	mu       sync.Mutex
	fail     bool
	channels []string
	messages []messaging.Message
}

func (b *recordingBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker down")
	}
	b.channels = append(b.channels, channel)
	b.messages = append(b.messages, message.(messaging.Message))
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

func newProcessor(store repository.Store, broker messaging.Broker) *OutboxProcessor {
	return NewOutboxProcessor(store, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxDeliveries: 2,
	}, logger.Nop(), metrics.NewNop())
}

func seedEvent(t *testing.T, store repository.Store, clinicID uuid.UUID) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(model.EventQueueUpdated, model.QueueUpdatedPayload{
		ClinicID: clinicID,
		Date:     "2026-03-14",
		Action:   "added",
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.Outbox().Create(context.Background(), event)
	}))
	return event
}

func pending(t *testing.T, store repository.Store) []*model.OutboxEvent {
	t.Helper()
	var events []*model.OutboxEvent
	require.NoError(t, store.WithTx(context.Background(), func(tx repository.Tx) error {
		var err error
		events, err = tx.Outbox().GetPendingEventsWithLock(context.Background(), 100)
		return err
	}))
	return events
}

func TestProcessBatchPublishesToClinicChannel(t *testing.T) {
	store := memory.NewStore()
	broker := &recordingBroker{}
	clinicID := uuid.New()
	event := seedEvent(t, store, clinicID)

	n, err := newProcessor(store, broker).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{messaging.QueueChannel(clinicID.String())}, broker.channels)
	assert.Equal(t, event.ID.String(), broker.messages[0].ID)

	var payload model.QueueUpdatedPayload
	require.NoError(t, json.Unmarshal(broker.messages[0].Payload.(json.RawMessage), &payload))
	assert.Equal(t, clinicID, payload.ClinicID)

	assert.Empty(t, pending(t, store))
}

func TestProcessBatchSchedulesRetryThenParks(t *testing.T) {
	store := memory.NewStore()
	broker := &recordingBroker{fail: true}
	seedEvent(t, store, uuid.New())
	p := newProcessor(store, broker)
	p.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pending(t, store), "retry_at is in the future")

	// make the next failure schedule its retry in the past
	p.now = func() time.Time { return time.Now().Add(-time.Hour) }
	seedEvent(t, store, uuid.New())
	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)

	due := pending(t, store)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].RetryCount)

	// second failure of the same event exhausts MaxDeliveries
	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending(t, store))

	broker.fail = false
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "parked events are not redelivered")
}

func TestClaimedEventsAreLeased(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, uuid.New())
	p := newProcessor(store, &recordingBroker{})

	claimed, err := p.claim(context.Background())
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Empty(t, pending(t, store), "leased events are hidden from other workers")

	// A worker that died mid-batch: once the lease is over the event is due again.
	require.NoError(t, store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.Outbox().Lease(context.Background(), []uuid.UUID{claimed[0].ID}, time.Now().Add(-time.Second))
	}))
	assert.Len(t, pending(t, store), 1)
}

// txCheckingBroker opens a transaction from inside Publish. It only
// completes when the relay holds no transaction while publishing.
type txCheckingBroker struct {
	recordingBroker
	store   repository.Store
	blocked bool
}

func (b *txCheckingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	done := make(chan struct{})
	go func() {
		_ = b.store.WithTx(context.Background(), func(repository.Tx) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		b.blocked = true
	}
	return b.recordingBroker.Publish(ctx, channel, message)
}

func TestPublishRunsOutsideTransaction(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, uuid.New())
	broker := &txCheckingBroker{store: store}

	n, err := newProcessor(store, broker).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, broker.blocked, "store was locked while publishing")
	assert.Empty(t, pending(t, store))
}

func TestRetryStopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("broker down")
	}, func() {})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}
