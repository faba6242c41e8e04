package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	fail      bool
	published map[string][]interface{}
	calls     int
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail {
		return errors.New("broker unavailable")
	}
	if b.published == nil {
		b.published = make(map[string][]interface{})
	}
	b.published[channel] = append(b.published[channel], message)
	return nil
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:       10,
		PollInterval:    time.Millisecond,
		RetryAttempts:   2,
		RetryDelay:      0,
		MaxRetries:      2,
		ProcessingLease: time.Minute,
	}
}

func stage(t *testing.T, store *memory.Store, eventType string) {
	t.Helper()
	err := store.Outbox().Create(context.Background(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   json.RawMessage(`{"ok":true}`),
	})
	require.NoError(t, err)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	store := memory.NewStore()

	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(store.Outbox(), &fakeBroker{}, cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.MaxRetries = 0
	_, err = NewOutboxProcessor(store.Outbox(), &fakeBroker{}, cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.ProcessingLease = 0
	_, err = NewOutboxProcessor(store.Outbox(), &fakeBroker{}, cfg, nil, nil)
	assert.Error(t, err)
}

func TestProcessBatchPublishesByEventType(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), nil, m)
	require.NoError(t, err)

	stage(t, store, model.EventAppointmentCreated)
	stage(t, store, model.EventAppointmentCancelled)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, broker.published[model.EventAppointmentCreated], 1)
	assert.Len(t, broker.published[model.EventAppointmentCancelled], 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxEventsProcessed))

	// Delivered events are not claimed again.
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRetriesThenParks(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{fail: true}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), nil, m)
	require.NoError(t, err)
	ctx := context.Background()

	stage(t, store, model.EventAppointmentCreated)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, broker.calls, "in-process retries")

	// The first failure schedules another attempt.
	time.Sleep(5 * time.Millisecond)
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 4, broker.calls)

	// The second failure parks the event.
	time.Sleep(5 * time.Millisecond)
	broker.fail = false
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 4, broker.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestStartStopsWithContext(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{}
	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), nil, nil)
	require.NoError(t, err)
	stage(t, store, model.EventAppointmentCreated)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return len(broker.published[model.EventAppointmentCreated]) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestProcessBatchReclaimsAbandonedEvents(t *testing.T) {
	store := memory.NewStore()
	broker := &fakeBroker{}
	cfg := testConfig()
	cfg.ProcessingLease = 20 * time.Millisecond
	p, err := NewOutboxProcessor(store.Outbox(), broker, cfg, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	stage(t, store, model.EventAppointmentCreated)

	// A worker claims the event and dies before recording the outcome.
	claimed, err := store.Outbox().ClaimPending(ctx, 10, cfg.ProcessingLease)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "lease still held")
	assert.Zero(t, broker.calls)

	time.Sleep(2 * cfg.ProcessingLease)
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, broker.published[model.EventAppointmentCreated], 1)

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type cancellingBroker struct {
	fakeBroker
	cancel context.CancelFunc
}

func (b *cancellingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	err := b.fakeBroker.Publish(ctx, channel, message)
	b.cancel()
	return err
}

// ctxOutbox rejects a cancelled context on writes, as a SQL driver does.
type ctxOutbox struct {
	repository.OutboxRepository
}

func (r ctxOutbox) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.OutboxRepository.MarkProcessed(ctx, id)
}

func TestProcessBatchRecordsOutcomeAfterCancel(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := &cancellingBroker{cancel: cancel}
	p, err := NewOutboxProcessor(ctxOutbox{store.Outbox()}, broker, testConfig(), nil, nil)
	require.NoError(t, err)

	stage(t, store, model.EventAppointmentCreated)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Nothing is left to claim, even once the lease would have expired.
	claimed, err := store.Outbox().ClaimPending(context.Background(), 10, time.Nanosecond)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
