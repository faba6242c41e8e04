package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts and RetryDelay bound the in-process publish retries
	// for one delivery attempt.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is how many failed delivery attempts an event may
	// accumulate before it is parked as failed.
	MaxRetries int
	// ProcessingLease is how long a claimed event may stay in processing
	// before another pass claims it again.
	ProcessingLease time.Duration
}

// OutboxProcessor publishes staged outbox events to the broker, using the
// event type as the channel.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Publisher
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Publisher,
	config OutboxProcessorConfig,
	log *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay < 0 {
		return nil, fmt.Errorf("RetryDelay must not be negative")
	}
	if config.MaxRetries <= 0 {
		return nil, fmt.Errorf("MaxRetries must be greater than 0")
	}
	if config.ProcessingLease <= 0 {
		return nil, fmt.Errorf("ProcessingLease must be greater than 0")
	}

	if log == nil {
		log = logger.Nop()
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log,
		metrics: metrics,
	}, nil
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

// ProcessBatch claims one batch of due events and tries to deliver each.
// It returns how many were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.ProcessingLease)
	if err != nil {
		p.countDB("claim_pending_events", "error")
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.countDB("claim_pending_events", "success")

	delivered := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, event.Payload)
	})

	// The outcome is recorded even when ctx was cancelled mid-publish.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.OutboxEventsFailed.Inc()
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		if markErr := p.repo.MarkFailed(ctx, event.ID, err.Error(), p.nextAttempt(event)); markErr != nil {
			p.logger.Error(markErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

// nextAttempt backs off linearly with the number of failures so far, and
// returns nil once the event has used up its retries.
func (p *OutboxProcessor) nextAttempt(event *model.OutboxEvent) *time.Time {
	failures := event.RetryCount + 1
	if failures >= p.config.MaxRetries {
		return nil
	}
	at := time.Now().Add(p.config.PollInterval * time.Duration(failures))
	return &at
}

func (p *OutboxProcessor) countDB(op, status string) {
	if p.metrics != nil {
		p.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	}
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
