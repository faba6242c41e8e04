// Package event stages domain events in the transactional outbox.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type Service struct {
	logger *logger.Logger
}

func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{logger: log}
}

// Emit writes an event to outbox. Callers pass the outbox of the
// transaction that makes the change, so the event is committed or
// discarded together with it. Delivery is left to the outbox processor.
func (s *Service) Emit(ctx context.Context, outbox repository.OutboxRepository, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.logger.Debug("event staged", "event_id", event.ID.String(), "event_type", eventType)
	return nil
}

// CleanupProcessedEvents deletes delivered events older than retention.
func (s *Service) CleanupProcessedEvents(ctx context.Context, outbox repository.OutboxRepository, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	count, err := outbox.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}

	s.logger.Info("processed events cleaned up", "deleted_count", count, "cutoff", cutoff)
	return count, nil
}
