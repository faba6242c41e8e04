package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type outboxRepo struct{ v view }

func (r outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	defer r.v.lock()()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	r.v.s.st.outbox[event.ID] = copyEvent(*event)
	return nil
}

func (r outboxRepo) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	defer r.v.lock()()
	st := r.v.s.st
	now := time.Now().UTC()

	due := make([]model.OutboxEvent, 0)
	for _, e := range st.outbox {
		switch e.Status {
		case model.OutboxStatusPending:
			if e.RetryAt != nil && e.RetryAt.After(now) {
				continue
			}
		case model.OutboxStatusProcessing:
			if lease <= 0 || !e.UpdatedAt.Before(now.Add(-lease)) {
				continue
			}
		default:
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit >= 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		st.outbox[e.ID] = e
		out := copyEvent(e)
		claimed = append(claimed, &out)
	}
	return claimed, nil
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	e, ok := st.outbox[id]
	if !ok {
		return apperrors.NotFound("outbox event", nil)
	}
	now := time.Now().UTC()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.ErrorMessage = nil
	e.UpdatedAt = now
	st.outbox[id] = e
	return nil
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	defer r.v.lock()()
	st := r.v.s.st

	e, ok := st.outbox[id]
	if !ok {
		return apperrors.NotFound("outbox event", nil)
	}
	e.Status = model.OutboxStatusFailed
	e.RetryAt = nil
	if retryAt != nil {
		at := *retryAt
		e.Status = model.OutboxStatusPending
		e.RetryAt = &at
	}
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.UpdatedAt = time.Now().UTC()
	st.outbox[id] = e
	return nil
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.v.lock()()
	st := r.v.s.st

	var n int64
	for id, e := range st.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(st.outbox, id)
			n++
		}
	}
	return n, nil
}

func copyEvent(e model.OutboxEvent) model.OutboxEvent {
	e.Payload = append([]byte(nil), e.Payload...)
	if e.ErrorMessage != nil {
		msg := *e.ErrorMessage
		e.ErrorMessage = &msg
	}
	if e.RetryAt != nil {
		at := *e.RetryAt
		e.RetryAt = &at
	}
	if e.ProcessedAt != nil {
		at := *e.ProcessedAt
		e.ProcessedAt = &at
	}
	return e
}
