package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// OutboxCleanup periodically deletes delivered outbox events.
type OutboxCleanup struct {
	outbox    repository.OutboxRepository
	events    *event.Service
	retention time.Duration
	cron      *cron.Cron
	logger    *logger.Logger
}

func NewOutboxCleanup(outbox repository.OutboxRepository, events *event.Service, retention time.Duration, log *logger.Logger) *OutboxCleanup {
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxCleanup{
		outbox:    outbox,
		events:    events,
		retention: retention,
		cron:      cron.New(),
		logger:    log,
	}
}

// Schedule registers the job with a standard five-field cron spec.
func (c *OutboxCleanup) Schedule(spec string) error {
	if _, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := c.RunOnce(ctx); err != nil {
			c.logger.Error(err, "Outbox cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return nil
}

func (c *OutboxCleanup) RunOnce(ctx context.Context) (int64, error) {
	return c.events.CleanupProcessedEvents(ctx, c.outbox, c.retention)
}

func (c *OutboxCleanup) Start() {
	c.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (c *OutboxCleanup) Stop() {
	<-c.cron.Stop().Done()
}
