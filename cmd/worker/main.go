package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/clinic-api/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	eventService "github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	outboxWorker "github.com/jwalitptl/clinic-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	})

	// The worker reads the outbox written by the API process, which only
	// a shared database provides.
	if cfg.Database.Driver != "postgres" {
		log.Fatal(fmt.Errorf("driver %q", cfg.Database.Driver), "worker requires the postgres driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()
	store := postgres.NewStore(db)

	calCfg, err := cfg.Scheduling.ToCalendarConfig()
	if err != nil {
		log.Fatal(err, "invalid scheduling configuration")
	}
	calendar, err := scheduling.NewCalendar(calCfg)
	if err != nil {
		log.Fatal(err, "invalid scheduling configuration")
	}

	m := metrics.NewMetrics(cfg.Monitoring.Namespace, prometheus.DefaultRegisterer)

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), log)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	processor, err := outboxWorker.NewOutboxProcessor(store.Outbox(), broker, cfg.Outbox.ToWorkerConfig(), log, m)
	if err != nil {
		log.Fatal(err, "invalid outbox configuration")
	}

	var sender email.Sender = email.NewLogSender(log)
	if cfg.Mail.Enabled {
		smtp, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		if err != nil {
			log.Fatal(err, "invalid mail configuration")
		}
		sender = smtp
	}
	notifier := worker.NewNotifier(store, calendar, sender, log, worker.WithAdmins(cfg.Mail.AdminAddresses...))

	cleanup := worker.NewOutboxCleanup(store.Outbox(), eventService.NewService(log), cfg.Outbox.Retention, log)
	if err := cleanup.Schedule(cfg.Outbox.CleanupSchedule); err != nil {
		log.Fatal(err, "invalid outbox cleanup schedule")
	}
	cleanup.Start()
	defer cleanup.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := notifier.Run(ctx, broker); err != nil {
			log.Error(err, "notifier stopped")
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server failed")
		}
	}()

	log.Info("worker started",
		"batch_size", cfg.Outbox.BatchSize,
		"poll_interval", cfg.Outbox.PollInterval.String(),
		"cleanup_schedule", cfg.Outbox.CleanupSchedule)

	<-ctx.Done()
	log.Info("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()

	log.Info("worker exited properly")
}
