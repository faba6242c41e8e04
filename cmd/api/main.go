package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/config"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	catalogHandler "github.com/jwalitptl/clinic-api/internal/handler/catalog"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	promHandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/cached"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	catalogService "github.com/jwalitptl/clinic-api/internal/service/catalog"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	eventService "github.com/jwalitptl/clinic-api/internal/service/event"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const maxBodyBytes = 1 << 20

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal(err, "failed to open store")
	}
	defer closeStore()

	calCfg, err := cfg.Scheduling.ToCalendarConfig()
	if err != nil {
		log.Fatal(err, "invalid scheduling configuration")
	}
	calendar, err := scheduling.NewCalendar(calCfg)
	if err != nil {
		log.Fatal(err, "invalid scheduling configuration")
	}

	var m *metrics.Metrics
	var prom *promHandler.Handler
	if cfg.Monitoring.PrometheusEnabled {
		m = metrics.NewMetrics(cfg.Monitoring.Namespace, prometheus.DefaultRegisterer)
		prom = promHandler.New(prometheus.DefaultGatherer, m)
	}

	// Initialize services
	validator := booking.NewValidator(calendar, booking.AllowPastDates(cfg.Scheduling.AllowPastDates))
	events := eventService.NewService(log)
	appointmentSvc := appointmentService.NewService(store, validator, calendar, events, m, log)
	catalogSvc := catalogService.NewService(store)
	doctorSvc := doctorService.NewService(store, events)
	patientSvc := patientService.NewService(store.Patients())

	routerCfg := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   maxBodyBytes,
		CORSConfig: middleware.CORSConfig{
			AllowOrigins: cfg.CORS.AllowedOrigins,
			AllowMethods: cfg.CORS.AllowedMethods,
			AllowHeaders: cfg.CORS.AllowedHeaders,
			MaxAge:       cfg.CORS.MaxAge,
		},
		MetricsPath: cfg.Monitoring.MetricsPath,
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	r, err := router.NewRouter(routerCfg, log, prom,
		health.NewHandler(store),
		catalogHandler.NewHandler(catalogSvc),
		doctorHandler.NewHandler(doctorSvc),
		patientHandler.NewHandler(patientSvc),
		appointmentHandler.NewHandler(appointmentSvc),
	)
	if err != nil {
		log.Fatal(err, "failed to build router")
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}

// openStore builds the configured store, wrapped in the catalog cache when
// enabled. The returned func releases its resources.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Store, func(), error) {
	var store repository.Store
	closeFn := func() {}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { db.Close() }

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("database migrations applied")
		}
		store = postgres.NewStore(db)
	}

	if cfg.Cache.Enabled {
		store = cached.NewStore(store, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}
	return store, closeFn, nil
}
