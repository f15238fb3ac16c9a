package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/timesheet-service/internal/timesheet/consumers"
	"github.com/medflow/timesheet-service/internal/timesheet/events"
	"github.com/medflow/timesheet-service/internal/timesheet/handler"
	"github.com/medflow/timesheet-service/internal/timesheet/idempotency"
	"github.com/medflow/timesheet-service/internal/timesheet/metrics"
	"github.com/medflow/timesheet-service/internal/timesheet/repository"
	"github.com/medflow/timesheet-service/internal/timesheet/service"
	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/database"
	"github.com/medflow/timesheet-service/pkg/httputil"
	"github.com/medflow/timesheet-service/pkg/i18n"
	"github.com/medflow/timesheet-service/pkg/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the staff event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Msg("starting Timesheet Service")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	timesheetRepo := repository.NewTimesheetRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	// Broker is optional outside production-like environments.
	var publisher service.EventPublisher = events.Noop{}
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		switch {
		case err == nil:
			defer rmq.Close()
			p, err := events.NewTimesheetEventPublisher(rmq, log)
			if err != nil {
				return fmt.Errorf("failed to create event publisher: %w", err)
			}
			publisher = p
		case config.IsProductionLike(cfg.Server.Environment):
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		default:
			log.Warn().Err(err).Msg("RabbitMQ unavailable, domain events disabled")
			rmq = nil
		}
	}

	var idem handler.IdempotencyStore
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = idempotency.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		idem = idempotency.New(redisClient, cfg.Redis.IdempotencyTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	policy := service.NewAccessPolicy(cfg.Policy, employeeRepo)
	entryService := service.NewEntryService(db, timesheetRepo, employeeRepo, catalogRepo, policy, publisher, m, cfg.Policy, log)
	calendarService := service.NewCalendarService(timesheetRepo, employeeRepo, catalogRepo, policy, log)

	timesheetHandler := handler.NewTimesheetHandler(entryService, calendarService, policy, idem, log)

	if rmq != nil {
		employeeConsumer, err := consumers.NewEmployeeEventConsumer(rmq, employeeRepo, log)
		if err != nil {
			return fmt.Errorf("failed to create employee event consumer: %w", err)
		}
		if err := employeeConsumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start employee event consumer: %w", err)
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(m.Middleware)
	r.Use(i18n.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID", handler.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  config.ServiceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		if redisClient != nil {
			status := "healthy"
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				status = "unhealthy"
			}
			health["redis"] = map[string]string{"status": status}
		}
		httputil.JSON(w, http.StatusOK, health)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1/timesheets", func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewManager(&cfg.JWT), cfg.Policy.RolePermissions))
		timesheetHandler.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}
