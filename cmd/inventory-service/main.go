package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/cache"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/consumers"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/events"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/handler"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/lease"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/notify"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/config"
	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/NandhanI20020/IMS-sub000/pkg/messaging"
	"github.com/NandhanI20020/IMS-sub000/pkg/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "inventory-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	store := repository.NewPostgresStore(db)

	// The status cache is optional; without Redis every status query hits the database.
	var statusCache service.StatusCache
	healthChecks := map[string]handler.HealthCheck{
		"database": db.Health,
	}
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, status cache disabled")
		} else {
			defer rdb.Close()
			statusCache = cache.NewStatusCache(rdb, cfg.Redis.StatusTTL)
			healthChecks["redis"] = func(ctx context.Context) map[string]string {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return map[string]string{"status": "down", "error": err.Error()}
				}
				return map[string]string{"status": "up"}
			}
		}
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()
	go rmq.Watch(ctx)
	healthChecks["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	var mailer service.Mailer = notify.NewLogMailer(log)
	if cfg.Mail.BaseURL != "" {
		mailer = notify.NewHTTPMailer(cfg.Mail, log)
	}

	method, err := repository.ParseCostingMethod(cfg.Inventory.DefaultCostingMethod)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default costing method")
	}

	// Initialize services
	monitor := service.NewReorderMonitor(store, mailer, publisher, service.MonitorOptions{
		QueueSize:      cfg.Inventory.ReorderQueueSize,
		ThrottleWindow: cfg.Inventory.ThrottleWindow,
	}, log)
	stockService := service.NewStockService(store, lease.NewTable(), monitor, publisher, statusCache, service.Options{
		DefaultCostingMethod: method,
		BulkBatchSize:        cfg.Inventory.BulkBatchSize,
		OperationTimeout:     cfg.Inventory.OperationTimeout,
		SideEffectTimeout:    cfg.Inventory.SideEffectTimeout,
	}, log)
	reservationService := service.NewReservationService(stockService)
	transferService := service.NewTransferService(stockService, publisher, log)
	queryService := service.NewQueryService(store, statusCache, log)
	orderService := service.NewPurchaseOrderService(stockService, log)

	go monitor.Run(ctx)

	scheduler := service.NewAlertScheduler(monitor, service.SchedulerOptions{
		SweepSchedule: cfg.Inventory.AlertSweepSchedule,
		PruneSchedule: cfg.Inventory.ThrottlePruneSchedule,
	}, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start alert scheduler")
	}

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}
	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Initialize handlers
	handlers := &handler.Handlers{
		Stock:          handler.NewStockHandler(stockService, queryService, log),
		Reservations:   handler.NewReservationHandler(reservationService, log),
		Transfers:      handler.NewTransferHandler(transferService, log),
		Queries:        handler.NewQueryHandler(queryService, log),
		Alerts:         handler.NewAlertHandler(monitor, log),
		PurchaseOrders: handler.NewPurchaseOrderHandler(orderService, log),
	}
	healthHandler := handler.NewHealthHandler(serviceName, healthChecks)

	rateLimit, err := httputil.RateLimit(cfg.RateLimit.Rate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(httputil.ActorHeaders)
		handlers.Mount(r)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Drain HTTP first so in-flight mutations finish their post-commit work.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Cancel context to stop the monitor and consumers
	cancel()
	scheduler.Stop()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("server stopped")
}
