package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/bilbopark/internal/adapters/http"
	"github.com/samirrijal/bilbopark/internal/adapters/kafka"
	"github.com/samirrijal/bilbopark/internal/adapters/memory"
	natsadapter "github.com/samirrijal/bilbopark/internal/adapters/nats"
	"github.com/samirrijal/bilbopark/internal/adapters/postgres"
	"github.com/samirrijal/bilbopark/internal/adapters/valkey"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/core/usecases"
	"github.com/samirrijal/bilbopark/internal/pkg/config"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
	"github.com/samirrijal/bilbopark/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("bilbopark-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	checks := make(map[string]http.CheckFunc)

	// Storage
	var (
		store    ports.Store
		poolStat func() metrics.PoolStat
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		store = db
		checks["database"] = db.Ping
		poolStat = func() metrics.PoolStat { return db.Pool.Stat() }
	default:
		slog.Warn("using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	}

	// Cache (optional: lot snapshots and idempotency keys)
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, caching disabled", "error", err)
		} else {
			defer c.Close()
			cache = c
			checks["cache"] = c.Ping
		}
	}

	// Events
	var (
		events ports.EventPublisher
		stream http.EventStream
	)
	switch cfg.Events.Driver {
	case config.EventsNATS:
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, events disabled", "error", err)
			break
		}
		defer pub.Close()
		events = pub
		stream = natsadapter.NewSubscriber(pub.Conn())
		checks["nats"] = func(context.Context) error {
			if !pub.Conn().IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	case config.EventsKafka:
		pub, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Warn("kafka unavailable, events disabled", "error", err)
			break
		}
		defer func() { _ = pub.Close() }()
		events = pub
	}

	// Use cases
	lotSvc := usecases.NewLotService(store, cache, events)
	deps := &http.Dependencies{
		Lots:         lotSvc,
		Spots:        usecases.NewSpotService(store, events),
		Reservations: usecases.NewReservationService(store, cache, events),
		Search:       usecases.NewSearchService(lotSvc, store),
		Events:       stream,
		Checks:       checks,
		PoolStat:     poolStat,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "BilboPark API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Idempotency-Key",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "storage", cfg.Storage.Driver, "events", cfg.Events.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
