package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/slotbook/booking-api/config"
	"github.com/slotbook/booking-api/internal/repository/postgres"
	"github.com/slotbook/booking-api/internal/service/event"
	"github.com/slotbook/booking-api/pkg/logger"
	"github.com/slotbook/booking-api/pkg/messaging"
	"github.com/slotbook/booking-api/pkg/messaging/redis"
	"github.com/slotbook/booking-api/pkg/metrics"
	"github.com/slotbook/booking-api/pkg/worker"
)

const healthAddr = ":8081"

func newLogger(cfg *config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.Server.Mode == "release" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return l.With(zap.String("component", "outbox-worker"))
}

func setupHealthCheck(zl *zap.Logger, ready func(context.Context) error, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			zl.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: healthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("Health check server failed", zap.Error(err))
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl := newLogger(cfg)
	defer zl.Sync() //nolint:errcheck

	if cfg.Database.Driver != config.DriverPostgres {
		zl.Fatal("Outbox worker requires the postgres driver", zap.String("driver", cfg.Database.Driver))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	store := postgres.NewStore(db)

	var (
		broker messaging.Broker
		ready  = store.System().Ping
	)
	if cfg.Redis.URL != "" {
		rb, err := redis.NewRedisBroker(ctx, cfg.Redis, zl)
		if err != nil {
			zl.Fatal("Failed to create Redis broker", zap.Error(err))
		}
		broker = rb
		ready = func(ctx context.Context) error {
			if err := store.System().Ping(ctx); err != nil {
				return err
			}
			return rb.Ping(ctx)
		}
	} else {
		zl.Warn("No Redis URL configured; events are published in-process only")
		broker = messaging.NewMemoryBroker()
	}
	publisher := messaging.NewEventPublisher(broker, cfg.Redis.ChannelPrefix)
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, registry)

	processor, err := worker.NewOutboxProcessor(
		store.Outbox(),
		publisher,
		event.NewEventService(store.Outbox(), logger.Nop()),
		worker.ConfigFrom(cfg.Outbox),
		worker.NewZapLogger(zl),
		m,
	)
	if err != nil {
		zl.Fatal("Invalid outbox configuration", zap.Error(err))
	}

	health := setupHealthCheck(zl, ready, registry)

	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Health server shutdown failed", zap.Error(err))
	}
	zl.Info("Worker stopped")
}
