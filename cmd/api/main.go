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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/slotbook/booking-api/config"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/repository/memory"
	"github.com/slotbook/booking-api/internal/repository/postgres"
	"github.com/slotbook/booking-api/internal/router"
	authService "github.com/slotbook/booking-api/internal/service/auth"
	bookingService "github.com/slotbook/booking-api/internal/service/booking"
	catalogService "github.com/slotbook/booking-api/internal/service/catalog"
	eventService "github.com/slotbook/booking-api/internal/service/event"
	slotService "github.com/slotbook/booking-api/internal/service/slot"
	"github.com/slotbook/booking-api/pkg/auth"
	"github.com/slotbook/booking-api/pkg/logger"
	"github.com/slotbook/booking-api/pkg/metrics"
	"github.com/slotbook/booking-api/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	logger.SetGlobal(appLogger)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(cfg.Monitoring.Namespace, registry)

	// Services
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry())
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	events := eventService.NewEventService(store.Outbox(), appLogger)
	slots := slotService.NewService(store.Slots(), store.Services(), appLogger)

	r, err := router.NewRouter(router.Deps{
		Config:   cfg,
		System:   store.System(),
		Auth:     authService.NewService(store.Users(), jwtSvc, hasher, appLogger),
		Catalog:  catalogService.NewService(store.Services(), appLogger),
		Slots:    slots,
		Bookings: bookingService.NewService(store, store.Bookings(), slots, events, appMetrics, appLogger),
		Metrics:  appMetrics,
		Gatherer: registry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("base_path", cfg.Server.BasePath).
			Str("driver", cfg.Database.Driver).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return postgres.NewStore(db), nil
}
