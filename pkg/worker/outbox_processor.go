package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/slotbook/booking-api/config"
	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/pkg/metrics"
)

const (
	defaultCleanupInterval = time.Hour
	defaultClaimLease      = 5 * time.Minute
	markTimeout            = 5 * time.Second
)

// Logger is the subset of logging the processor needs. pkg/logger.Logger
// satisfies it, and ZapLogger adapts a zap logger.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(err error, msg string, fields ...interface{})
}

type ZapLogger struct {
	s *zap.SugaredLogger
}

func NewZapLogger(l *zap.Logger) ZapLogger {
	return ZapLogger{s: l.Sugar()}
}

func (z ZapLogger) Info(msg string, fields ...interface{}) { z.s.Infow(msg, fields...) }
func (z ZapLogger) Warn(msg string, fields ...interface{}) { z.s.Warnw(msg, fields...) }
func (z ZapLogger) Error(err error, msg string, fields ...interface{}) {
	z.s.Errorw(msg, append(fields, "error", err)...)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.OutboxEvent) error
}

// Cleaner purges processed events older than retention.
type Cleaner interface {
	CleanupProcessedEvents(ctx context.Context, retention time.Duration) (int64, error)
}

type OutboxProcessorConfig struct {
	BatchSize       int
	PollInterval    time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
	// ClaimLease is how long a claimed event may stay in processing before
	// another poll takes it over. It must outlast a full batch with retries.
	ClaimLease time.Duration
}

func ConfigFrom(c config.OutboxConfig) OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		Retention:     c.Retention,
		ClaimLease:    c.ClaimLease,
	}
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay < 0:
		return errors.New("RetryDelay must not be negative")
	case c.ClaimLease < 0:
		return errors.New("ClaimLease must not be negative")
	}
	return nil
}

type OutboxProcessor struct {
	repo      repository.OutboxRepository
	publisher EventPublisher
	cleaner   Cleaner
	config    OutboxProcessorConfig
	logger    Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	publisher EventPublisher,
	cleaner Cleaner,
	cfg OutboxProcessorConfig,
	logger Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.ClaimLease == 0 {
		cfg.ClaimLease = defaultClaimLease
	}

	return &OutboxProcessor{
		repo:      repo,
		publisher: publisher,
		cleaner:   cleaner,
		config:    cfg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Start polls until ctx is done.
func (p *OutboxProcessor) Start(ctx context.Context) {
	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(p.config.CleanupInterval)
	defer cleanup.Stop()

	p.logger.Info("Starting outbox processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-poll.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		case <-cleanup.C:
			if _, err := p.Cleanup(ctx); err != nil {
				p.logger.Error(err, "Failed to purge processed events")
			}
		}
	}
}

// ProcessBatch claims up to BatchSize events and publishes each one. It
// returns how many were published. Events left unfinished when ctx ends stay
// claimed until their lease runs out.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	staleBefore := p.now().Add(-p.config.ClaimLease)
	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.OutboxBatchSize.Set(float64(len(events)))

	published := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	if p.cleaner == nil {
		return 0, nil
	}
	n, err := p.cleaner.CleanupProcessedEvents(ctx, p.config.Retention)
	if err != nil {
		return 0, err
	}
	p.metrics.OutboxEventsPurged.Add(float64(n))
	if n > 0 {
		p.logger.Info("Purged processed events", "deleted_count", n)
	}
	return n, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	attempt := 0
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		if attempt > 0 {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		attempt++
		return p.publisher.PublishEvent(ctx, event)
	})

	// status updates must land even when shutdown cancels ctx mid-publish
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	if err != nil {
		if ctx.Err() != nil {
			p.logger.Warn("Publish interrupted; event left for reclaim",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			return err
		}
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.MarkEventFailed(markCtx, event.ID, err.Error()); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkEventProcessed(markCtx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return err
}
