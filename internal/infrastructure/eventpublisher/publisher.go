package eventpublisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// Publisher delivers a notification event to the bus.
type Publisher interface {
	Publish(ctx context.Context, event *domain.NotificationEvent) error
}

// Metrics receives relay telemetry; nil disables it.
type Metrics interface {
	EventPublished()
	EventFailed()
}

// Relay drains the transactional outbox: it polls for staged events,
// publishes them, and marks them delivered. An event is only marked
// after a successful publish, so a crash between the two replays it.
// Consumers deduplicate on event ID.
type Relay struct {
	outbox    usecase.OutboxRepository
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	retention time.Duration
}

// Config for Relay.
type Config struct {
	Outbox    usecase.OutboxRepository
	Publisher Publisher
	Metrics   Metrics
	Logger    *slog.Logger
	BatchSize int
	Interval  time.Duration
	// Retention is how long delivered events are kept before pruning.
	Retention time.Duration
}

// NewRelay creates a new Relay.
func NewRelay(cfg Config) *Relay {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Retention == 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Relay{
		outbox:    cfg.Outbox,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		retention: cfg.Retention,
	}
}

// Start runs the relay until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("outbox relay started",
		slog.Int("batch_size", r.batchSize),
		slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(time.Hour)
	defer pruneTicker.Stop()

	if err := r.drain(ctx); err != nil {
		r.logger.Error("error draining outbox on start", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.Error("error draining outbox", slog.String("error", err.Error()))
			}
		case <-pruneTicker.C:
			if err := r.outbox.DeletePublished(ctx, time.Now().UTC().Add(-r.retention)); err != nil {
				r.logger.Error("error pruning outbox", slog.String("error", err.Error()))
			}
		}
	}
}

// drain fetches and publishes one batch of staged events.
func (r *Relay) drain(ctx context.Context) error {
	events, err := r.outbox.GetUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	r.logger.Debug("draining outbox", slog.Int("count", len(events)))

	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Error("failed to publish event",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()))
			if r.metrics != nil {
				r.metrics.EventFailed()
			}
			// Keep going; this event stays staged and retries next tick.
			continue
		}
		if r.metrics != nil {
			r.metrics.EventPublished()
		}

		if err := r.outbox.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
			r.logger.Error("failed to mark event as published",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// LogPublisher logs events instead of delivering them. Useful when no
// bus is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.NotificationEvent) error {
	p.logger.Info("EVENT PUBLISHED",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		slog.String("txn_id", event.TransactionID),
		slog.String("target", domain.MaskAccountID(event.Target)),
		slog.String("message", event.Message))

	return nil
}
