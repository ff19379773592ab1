package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// Metrics receives sweep telemetry; nil disables it.
type Metrics interface {
	SweepCompleted(completed, reversed, expired, deferred int)
}

// Worker periodically sweeps the transaction table for transfers the hot
// path left unfinished and hands them to the reconciliation usecase.
type Worker struct {
	reconcile *usecase.ReconcileUseCase
	metrics   Metrics
	logger    *slog.Logger
	interval  time.Duration
}

// Config for Worker.
type Config struct {
	Reconcile *usecase.ReconcileUseCase
	Metrics   Metrics
	Logger    *slog.Logger
	Interval  time.Duration
}

// NewWorker creates a new Worker.
func NewWorker(cfg Config) *Worker {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Worker{
		reconcile: cfg.Reconcile,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		interval:  cfg.Interval,
	}
}

// Start runs the worker until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("reconciler started", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciler shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	report, err := w.reconcile.Run(ctx)
	if err != nil {
		w.logger.Error("reconciliation sweep failed", slog.String("error", err.Error()))
		return
	}

	if report.Examined > 0 {
		w.logger.Info("reconciliation sweep",
			slog.Int("examined", report.Examined),
			slog.Int("completed", report.Completed),
			slog.Int("reversed", report.Reversed),
			slog.Int("expired", report.Expired),
			slog.Int("deferred", report.Deferred),
			slog.Int("errors", report.Errors))
	}

	if w.metrics != nil {
		w.metrics.SweepCompleted(report.Completed, report.Reversed, report.Expired, report.Deferred)
	}
}
