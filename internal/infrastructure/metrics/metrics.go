package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Transfer metrics
	TransfersTotal   *prometheus.CounterVec
	TransferDuration prometheus.Histogram
	VersionRetries   prometheus.Counter
	LockRetries      prometheus.Counter
	LockTimeouts     prometheus.Counter

	// Reconciliation metrics
	ReconcileSweeps   prometheus.Counter
	ReconcileOutcomes *prometheus.CounterVec

	// Notification metrics
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on the given registerer.
// Taking the registerer explicitly keeps tests free of duplicate
// registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnzero_transfers_total",
				Help: "Total transfers by resting status",
			},
			[]string{"status"},
		),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txnzero_transfer_duration_seconds",
			Help:    "End-to-end duration of transfer orchestration",
			Buckets: prometheus.DefBuckets,
		}),
		VersionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "txnzero_version_retries_total",
			Help: "Optimistic version check retries across all legs",
		}),
		LockRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "txnzero_lock_retries_total",
			Help: "Local re-attempts after account lock timeouts",
		}),
		LockTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "txnzero_lock_timeouts_total",
			Help: "Lock timeouts surfaced to callers",
		}),
		ReconcileSweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "txnzero_reconcile_sweeps_total",
			Help: "Completed reconciliation sweeps",
		}),
		ReconcileOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnzero_reconcile_outcomes_total",
				Help: "Reconciliation resolutions by outcome",
			},
			[]string{"outcome"},
		),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "txnzero_events_published_total",
			Help: "Notification events delivered to the bus",
		}),
		EventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "txnzero_events_failed_total",
			Help: "Notification events that failed to publish",
		}),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnzero_http_requests_total",
				Help: "HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txnzero_http_request_duration_seconds",
				Help:    "HTTP request duration by method and path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// TransferCompleted implements usecase.TransferMetrics.
func (m *Metrics) TransferCompleted(status domain.Status, duration time.Duration) {
	m.TransfersTotal.WithLabelValues(string(status)).Inc()
	m.TransferDuration.Observe(duration.Seconds())
}

// VersionRetry implements usecase.TransferMetrics.
func (m *Metrics) VersionRetry() {
	m.VersionRetries.Inc()
}

// LockRetry implements usecase.TransferMetrics.
func (m *Metrics) LockRetry() {
	m.LockRetries.Inc()
}

// EventPublished implements eventpublisher.Metrics.
func (m *Metrics) EventPublished() {
	m.EventsPublished.Inc()
}

// EventFailed implements eventpublisher.Metrics.
func (m *Metrics) EventFailed() {
	m.EventsFailed.Inc()
}

// SweepCompleted implements reconciler.Metrics.
func (m *Metrics) SweepCompleted(completed, reversed, expired, deferred int) {
	m.ReconcileSweeps.Inc()
	m.ReconcileOutcomes.WithLabelValues("completed").Add(float64(completed))
	m.ReconcileOutcomes.WithLabelValues("reversed").Add(float64(reversed))
	m.ReconcileOutcomes.WithLabelValues("expired").Add(float64(expired))
	m.ReconcileOutcomes.WithLabelValues("deferred").Add(float64(deferred))
}
