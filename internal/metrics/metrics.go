// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reject reasons for inbound events.
const (
	ReasonMalformed    = "malformed"
	ReasonUnauthorized = "unauthorized"
)

// Drop reasons for analyzed messages. Operators can tell a policy drop
// from an irrelevant message or a backend failure even though the
// delivered report does not show the difference.
const (
	ReasonIrrelevant    = "irrelevant"
	ReasonLowConfidence = "low_confidence"
	ReasonFiltered      = "filtered"
	ReasonAnalysisError = "analysis_error"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	EventsAccepted   prometheus.Counter
	EventsRejected   *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	BatchesFlushed   *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	DeliveryAttempts prometheus.Counter
	DeliveryFailures prometheus.Counter
	ReportsDelivered prometheus.Counter
	ReportsSkipped   prometheus.Counter
}

// New returns the process-wide metrics set. Registration runs once to
// avoid duplicate-collector panics when tests build several pipelines.
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			EventsAccepted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tgmon_events_accepted_total",
				Help: "Inbound events that passed the gatekeeper and entered the batch queue",
			}),
			EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tgmon_events_rejected_total",
				Help: "Inbound events rejected by the gatekeeper",
			}, []string{"reason"}),
			MessagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tgmon_messages_dropped_total",
				Help: "Analyzed messages excluded from the report",
			}, []string{"reason"}),
			BatchesFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tgmon_batches_flushed_total",
				Help: "Batches detached from the queue",
			}, []string{"trigger"}),
			AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "tgmon_analysis_duration_seconds",
				Help:    "Wall time of a single analysis backend call",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			}),
			DeliveryAttempts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tgmon_delivery_attempts_total",
				Help: "Chunk send attempts against the delivery endpoint",
			}),
			DeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tgmon_delivery_failures_total",
				Help: "Reports abandoned after the retry budget was exhausted",
			}),
			ReportsDelivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tgmon_reports_delivered_total",
				Help: "Reports fully delivered to the target chat",
			}),
			ReportsSkipped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tgmon_reports_skipped_total",
				Help: "Cycles with zero relevant results where delivery was skipped",
			}),
		}
	})
	return globalMetrics
}
