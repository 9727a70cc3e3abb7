// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_call_duration_seconds",
			Help:    "Duration of chain adapter calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"chain", "operation", "status"},
	)

	IntentsQuoted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_quoted_total",
			Help: "Total number of intents quoted",
		},
		[]string{"kind", "chain", "sufficient"},
	)

	IntentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_outcomes_total",
			Help: "Terminal outcomes of intents by status",
		},
		[]string{"kind", "status"},
	)

	ConfirmRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_confirm_rejections_total",
			Help: "Confirm attempts rejected before submission, by error code",
		},
		[]string{"code"},
	)

	IntentRecordFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_record_failures_total",
			Help: "Submitted intents whose outcome could not be stored and remain executing",
		},
		[]string{"status"},
	)

	IntentsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intents_swept_total",
			Help: "Quoted intents moved to expired by the sweeper",
		},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_publish_errors_total",
			Help: "Total number of Kafka publish errors",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveAdapterCall records one adapter call; use with defer.
func ObserveAdapterCall(chain, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	AdapterCallDuration.WithLabelValues(chain, operation, status).Observe(time.Since(start).Seconds())
}
