package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/telhawk-systems/userrelay/internal/relay"
)

var (
	// Relay run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userrelay_runs_total",
			Help: "Total number of relay runs by operation, outcome and error kind",
		},
		[]string{"operation", "outcome", "kind"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userrelay_run_duration_seconds",
			Help:    "Duration of relay runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userrelay_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userrelay_stage_errors_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	// Forwarding metrics
	ForwardedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userrelay_forwarded_records_total",
			Help: "Total number of records forwarded to the webhook",
		},
	)

	ForwardedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userrelay_forwarded_bytes_total",
			Help: "Total bytes of decrypted documents forwarded to the webhook",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userrelay_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"route"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userrelay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userrelay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Side channel metrics
	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userrelay_event_publish_failures_total",
			Help: "Total number of relay events that could not be published",
		},
	)

	HistoryIndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userrelay_history_index_failures_total",
			Help: "Total number of run records that could not be indexed",
		},
	)
)

// RelayObserver records pipeline progress in the collectors above.
type RelayObserver struct{}

func (RelayObserver) ObserveStage(_ relay.Operation, stage relay.Stage, elapsed time.Duration, err error) {
	StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		StageErrors.WithLabelValues(string(stage)).Inc()
	}
}

func (RelayObserver) ObserveResult(_ context.Context, res relay.Result) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	RunsTotal.WithLabelValues(string(res.Operation), outcome, string(res.Kind)).Inc()
	RunDuration.WithLabelValues(string(res.Operation)).Observe(res.Duration.Seconds())

	if res.Success && res.Operation == relay.OperationExecute {
		ForwardedRecords.Add(float64(res.Records))
		ForwardedBytes.Add(float64(res.Bytes))
	}
}
