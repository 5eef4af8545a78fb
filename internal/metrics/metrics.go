package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "resolvers"
)

var (
	pollDurationBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of outbound vendor API requests.",
	}, []string{"connector", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of outbound vendor API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"connector"})

	TokenFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_fetches_total",
		Help:      "Count of credential acquisitions that missed the token cache.",
	}, []string{"connector", "method", "status"})

	// Operation Metrics
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Count of CRUD operations by outcome.",
	}, []string{"connector", "entity", "verb", "result"})

	// Poll Metrics
	PollRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_runs_total",
		Help:      "Count of polling passes.",
	}, []string{"connector", "poller", "status"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Time taken for one fetch-and-emit pass.",
		Buckets:   pollDurationBuckets,
	}, []string{"connector", "poller"})

	PollRecordsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_records_emitted_total",
		Help:      "Number of instances pushed to the subscriber.",
	}, []string{"connector", "poller"})

	PollRecordsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_records_skipped_total",
		Help:      "Number of instances suppressed because they were already emitted.",
	}, []string{"connector", "poller"})

	PollLastSuccessTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poll_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful polling pass.",
	}, []string{"connector", "poller"})
)
