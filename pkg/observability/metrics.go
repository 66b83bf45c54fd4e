package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global collector instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the governance engine
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Voting metrics
	VotesCast      *prometheus.CounterVec
	DuplicateVotes prometheus.Counter
	RoundsClosed   *prometheus.CounterVec

	// Lifecycle metrics
	Transitions *prometheus.CounterVec
	Deaths      *prometheus.CounterVec
	Rebirths    prometheus.Counter

	// Notification metrics
	NotificationRetries  prometheus.Counter
	NotificationFailures prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	// Singleton so repeated construction in tests doesn't double-register
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	votesCast := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of accepted votes by choice",
		},
		[]string{"choice"},
	)

	duplicateVotes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_votes_total",
			Help:      "Total number of rejected duplicate votes",
		},
	)

	roundsClosed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_rounds_closed_total",
			Help:      "Total number of closed voting rounds by verdict",
		},
		[]string{"verdict"},
	)

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Total number of accepted lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	deaths := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deaths_total",
			Help:      "Total number of deaths by cause",
		},
		[]string{"cause"},
	)

	rebirths := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebirths_total",
			Help:      "Total number of completed rebirths",
		},
	)

	notificationRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_notification_retries_total",
			Help:      "Total number of retried runtime notifications",
		},
	)

	notificationFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_notification_failures_total",
			Help:      "Total number of runtime notifications that exhausted all retries",
		},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		votesCast,
		duplicateVotes,
		roundsClosed,
		transitions,
		deaths,
		rebirths,
		notificationRetries,
		notificationFailures,
	)

	globalCollector = &Collector{
		registry:             registry,
		HTTPRequests:         httpRequests,
		HTTPDuration:         httpDuration,
		VotesCast:            votesCast,
		DuplicateVotes:       duplicateVotes,
		RoundsClosed:         roundsClosed,
		Transitions:          transitions,
		Deaths:               deaths,
		Rebirths:             rebirths,
		NotificationRetries:  notificationRetries,
		NotificationFailures: notificationFailures,
	}

	return globalCollector
}

// Handler returns the HTTP handler serving the /metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
