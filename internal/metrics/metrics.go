package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests. Chat streams are
	// observed for their whole lifetime.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// ChatStreams counts chat generations by terminal state.
	ChatStreams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_chat_streams_total",
			Help: "Chat generations by terminal state",
		},
		[]string{"state"},
	)
	// UpstreamErrors counts failed provider calls.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_upstream_errors_total",
			Help: "Failed provider calls by provider and kind",
		},
		[]string{"provider", "kind"},
	)
	// AssistantPersistFailures counts assistant messages lost after a completed stream.
	AssistantPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_assistant_persist_failures_total",
			Help: "Assistant messages that could not be saved after streaming",
		},
	)
)
