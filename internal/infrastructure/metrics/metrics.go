package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushtutor",
			Subsystem: "llm",
			Name:      "provider_requests_total",
			Help:      "Total LLM provider calls by outcome",
		},
		[]string{"provider", "status"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pushtutor",
			Subsystem: "llm",
			Name:      "provider_duration_seconds",
			Help:      "LLM provider call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	IndexedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushtutor",
			Subsystem: "indexer",
			Name:      "messages_total",
			Help:      "Channel messages processed by the indexer",
		},
		[]string{"outcome"},
	)

	IndexRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushtutor",
			Subsystem: "indexer",
			Name:      "runs_total",
			Help:      "Indexing runs by final status",
		},
		[]string{"status"},
	)

	IndexRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pushtutor",
			Subsystem: "indexer",
			Name:      "run_duration_seconds",
			Help:      "Indexing run duration in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pushtutor",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pushtutor",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushtutor",
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Bot commands handled by outcome",
		},
		[]string{"command", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushtutor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pushtutor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	UpdatesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pushtutor",
			Subsystem: "bot",
			Name:      "updates_in_flight",
			Help:      "Telegram updates currently being processed",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordProviderCall(provider, status string, d time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordIndexedMessage(outcome string) {
	IndexedMessagesTotal.WithLabelValues(outcome).Inc()
}

func RecordIndexRun(status string, d time.Duration) {
	IndexRunsTotal.WithLabelValues(status).Inc()
	IndexRunDuration.Observe(d.Seconds())
}

func RecordSearch(d time.Duration, results int) {
	SearchDuration.Observe(d.Seconds())
	SearchResults.Observe(float64(results))
}

func RecordCommand(command, status string) {
	CommandsTotal.WithLabelValues(command, status).Inc()
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
