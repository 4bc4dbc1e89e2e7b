package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one run on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Requests counts API calls by endpoint and HTTP status code.
	Requests *prometheus.CounterVec

	// PollAttempts counts status queries.
	PollAttempts prometheus.Counter

	// StageDuration tracks the wall time of each pipeline stage in seconds.
	StageDuration *prometheus.HistogramVec

	// DownloadedBytes counts result file bytes received.
	DownloadedBytes prometheus.Counter

	// Runs counts finished runs by outcome ("success" or the failing stage).
	Runs *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appeears_requests_total",
				Help: "Total number of AppEEARS API requests",
			},
			[]string{"endpoint", "code"},
		),
		PollAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "appeears_poll_attempts_total",
				Help: "Total number of task status queries",
			},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appeears_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
			},
			[]string{"stage"},
		),
		DownloadedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "appeears_downloaded_bytes_total",
				Help: "Total number of result file bytes received",
			},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appeears_runs_total",
				Help: "Total number of fetch runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
