// Package metrics exposes Prometheus counters for artifact downloads and
// command executions.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Download kinds.
const (
	KindBinary   = "binary"
	KindResource = "resource"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeCached  = "cached"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

var (
	registerOnce sync.Once

	downloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolrun",
			Name:      "downloads_total",
			Help:      "Artifact downloads by kind and outcome.",
		},
		[]string{"toolkit", "kind", "outcome"},
	)
	downloadBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolrun",
			Name:      "download_bytes_total",
			Help:      "Bytes written by completed downloads.",
		},
		[]string{"toolkit"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolrun",
			Name:      "commands_total",
			Help:      "Tool command executions by mode and outcome.",
		},
		[]string{"toolkit", "tool", "mode", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolrun",
			Name:      "command_duration_seconds",
			Help:      "Tool command duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"toolkit", "tool", "mode"},
	)
)

// Register adds the collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(downloads, downloadBytes, commands, commandDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// RecordDownload counts one artifact fetch. bytes is added only on success.
func RecordDownload(toolkit, kind, outcome string, bytes int64) {
	Register()
	downloads.WithLabelValues(toolkit, kind, outcome).Inc()
	if outcome == OutcomeSuccess && bytes > 0 {
		downloadBytes.WithLabelValues(toolkit).Add(float64(bytes))
	}
}

// RecordCommand counts one execution and observes its duration.
func RecordCommand(toolkit, tool, mode, outcome string, elapsed time.Duration) {
	Register()
	commands.WithLabelValues(toolkit, tool, mode, outcome).Inc()
	commandDuration.WithLabelValues(toolkit, tool, mode).Observe(elapsed.Seconds())
}
