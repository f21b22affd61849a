// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "telemetry",
		Name:      "messages_total",
		Help:      "Stream messages received, by message type.",
	}, []string{"type"})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "telemetry",
		Name:      "decode_failures_total",
		Help:      "Stream frames discarded because they could not be decoded.",
	})

	StreamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "console",
		Subsystem: "telemetry",
		Name:      "connected",
		Help:      "1 while the telemetry stream is connected.",
	})

	KnownSensors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "console",
		Subsystem: "telemetry",
		Name:      "known_sensors",
		Help:      "Sensors with at least one reading.",
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "generator",
		Name:      "commands_total",
		Help:      "Commands sent to the generator, by command and outcome.",
	}, []string{"command", "outcome"})

	PollFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "health",
		Name:      "fallbacks_total",
		Help:      "Health fetches replaced by the unhealthy fallback, by service.",
	}, []string{"service"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "console",
		Subsystem: "health",
		Name:      "poll_duration_seconds",
		Help:      "Duration of a full health poll cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "alerts_total",
		Help:      "Alerts raised by the console, by severity.",
	}, []string{"severity"})
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
