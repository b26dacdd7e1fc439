// Package metrics holds the Prometheus collectors of the concierge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_turns_total",
			Help: "Total number of inbound messages answered, by route",
		},
		[]string{"route"},
	)

	TurnFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_turn_failures_total",
			Help: "Total number of collaborator failures absorbed by a fallback reply",
		},
		[]string{"route", "error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_turn_duration_seconds",
			Help:    "Duration of turn processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	BookingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_booking_attempts_total",
			Help: "Room reservations attempted after a readiness decision",
		},
		[]string{"result"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_tool_calls_total",
			Help: "Assistant tool invocations",
		},
		[]string{"tool", "result"},
	)

	WebhookThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_webhook_throttled_total",
			Help: "Inbound messages rejected by the per-sender rate limit",
		},
	)
)

// ObserveTurn records a finished turn.
func ObserveTurn(route string, started time.Time) {
	TurnsHandled.WithLabelValues(route).Inc()
	TurnDuration.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

// Result returns the "ok"/"error" label for err.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
