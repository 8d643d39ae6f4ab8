// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_turns_processed_total",
			Help: "Total number of turns processed per stage",
		},
		[]string{"stage"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_turns_failed_total",
			Help: "Total number of failed turns per stage",
		},
		[]string{"stage", "error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
		[]string{"stage"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_sessions",
			Help: "Number of sessions currently in a non-terminal stage",
		},
	)

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_decisions_total",
			Help: "Total number of decision verdicts by outcome",
		},
		[]string{"outcome"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_external_call_duration_seconds",
			Help: "Duration of external collaborator calls in seconds",
		},
		[]string{"service"},
	)
)
