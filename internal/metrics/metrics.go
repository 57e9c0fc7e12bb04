package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation metrics
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_rule_evaluations_total",
			Help: "Total number of rule evaluations by decision",
		},
		[]string{"decision"}, // decision: none, trigger, resolve
	)

	EvaluationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_evaluation_errors_total",
			Help: "Total number of per-rule evaluation failures",
		},
		[]string{"stage"}, // stage: list, fetch, persist, dispatch
	)

	StaleSamplesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsewatch_stale_samples_skipped_total",
			Help: "Total number of evaluations skipped due to missing or stale samples",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulsewatch_tick_duration_seconds",
			Help:    "Time taken to evaluate all active rules in one tick",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	TicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsewatch_ticks_skipped_total",
			Help: "Total number of ticks skipped because the previous tick was still running",
		},
	)

	// Dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_dispatch_total",
			Help: "Total number of per-channel notification attempts",
		},
		[]string{"channel", "status"}, // status: sent, failed, skipped
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_lifecycle_events_total",
			Help: "Total number of lifecycle events published",
		},
		[]string{"type"},
	)

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
