package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that validated and persisted.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses that failed at any terminal stage.
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firedesk",
			Name:      "firebreak_analyses_total",
			Help:      "Total number of Firebreak analysis runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "firedesk",
			Name:      "firebreak_analysis_seconds",
			Help:      "Firebreak analysis run latency in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firedesk",
			Name:      "firebreak_tool_calls_total",
			Help:      "Tool executions requested by the model, partitioned by tool.",
		},
		[]string{"tool"},
	)

	incidentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "firedesk",
			Name:      "incidents_created_total",
			Help:      "Incident tickets materialized from confirmed patterns.",
		},
	)
)

// Register attaches firedesk collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		toolCallsTotal,
		incidentsCreatedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis run duration and its outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveToolCall records one tool execution.
func ObserveToolCall(tool string) {
	toolCallsTotal.WithLabelValues(tool).Inc()
}

// ObserveIncidentsCreated records materialized incident tickets.
func ObserveIncidentsCreated(n int) {
	if n <= 0 {
		return
	}
	incidentsCreatedTotal.Add(float64(n))
}
