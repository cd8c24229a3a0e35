// Package observability holds the Prometheus metrics exposed at /metrics
// (grounded on the teacher's internal/observability/metrics.go, scoped down
// to the orchestrator/gateway/pipeline concerns this module has).
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide metrics registry, constructed once at
// startup. Only LLMRequestDuration, PipelineStageDuration and
// PipelineStageErrors are recorded; the other fields are registered and
// exposed at /metrics but nothing observes them.
type Metrics struct {
	// HTTPRequestDuration measures gateway request latency.
	// Labels: method, path, status
	HTTPRequestDuration *prometheus.HistogramVec

	// TurnDuration measures one full orchestrator turn (hydrate..post_process).
	TurnDuration prometheus.Histogram

	// TurnCycles records how many agent/tools/reflect cycles a turn took.
	TurnCycles prometheus.Histogram

	// ToolExecutionCounter counts tool invocations by name and outcome.
	// Labels: tool_name, status (ok|error)
	ToolExecutionCounter *prometheus.CounterVec

	// PipelineStageDuration measures each analysis pipeline stage.
	// Labels: stage (scrape|classify|group|estimate|summarize)
	PipelineStageDuration *prometheus.HistogramVec

	// PipelineStageErrors counts stage failures.
	// Labels: stage
	PipelineStageErrors *prometheus.CounterVec

	// LLMRequestDuration measures Anthropic completion latency.
	LLMRequestDuration prometheus.Histogram

	// ActiveConversations is a gauge of conversations currently mid-turn.
	ActiveConversations prometheus.Gauge
}

// NewMetrics registers and returns the application's metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "housing_agent_http_request_duration_seconds",
				Help:    "Duration of gateway HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "path", "status"},
		),
		TurnDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "housing_agent_turn_duration_seconds",
				Help:    "Duration of one orchestrator turn",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		TurnCycles: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "housing_agent_turn_cycles",
				Help:    "Number of agent/tools/reflect cycles per turn",
				Buckets: []float64{1, 2, 3, 5, 8, 12, 20},
			},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "housing_agent_tool_executions_total",
				Help: "Total tool executions by tool name and outcome",
			},
			[]string{"tool_name", "status"},
		),
		PipelineStageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "housing_agent_pipeline_stage_duration_seconds",
				Help:    "Duration of each analysis pipeline stage",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		PipelineStageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "housing_agent_pipeline_stage_errors_total",
				Help: "Total pipeline stage failures",
			},
			[]string{"stage"},
		),
		LLMRequestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "housing_agent_llm_request_duration_seconds",
				Help:    "Duration of LLM completion calls",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		ActiveConversations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "housing_agent_active_conversations",
				Help: "Conversations currently mid-turn",
			},
		),
	}
}
