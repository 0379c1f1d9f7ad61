// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// StreamsActive tracks chat streams currently open.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of chat streams currently open",
		},
	)

	// FramesEmitted tracks protocol frames written, by frame type.
	FramesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_frames_emitted_total",
			Help: "Protocol frames written to clients",
		},
		[]string{"type"},
	)

	// RunDuration tracks agent run duration by outcome.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_run_duration_seconds",
			Help:    "Agent run duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"outcome"},
	)

	// RunsTotal tracks completed agent runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_runs_total",
			Help: "Completed agent runs by outcome",
		},
		[]string{"outcome"},
	)

	// ToolCallsTotal tracks tool invocations by tool and outcome.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool invocations by tool name and outcome",
		},
		[]string{"tool", "outcome"},
	)

	// ArtifactsWritten tracks generated artifact files.
	ArtifactsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artifacts_written_total",
			Help: "Artifact files written by tools",
		},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks committed messages by role.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Committed messages by role",
		},
		[]string{"role"},
	)

	// RelayedBytes tracks bytes forwarded by the relay.
	RelayedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_forwarded_bytes_total",
			Help: "Bytes forwarded downstream by the relay",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRun records metrics for a finished agent run.
func RecordRun(outcome string, seconds float64) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.WithLabelValues(outcome).Observe(seconds)
}
