// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the chat
// backend.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the streaming
// chat pipeline and the conversation-logging tee. Metrics include:
//   - Request counters (by endpoint, status, error type)
//   - Latency histograms (time to first token, total duration)
//   - Active stream gauges
//   - Logging outcome counters (failures never surface to visitors, so
//     metrics are the only operator-facing signal)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "jonabot"

// Subsystem for streaming metrics
const streamingSubsystem = "streaming"

// StreamingMetrics holds all Prometheus metrics for the chat pipeline.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring streaming
// performance and logging outcomes. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type StreamingMetrics struct {
	// RequestsTotal counts streaming requests by endpoint and status.
	// Labels: endpoint (general_chat, huggingface_chat, ...), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// TimeToFirstTokenSeconds measures latency to first forwarded fragment.
	// Labels: endpoint
	TimeToFirstTokenSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: endpoint, status (success, error)
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently active streaming connections.
	// Labels: endpoint
	ActiveStreams *prometheus.GaugeVec

	// ErrorsTotal counts errors by type and endpoint.
	// Labels: endpoint, error_code (validation, upstream_error, truncated, ...)
	ErrorsTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts client disconnections during streaming.
	// Labels: endpoint
	ClientDisconnectsTotal *prometheus.CounterVec

	// LoggingFailuresTotal counts swallowed persistence-sink failures.
	// Labels: operation (insert_session, insert_message, end_session)
	LoggingFailuresTotal *prometheus.CounterVec

	// SessionsCreatedTotal counts new sessions by chat origin.
	// Labels: origin (general-chat, huggingface, energyhub, renew-job)
	SessionsCreatedTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of StreamingMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *StreamingMetrics

var initOnce sync.Once

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics on the default registry.
// Idempotent: repeated calls return the same instance, so tests that spin
// up multiple routers do not hit duplicate-registration panics.
//
// # Outputs
//
//   - *StreamingMetrics: The initialized metrics instance.
func InitMetrics() *StreamingMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &StreamingMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: streamingSubsystem,
					Name:      "requests_total",
					Help:      "Total number of streaming requests by endpoint and status",
				},
				[]string{"endpoint", "status"},
			),

			TimeToFirstTokenSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: streamingSubsystem,
					Name:      "time_to_first_token_seconds",
					Help:      "Time from request to first forwarded fragment in seconds",
					Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
				},
				[]string{"endpoint"},
			),

			StreamDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: streamingSubsystem,
					Name:      "stream_duration_seconds",
					Help:      "Total stream duration in seconds",
					Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
				},
				[]string{"endpoint", "status"},
			),

			ActiveStreams: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: streamingSubsystem,
					Name:      "active_streams",
					Help:      "Number of currently active streaming connections",
				},
				[]string{"endpoint"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: streamingSubsystem,
					Name:      "errors_total",
					Help:      "Total streaming errors by type and endpoint",
				},
				[]string{"endpoint", "error_code"},
			),

			ClientDisconnectsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: streamingSubsystem,
					Name:      "client_disconnects_total",
					Help:      "Total client disconnections during streaming",
				},
				[]string{"endpoint"},
			),

			LoggingFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: "sessionlog",
					Name:      "failures_total",
					Help:      "Total swallowed persistence-sink failures by operation",
				},
				[]string{"operation"},
			),

			SessionsCreatedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: "sessionlog",
					Name:      "sessions_created_total",
					Help:      "Total sessions created by chat origin",
				},
				[]string{"origin"},
			),
		}
	})
	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeUpstream indicates a chat-completion API failure.
	ErrorCodeUpstream ErrorCode = "upstream_error"

	// ErrorCodeSession indicates session creation failure.
	ErrorCodeSession ErrorCode = "session_error"

	// ErrorCodeTruncated indicates the upstream cut the stream short.
	ErrorCodeTruncated ErrorCode = "truncated"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"

	// ErrorCodeClientDisconnect indicates the client disconnected mid-stream.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a streaming endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointGeneralChat is the default portfolio chat endpoint.
	EndpointGeneralChat Endpoint = "general_chat"

	// EndpointHuggingFaceChat is the Hugging Face demo chat endpoint.
	EndpointHuggingFaceChat Endpoint = "huggingface_chat"

	// EndpointEnergyHubChat is the EnergyHub showcase chat endpoint.
	EndpointEnergyHubChat Endpoint = "energyhub_chat"

	// EndpointRenewChat is the renewable-energy application chat endpoint.
	EndpointRenewChat Endpoint = "renew_chat"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed streaming request.
func (m *StreamingMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordError records a streaming error.
func (m *StreamingMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// StreamStarted increments the active streams gauge.
func (m *StreamingMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded decrements the active streams gauge.
func (m *StreamingMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordTimeToFirstToken records the time to first forwarded fragment.
func (m *StreamingMetrics) RecordTimeToFirstToken(endpoint Endpoint, seconds float64) {
	m.TimeToFirstTokenSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordStreamDuration records the total stream duration.
func (m *StreamingMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), status).Observe(seconds)
}

// RecordClientDisconnect increments the client disconnect counter.
func (m *StreamingMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordLoggingFailure counts one swallowed persistence failure.
//
// The live stream never observes these, so the counter (plus a slog line at
// the call site) is the only operator-facing signal.
func (m *StreamingMetrics) RecordLoggingFailure(operation string) {
	m.LoggingFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordSessionCreated counts one new session for the origin.
func (m *StreamingMetrics) RecordSessionCreated(origin string) {
	m.SessionsCreatedTotal.WithLabelValues(origin).Inc()
}
