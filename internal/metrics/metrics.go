// ABOUTME: Prometheus collectors for tool calls, HubSpot requests and MCP sessions
// ABOUTME: Uses a private registry served by Handler in the exposition format

package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/hubspot"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/tools"
)

// Namespace prefixes every metric name.
const Namespace = "hubspot_mcp"

// Metric names as exposed, including the namespace.
const (
	MetricToolCallsTotal          = Namespace + "_tool_calls_total"
	MetricToolCallDuration        = Namespace + "_tool_call_duration_seconds"
	MetricUpstreamRequestsTotal   = Namespace + "_upstream_requests_total"
	MetricUpstreamRequestDuration = Namespace + "_upstream_request_duration_seconds"
	MetricActiveSessions          = Namespace + "_active_sessions"
)

// Metrics holds the collectors. Safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
}

var (
	_ hubspot.Observer = (*Metrics)(nil)
	_ tools.Recorder   = (*Metrics)(nil)
)

// New creates the collectors on a fresh registry.
// Go runtime and process collectors are included.
func New() *Metrics {
	// A private registry keeps tests and multiple instances independent
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of MCP tool calls by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Duration of MCP tool calls in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of HubSpot API requests by method and status.",
			},
			[]string{"method", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of HubSpot API requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_sessions",
				Help:      "Number of live MCP sessions.",
			},
		),
	}

	registry.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.upstreamRequests,
		m.upstreamDuration,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveUpstream records one HubSpot request. A status of 0 means the
// request never got a response and is labelled "error".
func (m *Metrics) ObserveUpstream(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(method, label).Inc()
	m.upstreamDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordToolCall records one finished tool call.
func (m *Metrics) RecordToolCall(_ context.Context, rec tools.CallRecord) {
	m.toolCalls.WithLabelValues(rec.Tool, rec.Outcome).Inc()
	m.toolDuration.WithLabelValues(rec.Tool).Observe(rec.Duration.Seconds())
}

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// Gather returns the current state of every collector.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
