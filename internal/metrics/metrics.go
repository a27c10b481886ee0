/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics defines the Prometheus metrics served by the
// dashboard's /metrics endpoint.
//
// Metric naming follows Prometheus conventions:
//   - orchestra_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts dashboard requests by route, method and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_http_requests_total",
			Help: "Total dashboard HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDurationSeconds is a histogram of dashboard request latency.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestra_http_request_duration_seconds",
			Help:    "Dashboard HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ToolCallsTotal counts tool registry dispatches by tool, action and outcome.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_tool_calls_total",
			Help: "Total tool registry dispatches by tool, action and outcome.",
		},
		[]string{"tool", "action", "ok"},
	)

	// CommandCardRunsTotal counts command-card executions by card key and terminal status.
	CommandCardRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_command_card_runs_total",
			Help: "Total command-card runs by card key and status.",
		},
		[]string{"card_key", "status"},
	)

	// CommandCardRunDurationSeconds is a histogram of command-card execution time.
	CommandCardRunDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestra_command_card_run_duration_seconds",
			Help:    "Duration of command-card executions in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"card_key"},
	)

	// AgentStatusGauge reports the current count of agents in each status bucket.
	AgentStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestra_agent_status",
			Help: "Number of agents currently in each status.",
		},
		[]string{"status"},
	)

	// EventBusSubscribers is the number of currently connected SSE subscribers.
	EventBusSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestra_event_bus_subscribers",
			Help: "Number of active event bus subscribers (SSE clients).",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		ToolCallsTotal,
		CommandCardRunsTotal,
		CommandCardRunDurationSeconds,
		AgentStatusGauge,
		EventBusSubscribers,
	)
}

// RecordHTTPRequest records one completed dashboard HTTP request.
func RecordHTTPRequest(route, method, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordToolCall records one tool registry dispatch.
func RecordToolCall(tool, action string, ok bool) {
	okStr := "false"
	if ok {
		okStr = "true"
	}
	ToolCallsTotal.WithLabelValues(tool, action, okStr).Inc()
}

// RecordCommandCardRun records one terminal command-card execution.
func RecordCommandCardRun(cardKey, status string, duration time.Duration) {
	CommandCardRunsTotal.WithLabelValues(cardKey, status).Inc()
	CommandCardRunDurationSeconds.WithLabelValues(cardKey).Observe(duration.Seconds())
}

// SetAgentStatusCounts overwrites the agent status gauge from a fresh snapshot count map.
func SetAgentStatusCounts(counts map[string]int) {
	for status, n := range counts {
		AgentStatusGauge.WithLabelValues(status).Set(float64(n))
	}
}
