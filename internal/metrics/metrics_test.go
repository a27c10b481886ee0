/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getGaugeVecValue(gv *prometheus.GaugeVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := gv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	observer := hv.WithLabelValues(labels...)
	// Prometheus histogram implements prometheus.Metric via the observer
	if c, ok := observer.(prometheus.Metric); ok {
		if err := c.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("/api/tasks", "GET", "200", 42*time.Millisecond)

	val := getCounterValue(HTTPRequestsTotal, "/api/tasks", "GET", "200")
	if val < 1 {
		t.Errorf("HTTPRequestsTotal = %f, want >= 1", val)
	}

	count := getHistogramCount(HTTPRequestDurationSeconds, "/api/tasks")
	if count < 1 {
		t.Errorf("HTTPRequestDurationSeconds sample count = %d, want >= 1", count)
	}
}

func TestRecordToolCall(t *testing.T) {
	RecordToolCall("task", "create", true)
	RecordToolCall("task", "create", false)

	ok := getCounterValue(ToolCallsTotal, "task", "create", "true")
	if ok < 1 {
		t.Errorf("ToolCallsTotal(ok=true) = %f, want >= 1", ok)
	}
	failed := getCounterValue(ToolCallsTotal, "task", "create", "false")
	if failed < 1 {
		t.Errorf("ToolCallsTotal(ok=false) = %f, want >= 1", failed)
	}
}

func TestRecordCommandCardRun(t *testing.T) {
	RecordCommandCardRun("deploy-staging", "succeeded", 12*time.Second)

	val := getCounterValue(CommandCardRunsTotal, "deploy-staging", "succeeded")
	if val < 1 {
		t.Errorf("CommandCardRunsTotal = %f, want >= 1", val)
	}

	count := getHistogramCount(CommandCardRunDurationSeconds, "deploy-staging")
	if count < 1 {
		t.Errorf("CommandCardRunDurationSeconds sample count = %d, want >= 1", count)
	}
}

func TestSetAgentStatusCounts(t *testing.T) {
	SetAgentStatusCounts(map[string]int{"running": 3, "idle": 1})

	if val := getGaugeVecValue(AgentStatusGauge, "running"); val != 3 {
		t.Errorf("AgentStatusGauge(running) = %f, want 3", val)
	}
	if val := getGaugeVecValue(AgentStatusGauge, "idle"); val != 1 {
		t.Errorf("AgentStatusGauge(idle) = %f, want 1", val)
	}

	// A later snapshot overwrites, rather than accumulates.
	SetAgentStatusCounts(map[string]int{"running": 0})
	if val := getGaugeVecValue(AgentStatusGauge, "running"); val != 0 {
		t.Errorf("AgentStatusGauge(running) after reset = %f, want 0", val)
	}
}

func TestEventBusSubscribersGauge(t *testing.T) {
	EventBusSubscribers.Set(0)

	EventBusSubscribers.Inc()
	EventBusSubscribers.Inc()
	if val := getGaugeValue(EventBusSubscribers); val != 2 {
		t.Errorf("EventBusSubscribers = %f, want 2", val)
	}

	EventBusSubscribers.Dec()
	if val := getGaugeValue(EventBusSubscribers); val != 1 {
		t.Errorf("EventBusSubscribers after Dec = %f, want 1", val)
	}
}

func TestRecordToolCallLabelIsolation(t *testing.T) {
	RecordToolCall("lock", "acquire", true)
	RecordToolCall("lock", "release", true)

	acquire := getCounterValue(ToolCallsTotal, "lock", "acquire", "true")
	release := getCounterValue(ToolCallsTotal, "lock", "release", "true")
	forceRelease := getCounterValue(ToolCallsTotal, "lock", "force_release", "true")

	if acquire < 1 {
		t.Error("lock/acquire should be >= 1")
	}
	if release < 1 {
		t.Error("lock/release should be >= 1")
	}
	if forceRelease != 0 {
		t.Errorf("lock/force_release = %f, want 0 (no call recorded)", forceRelease)
	}
}
