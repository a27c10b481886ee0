/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/config"
	"github.com/marcus-qen/orchestra/internal/events"
)

// newBareServer builds a Server with no subsystems wired, so every
// thin-wrapper handler should degrade to 503 rather than panic.
func newBareServer(t *testing.T) *Server {
	t.Helper()
	return New(config.Config{ListenAddr: ":0"}, Deps{
		Bus:    events.NewBus(16),
		Logger: zap.NewNop(),
	})
}

func TestHealthNeverFailsWithoutStore(t *testing.T) {
	s := newBareServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestUnconfiguredSubsystemsReturn503(t *testing.T) {
	s := newBareServer(t)
	routes := []string{
		"/api/audit", "/api/agent_status", "/api/files", "/api/interactions",
		"/api/prompt_templates", "/api/command_cards", "/api/runs",
		"/api/topology/approvals", "/api/tasks", "/api/approvals", "/api/locks",
		"/api/agents",
	}
	for _, path := range routes {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s: status = %d, want 503", path, rec.Code)
		}
	}
}

func TestConfigPageRendersAtRoot(t *testing.T) {
	s := newBareServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	s := newBareServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestBasicAuthRejectsWhenEnabled(t *testing.T) {
	s := New(config.Config{
		ListenAddr:     ":0",
		AuthEnabled:    true,
		OperatorUser:   "operator",
		OperatorPwHash: "$2a$10$invalidhashjustfortest1234567890123456789012345678",
	}, Deps{Bus: events.NewBus(16), Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("unauthenticated /health status = %d, want 200", rec2.Code)
	}
}
