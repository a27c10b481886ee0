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

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/metrics"
)

func (s *Server) registerAgentStatusRoutes() {
	s.route("GET /api/agent_status", s.handleAgentStatusQuery)
}

func (s *Server) handleAgentStatusQuery(w http.ResponseWriter, r *http.Request) {
	if s.statusStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "agent status store not configured")
		return
	}
	filter := agentstatus.Filter{
		AgentID: queryParam(r, "agent_id"),
		Status:  agentstatus.Status(queryParam(r, "status")),
		Limit:   safeInt(r, "limit", 100, 1, 1000),
	}
	snaps, err := s.statusStore.Query(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	summary := agentstatus.Summarize(snaps)
	metrics.SetAgentStatusCounts(map[string]int{
		"healthy": summary.Healthy, "unhealthy": summary.Unhealthy,
		"running": summary.Running, "idle": summary.Idle,
		"stuck": summary.Stuck, "error": summary.Error,
		"disconnected": summary.Disconnected, "unknown": summary.Unknown,
	})
	writeJSON(w, http.StatusOK, map[string]any{"agents": snaps, "summary": summary})
}
