/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import (
	"encoding/json"
	"net/http"
)

func (s *Server) registerRegistryRoutes() {
	s.route("GET /api/agents", s.handleAgentRoster)
	s.route("POST /api/agents/register", s.handleAgentRegister)
}

func (s *Server) handleAgentRoster(w http.ResponseWriter, r *http.Request) {
	if s.roster == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "agent registry not configured")
		return
	}
	roster, err := s.roster.Roster(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": roster})
}

type agentRegisterRequest struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Skills    string `json:"skills"`
}

func (s *Server) handleAgentRegister(w http.ResponseWriter, r *http.Request) {
	if s.roster == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "agent registry not configured")
		return
	}
	var req agentRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	entry, err := s.roster.Register(r.Context(), req.AgentID, req.AgentName, req.Skills)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "register_failed", err.Error())
		return
	}
	s.publishDashboardEvent("agents")
	writeJSON(w, http.StatusOK, entry)
}
