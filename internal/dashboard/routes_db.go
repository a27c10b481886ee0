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

	"github.com/marcus-qen/orchestra/internal/metrics"
)

func (s *Server) registerDBRoutes() {
	s.route("POST /api/db/query", s.handleDBQuery)
	s.route("POST /api/db/execute", s.handleDBExecute)
}

type dbQueryRequest struct {
	SQL    string `json:"sql"`
	Target string `json:"target"`
	Limit  *int   `json:"limit"`
}

// handleDBQuery lets an operator run the same guarded, read-only SQL
// the db tool exposes to agents, straight from the dashboard.
func (s *Server) handleDBQuery(w http.ResponseWriter, r *http.Request) {
	if s.dbTool == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "db tool not configured")
		return
	}
	var req dbQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	args := map[string]any{"sql": req.SQL, "target": req.Target}
	if req.Limit != nil {
		args["limit"] = *req.Limit
	}
	envelope := s.dbTool.Execute(r.Context(), "query", args)
	metrics.RecordToolCall("db", "query", envelope.OK)
	writeJSON(w, http.StatusOK, envelope)
}

type dbExecuteRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleDBExecute(w http.ResponseWriter, r *http.Request) {
	if s.dbTool == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "db tool not configured")
		return
	}
	var req dbExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	envelope := s.dbTool.Execute(r.Context(), "execute", map[string]any{"sql": req.SQL})
	metrics.RecordToolCall("db", "execute", envelope.OK)
	if envelope.OK {
		s.publishDashboardEvent("db")
	}
	writeJSON(w, http.StatusOK, envelope)
}
