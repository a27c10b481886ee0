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

	"github.com/marcus-qen/orchestra/internal/audit"
)

func (s *Server) registerAuditRoutes() {
	s.route("GET /api/audit", s.handleAuditQuery)
	s.route("GET /api/audit/logs", s.handleAuditLogQuery)
	s.route("GET /api/audit/export", s.handleAuditExport)
}

func (s *Server) auditFilter(r *http.Request) audit.Filter {
	return audit.Filter{
		EventType: queryParam(r, "event_type"),
		Level:     queryParam(r, "level"),
		Actor:     queryParam(r, "actor"),
		Logger:    queryParam(r, "logger"),
		Keyword:   queryParam(r, "keyword"),
		Limit:     safeInt(r, "limit", 100, 1, 1000),
	}
}

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if s.auditSink == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "audit sink not configured")
		return
	}
	events, err := s.auditSink.Query(r.Context(), s.auditFilter(r))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleAuditLogQuery(w http.ResponseWriter, r *http.Request) {
	if s.auditSink == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "audit sink not configured")
		return
	}
	lines, err := s.auditSink.QueryLogs(r.Context(), s.auditFilter(r))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": lines})
}

// handleAuditExport streams either events or logs as JSONL or CSV,
// selected by the `kind` and `format` query params.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.auditSink == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "audit sink not configured")
		return
	}
	filter := s.auditFilter(r)
	format := queryParam(r, "format")
	kind := queryParam(r, "kind")

	var err error
	switch {
	case format == "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = s.auditSink.StreamCSV(r.Context(), w, filter)
	case kind == "logs":
		w.Header().Set("Content-Type", "application/x-ndjson")
		err = s.auditSink.StreamLogJSONL(r.Context(), w, filter)
	default:
		w.Header().Set("Content-Type", "application/x-ndjson")
		err = s.auditSink.StreamJSONL(r.Context(), w, filter)
	}
	if err != nil {
		s.logger.Sugar().Warnf("dashboard: audit export: %v", err)
	}
}
