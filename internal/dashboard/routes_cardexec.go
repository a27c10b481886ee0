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
	"time"

	"github.com/marcus-qen/orchestra/internal/cardexec"
	"github.com/marcus-qen/orchestra/internal/metrics"
)

func (s *Server) registerCardExecRoutes() {
	s.route("GET /api/runs", s.handleRunList)
	s.route("GET /api/runs/get", s.handleRunGet)
	s.route("POST /api/runs/prepare", s.handleRunPrepare)
	s.route("POST /api/runs/review", s.handleRunReview)
	s.route("POST /api/runs/execute", s.handleRunExecute)
}

func (s *Server) requireExecutor(w http.ResponseWriter) bool {
	if s.executor == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "command card executor not configured")
		return false
	}
	return true
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	if !s.requireExecutor(w) {
		return
	}
	filter := cardexec.RunFilter{
		CardKey:     queryParam(r, "card_key"),
		Status:      queryParam(r, "status"),
		RequestedBy: queryParam(r, "requested_by"),
		Limit:       safeInt(r, "limit", 100, 1, 1000),
	}
	runs, err := s.executor.ListRuns(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireExecutor(w) {
		return
	}
	runID := safeInt(r, "run_id", 0, 0, 1<<31-1)
	run, ok, err := s.executor.GetRun(r.Context(), int64(runID))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type runPrepareRequest struct {
	CardKey       string `json:"card_key"`
	Params        any    `json:"params"`
	RequestedBy   string `json:"requested_by"`
	RequireReview *bool  `json:"require_review"`
}

func (s *Server) handleRunPrepare(w http.ResponseWriter, r *http.Request) {
	if !s.requireExecutor(w) {
		return
	}
	var req runPrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.executor.PrepareRun(r.Context(), req.CardKey, req.Params, req.RequestedBy, req.RequireReview)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "prepare_failed", err.Error())
		return
	}
	s.publishDashboardEvent("command_card_runs")
	writeJSON(w, http.StatusOK, result)
}

type runReviewRequest struct {
	RunID    int64  `json:"run_id"`
	Decision string `json:"decision"`
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

func (s *Server) handleRunReview(w http.ResponseWriter, r *http.Request) {
	if !s.requireExecutor(w) {
		return
	}
	var req runReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.executor.ReviewRun(r.Context(), req.RunID, req.Decision, req.Reviewer, req.Note)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "review_failed", err.Error())
		return
	}
	s.publishDashboardEvent("command_card_runs")
	writeJSON(w, http.StatusOK, result)
}

type runExecuteRequest struct {
	RunID       int64  `json:"run_id"`
	Actor       string `json:"actor"`
	TimeoutSec  *int   `json:"timeout_sec"`
	OutputLimit *int   `json:"output_limit"`
}

func (s *Server) handleRunExecute(w http.ResponseWriter, r *http.Request) {
	if !s.requireExecutor(w) {
		return
	}
	var req runExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	start := time.Now()
	result, err := s.executor.ExecuteRun(r.Context(), req.RunID, req.Actor, req.TimeoutSec, req.OutputLimit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "execute_failed", err.Error())
		return
	}
	cardKey := ""
	if result.Run != nil {
		cardKey = result.Run.CardKey
	}
	status := "error"
	if result.Run != nil {
		status = result.Run.Status
	}
	metrics.RecordCommandCardRun(cardKey, status, time.Since(start))
	s.publishDashboardEvent("command_card_runs")
	writeJSON(w, http.StatusOK, result)
}
