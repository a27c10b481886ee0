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

	"github.com/marcus-qen/orchestra/internal/topology"
)

func (s *Server) registerTopologyRoutes() {
	s.route("GET /api/topology/current", s.handleTopologyCurrent)
	s.route("GET /api/topology/approvals", s.handleTopologyList)
	s.route("GET /api/topology/approvals/get", s.handleTopologyGet)
	s.route("POST /api/topology/approvals", s.handleTopologyCreate)
	s.route("POST /api/topology/approvals/approve", s.handleTopologyApprove)
	s.route("POST /api/topology/approvals/reject", s.handleTopologyReject)
}

func (s *Server) requireTopology(w http.ResponseWriter) bool {
	if s.topo == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "topology engine not configured")
		return false
	}
	return true
}

func (s *Server) handleTopologyCurrent(w http.ResponseWriter, r *http.Request) {
	if !s.requireTopology(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"architecture": s.topo.CurrentArchitecture()})
}

func (s *Server) handleTopologyList(w http.ResponseWriter, r *http.Request) {
	if !s.requireTopology(w) {
		return
	}
	filter := topology.ListFilter{
		Status: queryParam(r, "status"),
		Limit:  safeInt(r, "limit", 100, 1, 1000),
	}
	list, err := s.topo.List(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

func (s *Server) handleTopologyGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireTopology(w) {
		return
	}
	req, ok, err := s.topo.Get(r.Context(), queryParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such topology approval")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type topologyCreateRequest struct {
	ProposedArchitecture map[string]any `json:"proposed_architecture"`
	RequestedBy          string         `json:"requested_by"`
	Reason               string         `json:"reason"`
	TTLSec               *int           `json:"ttl_sec"`
}

func (s *Server) handleTopologyCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireTopology(w) {
		return
	}
	var req topologyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.topo.Create(r.Context(), req.ProposedArchitecture, req.RequestedBy, req.Reason, req.TTLSec)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	s.publishDashboardEvent("topology_approvals")
	writeJSON(w, http.StatusOK, result)
}

type topologyDecisionRequest struct {
	ID       string `json:"id"`
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

func (s *Server) handleTopologyApprove(w http.ResponseWriter, r *http.Request) {
	if !s.requireTopology(w) {
		return
	}
	var req topologyDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.topo.Approve(r.Context(), req.ID, req.Reviewer, req.Note)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "approve_failed", err.Error())
		return
	}
	s.publishDashboardEvent("topology_approvals", "topology_current")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTopologyReject(w http.ResponseWriter, r *http.Request) {
	if !s.requireTopology(w) {
		return
	}
	var req topologyDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.topo.Reject(r.Context(), req.ID, req.Reviewer, req.Note)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "reject_failed", err.Error())
		return
	}
	s.publishDashboardEvent("topology_approvals")
	writeJSON(w, http.StatusOK, result)
}
