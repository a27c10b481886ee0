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

	"github.com/marcus-qen/orchestra/internal/coord"
)

func (s *Server) registerCoordRoutes() {
	s.route("GET /api/tasks", s.handleTaskList)
	s.route("GET /api/tasks/get", s.handleTaskGet)
	s.route("POST /api/tasks", s.handleTaskCreate)
	s.route("POST /api/tasks/update", s.handleTaskUpdate)

	s.route("GET /api/approvals", s.handleCoordApprovalList)
	s.route("GET /api/approvals/get", s.handleCoordApprovalGet)
	s.route("POST /api/approvals", s.handleCoordApprovalRequest)
	s.route("POST /api/approvals/respond", s.handleCoordApprovalRespond)

	s.route("GET /api/locks", s.handleLockList)
	s.route("GET /api/locks/get", s.handleLockGet)
	s.route("POST /api/locks/acquire", s.handleLockAcquire)
	s.route("POST /api/locks/release", s.handleLockRelease)
	s.route("POST /api/locks/force_release", s.handleLockForceRelease)
}

// --- Tasks -------------------------------------------------------------------

func (s *Server) requireTasks(w http.ResponseWriter) bool {
	if s.tasks == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "task store not configured")
		return false
	}
	return true
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	filter := coord.TaskFilter{
		Status:    queryParam(r, "status"),
		Assignee:  queryParam(r, "assignee"),
		ProjectID: queryParam(r, "project_id"),
		Limit:     safeInt(r, "limit", 100, 1, 1000),
	}
	tasks, err := s.tasks.ListTasks(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	task, ok, err := s.tasks.GetTask(r.Context(), queryParam(r, "task_id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	var task coord.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	created, deduped, err := s.tasks.CreateTask(r.Context(), task)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "create_failed", err.Error())
		return
	}
	s.publishDashboardEvent("tasks")
	writeJSON(w, http.StatusOK, map[string]any{"task": created, "deduped": deduped})
}

type taskUpdateRequest struct {
	TaskID   string  `json:"task_id"`
	Status   *string `json:"status"`
	Result   *string `json:"result"`
	Assignee *string `json:"assignee"`
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	var req taskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.tasks.UpdateTask(r.Context(), req.TaskID, req.Status, req.Result, req.Assignee)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	s.publishDashboardEvent("tasks")
	writeJSON(w, http.StatusOK, result)
}

// --- In-tool approvals -------------------------------------------------------

func (s *Server) requireApprovals(w http.ResponseWriter) bool {
	if s.approvals == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "approval store not configured")
		return false
	}
	return true
}

func (s *Server) handleCoordApprovalList(w http.ResponseWriter, r *http.Request) {
	if !s.requireApprovals(w) {
		return
	}
	filter := coord.ApprovalFilter{
		Status:      queryParam(r, "status"),
		TargetAgent: queryParam(r, "target_agent"),
		Limit:       safeInt(r, "limit", 100, 1, 1000),
	}
	list, err := s.approvals.List(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

func (s *Server) handleCoordApprovalGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireApprovals(w) {
		return
	}
	approval, ok, err := s.approvals.Get(r.Context(), queryParam(r, "approval_id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such approval")
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

type coordApprovalRequestBody struct {
	Requester   string   `json:"requester"`
	TargetAgent string   `json:"target_agent"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

func (s *Server) handleCoordApprovalRequest(w http.ResponseWriter, r *http.Request) {
	if !s.requireApprovals(w) {
		return
	}
	var req coordApprovalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	approval, err := s.approvals.Request(r.Context(), req.Requester, req.TargetAgent, req.Title, req.Description, req.Options)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "request_failed", err.Error())
		return
	}
	s.publishDashboardEvent("approvals")
	writeJSON(w, http.StatusOK, approval)
}

type coordApprovalRespondRequest struct {
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
	Approver   string `json:"approver"`
	Reason     string `json:"reason"`
}

func (s *Server) handleCoordApprovalRespond(w http.ResponseWriter, r *http.Request) {
	if !s.requireApprovals(w) {
		return
	}
	var req coordApprovalRespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.approvals.Respond(r.Context(), req.ApprovalID, req.Decision, req.Approver, req.Reason)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "respond_failed", err.Error())
		return
	}
	s.publishDashboardEvent("approvals")
	writeJSON(w, http.StatusOK, result)
}

// --- Resource locks -----------------------------------------------------------

func (s *Server) requireLocks(w http.ResponseWriter) bool {
	if s.locks == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "lock store not configured")
		return false
	}
	return true
}

func (s *Server) handleLockList(w http.ResponseWriter, r *http.Request) {
	if !s.requireLocks(w) {
		return
	}
	list, err := s.locks.List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locks": list})
}

func (s *Server) handleLockGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireLocks(w) {
		return
	}
	lock, ok, err := s.locks.Get(r.Context(), queryParam(r, "resource"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such lock")
		return
	}
	writeJSON(w, http.StatusOK, lock)
}

type lockAcquireRequest struct {
	Resource string `json:"resource"`
	Owner    string `json:"owner"`
	TTLSec   int    `json:"ttl_sec"`
}

func (s *Server) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	if !s.requireLocks(w) {
		return
	}
	var req lockAcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.locks.Acquire(r.Context(), req.Resource, req.Owner, req.TTLSec)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "acquire_failed", err.Error())
		return
	}
	s.publishDashboardEvent("locks")
	writeJSON(w, http.StatusOK, result)
}

type lockReleaseRequest struct {
	Resource string `json:"resource"`
	Owner    string `json:"owner"`
}

func (s *Server) handleLockRelease(w http.ResponseWriter, r *http.Request) {
	if !s.requireLocks(w) {
		return
	}
	var req lockReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.locks.Release(r.Context(), req.Resource, req.Owner)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "release_failed", err.Error())
		return
	}
	s.publishDashboardEvent("locks")
	writeJSON(w, http.StatusOK, result)
}

type lockForceReleaseRequest struct {
	Resource string `json:"resource"`
	Actor    string `json:"actor"`
}

func (s *Server) handleLockForceRelease(w http.ResponseWriter, r *http.Request) {
	if !s.requireLocks(w) {
		return
	}
	var req lockForceReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	result, err := s.locks.ForceRelease(r.Context(), req.Resource, req.Actor)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "force_release_failed", err.Error())
		return
	}
	s.publishDashboardEvent("locks")
	writeJSON(w, http.StatusOK, result)
}
