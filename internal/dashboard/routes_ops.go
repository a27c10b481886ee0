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

	"github.com/marcus-qen/orchestra/internal/ops"
)

func (s *Server) registerOpsRoutes() {
	s.route("GET /api/interactions", s.handleInteractionList)
	s.route("POST /api/interactions", s.handleInteractionCreate)
	s.route("POST /api/interactions/review", s.handleInteractionReview)

	s.route("GET /api/prompt_templates", s.handlePromptTemplateList)
	s.route("GET /api/prompt_templates/get", s.handlePromptTemplateGet)
	s.route("POST /api/prompt_templates", s.handlePromptTemplateSave)
	s.route("POST /api/prompt_templates/toggle", s.handlePromptTemplateToggle)
	s.route("POST /api/prompt_templates/rollback", s.handlePromptTemplateRollback)

	s.route("GET /api/command_cards", s.handleCommandCardList)
	s.route("GET /api/command_cards/get", s.handleCommandCardGet)
	s.route("POST /api/command_cards", s.handleCommandCardSave)
	s.route("POST /api/command_cards/toggle", s.handleCommandCardToggle)
	s.route("POST /api/command_cards/rollback", s.handleCommandCardRollback)
}

func (s *Server) requireOps(w http.ResponseWriter) bool {
	if s.opsStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "agent ops store not configured")
		return false
	}
	return true
}

// --- Interactions ----------------------------------------------------------

func (s *Server) handleInteractionList(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	filter := ops.InteractionFilter{
		ThreadID: queryParam(r, "thread_id"),
		Sender:   queryParam(r, "sender"),
		Receiver: queryParam(r, "receiver"),
		MsgType:  queryParam(r, "msg_type"),
		Status:   queryParam(r, "status"),
		Limit:    safeInt(r, "limit", 100, 1, 1000),
	}
	if p := boolParamPtr(r, "requires_review"); p != nil {
		filter.RequiresReview = p
	}
	list, err := s.opsStore.ListInteractions(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": list})
}

type interactionCreateRequest struct {
	Sender         string         `json:"sender"`
	Receiver       string         `json:"receiver"`
	MsgType        string         `json:"msg_type"`
	ThreadID       string         `json:"thread_id"`
	ParentID       *int64         `json:"parent_id"`
	RequiresReview bool           `json:"requires_review"`
	Payload        map[string]any `json:"payload"`
	Status         string         `json:"status"`
}

func (s *Server) handleInteractionCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req interactionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	it, err := s.opsStore.CreateInteraction(r.Context(), req.Sender, req.Receiver, req.MsgType, req.ThreadID,
		req.ParentID, req.RequiresReview, req.Payload, req.Status)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "create_failed", err.Error())
		return
	}
	s.publishDashboardEvent("interactions")
	writeJSON(w, http.StatusOK, it)
}

type interactionReviewRequest struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

func (s *Server) handleInteractionReview(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req interactionReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	it, ok, err := s.opsStore.ReviewInteraction(r.Context(), req.ID, req.Status, req.Reviewer, req.Note)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "review_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such interaction")
		return
	}
	s.publishDashboardEvent("interactions")
	writeJSON(w, http.StatusOK, it)
}

// --- Prompt Templates -------------------------------------------------------

func (s *Server) handlePromptTemplateList(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	list, err := s.opsStore.ListPromptTemplates(r.Context(), queryParam(r, "keyword"), safeInt(r, "limit", 100, 1, 1000))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt_templates": list})
}

func (s *Server) handlePromptTemplateGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	p, ok, err := s.opsStore.GetPromptTemplate(r.Context(), queryParam(r, "prompt_key"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such prompt template")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type promptTemplateSaveRequest struct {
	ops.PromptTemplate
	Actor string `json:"actor"`
}

func (s *Server) handlePromptTemplateSave(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req promptTemplateSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	saved, err := s.opsStore.SavePromptTemplate(r.Context(), req.PromptTemplate, req.Actor)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "save_failed", err.Error())
		return
	}
	s.publishDashboardEvent("prompt_templates")
	writeJSON(w, http.StatusOK, saved)
}

type promptTemplateToggleRequest struct {
	PromptKey string `json:"prompt_key"`
	Enabled   bool   `json:"enabled"`
	Actor     string `json:"actor"`
}

func (s *Server) handlePromptTemplateToggle(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req promptTemplateToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := s.opsStore.TogglePromptTemplate(r.Context(), req.PromptKey, req.Enabled, req.Actor); err != nil {
		writeJSONError(w, http.StatusBadRequest, "toggle_failed", err.Error())
		return
	}
	s.publishDashboardEvent("prompt_templates")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type promptTemplateRollbackRequest struct {
	PromptKey string `json:"prompt_key"`
	VersionID int64  `json:"version_id"`
	Actor     string `json:"actor"`
}

func (s *Server) handlePromptTemplateRollback(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req promptTemplateRollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	restored, err := s.opsStore.RollbackPromptTemplate(r.Context(), req.PromptKey, req.VersionID, req.Actor)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "rollback_failed", err.Error())
		return
	}
	s.publishDashboardEvent("prompt_templates")
	writeJSON(w, http.StatusOK, restored)
}

// --- Command Cards -----------------------------------------------------------

func (s *Server) handleCommandCardList(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	list, err := s.opsStore.ListCommandCards(r.Context(), queryParam(r, "keyword"), safeInt(r, "limit", 100, 1, 1000))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"command_cards": list})
}

func (s *Server) handleCommandCardGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	c, ok, err := s.opsStore.GetCommandCard(r.Context(), queryParam(r, "card_key"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such command card")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type commandCardSaveRequest struct {
	ops.CommandCard
	Actor string `json:"actor"`
}

func (s *Server) handleCommandCardSave(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req commandCardSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	saved, err := s.opsStore.SaveCommandCard(r.Context(), req.CommandCard, req.Actor)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "save_failed", err.Error())
		return
	}
	s.publishDashboardEvent("command_cards")
	writeJSON(w, http.StatusOK, saved)
}

type commandCardToggleRequest struct {
	CardKey string `json:"card_key"`
	Enabled bool   `json:"enabled"`
	Actor   string `json:"actor"`
}

func (s *Server) handleCommandCardToggle(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req commandCardToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := s.opsStore.ToggleCommandCard(r.Context(), req.CardKey, req.Enabled, req.Actor); err != nil {
		writeJSONError(w, http.StatusBadRequest, "toggle_failed", err.Error())
		return
	}
	s.publishDashboardEvent("command_cards")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type commandCardRollbackRequest struct {
	CardKey   string `json:"card_key"`
	VersionID int64  `json:"version_id"`
	Actor     string `json:"actor"`
}

func (s *Server) handleCommandCardRollback(w http.ResponseWriter, r *http.Request) {
	if !s.requireOps(w) {
		return
	}
	var req commandCardRollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	restored, err := s.opsStore.RollbackCommandCard(r.Context(), req.CardKey, req.VersionID, req.Actor)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "rollback_failed", err.Error())
		return
	}
	s.publishDashboardEvent("command_cards")
	writeJSON(w, http.StatusOK, restored)
}
