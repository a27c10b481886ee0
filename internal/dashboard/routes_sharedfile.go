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

func (s *Server) registerSharedFileRoutes() {
	s.route("GET /api/files", s.handleSharedFileList)
	s.route("GET /api/files/read", s.handleSharedFileRead)
	s.route("POST /api/files", s.handleSharedFileWrite)
	s.route("POST /api/files/delete", s.handleSharedFileDelete)
}

func (s *Server) handleSharedFileList(w http.ResponseWriter, r *http.Request) {
	if s.fileStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "shared file store not configured")
		return
	}
	files, err := s.fileStore.List(r.Context(), queryParam(r, "prefix"), safeInt(r, "limit", 100, 1, 1000))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleSharedFileRead(w http.ResponseWriter, r *http.Request) {
	if s.fileStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "shared file store not configured")
		return
	}
	path := queryParam(r, "path")
	file, ok, err := s.fileStore.Read(r.Context(), path)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_path", err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such shared file: "+path)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

type sharedFileWriteRequest struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	UpdatedBy string `json:"updated_by"`
}

func (s *Server) handleSharedFileWrite(w http.ResponseWriter, r *http.Request) {
	if s.fileStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "shared file store not configured")
		return
	}
	var req sharedFileWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := s.fileStore.Write(r.Context(), req.Path, req.Content, req.UpdatedBy); err != nil {
		writeJSONError(w, http.StatusBadRequest, "write_failed", err.Error())
		return
	}
	s.publishDashboardEvent("shared_files")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type sharedFileDeleteRequest struct {
	Path  string `json:"path"`
	Actor string `json:"actor"`
}

func (s *Server) handleSharedFileDelete(w http.ResponseWriter, r *http.Request) {
	if s.fileStore == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "shared file store not configured")
		return
	}
	var req sharedFileDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	deleted, err := s.fileStore.Delete(r.Context(), req.Path, req.Actor)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "delete_failed", err.Error())
		return
	}
	s.publishDashboardEvent("shared_files")
	writeJSON(w, http.StatusOK, map[string]any{"ok": deleted})
}
