/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/events"
	"github.com/marcus-qen/orchestra/internal/metrics"
)

const sseHeartbeatInterval = 20 * time.Second

// handleEventsStream subscribes to the event bus and streams events as
// SSE. It immediately emits a connected event and one seeded
// agent_status snapshot so a freshly opened dashboard doesn't sit
// blank until the next tick, then forwards every published event.
// Idle connections get a periodic comment-only heartbeat so
// intermediary proxies don't time them out. Any write error
// unsubscribes and returns.
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID := fmt.Sprintf("sse-%d", time.Now().UnixNano())
	ch := s.bus.Subscribe(subID)
	defer s.bus.Unsubscribe(subID)
	metrics.EventBusSubscribers.Inc()
	defer metrics.EventBusSubscribers.Dec()

	connected := events.Event{Type: "connected", Timestamp: time.Now().UTC()}
	if err := events.WriteSSE(w, connected); err != nil {
		return
	}
	flusher.Flush()

	if s.statusStore != nil {
		if snaps, err := s.statusStore.Query(r.Context(), agentstatus.Filter{Limit: 200}); err == nil {
			seed := s.bus.Publish(events.AgentStatus, snaps)
			if err := events.WriteSSE(w, seed); err != nil {
				return
			}
			flusher.Flush()
		}
	}

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := events.WriteSSE(w, evt); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// publishDashboardEvent publishes a sync event listing the scopes a
// mutating POST affected, so open dashboards know what to refetch.
// It never throws: Publish only touches an in-memory map under a
// mutex, but the call is still centralized here so every handler goes
// through one path that can never fail the request it's attached to.
func (s *Server) publishDashboardEvent(scopes ...string) {
	s.bus.Publish(events.EventType("sync"), map[string]any{"scopes": scopes})
}
