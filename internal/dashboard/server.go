/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package dashboard implements the bus's single-process HTTP server:
// a configuration page, liveness/readiness probes, an SSE event
// stream, and thin JSON wrappers over every store component.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/cardexec"
	"github.com/marcus-qen/orchestra/internal/config"
	"github.com/marcus-qen/orchestra/internal/coord"
	"github.com/marcus-qen/orchestra/internal/events"
	"github.com/marcus-qen/orchestra/internal/mcpserver"
	"github.com/marcus-qen/orchestra/internal/monitor"
	"github.com/marcus-qen/orchestra/internal/ops"
	"github.com/marcus-qen/orchestra/internal/registry"
	"github.com/marcus-qen/orchestra/internal/sharedfile"
	"github.com/marcus-qen/orchestra/internal/store"
	"github.com/marcus-qen/orchestra/internal/tools"
	"github.com/marcus-qen/orchestra/internal/topology"
)

// Deps collects every subsystem the dashboard wraps. All fields except
// Store, Bus and Logger may be nil when the corresponding feature is
// unavailable; handlers degrade to a 503 rather than panic.
type Deps struct {
	Store       *store.Store
	Audit       *audit.Sink
	Status      *agentstatus.Store
	SharedFiles *sharedfile.Store
	Ops         *ops.Store
	Executor    *cardexec.Executor
	Topology    *topology.Engine
	Tasks       *coord.TaskStore
	Approvals   *coord.ApprovalStore
	Locks       *coord.LockStore
	Registry    *registry.Store
	Monitor     *monitor.Monitor
	DBTool      *tools.DBTool
	MCP         *mcpserver.MCPServer
	Bus         *events.Bus
	Logger      *zap.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg    config.Config
	logger *zap.Logger

	store       *store.Store
	auditSink   *audit.Sink
	statusStore *agentstatus.Store
	fileStore   *sharedfile.Store
	opsStore    *ops.Store
	executor    *cardexec.Executor
	topo        *topology.Engine
	tasks       *coord.TaskStore
	approvals   *coord.ApprovalStore
	locks       *coord.LockStore
	roster      *registry.Store
	mon         *monitor.Monitor
	dbTool      *tools.DBTool
	mcp         *mcpserver.MCPServer
	bus         *events.Bus

	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
}

// New builds a dashboard Server from cfg and deps.
func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      deps.Logger,
		store:       deps.Store,
		auditSink:   deps.Audit,
		statusStore: deps.Status,
		fileStore:   deps.SharedFiles,
		opsStore:    deps.Ops,
		executor:    deps.Executor,
		topo:        deps.Topology,
		tasks:       deps.Tasks,
		approvals:   deps.Approvals,
		locks:       deps.Locks,
		roster:      deps.Registry,
		mon:         deps.Monitor,
		dbTool:      deps.DBTool,
		mcp:         deps.MCP,
		bus:         deps.Bus,
		mux:         http.NewServeMux(),
	}

	s.registerRoutes()

	var handler http.Handler = s.mux
	handler = s.basicAuthMiddleware(handler)
	handler = maxBodySizeMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generous: /api/events/stream holds connections open
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// route registers a handler under both the bare mux (so Go 1.22+
// method-aware patterns apply) and the observability middleware.
func (s *Server) route(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, observabilityMiddleware(pattern, handler))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /", s.handleConfigPage)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	if s.mcp != nil {
		s.mux.Handle("GET /mcp", s.mcp.Handler())
		s.mux.Handle("POST /mcp", s.mcp.Handler())
	}

	s.route("GET /api/events/stream", s.handleEventsStream)

	s.registerAuditRoutes()
	s.registerAgentStatusRoutes()
	s.registerSharedFileRoutes()
	s.registerOpsRoutes()
	s.registerCardExecRoutes()
	s.registerTopologyRoutes()
	s.registerCoordRoutes()
	s.registerRegistryRoutes()
	s.registerDBRoutes()
}

// handleHealth is pure liveness: it never touches the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReady runs SELECT 1 against the store and reports latency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	latency, err := s.store.Ready(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok": false, "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "latency_ms": latency.Milliseconds(),
	})
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler, for embedding in tests or a
// parent mux without starting a listener. It runs the same middleware
// chain (auth, body-size limiting) as the real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
