// Package mcpserver exposes the bus's nine agent-facing tools over MCP.
// One mcp.Tool is registered per tool name (iterm, shared_file,
// interaction, prompt_template, command_card, db, task, approval,
// lock); each accepts an action field plus a free-form argument map
// and dispatches through the shared tools.Registry.
package mcpserver

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/tools"
)

// Version is injected from build metadata.
var Version = "dev"

// MCPServer wires the tool registry onto an MCP SSE transport.
type MCPServer struct {
	server   *mcp.Server
	handler  http.Handler
	registry *tools.Registry
	logger   *zap.Logger
}

// New builds an MCPServer that dispatches every registered tool action
// through registry.
func New(registry *tools.Registry, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "orchestra",
		Version: Version,
	}, nil)

	m := &MCPServer{
		server:   srv,
		registry: registry,
		logger:   logger.Named("mcp"),
	}
	m.registerTools()
	m.handler = mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return m.server
	}, nil)

	return m
}

// Handler returns the HTTP SSE transport handler mounted at /mcp.
func (s *MCPServer) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.handler
}
