package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolCallInput is the single input shape every registered MCP tool
// accepts: a whitelisted action name plus a free-form argument map.
// tools.Registry.Execute re-validates action against the target
// tool's own whitelist, so no schema-level enum is declared here.
type toolCallInput struct {
	Action string         `json:"action" jsonschema:"action to perform, see tool description for the allowed list"`
	Args   map[string]any `json:"args,omitempty" jsonschema:"action-specific arguments"`
}

// registeredToolNames lists every tool the bus exposes, in the order
// they're registered (cosmetic; MCP clients resolve by name).
var registeredToolNames = []string{
	"iterm", "shared_file", "interaction", "prompt_template",
	"command_card", "db", "task", "approval", "lock",
}

func (s *MCPServer) registerTools() {
	for _, name := range registeredToolNames {
		tool, ok := s.registry.Get(name)
		if !ok {
			s.logger.Sugar().Warnf("mcpserver: tool %q not registered in tools.Registry, skipping", name)
			continue
		}
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        name,
			Description: tool.Description(),
		}, s.dispatchHandler(name))
	}
}

// dispatchHandler returns an MCP tool handler that forwards every call
// for toolName straight into the shared registry and folds the
// resulting tools.Envelope into a CallToolResult.
func (s *MCPServer) dispatchHandler(toolName string) func(context.Context, *mcp.CallToolRequest, toolCallInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input toolCallInput) (*mcp.CallToolResult, any, error) {
		envelope := s.registry.Execute(ctx, toolName, input.Action, input.Args)
		return envelopeToolResult(envelope)
	}
}

// envelopeToolResult renders a tools.Envelope as MCP tool-call JSON
// text content. Tool-level failures (bad action, validation error,
// store error) come back as ok:false envelopes rather than Go errors,
// so the agent sees the structured reason instead of a bare RPC fault.
func envelopeToolResult(envelope any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("mcpserver: marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
