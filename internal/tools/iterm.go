/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"context"

	"github.com/marcus-qen/orchestra/internal/bridge"
)

var itermActions = []string{"list", "send", "read", "clean", "unregister", "clear_all"}

// ItermTool exposes terminal session management to agents: session
// discovery and IO (through a bridge.Bridge driver) plus the
// agent_id<->session_id registration bookkeeping that lets "send"/
// "read" address an agent by name instead of a raw session id.
type ItermTool struct {
	bridge    bridge.Bridge
	registrar *bridge.Registrar
}

// NewItermTool returns an ItermTool backed by b and registrar.
func NewItermTool(b bridge.Bridge, registrar *bridge.Registrar) *ItermTool {
	return &ItermTool{bridge: b, registrar: registrar}
}

func (i *ItermTool) Name() string { return "iterm" }
func (i *ItermTool) Description() string {
	return "List, send to, and read from agent terminal sessions; manage stale session bookkeeping."
}
func (i *ItermTool) Actions() []string { return itermActions }

func (i *ItermTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "list":
		return i.list(ctx)
	case "send":
		return i.send(ctx, args)
	case "read":
		return i.read(ctx, args)
	case "clean":
		return i.clean(ctx)
	case "unregister":
		return i.unregister(ctx, args)
	case "clear_all":
		return i.clearAll(ctx)
	default:
		return InvalidAction(i.Name(), action, itermActions)
	}
}

func (i *ItermTool) agentID(args map[string]any) string {
	if argBool(args, "all_agents") {
		return bridge.AllAgents
	}
	return argString(args, "agent_id")
}

func (i *ItermTool) list(ctx context.Context) Envelope {
	res, err := i.bridge.ListSessions(ctx)
	if err != nil {
		return Err("iterm: list failed: %v", err)
	}
	if !res.OK {
		return Err("%s", res.Error)
	}
	return Ok(map[string]any{"sessions": res.Sessions, "count": len(res.Sessions)})
}

func (i *ItermTool) send(ctx context.Context, args map[string]any) Envelope {
	text := argString(args, "text")
	if text == "" {
		return Err("iterm: send requires text")
	}
	res, err := i.bridge.SendInput(ctx, i.agentID(args), text, true, argFloat(args, "wait_sec", 0.4), argInt(args, "read_lines", 20))
	if err != nil {
		return Err("iterm: send failed: %v", err)
	}
	if !res.OK {
		return Err("%s", res.Error)
	}
	return Ok(map[string]any{"results": res.Results})
}

func (i *ItermTool) read(ctx context.Context, args map[string]any) Envelope {
	res, err := i.bridge.ReadOutput(ctx, i.agentID(args), argInt(args, "read_lines", 20))
	if err != nil {
		return Err("iterm: read failed: %v", err)
	}
	if !res.OK {
		return Err("%s", res.Error)
	}
	return Ok(map[string]any{"results": res.Results})
}

func (i *ItermTool) liveSessionIDs(ctx context.Context) []string {
	res, err := i.bridge.ListSessions(ctx)
	if err != nil || !res.OK {
		return nil
	}
	ids := make([]string, 0, len(res.Sessions))
	for _, s := range res.Sessions {
		if s.SessionID != "" {
			ids = append(ids, s.SessionID)
		}
	}
	return ids
}

func (i *ItermTool) clean(ctx context.Context) Envelope {
	removed, remaining, err := i.registrar.Clean(ctx, i.liveSessionIDs(ctx))
	if err != nil {
		return Err("iterm: clean failed: %v", err)
	}
	return Ok(map[string]any{"removed": removed, "remaining": remaining})
}

func (i *ItermTool) unregister(ctx context.Context, args map[string]any) Envelope {
	agentID := argString(args, "agent_id")
	if agentID == "" {
		return Err("iterm: unregister requires agent_id")
	}
	n, err := i.registrar.Unregister(ctx, agentID)
	if err != nil {
		return Err("iterm: unregister failed: %v", err)
	}
	return Ok(map[string]any{"removed": n})
}

func (i *ItermTool) clearAll(ctx context.Context) Envelope {
	n, err := i.registrar.ClearAll(ctx)
	if err != nil {
		return Err("iterm: clear_all failed: %v", err)
	}
	return Ok(map[string]any{"removed": n})
}

var _ Tool = (*ItermTool)(nil)
