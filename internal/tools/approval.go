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

	"github.com/marcus-qen/orchestra/internal/coord"
)

var approvalActions = []string{"request", "respond", "list", "get"}

// ApprovalTool exposes in-tool approval requests to agents, distinct
// from the separate topology-change approval workflow.
type ApprovalTool struct {
	store *coord.ApprovalStore
}

// NewApprovalTool returns an ApprovalTool backed by store.
func NewApprovalTool(store *coord.ApprovalStore) *ApprovalTool { return &ApprovalTool{store: store} }

func (a *ApprovalTool) Name() string        { return "approval" }
func (a *ApprovalTool) Description() string { return "Request and resolve in-tool approval decisions." }
func (a *ApprovalTool) Actions() []string   { return approvalActions }

func (a *ApprovalTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "request":
		return a.request(ctx, args)
	case "respond":
		return a.respond(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "get":
		return a.get(ctx, args)
	default:
		return InvalidAction(a.Name(), action, approvalActions)
	}
}

func (a *ApprovalTool) request(ctx context.Context, args map[string]any) Envelope {
	title := argString(args, "title")
	if title == "" {
		return Err("approval: title must not be empty")
	}
	created, err := a.store.Request(ctx,
		argString(args, "requester"), argString(args, "target_agent"), title,
		argString(args, "description"), argStringSlice(args, "options"))
	if err != nil {
		return Err("approval: request failed: %v", err)
	}
	return Ok(map[string]any{"approval": created})
}

func (a *ApprovalTool) respond(ctx context.Context, args map[string]any) Envelope {
	res, err := a.store.Respond(ctx,
		argString(args, "approval_id"), argString(args, "decision"),
		argString(args, "approver"), argString(args, "reason"))
	if err != nil {
		return Err("approval: respond failed: %v", err)
	}
	if !res.OK {
		return Err("%s", res.Message)
	}
	return Ok(map[string]any{"approval": res.Approval})
}

func (a *ApprovalTool) list(ctx context.Context, args map[string]any) Envelope {
	out, err := a.store.List(ctx, coord.ApprovalFilter{
		Status:      argString(args, "status"),
		TargetAgent: argString(args, "target_agent"),
		Limit:       argInt(args, "limit", 0),
	})
	if err != nil {
		return Err("approval: list failed: %v", err)
	}
	return Ok(map[string]any{"approvals": out, "count": len(out)})
}

func (a *ApprovalTool) get(ctx context.Context, args map[string]any) Envelope {
	id := argString(args, "approval_id")
	approval, ok, err := a.store.Get(ctx, id)
	if err != nil {
		return Err("approval: get failed: %v", err)
	}
	if !ok {
		return Err("approval: not found: %s", id)
	}
	return Ok(map[string]any{"approval": approval})
}

var _ Tool = (*ApprovalTool)(nil)
