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

	"github.com/marcus-qen/orchestra/internal/ops"
	"github.com/marcus-qen/orchestra/internal/registry"
)

var interactionActions = []string{"create", "list", "review", "roster", "register"}

// InteractionTool exposes agent-to-agent interaction records plus
// capability-registry discovery (roster/register) to agents.
type InteractionTool struct {
	ops      *ops.Store
	registry *registry.Store
}

// NewInteractionTool returns an InteractionTool backed by opsStore and
// registryStore.
func NewInteractionTool(opsStore *ops.Store, registryStore *registry.Store) *InteractionTool {
	return &InteractionTool{ops: opsStore, registry: registryStore}
}

func (i *InteractionTool) Name() string { return "interaction" }
func (i *InteractionTool) Description() string {
	return "Record agent-to-agent interactions, review them, and discover other agents."
}
func (i *InteractionTool) Actions() []string { return interactionActions }

func (i *InteractionTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "create":
		return i.create(ctx, args)
	case "list":
		return i.list(ctx, args)
	case "review":
		return i.review(ctx, args)
	case "roster":
		return i.roster(ctx)
	case "register":
		return i.register(ctx, args)
	default:
		return InvalidAction(i.Name(), action, interactionActions)
	}
}

func (i *InteractionTool) create(ctx context.Context, args map[string]any) Envelope {
	status := argString(args, "status")
	if status == "" {
		status = "pending"
	}
	it, err := i.ops.CreateInteraction(ctx,
		argString(args, "sender"), argString(args, "receiver"), argString(args, "msg_type"),
		argString(args, "thread_id"), argIntPtr64(args, "parent_id"), argBool(args, "requires_review"),
		argMap(args, "payload"), status)
	if err != nil {
		return Err("interaction: create failed: %v", err)
	}
	return Ok(map[string]any{"interaction": it})
}

func (i *InteractionTool) list(ctx context.Context, args map[string]any) Envelope {
	var requiresReview *bool
	if _, ok := args["requires_review"]; ok {
		requiresReview = argBoolPtr(args, "requires_review")
	}
	out, err := i.ops.ListInteractions(ctx, ops.InteractionFilter{
		ThreadID:       argString(args, "thread_id"),
		Sender:         argString(args, "sender"),
		Receiver:       argString(args, "receiver"),
		MsgType:        argString(args, "msg_type"),
		Status:         argString(args, "status"),
		RequiresReview: requiresReview,
		Limit:          argInt(args, "limit", 0),
	})
	if err != nil {
		return Err("interaction: list failed: %v", err)
	}
	return Ok(map[string]any{"rows": out, "count": len(out)})
}

func (i *InteractionTool) review(ctx context.Context, args map[string]any) Envelope {
	id := argInt(args, "interaction_id", 0)
	if id == 0 {
		return Err("interaction: review requires interaction_id")
	}
	it, ok, err := i.ops.ReviewInteraction(ctx, int64(id), argString(args, "status"), argString(args, "reviewer"), argString(args, "note"))
	if err != nil {
		return Err("interaction: review failed: %v", err)
	}
	if !ok {
		return Err("interaction: not found: %d", id)
	}
	return Ok(map[string]any{"interaction": it})
}

func (i *InteractionTool) roster(ctx context.Context) Envelope {
	out, err := i.registry.Roster(ctx)
	if err != nil {
		return Err("interaction: roster failed: %v", err)
	}
	return Ok(map[string]any{"agents": out, "count": len(out)})
}

func (i *InteractionTool) register(ctx context.Context, args map[string]any) Envelope {
	sender := argString(args, "sender")
	if sender == "" {
		return Err("interaction: register requires sender (agent_id)")
	}
	entry, err := i.registry.Register(ctx, sender, argString(args, "receiver"), argString(args, "content"))
	if err != nil {
		return Err("interaction: register failed: %v", err)
	}
	return Ok(map[string]any{"agent": entry})
}

func argIntPtr64(args map[string]any, key string) *int64 {
	if v := argIntPtr(args, key); v != nil {
		n := int64(*v)
		return &n
	}
	return nil
}

var _ Tool = (*InteractionTool)(nil)
