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
)

var promptTemplateActions = []string{"save", "get", "list", "toggle", "rollback"}

// PromptTemplateTool exposes versioned prompt templates to agents.
type PromptTemplateTool struct {
	store *ops.Store
}

// NewPromptTemplateTool returns a PromptTemplateTool backed by store.
func NewPromptTemplateTool(store *ops.Store) *PromptTemplateTool {
	return &PromptTemplateTool{store: store}
}

func (p *PromptTemplateTool) Name() string { return "prompt_template" }
func (p *PromptTemplateTool) Description() string {
	return "Save, fetch, list, enable/disable, and roll back prompt templates."
}
func (p *PromptTemplateTool) Actions() []string { return promptTemplateActions }

func (p *PromptTemplateTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "save":
		return p.save(ctx, args)
	case "get":
		return p.get(ctx, args)
	case "list":
		return p.list(ctx, args)
	case "toggle":
		return p.toggle(ctx, args)
	case "rollback":
		return p.rollback(ctx, args)
	default:
		return InvalidAction(p.Name(), action, promptTemplateActions)
	}
}

func (p *PromptTemplateTool) save(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "prompt_key")
	if key == "" {
		return Err("prompt_template: prompt_key must not be empty")
	}
	saved, err := p.store.SavePromptTemplate(ctx, ops.PromptTemplate{
		PromptKey:  key,
		Title:      argString(args, "title"),
		AgentKey:   argString(args, "agent_key"),
		ToolName:   argString(args, "tool_name"),
		PromptText: argString(args, "prompt_text"),
		Variables:  argMap(args, "variables"),
		Tags:       argStringSlice(args, "tags"),
		Enabled:    argBool(args, "enabled"),
	}, argString(args, "actor"))
	if err != nil {
		return Err("prompt_template: save failed: %v", err)
	}
	return Ok(map[string]any{"template": saved})
}

func (p *PromptTemplateTool) get(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "prompt_key")
	tmpl, ok, err := p.store.GetPromptTemplate(ctx, key)
	if err != nil {
		return Err("prompt_template: get failed: %v", err)
	}
	if !ok {
		return Err("prompt_template: not found: %s", key)
	}
	return Ok(map[string]any{"template": tmpl})
}

func (p *PromptTemplateTool) list(ctx context.Context, args map[string]any) Envelope {
	out, err := p.store.ListPromptTemplates(ctx, argString(args, "keyword"), argInt(args, "limit", 0))
	if err != nil {
		return Err("prompt_template: list failed: %v", err)
	}
	return Ok(map[string]any{"templates": out, "count": len(out)})
}

func (p *PromptTemplateTool) toggle(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "prompt_key")
	if key == "" {
		return Err("prompt_template: prompt_key must not be empty")
	}
	if err := p.store.TogglePromptTemplate(ctx, key, argBool(args, "enabled"), argString(args, "actor")); err != nil {
		return Err("prompt_template: toggle failed: %v", err)
	}
	return Ok(nil)
}

func (p *PromptTemplateTool) rollback(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "prompt_key")
	versionID := argInt(args, "version_id", 0)
	if key == "" || versionID == 0 {
		return Err("prompt_template: rollback requires prompt_key and version_id")
	}
	restored, err := p.store.RollbackPromptTemplate(ctx, key, int64(versionID), argString(args, "actor"))
	if err != nil {
		return Err("prompt_template: rollback failed: %v", err)
	}
	return Ok(map[string]any{"template": restored})
}

var _ Tool = (*PromptTemplateTool)(nil)
