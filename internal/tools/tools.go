/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package tools provides the dispatch scaffolding shared by the nine
// tools the bus exposes to agents (iterm, shared_file, interaction,
// prompt_template, command_card, db, task, approval, lock).
//
// Each tool accepts a single "action" field plus a free-form argument
// map, validates the action against a fixed whitelist, and delegates
// to a typed handler. Handlers never see an action they didn't
// whitelist; Registry never sees handler internals.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Envelope is the uniform result shape returned to the calling agent.
// Handlers populate Data on success; Error is set on failure, and some
// failures (command_card runs, lock acquire) also carry Data describing
// the refused attempt. Neither field is a substitute for a Go error return —
// Envelope carries outcomes the agent needs to see, a Go error carries
// outcomes that indicate the bus itself misbehaved.
type Envelope struct {
	OK    bool `json:"ok"`
	Data  any  `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Ok wraps data in a successful envelope.
func Ok(data any) Envelope { return Envelope{OK: true, Data: data} }

// Err wraps a message in a failed envelope.
func Err(format string, args ...any) Envelope {
	return Envelope{OK: false, Error: fmt.Sprintf(format, args...)}
}

// Tool is the interface every dispatch-style tool implements.
type Tool interface {
	// Name returns the tool's identifier (e.g. "task", "shared_file").
	Name() string

	// Description returns a human-readable description for the agent.
	Description() string

	// Actions lists the whitelisted action values this tool accepts.
	Actions() []string

	// Execute validates action against the whitelist and runs it with
	// the given arguments, returning the result envelope.
	Execute(ctx context.Context, action string, args map[string]any) Envelope
}

// InvalidAction returns the standard envelope for an action outside a
// tool's whitelist, naming the offending tool so the error is
// traceable from the agent side.
func InvalidAction(toolName, action string, allowed []string) Envelope {
	return Err("%s: unsupported action %q (allowed: %v)", toolName, action, allowed)
}

// Registry holds every tool exposed to agents for a running bus.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute runs a tool action by tool name, returning the not-found
// envelope if name isn't registered.
func (r *Registry) Execute(ctx context.Context, name, action string, args map[string]any) Envelope {
	tool, ok := r.Get(name)
	if !ok {
		return Err("unknown tool %q", name)
	}
	return tool.Execute(ctx, action, args)
}
