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

	"github.com/marcus-qen/orchestra/internal/sharedfile"
)

var sharedFileActions = []string{"write", "read", "list", "delete"}

// SharedFileTool exposes the shared text-blob store to agents.
type SharedFileTool struct {
	store *sharedfile.Store
}

// NewSharedFileTool returns a SharedFileTool backed by store.
func NewSharedFileTool(store *sharedfile.Store) *SharedFileTool { return &SharedFileTool{store: store} }

func (f *SharedFileTool) Name() string        { return "shared_file" }
func (f *SharedFileTool) Description() string { return "Read, write, list, and delete shared text files." }
func (f *SharedFileTool) Actions() []string   { return sharedFileActions }

func (f *SharedFileTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	actor := argString(args, "actor")
	path := argString(args, "path")

	switch action {
	case "write":
		if path == "" {
			return Err("shared_file: write requires path")
		}
		if err := f.store.Write(ctx, path, argString(args, "content"), actor); err != nil {
			return Err("shared_file: write failed: %v", err)
		}
		return Ok(nil)

	case "read":
		if path == "" {
			return Err("shared_file: read requires path")
		}
		file, ok, err := f.store.Read(ctx, path)
		if err != nil {
			return Err("shared_file: read failed: %v", err)
		}
		if !ok {
			return Err("shared_file: not found: %s", path)
		}
		return Ok(map[string]any{"file": file})

	case "list":
		out, err := f.store.List(ctx, path, argInt(args, "limit", 0))
		if err != nil {
			return Err("shared_file: list failed: %v", err)
		}
		return Ok(map[string]any{"files": out, "count": len(out)})

	case "delete":
		if path == "" {
			return Err("shared_file: delete requires path")
		}
		removed, err := f.store.Delete(ctx, path, actor)
		if err != nil {
			return Err("shared_file: delete failed: %v", err)
		}
		if !removed {
			return Err("shared_file: not found: %s", path)
		}
		return Ok(nil)

	default:
		return InvalidAction(f.Name(), action, sharedFileActions)
	}
}

var _ Tool = (*SharedFileTool)(nil)
