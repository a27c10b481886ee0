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

var lockActions = []string{"acquire", "release", "list", "force_release"}

// LockTool exposes named exclusive resource locks to agents.
type LockTool struct {
	store *coord.LockStore
}

// NewLockTool returns a LockTool backed by store.
func NewLockTool(store *coord.LockStore) *LockTool { return &LockTool{store: store} }

func (l *LockTool) Name() string        { return "lock" }
func (l *LockTool) Description() string { return "Acquire, release, and inspect named resource locks." }
func (l *LockTool) Actions() []string   { return lockActions }

func (l *LockTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "acquire":
		return l.acquire(ctx, args)
	case "release":
		return l.release(ctx, args)
	case "list":
		return l.list(ctx)
	case "force_release":
		return l.forceRelease(ctx, args)
	default:
		return InvalidAction(l.Name(), action, lockActions)
	}
}

func (l *LockTool) acquire(ctx context.Context, args map[string]any) Envelope {
	resource := argString(args, "resource")
	if resource == "" {
		return Err("lock: resource must not be empty")
	}
	res, err := l.store.Acquire(ctx, resource, argString(args, "owner"), argInt(args, "ttl_sec", 0))
	if err != nil {
		return Err("lock: acquire failed: %v", err)
	}
	if !res.OK {
		return Envelope{OK: false, Error: res.Message, Data: map[string]any{"lock": res.Lock}}
	}
	return Ok(map[string]any{"lock": res.Lock})
}

func (l *LockTool) release(ctx context.Context, args map[string]any) Envelope {
	res, err := l.store.Release(ctx, argString(args, "resource"), argString(args, "owner"))
	if err != nil {
		return Err("lock: release failed: %v", err)
	}
	if !res.OK {
		return Err("%s", res.Message)
	}
	return Ok(nil)
}

func (l *LockTool) list(ctx context.Context) Envelope {
	out, err := l.store.List(ctx)
	if err != nil {
		return Err("lock: list failed: %v", err)
	}
	return Ok(map[string]any{"locks": out, "count": len(out)})
}

func (l *LockTool) forceRelease(ctx context.Context, args map[string]any) Envelope {
	res, err := l.store.ForceRelease(ctx, argString(args, "resource"), argString(args, "actor"))
	if err != nil {
		return Err("lock: force_release failed: %v", err)
	}
	if !res.OK {
		return Err("%s", res.Message)
	}
	return Ok(nil)
}

var _ Tool = (*LockTool)(nil)
