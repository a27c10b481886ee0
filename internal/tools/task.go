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

var taskActions = []string{"create", "list", "get", "update", "assign", "ready", "progress", "cancel"}

// TaskTool exposes the task DAG (create/list/get/update/assign/ready/
// progress/cancel) to agents.
type TaskTool struct {
	store *coord.TaskStore
}

// NewTaskTool returns a TaskTool backed by store.
func NewTaskTool(store *coord.TaskStore) *TaskTool { return &TaskTool{store: store} }

func (t *TaskTool) Name() string        { return "task" }
func (t *TaskTool) Description() string { return "Create, inspect, and update tasks in the coordination DAG." }
func (t *TaskTool) Actions() []string   { return taskActions }

func (t *TaskTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "create":
		return t.create(ctx, args)
	case "list":
		return t.list(ctx, args)
	case "get":
		return t.get(ctx, args)
	case "update":
		return t.update(ctx, args, nil)
	case "assign":
		assignee := argString(args, "assignee")
		return t.update(ctx, args, &assignee)
	case "ready":
		return t.ready(ctx, args)
	case "progress":
		return t.progress(ctx, args)
	case "cancel":
		return t.cancel(ctx, args)
	default:
		return InvalidAction(t.Name(), action, taskActions)
	}
}

func (t *TaskTool) create(ctx context.Context, args map[string]any) Envelope {
	task := coord.Task{
		Title:          argString(args, "title"),
		Description:    argString(args, "description"),
		Creator:        argString(args, "creator"),
		Assignee:       argString(args, "assignee"),
		Priority:       argString(args, "priority"),
		Status:         argString(args, "status"),
		Result:         argString(args, "result"),
		ProjectID:      argString(args, "project_id"),
		DependsOn:      argStringSlice(args, "depends_on"),
		TimeoutSec:     argInt(args, "timeout_sec", 0),
		MaxRetries:     argInt(args, "max_retries", 0),
		IdempotencyKey: argString(args, "idempotency_key"),
	}
	if task.Title == "" {
		return Err("task: title must not be empty")
	}
	created, dedup, err := t.store.CreateTask(ctx, task)
	if err != nil {
		return Err("task: create failed: %v", err)
	}
	return Ok(map[string]any{"task": created, "deduplicated": dedup})
}

func (t *TaskTool) list(ctx context.Context, args map[string]any) Envelope {
	out, err := t.store.ListTasks(ctx, coord.TaskFilter{
		Status:    argString(args, "status"),
		Assignee:  argString(args, "assignee"),
		ProjectID: argString(args, "project_id"),
		Limit:     argInt(args, "limit", 0),
	})
	if err != nil {
		return Err("task: list failed: %v", err)
	}
	return Ok(map[string]any{"tasks": out, "count": len(out)})
}

func (t *TaskTool) get(ctx context.Context, args map[string]any) Envelope {
	taskID := argString(args, "task_id")
	task, ok, err := t.store.GetTask(ctx, taskID)
	if err != nil {
		return Err("task: get failed: %v", err)
	}
	if !ok {
		return Err("task: not found: %s", taskID)
	}
	return Ok(map[string]any{"task": task})
}

func (t *TaskTool) update(ctx context.Context, args map[string]any, assigneeOverride *string) Envelope {
	taskID := argString(args, "task_id")
	status := argStringPtr(args, "status")
	result := argStringPtr(args, "result")
	assignee := argStringPtr(args, "assignee")
	if assigneeOverride != nil {
		assignee = assigneeOverride
	}
	res, err := t.store.UpdateTask(ctx, taskID, status, result, assignee)
	if err != nil {
		return Err("task: update failed: %v", err)
	}
	return envelopeFromUpdate(res)
}

func (t *TaskTool) ready(ctx context.Context, args map[string]any) Envelope {
	out, err := t.store.ListReady(ctx, argInt(args, "limit", 0))
	if err != nil {
		return Err("task: ready failed: %v", err)
	}
	return Ok(map[string]any{"tasks": out, "count": len(out)})
}

func (t *TaskTool) progress(ctx context.Context, args map[string]any) Envelope {
	inProgress := "in_progress"
	result := argStringPtr(args, "result")
	res, err := t.store.UpdateTask(ctx, argString(args, "task_id"), &inProgress, result, nil)
	if err != nil {
		return Err("task: progress failed: %v", err)
	}
	return envelopeFromUpdate(res)
}

func (t *TaskTool) cancel(ctx context.Context, args map[string]any) Envelope {
	cancelled := "cancelled"
	result := argStringPtr(args, "result")
	res, err := t.store.UpdateTask(ctx, argString(args, "task_id"), &cancelled, result, nil)
	if err != nil {
		return Err("task: cancel failed: %v", err)
	}
	return envelopeFromUpdate(res)
}

func envelopeFromUpdate(res coord.UpdateResult) Envelope {
	if !res.OK {
		return Err("%s", res.Message)
	}
	return Ok(map[string]any{"task": res.Task, "auto_retried": res.AutoRetried})
}

var _ Tool = (*TaskTool)(nil)
