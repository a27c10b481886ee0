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

	"github.com/marcus-qen/orchestra/internal/cardexec"
	"github.com/marcus-qen/orchestra/internal/ops"
)

var commandCardActions = []string{
	"save", "get", "list", "toggle",
	"prepare", "review", "exec_run", "exec", "get_run", "list_runs",
}

// CommandCardTool exposes command-card CRUD plus the prepare/review/
// exec execution pipeline to agents.
type CommandCardTool struct {
	ops      *ops.Store
	executor *cardexec.Executor
}

// NewCommandCardTool returns a CommandCardTool backed by opsStore and
// executor.
func NewCommandCardTool(opsStore *ops.Store, executor *cardexec.Executor) *CommandCardTool {
	return &CommandCardTool{ops: opsStore, executor: executor}
}

func (c *CommandCardTool) Name() string { return "command_card" }
func (c *CommandCardTool) Description() string {
	return "Define reusable shell command cards and run them through a review/execute pipeline."
}
func (c *CommandCardTool) Actions() []string { return commandCardActions }

func (c *CommandCardTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "save":
		return c.save(ctx, args)
	case "get":
		return c.get(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "toggle":
		return c.toggle(ctx, args)
	case "prepare":
		return c.prepare(ctx, args)
	case "review":
		return c.review(ctx, args)
	case "exec_run":
		return c.execRun(ctx, args)
	case "exec":
		return c.exec(ctx, args)
	case "get_run":
		return c.getRun(ctx, args)
	case "list_runs":
		return c.listRuns(ctx, args)
	default:
		return InvalidAction(c.Name(), action, commandCardActions)
	}
}

// --- CRUD ---------------------------------------------------------------

func (c *CommandCardTool) save(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "card_key")
	if key == "" {
		return Err("command_card: card_key must not be empty")
	}
	saved, err := c.ops.SaveCommandCard(ctx, ops.CommandCard{
		CardKey:         key,
		Title:           argString(args, "title"),
		Description:     argString(args, "description"),
		CommandTemplate: argString(args, "command_template"),
		ArgsSchema:      argMap(args, "args_schema"),
		RiskLevel:       argString(args, "risk_level"),
		Enabled:         argBool(args, "enabled"),
	}, argString(args, "actor"))
	if err != nil {
		return Err("command_card: save failed: %v", err)
	}
	return Ok(map[string]any{"command_card": saved})
}

func (c *CommandCardTool) get(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "card_key")
	card, ok, err := c.ops.GetCommandCard(ctx, key)
	if err != nil {
		return Err("command_card: get failed: %v", err)
	}
	if !ok {
		return Err("command_card: not found: %s", key)
	}
	return Ok(map[string]any{"command_card": card})
}

func (c *CommandCardTool) list(ctx context.Context, args map[string]any) Envelope {
	out, err := c.ops.ListCommandCards(ctx, argString(args, "keyword"), argInt(args, "limit", 0))
	if err != nil {
		return Err("command_card: list failed: %v", err)
	}
	return Ok(map[string]any{"command_cards": out, "count": len(out)})
}

func (c *CommandCardTool) toggle(ctx context.Context, args map[string]any) Envelope {
	key := argString(args, "card_key")
	if key == "" {
		return Err("command_card: card_key must not be empty")
	}
	if err := c.ops.ToggleCommandCard(ctx, key, argBool(args, "enabled"), argString(args, "actor")); err != nil {
		return Err("command_card: toggle failed: %v", err)
	}
	return Ok(nil)
}

// --- execution pipeline --------------------------------------------------

func (c *CommandCardTool) prepare(ctx context.Context, args map[string]any) Envelope {
	res, err := c.executor.PrepareRun(ctx, argString(args, "card_key"), args["params"],
		argString(args, "requested_by"), requireReviewArg(args))
	if err != nil {
		return Err("command_card: prepare failed: %v", err)
	}
	return runEnvelope(res.OK, res.Message, map[string]any{
		"needs_review":      res.NeedsReview,
		"dangerous_command": res.DangerousCommand,
		"dangerous_pattern": res.DangerousPattern,
		"run":               res.Run,
		"interaction":       res.Interaction,
	})
}

func (c *CommandCardTool) review(ctx context.Context, args map[string]any) Envelope {
	runID := argInt(args, "run_id", 0)
	if runID == 0 {
		return Err("command_card: review requires run_id")
	}
	res, err := c.executor.ReviewRun(ctx, int64(runID), argString(args, "decision"), argString(args, "reviewer"), argString(args, "note"))
	if err != nil {
		return Err("command_card: review failed: %v", err)
	}
	return runEnvelope(res.OK, res.Message, map[string]any{"run": res.Run})
}

func (c *CommandCardTool) execRun(ctx context.Context, args map[string]any) Envelope {
	runID := argInt(args, "run_id", 0)
	if runID == 0 {
		return Err("command_card: exec_run requires run_id")
	}
	res, err := c.executor.ExecuteRun(ctx, int64(runID), argString(args, "actor"), argIntPtr(args, "timeout_sec"), argIntPtr(args, "output_limit"))
	if err != nil {
		return Err("command_card: exec_run failed: %v", err)
	}
	return runEnvelope(res.OK, res.Message, map[string]any{"run": res.Run, "execution_mode": res.ExecutionMode})
}

func (c *CommandCardTool) exec(ctx context.Context, args map[string]any) Envelope {
	res, err := c.executor.ExecuteCard(ctx, argString(args, "card_key"), args["params"],
		argString(args, "requested_by"), argBool(args, "auto_approve"),
		argString(args, "reviewer"), argString(args, "note"), argIntPtr(args, "timeout_sec"), argIntPtr(args, "output_limit"))
	if err != nil {
		return Err("command_card: exec failed: %v", err)
	}
	return runEnvelope(res.OK, res.Message, map[string]any{"run": res.Run, "execution_mode": res.ExecutionMode})
}

func (c *CommandCardTool) getRun(ctx context.Context, args map[string]any) Envelope {
	runID := argInt(args, "run_id", 0)
	if runID == 0 {
		return Err("command_card: get_run requires run_id")
	}
	run, ok, err := c.executor.GetRun(ctx, int64(runID))
	if err != nil {
		return Err("command_card: get_run failed: %v", err)
	}
	if !ok {
		return Err("command_card: run not found: %d", runID)
	}
	return Ok(map[string]any{"run": run})
}

func (c *CommandCardTool) listRuns(ctx context.Context, args map[string]any) Envelope {
	out, err := c.executor.ListRuns(ctx, cardexec.RunFilter{
		CardKey:     argString(args, "card_key"),
		Status:      argString(args, "status"),
		RequestedBy: argString(args, "requested_by"),
		Limit:       argInt(args, "limit", 0),
	})
	if err != nil {
		return Err("command_card: list_runs failed: %v", err)
	}
	return Ok(map[string]any{"runs": out, "count": len(out)})
}

func requireReviewArg(args map[string]any) *bool {
	if _, ok := args["require_review"]; !ok {
		return nil
	}
	return argBoolPtr(args, "require_review")
}

// runEnvelope folds a cardexec {ok, message, ...} result into an
// Envelope, surfacing message as Error on failure so agents can branch
// on ok without re-parsing Data.
func runEnvelope(ok bool, message string, data map[string]any) Envelope {
	if !ok {
		return Envelope{OK: false, Error: message, Data: data}
	}
	return Ok(data)
}

var _ Tool = (*CommandCardTool)(nil)
