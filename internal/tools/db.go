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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcus-qen/orchestra/internal/store"
)

var dbActions = []string{"query", "execute"}

// DBTool exposes guarded, ad-hoc SQL access to agents: read-only
// queries against any table, and writes restricted to the bus's own
// operational tables. An optional DiagnosticsMirror lets "query"
// target a secondary read-only analytics database instead.
type DBTool struct {
	store          *store.Store
	diagnostics    *DiagnosticsMirror
	executeEnabled bool
}

// NewDBTool returns a DBTool backed by st. diagnostics may be nil when
// no secondary analytics mirror is configured. executeEnabled gates
// the "execute" action, which is off by default at the configuration
// layer (see config.Config.DBExecuteEnabled).
func NewDBTool(st *store.Store, diagnostics *DiagnosticsMirror, executeEnabled bool) *DBTool {
	return &DBTool{store: st, diagnostics: diagnostics, executeEnabled: executeEnabled}
}

func (d *DBTool) Name() string        { return "db" }
func (d *DBTool) Description() string { return "Run guarded read-only or whitelisted-write SQL." }
func (d *DBTool) Actions() []string   { return dbActions }

func (d *DBTool) Execute(ctx context.Context, action string, args map[string]any) Envelope {
	switch action {
	case "query":
		return d.query(ctx, args)
	case "execute":
		return d.execute(ctx, args)
	default:
		return InvalidAction(d.Name(), action, dbActions)
	}
}

func (d *DBTool) query(ctx context.Context, args map[string]any) Envelope {
	body, err := store.ValidateReadOnlyQuery(argString(args, "sql"))
	if err != nil {
		return Err("db: %v", err)
	}
	limit := store.NormalizeLimit(argInt(args, "limit", 0), 200, 1000)

	if argString(args, "target") == "mysql" {
		return d.queryDiagnostics(ctx, body, limit)
	}

	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS t LIMIT %d", body, limit)

	var out []map[string]any
	err = d.store.WithReadOnlyTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, wrapped)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = rowsToMaps(rows, limit)
		return err
	})
	if err != nil {
		return Err("db: query failed: %v", err)
	}
	return Ok(map[string]any{"rows": out, "count": len(out)})
}

func (d *DBTool) queryDiagnostics(ctx context.Context, body string, limit int) Envelope {
	if d.diagnostics == nil {
		return Err("db: no diagnostics mirror configured (set DIAGNOSTICS_MYSQL_DSN)")
	}
	out, err := d.diagnostics.query(ctx, body, limit)
	if err != nil {
		return Err("db: diagnostics query failed: %v", err)
	}
	return Ok(map[string]any{"rows": out, "count": len(out), "target": "mysql"})
}

func (d *DBTool) execute(ctx context.Context, args map[string]any) Envelope {
	if !d.executeEnabled {
		return Err("db: execute is disabled (set db_execute_enabled to turn it on)")
	}
	body, err := store.ValidateExecuteQuery(argString(args, "sql"))
	if err != nil {
		return Err("db: %v", err)
	}
	affected, err := d.store.Exec(ctx, body)
	if err != nil {
		return Err("db: execute failed: %v", err)
	}
	return Ok(map[string]any{"rows_affected": affected})
}

// rowsToMaps materializes up to limit rows keyed by column name. The
// guard above already restricts the statement shape; this just avoids
// leaking raw driver types back to the caller.
func rowsToMaps(rows pgx.Rows, limit int) ([]map[string]any, error) {
	cols := rows.FieldDescriptions()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		if len(out) >= limit {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(values) {
				row[name] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ Tool = (*DBTool)(nil)
