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
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// DiagnosticsMirror is an optional secondary read-only database the db
// tool's "query" action can target with target="mysql". It never
// backs "execute" and never substitutes for the mandated Postgres
// store — it exists purely so an operator can point the bus at a read
// replica or analytics mirror for cross-store diagnostics queries.
type DiagnosticsMirror struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

// NewDiagnosticsMirror opens a MySQL connection pool against dsn. Pass
// an empty dsn (or a nil *DiagnosticsMirror) to leave diagnostics
// queries disabled.
func NewDiagnosticsMirror(dsn string) (*DiagnosticsMirror, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &DiagnosticsMirror{db: db, maxRows: 1000, timeout: 30 * time.Second}, nil
}

func (m *DiagnosticsMirror) query(ctx context.Context, sqlText string, limit int) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if limit <= 0 || limit > m.maxRows {
		limit = m.maxRows
	}

	rows, err := m.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		if len(out) >= limit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
