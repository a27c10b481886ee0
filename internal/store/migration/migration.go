// Package migration applies ordered SQL migrations against the
// orchestration bus's Postgres schema.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5"
)

var filenameRE = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.sql$`)

// Migration describes one discovered SQL migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
}

// ErrNoMigrations is returned when a migration source contains no files.
var ErrNoMigrations = errors.New("migration: no migration files found")

// ParseFilename splits "0001_create_tasks.sql" into (1, "create_tasks").
// Filenames that don't match the NNNN_name.sql shape are rejected.
func ParseFilename(name string) (version int, base string, err error) {
	m := filenameRE.FindStringSubmatch(name)
	if m == nil {
		return 0, "", fmt.Errorf("invalid migration filename: %s", name)
	}
	var v int
	if _, err := fmt.Sscanf(m[1], "%04d", &v); err != nil {
		return 0, "", fmt.Errorf("invalid migration filename: %s", name)
	}
	return v, m[2], nil
}

// Discover reads every *.sql file in fsys, validates that versions are
// contiguous starting at 1 with no duplicates, and returns them in
// ascending version order.
func Discover(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	seen := map[int]string{}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		version, base, err := ParseFilename(name)
		if err != nil {
			continue // non-migration file (README, etc.) is ignored
		}
		if existing, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, existing, name)
		}
		seen[version] = name

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: base, Filename: name, SQL: string(data)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	for i, m := range out {
		expected := i + 1
		if m.Version != expected {
			return nil, fmt.Errorf("non-contiguous migration versions: expected version %d, got %d", expected, m.Version)
		}
	}

	return out, nil
}

// ensureTable creates the schema_migrations bookkeeping table if absent.
func ensureTable(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INT PRIMARY KEY,
			name        TEXT NOT NULL,
			filename    TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, conn *pgx.Conn) (map[int]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Up applies every pending migration from fsys against dsn using a single
// autocommit connection, matching the original migrator's one-statement-
// per-file-then-bookkeeping-row semantics. It returns how many were applied.
func Up(ctx context.Context, dsn string, fsys fs.FS) (int, error) {
	migrations, err := Discover(fsys)
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, ErrNoMigrations
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if err := ensureTable(ctx, conn); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("read applied versions: %w", err)
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if m.SQL == "" {
			return count, fmt.Errorf("migration SQL is empty: %s", m.Filename)
		}
		if _, err := conn.Exec(ctx, m.SQL); err != nil {
			return count, fmt.Errorf("apply %s: %w", m.Filename, err)
		}
		if _, err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, filename) VALUES ($1, $2, $3)`,
			m.Version, m.Name, m.Filename); err != nil {
			return count, fmt.Errorf("record %s: %w", m.Filename, err)
		}
		count++
	}

	return count, nil
}

// CurrentVersion returns the highest applied migration version, or 0 if
// the schema_migrations table hasn't been created yet.
func CurrentVersion(ctx context.Context, dsn string) (int, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return 0, err
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = 'schema_migrations'
		)
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	if err := conn.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
