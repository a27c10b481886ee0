// Package sharedfile implements the shared-file store: a flat,
// path-keyed text blob table shared between the operator, the master
// agent, and workers.
package sharedfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

// File is one shared-file row.
type File struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the shared-file persistence layer.
type Store struct {
	st    *store.Store
	audit *audit.Sink
}

// New returns a Store backed by st, emitting an audit event on every write.
func New(st *store.Store, auditSink *audit.Sink) *Store {
	return &Store{st: st, audit: auditSink}
}

// NormalizePath strips leading/trailing slashes and folds backslashes to
// forward slashes, matching the POSIX-style path convention every shared
// file path is stored under.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "", fmt.Errorf("sharedfile: path must not be empty")
	}
	return p, nil
}

// Write upserts the file at path, emitting an audit event.
func (s *Store) Write(ctx context.Context, path, content, updatedBy string) error {
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	_, err = s.st.Exec(ctx, `
		INSERT INTO shared_files (path, content, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (path) DO UPDATE SET
			content = EXCLUDED.content,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
	`, norm, content, updatedBy)
	if err != nil {
		return err
	}
	return s.audit.Append(ctx, audit.Event{
		EventType: "shared_file", Action: "write", Result: "ok", Actor: updatedBy, Target: norm,
	})
}

// Read returns the file at path, or ok=false if absent.
func (s *Store) Read(ctx context.Context, path string) (File, bool, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return File{}, false, err
	}
	var f File
	f.Path = norm
	err = s.st.QueryRow(ctx, `SELECT content, updated_by, created_at, updated_at FROM shared_files WHERE path = $1`, norm).
		Scan(&f.Content, &f.UpdatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return File{}, false, nil
	}
	return f, true, nil
}

// List returns files whose path starts with prefix (escaped LIKE), newest-first.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]File, error) {
	limit = store.NormalizeLimit(limit, 100, 1000)
	norm := ""
	if prefix != "" {
		var err error
		norm, err = NormalizePath(prefix)
		if err != nil {
			return nil, err
		}
	}

	sql := `SELECT path, content, updated_by, created_at, updated_at FROM shared_files WHERE 1=1`
	var args []any
	if norm != "" {
		args = append(args, store.EscapeLike(norm)+"%")
		sql += fmt.Sprintf(` AND path LIKE $%d ESCAPE '\'`, len(args))
	}
	sql += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", limit)

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Path, &f.Content, &f.UpdatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes the file at path, returning whether a row existed.
func (s *Store) Delete(ctx context.Context, path, actor string) (bool, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return false, err
	}
	n, err := s.st.Exec(ctx, `DELETE FROM shared_files WHERE path = $1`, norm)
	if err != nil {
		return false, err
	}
	deleted := n > 0
	if deleted {
		_ = s.audit.Append(ctx, audit.Event{
			EventType: "shared_file", Action: "delete", Result: "ok", Actor: actor, Target: norm,
		})
	}
	return deleted, nil
}
