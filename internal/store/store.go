// Package store is the orchestration bus's single durable backing store.
// Every other component reads and writes through a *Store; nothing else
// opens a database connection of its own.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/store/migration"
)

//go:embed migrations_embed
var embeddedMigrations embed.FS

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store owns the connection pool and guarantees the schema is migrated
// before any query runs against it.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu          sync.Mutex
	schemaReady bool
}

// Options configures Store construction.
type Options struct {
	DSN          string
	SchemaName   string // defaults to "public"
	MigrationsFS fs.FS  // defaults to the embedded migrations
	Logger       *zap.Logger
}

// Open validates the schema name, opens a pooled connection, and applies
// any pending migrations before returning. ensure_schema() is folded into
// Open rather than deferred to first query, since the embedded migration
// set never changes at runtime.
func Open(ctx context.Context, opts Options) (*Store, error) {
	schema := opts.SchemaName
	if schema == "" {
		schema = "public"
	}
	if !identifierRE.MatchString(schema) {
		return nil, fmt.Errorf("store: invalid schema name %q", schema)
	}
	if opts.DSN == "" {
		return nil, errors.New("store: DSN is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	migrationsFS := opts.MigrationsFS
	if migrationsFS == nil {
		sub, err := fs.Sub(embeddedMigrations, "migrations_embed")
		if err != nil {
			return nil, fmt.Errorf("store: embedded migrations: %w", err)
		}
		migrationsFS = sub
	}

	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", pgx.Identifier{schema}.Sanitize()))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}

	applied, err := migration.Up(ctx, opts.DSN, migrationsFS)
	if err != nil && !errors.Is(err, migration.ErrNoMigrations) {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if applied > 0 {
		logger.Info("applied schema migrations", zap.Int("count", applied))
	}

	return &Store{pool: pool, logger: logger, schemaReady: true}, nil
}

// Close releases the pool. Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// Pool exposes the underlying pgx pool for components that need typed
// query helpers beyond Exec/Query/QueryRow (e.g. batch operations).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Exec runs a statement and returns the affected row count.
func (s *Store) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query runs a statement and returns rows; callers must close them.
func (s *Store) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.pool.Query(ctx, sql, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.pool.QueryRow(ctx, sql, args...)
}

// BeginTx starts a transaction with the given options.
func (s *Store) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return s.pool.BeginTx(ctx, opts)
}

// ReadWriteTx returns the default read-write transaction options, for
// callers that want to name the intent explicitly at the call site.
func ReadWriteTx() pgx.TxOptions {
	return pgx.TxOptions{}
}

// WithReadOnlyTx runs fn inside a READ ONLY transaction, matching the
// connect_cursor(read_only=True) contract: autocommit is off, a plain
// read-only transaction wraps the call, and it is guaranteed to roll back.
func (s *Store) WithReadOnlyTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

// Ready runs a trivial liveness query and reports its latency.
func (s *Store) Ready(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return time.Since(start), err
	}
	return time.Since(start), nil
}
