package coord

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

const minLockTTLSec = 30

// ResourceLock is one held or expired exclusive lock on a named
// resource. A lock with ExpiresAt in the past is logically absent.
type ResourceLock struct {
	Resource   string     `json:"resource"`
	Owner      string     `json:"owner"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RenewedAt  *time.Time `json:"renewed_at,omitempty"`
}

const lockCols = `resource, owner, acquired_at, expires_at, renewed_at`

func scanLock(row interface{ Scan(dest ...any) error }) (ResourceLock, error) {
	var l ResourceLock
	if err := row.Scan(&l.Resource, &l.Owner, &l.AcquiredAt, &l.ExpiresAt, &l.RenewedAt); err != nil {
		return ResourceLock{}, err
	}
	return l, nil
}

// LockStore is the resource-lock persistence layer.
type LockStore struct {
	st    *store.Store
	audit *audit.Sink
}

// NewLockStore returns a LockStore backed by st.
func NewLockStore(st *store.Store, auditSink *audit.Sink) *LockStore {
	return &LockStore{st: st, audit: auditSink}
}

// evictExpired deletes every lock whose expires_at has passed.
func (s *LockStore) evictExpired(ctx context.Context) error {
	_, err := s.st.Exec(ctx, `DELETE FROM resource_locks WHERE expires_at < NOW()`)
	return err
}

// AcquireResult is the outcome of Acquire.
type AcquireResult struct {
	OK      bool          `json:"ok"`
	Message string        `json:"message,omitempty"`
	Lock    *ResourceLock `json:"lock,omitempty"`
}

// Acquire takes resource for owner for ttlSec seconds (minimum 30s). A
// same-owner call renews the expiry; a different-owner call on a live
// lock fails and reports the current holder.
func (s *LockStore) Acquire(ctx context.Context, resource, owner string, ttlSec int) (AcquireResult, error) {
	if err := s.evictExpired(ctx); err != nil {
		return AcquireResult{}, err
	}
	if ttlSec < minLockTTLSec {
		ttlSec = minLockTTLSec
	}

	existing, ok, err := s.Get(ctx, resource)
	if err != nil {
		return AcquireResult{}, err
	}
	if ok && existing.Owner != owner {
		return AcquireResult{OK: false, Message: fmt.Sprintf("resource held by %s", existing.Owner), Lock: &existing}, nil
	}

	if ok {
		row := s.st.QueryRow(ctx, `
			UPDATE resource_locks SET expires_at = NOW() + make_interval(secs => $1), renewed_at = NOW()
			WHERE resource = $2
			RETURNING `+lockCols, ttlSec, resource)
		renewed, err := scanLock(row)
		if err != nil {
			return AcquireResult{}, err
		}
		_ = s.audit.Append(ctx, audit.Event{EventType: "lock", Action: "renew", Result: "ok", Actor: owner, Target: resource})
		return AcquireResult{OK: true, Lock: &renewed}, nil
	}

	row := s.st.QueryRow(ctx, `
		INSERT INTO resource_locks (resource, owner, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (resource) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at, acquired_at = NOW(), renewed_at = NULL
		RETURNING `+lockCols, resource, owner, ttlSec)
	acquired, err := scanLock(row)
	if err != nil {
		return AcquireResult{}, err
	}
	_ = s.audit.Append(ctx, audit.Event{EventType: "lock", Action: "acquire", Result: "ok", Actor: owner, Target: resource})
	return AcquireResult{OK: true, Lock: &acquired}, nil
}

// ReleaseResult is the outcome of Release.
type ReleaseResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Release drops resource's lock, requiring owner to match the current
// holder.
func (s *LockStore) Release(ctx context.Context, resource, owner string) (ReleaseResult, error) {
	if err := s.evictExpired(ctx); err != nil {
		return ReleaseResult{}, err
	}
	n, err := s.st.Exec(ctx, `DELETE FROM resource_locks WHERE resource = $1 AND owner = $2`, resource, owner)
	if err != nil {
		return ReleaseResult{}, err
	}
	if n == 0 {
		existing, ok, _ := s.Get(ctx, resource)
		if ok {
			return ReleaseResult{OK: false, Message: fmt.Sprintf("resource held by %s", existing.Owner)}, nil
		}
		return ReleaseResult{OK: false, Message: "resource not locked"}, nil
	}
	_ = s.audit.Append(ctx, audit.Event{EventType: "lock", Action: "release", Result: "ok", Actor: owner, Target: resource})
	return ReleaseResult{OK: true}, nil
}

// ForceRelease drops resource's lock regardless of owner, for operator
// or watchdog use.
func (s *LockStore) ForceRelease(ctx context.Context, resource, actor string) (ReleaseResult, error) {
	n, err := s.st.Exec(ctx, `DELETE FROM resource_locks WHERE resource = $1`, resource)
	if err != nil {
		return ReleaseResult{}, err
	}
	if n == 0 {
		return ReleaseResult{OK: false, Message: "resource not locked"}, nil
	}
	_ = s.audit.Append(ctx, audit.Event{EventType: "lock", Action: "force_release", Result: "ok", Actor: actor, Target: resource})
	return ReleaseResult{OK: true}, nil
}

// Get fetches the live lock on resource, if any.
func (s *LockStore) Get(ctx context.Context, resource string) (ResourceLock, bool, error) {
	if err := s.evictExpired(ctx); err != nil {
		return ResourceLock{}, false, err
	}
	row := s.st.QueryRow(ctx, `SELECT `+lockCols+` FROM resource_locks WHERE resource = $1`, resource)
	l, err := scanLock(row)
	if err != nil {
		return ResourceLock{}, false, nil
	}
	return l, true, nil
}

// List returns every live lock.
func (s *LockStore) List(ctx context.Context) ([]ResourceLock, error) {
	if err := s.evictExpired(ctx); err != nil {
		return nil, err
	}
	rows, err := s.st.Query(ctx, `SELECT `+lockCols+` FROM resource_locks ORDER BY acquired_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResourceLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
