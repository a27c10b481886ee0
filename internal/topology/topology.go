// Package topology implements the topology-change approval workflow:
// the master proposes a new agent/gateway architecture, a human
// approves or rejects it on the dashboard, and only an approved
// proposal is written back as the effective architecture document.
package topology

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

const (
	approvalIDHexLen    = 16
	defaultTTLSec       = 3600
	minTTLSec           = 30
	defaultArchiveDays  = 30
	minArchiveDays      = 1
	expireActor         = "system"
	expireNote          = "approval timed out and expired automatically"
)

// Request is one topology-change proposal.
type Request struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	RequestedBy          string         `json:"requested_by"`
	Reason               string         `json:"reason"`
	CreatedAt            time.Time      `json:"created_at"`
	ExpireAt             time.Time      `json:"expire_at"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty"`
	Reviewer             string         `json:"reviewer"`
	ReviewNote           string         `json:"review_note"`
	ArchHash             string         `json:"arch_hash"`
	ProposedArchitecture map[string]any `json:"proposed_architecture"`
}

// Engine is the topology-approval persistence and transition layer.
type Engine struct {
	st          *store.Store
	audit       *audit.Sink
	arch        *ArchFile
	ttlSec      int
	archiveDays int
}

// Options configures a new Engine.
type Options struct {
	TTLSec      int
	ArchiveDays int
	BackupCount int
	TopologyDir string
}

// New returns an Engine backed by st, persisting the effective
// architecture document under opts.TopologyDir.
func New(st *store.Store, auditSink *audit.Sink, opts Options) *Engine {
	ttl := opts.TTLSec
	if ttl < minTTLSec {
		ttl = defaultTTLSec
	}
	archiveDays := opts.ArchiveDays
	if archiveDays < minArchiveDays {
		archiveDays = defaultArchiveDays
	}
	return &Engine{
		st:          st,
		audit:       auditSink,
		arch:        NewArchFile(opts.TopologyDir, opts.BackupCount),
		ttlSec:      ttl,
		archiveDays: archiveDays,
	}
}

func archHash(architecture map[string]any) string {
	canonical, _ := json.Marshal(architecture)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func isValidArchitecture(architecture map[string]any) bool {
	if architecture == nil {
		return false
	}
	gatewaysRaw, ok := architecture["gateways"]
	if !ok {
		return false
	}
	gateways, ok := gatewaysRaw.([]any)
	if !ok || len(gateways) == 0 {
		return false
	}
	for _, gw := range gateways {
		gateway, ok := gw.(map[string]any)
		if !ok {
			return false
		}
		if strings.TrimSpace(fmt.Sprint(gateway["id"])) == "" {
			return false
		}
		agentsRaw, ok := gateway["agents"]
		if !ok {
			return false
		}
		agents, ok := agentsRaw.([]any)
		if !ok || len(agents) == 0 {
			return false
		}
		for _, ag := range agents {
			agent, ok := ag.(map[string]any)
			if !ok {
				return false
			}
			if strings.TrimSpace(fmt.Sprint(agent["id"])) == "" {
				return false
			}
		}
	}
	return true
}

func newApprovalID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:approvalIDHexLen]
}

func scanRequest(row interface{ Scan(dest ...any) error }) (Request, error) {
	var r Request
	var archJSON []byte
	if err := row.Scan(&r.ID, &r.Status, &r.RequestedBy, &r.Reason, &r.CreatedAt, &r.ExpireAt,
		&r.ReviewedAt, &r.Reviewer, &r.ReviewNote, &r.ArchHash, &archJSON); err != nil {
		return Request{}, err
	}
	_ = json.Unmarshal(archJSON, &r.ProposedArchitecture)
	if r.ProposedArchitecture == nil {
		r.ProposedArchitecture = map[string]any{"gateways": []any{}}
	}
	return r, nil
}

const requestCols = `id, status, requested_by, reason, created_at, expire_at, reviewed_at, reviewer, review_note, arch_hash, proposed_architecture`

// expirePending transitions every past-due pending request to expired.
func (e *Engine) expirePending(ctx context.Context) (int64, error) {
	rows, err := e.st.Query(ctx, `
		UPDATE topology_approvals
		SET status = 'expired', reviewed_at = NOW(), reviewer = $1, review_note = $2
		WHERE status = 'pending' AND expire_at < NOW()
		RETURNING id, reason
	`, expireActor, expireNote)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		var id, reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return n, err
		}
		n++
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: "expire", Result: "expired", Actor: expireActor, Target: id, Detail: reason,
		})
	}
	return n, rows.Err()
}

// archiveCompleted moves terminal requests older than archiveDays into
// topology_approval_archives.
func (e *Engine) archiveCompleted(ctx context.Context) (int64, error) {
	n, err := e.st.Exec(ctx, fmt.Sprintf(`
		WITH moved AS (
			DELETE FROM topology_approvals
			WHERE status IN ('approved', 'rejected', 'expired')
			  AND COALESCE(reviewed_at, created_at) < NOW() - INTERVAL '%d days'
			RETURNING id, status, requested_by, reason, created_at, expire_at,
				reviewed_at, reviewer, review_note, arch_hash, proposed_architecture
		)
		INSERT INTO topology_approval_archives (
			id, status, requested_by, reason, created_at, expire_at,
			reviewed_at, reviewer, review_note, arch_hash, proposed_architecture, archived_at
		)
		SELECT id, status, requested_by, reason, created_at, expire_at,
			reviewed_at, reviewer, review_note, arch_hash, proposed_architecture, NOW()
		FROM moved
		ON CONFLICT (id) DO NOTHING
	`, e.archiveDays))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: "archive", Result: "ok", Actor: "system", Target: "archive",
			Detail: fmt.Sprintf("archived=%d", n),
		})
	}
	return n, nil
}

// Sweep runs the expire-then-archive maintenance pass; it is safe and
// cheap to call on every read path and is also wired to a periodic
// cron job.
func (e *Engine) Sweep(ctx context.Context) error {
	if _, err := e.expirePending(ctx); err != nil {
		return err
	}
	_, err := e.archiveCompleted(ctx)
	return err
}

// ListFilter narrows List.
type ListFilter struct {
	Status string
	Limit  int
}

// List returns matching approval requests, newest-first, after
// running the expire/archive sweep.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]Request, error) {
	if err := e.Sweep(ctx); err != nil {
		return nil, err
	}

	sql := `SELECT ` + requestCols + ` FROM topology_approvals WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", store.NormalizeLimit(f.Limit, 50, 1000))

	rows, err := e.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches one approval request by id, after running the
// expire/archive sweep.
func (e *Engine) Get(ctx context.Context, id string) (Request, bool, error) {
	if err := e.Sweep(ctx); err != nil {
		return Request{}, false, err
	}
	row := e.st.QueryRow(ctx, `SELECT `+requestCols+` FROM topology_approvals WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err != nil {
		return Request{}, false, nil
	}
	return r, true, nil
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	OK      bool     `json:"ok"`
	Deduped bool     `json:"deduped"`
	Reason  string   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
	Request *Request `json:"request,omitempty"`
}

// Create submits a new topology-change proposal. A proposal identical
// to the currently-effective architecture is skipped; a proposal
// identical to an already-pending one reuses that pending request
// instead of creating a duplicate.
func (e *Engine) Create(ctx context.Context, proposed map[string]any, requestedBy, reason string, ttlSec *int) (CreateResult, error) {
	if err := e.Sweep(ctx); err != nil {
		return CreateResult{}, err
	}

	if requestedBy == "" {
		requestedBy = "master"
	}

	if !isValidArchitecture(proposed) {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: "create", Result: "invalid_input", Actor: requestedBy, Target: "architecture",
			Detail: "proposed architecture has an invalid shape",
		})
		return CreateResult{OK: false, Reason: "invalid_architecture", Message: "proposed architecture has an invalid shape"}, nil
	}

	current := e.arch.LoadRaw()
	proposedHash := archHash(proposed)
	currentHash := archHash(current)

	if proposedHash == currentHash {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: "create", Result: "skipped", Actor: requestedBy, Target: "architecture",
			Detail: "proposal matches the current architecture",
		})
		return CreateResult{OK: false, Reason: "no_change", Message: "proposal matches the current architecture, no approval needed"}, nil
	}

	row := e.st.QueryRow(ctx, `
		SELECT `+requestCols+` FROM topology_approvals
		WHERE status = 'pending' AND arch_hash = $1
		ORDER BY created_at DESC LIMIT 1
	`, proposedHash)
	if dup, err := scanRequest(row); err == nil {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: "create", Result: "deduped", Actor: requestedBy, Target: dup.ID,
			Detail: "reused existing pending proposal with identical architecture",
		})
		return CreateResult{OK: true, Deduped: true, Request: &dup}, nil
	}

	ttl := e.ttlSec
	if ttlSec != nil && *ttlSec >= minTTLSec {
		ttl = *ttlSec
	}
	now := time.Now().UTC()
	id := newApprovalID()
	expireAt := now.Add(time.Duration(ttl) * time.Second)
	archJSON, _ := json.Marshal(proposed)

	if _, err := e.st.Exec(ctx, `
		INSERT INTO topology_approvals (
			id, status, requested_by, reason, created_at, expire_at,
			reviewed_at, reviewer, review_note, arch_hash, proposed_architecture
		)
		VALUES ($1, 'pending', $2, $3, $4, $5, NULL, '', '', $6, $7::jsonb)
	`, id, requestedBy, reason, now, expireAt, proposedHash, archJSON); err != nil {
		return CreateResult{}, err
	}

	row = e.st.QueryRow(ctx, `SELECT `+requestCols+` FROM topology_approvals WHERE id = $1`, id)
	created, err := scanRequest(row)
	if err != nil {
		return CreateResult{}, err
	}

	_ = e.audit.Append(ctx, audit.Event{
		EventType: "topology_approval", Action: "create", Result: "pending", Actor: requestedBy, Target: id, Detail: reason,
		Extra: map[string]any{"ttl_sec": ttl},
	})
	return CreateResult{OK: true, Deduped: false, Request: &created}, nil
}

// TransitionResult is the outcome of Approve/Reject.
type TransitionResult struct {
	OK            bool     `json:"ok"`
	Message       string   `json:"message,omitempty"`
	Request       *Request `json:"request,omitempty"`
	ConfigBackup  string   `json:"config_backup,omitempty"`
}

func (e *Engine) transition(ctx context.Context, id, targetStatus, reviewer, note string) (TransitionResult, error) {
	actionVerb := map[string]string{"approved": "approve", "rejected": "reject"}[targetStatus]
	stateVerb := map[string]string{"approved": "批准", "rejected": "拒绝"}[targetStatus]

	if err := e.Sweep(ctx); err != nil {
		return TransitionResult{}, err
	}

	tx, err := e.st.BeginTx(ctx, store.ReadWriteTx())
	if err != nil {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: actionVerb, Result: "error", Actor: reviewer, Target: id, Detail: err.Error(),
		})
		return TransitionResult{OK: false, Message: fmt.Sprintf("%s failed: %s", actionVerb, err)}, nil
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE topology_approvals
		SET status = $1, reviewed_at = NOW(), reviewer = $2, review_note = $3
		WHERE id = $4 AND status = 'pending' AND expire_at >= NOW()
		RETURNING `+requestCols, targetStatus, reviewer, note, id)
	target, scanErr := scanRequest(row)

	var backupPath string
	var request *Request
	var transitionResult, failureStatus string

	if scanErr == nil {
		if targetStatus == "approved" {
			backupPath, err = e.arch.Save(target.ProposedArchitecture)
			if err != nil {
				_ = e.audit.Append(ctx, audit.Event{
					EventType: "topology_approval", Action: actionVerb, Result: "error", Actor: reviewer, Target: id, Detail: err.Error(),
				})
				return TransitionResult{OK: false, Message: fmt.Sprintf("%s failed: %s", actionVerb, err)}, nil
			}
		}
		request = &target
		transitionResult = targetStatus
	} else {
		expireRow := tx.QueryRow(ctx, `
			UPDATE topology_approvals
			SET status = 'expired', reviewed_at = NOW(), reviewer = $1, review_note = $2
			WHERE id = $3 AND status = 'pending' AND expire_at < NOW()
			RETURNING `+requestCols, expireActor, expireNote, id)
		expired, expireErr := scanRequest(expireRow)
		if expireErr == nil {
			request = &expired
			transitionResult = "expired"
			failureStatus = "expired"
		} else {
			var current string
			err := tx.QueryRow(ctx, `SELECT status FROM topology_approvals WHERE id = $1`, id).Scan(&current)
			if err != nil {
				transitionResult = "not_found"
			} else {
				failureStatus = current
				transitionResult = "invalid_state"
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: actionVerb, Result: "error", Actor: reviewer, Target: id, Detail: err.Error(),
		})
		return TransitionResult{OK: false, Message: fmt.Sprintf("%s failed: %s", actionVerb, err)}, nil
	}

	switch transitionResult {
	case "not_found":
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: actionVerb, Result: "not_found", Actor: reviewer, Target: id, Detail: "approval request not found",
		})
		return TransitionResult{OK: false, Message: fmt.Sprintf("approval request not found: %s", id)}, nil
	case "invalid_state", "expired":
		if transitionResult == "expired" {
			reason := ""
			if request != nil {
				reason = request.Reason
			}
			_ = e.audit.Append(ctx, audit.Event{
				EventType: "topology_approval", Action: "expire", Result: "expired", Actor: expireActor, Target: id, Detail: reason,
			})
		}
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: actionVerb, Result: "invalid_state", Actor: reviewer, Target: id,
			Detail: fmt.Sprintf("current status: %s", failureStatus),
		})
		// Mandatory operator-facing message preserved from the reference
		// implementation: an approval request cannot be <verb>ed once it
		// has left the pending state.
		return TransitionResult{OK: false, Message: fmt.Sprintf("审批单状态不可%s: %s", stateVerb, failureStatus)}, nil
	}

	if transitionResult != targetStatus || request == nil {
		_ = e.audit.Append(ctx, audit.Event{
			EventType: "topology_approval", Action: actionVerb, Result: "error", Actor: reviewer, Target: id, Detail: "state transition failed",
		})
		return TransitionResult{OK: false, Message: fmt.Sprintf("%s failed: state transition failed", actionVerb)}, nil
	}

	var extra map[string]any
	if backupPath != "" {
		extra = map[string]any{"config_backup": backupPath}
	}
	_ = e.audit.Append(ctx, audit.Event{
		EventType: "topology_approval", Action: actionVerb, Result: targetStatus, Actor: reviewer, Target: id, Detail: note, Extra: extra,
	})

	return TransitionResult{OK: true, Request: request, ConfigBackup: backupPath}, nil
}

// Approve approves a pending topology-change request, writing the
// proposed architecture back as the effective document.
func (e *Engine) Approve(ctx context.Context, id, reviewer, note string) (TransitionResult, error) {
	return e.transition(ctx, id, "approved", reviewer, note)
}

// Reject rejects a pending topology-change request.
func (e *Engine) Reject(ctx context.Context, id, reviewer, note string) (TransitionResult, error) {
	return e.transition(ctx, id, "rejected", reviewer, note)
}

// CurrentArchitecture returns the effective architecture document.
func (e *Engine) CurrentArchitecture() map[string]any {
	return e.arch.LoadRaw()
}
