package coord

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

// Approval is an in-tool request for a human or master-agent decision,
// distinct from the topology-change approval workflow.
type Approval struct {
	ApprovalID  string     `json:"approval_id"`
	Requester   string     `json:"requester"`
	TargetAgent string     `json:"target_agent"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Options     []string   `json:"options"`
	Status      string     `json:"status"`
	Decision    string     `json:"decision"`
	Approver    string     `json:"approver"`
	Reason      string     `json:"reason"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

const approvalCols = `approval_id, requester, target_agent, title, description, options, status, decision, approver, reason, created_at, resolved_at`

func scanApproval(row interface{ Scan(dest ...any) error }) (Approval, error) {
	var a Approval
	var optionsJSON []byte
	if err := row.Scan(&a.ApprovalID, &a.Requester, &a.TargetAgent, &a.Title, &a.Description, &optionsJSON,
		&a.Status, &a.Decision, &a.Approver, &a.Reason, &a.CreatedAt, &a.ResolvedAt); err != nil {
		return Approval{}, err
	}
	_ = json.Unmarshal(optionsJSON, &a.Options)
	return a, nil
}

// ApprovalStore is the in-tool approval persistence layer.
type ApprovalStore struct {
	st    *store.Store
	audit *audit.Sink

	mu      sync.Mutex
	counter int64
}

// NewApprovalStore returns an ApprovalStore backed by st.
func NewApprovalStore(st *store.Store, auditSink *audit.Sink) *ApprovalStore {
	return &ApprovalStore{st: st, audit: auditSink}
}

// newApprovalID assigns ids shaped "A" + an 8-digit zero-padded counter.
func (s *ApprovalStore) newApprovalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	n := s.counter % 100000000
	if n == 0 {
		var b [4]byte
		_, _ = rand.Read(b[:])
		n = int64(binary.BigEndian.Uint32(b[:])%99999999) + 1
	}
	return fmt.Sprintf("A%08d", n)
}

// Request inserts a new pending approval.
func (s *ApprovalStore) Request(ctx context.Context, requester, targetAgent, title, description string, options []string) (Approval, error) {
	if options == nil {
		options = []string{}
	}
	optionsJSON, _ := json.Marshal(options)
	approvalID := s.newApprovalID()

	row := s.st.QueryRow(ctx, `
		INSERT INTO approvals (approval_id, requester, target_agent, title, description, options, status)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, 'pending')
		RETURNING `+approvalCols,
		approvalID, requester, targetAgent, title, description, optionsJSON)
	created, err := scanApproval(row)
	if err != nil {
		return Approval{}, err
	}

	_ = s.audit.Append(ctx, audit.Event{
		EventType: "approval", Action: "request", Result: "pending", Actor: requester, Target: approvalID,
	})
	return created, nil
}

// RespondResult is the outcome of Respond.
type RespondResult struct {
	OK       bool      `json:"ok"`
	Message  string    `json:"message,omitempty"`
	Approval *Approval `json:"approval,omitempty"`
}

// Respond records a decision against a pending approval. Responding to
// an already-resolved approval is rejected rather than silently
// overwriting the prior decision.
func (s *ApprovalStore) Respond(ctx context.Context, approvalID, decision, approver, reason string) (RespondResult, error) {
	if strings.TrimSpace(approvalID) == "" || strings.TrimSpace(decision) == "" {
		return RespondResult{OK: false, Message: "approval_id and decision are required"}, nil
	}

	row := s.st.QueryRow(ctx, `
		UPDATE approvals SET status = 'resolved', decision = $1, approver = $2, reason = $3, resolved_at = NOW()
		WHERE approval_id = $4 AND status = 'pending'
		RETURNING `+approvalCols, decision, approver, reason, approvalID)
	resolved, err := scanApproval(row)
	if err != nil {
		existing, ok, gerr := s.Get(ctx, approvalID)
		if gerr == nil && ok {
			return RespondResult{OK: false, Message: fmt.Sprintf("approval already resolved: %s", existing.Status)}, nil
		}
		return RespondResult{OK: false, Message: fmt.Sprintf("approval not found: %s", approvalID)}, nil
	}

	_ = s.audit.Append(ctx, audit.Event{
		EventType: "approval", Action: "respond", Result: decision, Actor: approver, Target: approvalID,
	})
	return RespondResult{OK: true, Approval: &resolved}, nil
}

// Get fetches an approval by id.
func (s *ApprovalStore) Get(ctx context.Context, approvalID string) (Approval, bool, error) {
	row := s.st.QueryRow(ctx, `SELECT `+approvalCols+` FROM approvals WHERE approval_id = $1`, approvalID)
	a, err := scanApproval(row)
	if err != nil {
		return Approval{}, false, nil
	}
	return a, true, nil
}

// ApprovalFilter narrows List.
type ApprovalFilter struct {
	Status      string
	TargetAgent string
	Limit       int
}

// List returns matching approvals, newest-first.
func (s *ApprovalStore) List(ctx context.Context, f ApprovalFilter) ([]Approval, error) {
	sql := `SELECT ` + approvalCols + ` FROM approvals WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.TargetAgent != "" {
		args = append(args, f.TargetAgent)
		sql += fmt.Sprintf(" AND target_agent = $%d", len(args))
	}
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", store.NormalizeLimit(f.Limit, 100, 1000))

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
