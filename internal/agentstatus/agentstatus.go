// Package agentstatus stores the latest known status snapshot per agent.
package agentstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marcus-qen/orchestra/internal/store"
)

// Status is the closed set of agent-status values.
type Status string

const (
	StatusRunning      Status = "running"
	StatusIdle         Status = "idle"
	StatusStuck        Status = "stuck"
	StatusError        Status = "error"
	StatusDisconnected Status = "disconnected"
	StatusUnknown      Status = "unknown"
)

func normalizeStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusRunning:
		return StatusRunning
	case StatusIdle:
		return StatusIdle
	case StatusStuck:
		return StatusStuck
	case StatusError:
		return StatusError
	case StatusDisconnected:
		return StatusDisconnected
	default:
		return StatusUnknown
	}
}

const outputTailKeep = 50

// Snapshot is one agent's persisted status row.
type Snapshot struct {
	AgentID     string    `json:"agent_id"`
	AgentName   string    `json:"agent_name"`
	SessionID   string    `json:"session_id"`
	Status      Status    `json:"status"`
	StagnantSec int       `json:"stagnant_sec"`
	Error       string    `json:"error"`
	OutputTail  []string  `json:"output_tail"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the agent-status persistence layer.
type Store struct {
	st *store.Store
}

// New returns a Store backed by st.
func New(st *store.Store) *Store {
	return &Store{st: st}
}

// Upsert inserts or updates a status row by agent_id, normalizing status
// into the closed set, clamping stagnant_sec >= 0, and truncating the
// output tail to the last 50 non-blank lines.
func (s *Store) Upsert(ctx context.Context, snap Snapshot) error {
	if snap.AgentID == "" {
		return fmt.Errorf("agentstatus: agent_id is required")
	}
	snap.Status = normalizeStatus(string(snap.Status))
	if snap.StagnantSec < 0 {
		snap.StagnantSec = 0
	}
	snap.OutputTail = clampTail(snap.OutputTail, outputTailKeep)

	tailJSON, err := json.Marshal(snap.OutputTail)
	if err != nil {
		return fmt.Errorf("agentstatus: marshal output_tail: %w", err)
	}

	_, err = s.st.Exec(ctx, `
		INSERT INTO agent_status (agent_id, agent_name, session_id, status, stagnant_sec, error, output_tail, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET
			agent_name = EXCLUDED.agent_name,
			session_id = EXCLUDED.session_id,
			status = EXCLUDED.status,
			stagnant_sec = EXCLUDED.stagnant_sec,
			error = EXCLUDED.error,
			output_tail = EXCLUDED.output_tail,
			updated_at = NOW()
	`, snap.AgentID, snap.AgentName, snap.SessionID, string(snap.Status), snap.StagnantSec, snap.Error, tailJSON)
	return err
}

func clampTail(lines []string, keep int) []string {
	var nonBlank []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonBlank = append(nonBlank, l)
		}
	}
	if len(nonBlank) > keep {
		nonBlank = nonBlank[len(nonBlank)-keep:]
	}
	if nonBlank == nil {
		nonBlank = []string{}
	}
	return nonBlank
}

// Filter narrows Query.
type Filter struct {
	AgentID string
	Status  Status
	Limit   int
}

// Query returns matching status rows newest-first by updated_at.
func (s *Store) Query(ctx context.Context, f Filter) ([]Snapshot, error) {
	limit := store.NormalizeLimit(f.Limit, 100, 1000)

	sql := `SELECT agent_id, agent_name, session_id, status, stagnant_sec, error, output_tail, created_at, updated_at FROM agent_status WHERE 1=1`
	var args []any
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		sql += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	sql += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", limit)

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var tailJSON []byte
		if err := rows.Scan(&snap.AgentID, &snap.AgentName, &snap.SessionID, &snap.Status, &snap.StagnantSec, &snap.Error, &tailJSON, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(tailJSON, &snap.OutputTail)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Summary counts rows grouped by status, for the dashboard's summary card.
type Summary struct {
	Total        int `json:"total"`
	Healthy      int `json:"healthy"`
	Unhealthy    int `json:"unhealthy"`
	Running      int `json:"running"`
	Idle         int `json:"idle"`
	Stuck        int `json:"stuck"`
	Error        int `json:"error"`
	Disconnected int `json:"disconnected"`
	Unknown      int `json:"unknown"`
}

// Summarize computes the dashboard summary from a set of snapshots.
func Summarize(snaps []Snapshot) Summary {
	var sum Summary
	for _, s := range snaps {
		sum.Total++
		switch s.Status {
		case StatusRunning:
			sum.Running++
			sum.Healthy++
		case StatusIdle:
			sum.Idle++
			sum.Healthy++
		case StatusStuck:
			sum.Stuck++
			sum.Unhealthy++
		case StatusError:
			sum.Error++
			sum.Unhealthy++
		case StatusDisconnected:
			sum.Disconnected++
			sum.Unhealthy++
		default:
			sum.Unknown++
			sum.Unhealthy++
		}
	}
	return sum
}
