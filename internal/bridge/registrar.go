package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

// Registration is one agent_id -> session_id bookkeeping row: which
// terminal session an agent was last launched into. The live Bridge
// has no notion of "agent" (only sessions), so this mapping is kept
// separately and reconciled against Bridge.ListSessions on demand.
type Registration struct {
	AgentID      string `json:"agent_id"`
	AgentName    string `json:"agent_name"`
	SessionID    string `json:"session_id"`
	RegisteredAt string `json:"registered_at"`
}

// Registrar persists the iterm session registrations the "list",
// "clean", "unregister", and "clear_all" tool actions operate on.
type Registrar struct {
	st    *store.Store
	audit *audit.Sink
}

// NewRegistrar returns a Registrar backed by st.
func NewRegistrar(st *store.Store, auditSink *audit.Sink) *Registrar {
	return &Registrar{st: st, audit: auditSink}
}

// Register records (or replaces) the session an agent was launched into.
func (r *Registrar) Register(ctx context.Context, agentID, agentName, sessionID string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return fmt.Errorf("agent_id must not be empty")
	}
	if agentName == "" {
		agentName = agentID
	}
	_, err := r.st.Exec(ctx, `
		INSERT INTO iterm_registrations (agent_id, agent_name, session_id, registered_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET agent_name = EXCLUDED.agent_name, session_id = EXCLUDED.session_id, registered_at = NOW()`,
		agentID, agentName, sessionID)
	return err
}

// List returns every registration, pruning empty-session_id rows as a
// side effect — a dead record left behind by a launch that never
// produced a session.
func (r *Registrar) List(ctx context.Context) ([]Registration, error) {
	if _, err := r.st.Exec(ctx, `DELETE FROM iterm_registrations WHERE session_id = ''`); err != nil {
		return nil, err
	}
	rows, err := r.st.Query(ctx, `SELECT agent_id, agent_name, session_id, registered_at FROM iterm_registrations ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var reg Registration
		var ts any
		if err := rows.Scan(&reg.AgentID, &reg.AgentName, &reg.SessionID, &ts); err != nil {
			return nil, err
		}
		reg.RegisteredAt = fmt.Sprint(ts)
		out = append(out, reg)
	}
	return out, rows.Err()
}

// Clean removes registrations whose session_id isn't among liveIDs
// (or has no session_id at all), returning the count removed and the
// count remaining.
func (r *Registrar) Clean(ctx context.Context, liveIDs []string) (removed, remaining int, err error) {
	before, err := r.count(ctx)
	if err != nil {
		return 0, 0, err
	}

	if len(liveIDs) == 0 {
		// No live sessions known: only prune the dead-session_id rows,
		// matching the reference tool's "can't determine liveness" fallback.
		if _, err := r.st.Exec(ctx, `DELETE FROM iterm_registrations WHERE session_id = ''`); err != nil {
			return 0, 0, err
		}
	} else {
		placeholders := make([]string, len(liveIDs))
		args := make([]any, len(liveIDs))
		for i, id := range liveIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}
		sql := fmt.Sprintf(`DELETE FROM iterm_registrations WHERE session_id = '' OR session_id NOT IN (%s)`, strings.Join(placeholders, ", "))
		if _, err := r.st.Exec(ctx, sql, args...); err != nil {
			return 0, 0, err
		}
	}

	after, err := r.count(ctx)
	if err != nil {
		return 0, 0, err
	}
	_ = r.audit.Append(ctx, audit.Event{EventType: "iterm", Action: "clean", Result: "ok", Detail: fmt.Sprintf("removed=%d", before-after)})
	return before - after, after, nil
}

// Unregister removes a single agent's registration.
func (r *Registrar) Unregister(ctx context.Context, agentID string) (int64, error) {
	n, err := r.st.Exec(ctx, `DELETE FROM iterm_registrations WHERE agent_id = $1`, strings.TrimSpace(agentID))
	if err != nil {
		return 0, err
	}
	_ = r.audit.Append(ctx, audit.Event{EventType: "iterm", Action: "unregister", Result: "ok", Target: agentID})
	return n, nil
}

// ClearAll wipes every registration.
func (r *Registrar) ClearAll(ctx context.Context) (int64, error) {
	before, err := r.count(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := r.st.Exec(ctx, `DELETE FROM iterm_registrations`); err != nil {
		return 0, err
	}
	_ = r.audit.Append(ctx, audit.Event{EventType: "iterm", Action: "clear_all", Result: "ok", Detail: fmt.Sprintf("removed=%d", before)})
	return before, nil
}

func (r *Registrar) count(ctx context.Context) (int, error) {
	var n int
	if err := r.st.QueryRow(ctx, `SELECT COUNT(*) FROM iterm_registrations`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
