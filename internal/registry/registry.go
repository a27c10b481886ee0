// Package registry tracks agent capability declarations and answers
// the roster query the master agent uses to discover its workers.
package registry

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

// AgentEntry is one roster row. Source records where the entry came
// from so the roster can merge registered, connected, and historical
// agents without losing provenance.
type AgentEntry struct {
	AgentID   string   `json:"agent_id"`
	AgentName string   `json:"agent_name"`
	Skills    []string `json:"skills,omitempty"`
	Source    string   `json:"source"`
	Online    bool     `json:"online"`
}

// Store persists agent capability declarations.
type Store struct {
	st     *store.Store
	status *agentstatus.Store
	audit  *audit.Sink
}

// New returns a Store backed by st, cross-referencing statusStore for
// online/session state.
func New(st *store.Store, statusStore *agentstatus.Store, auditSink *audit.Sink) *Store {
	return &Store{st: st, status: statusStore, audit: auditSink}
}

func splitSkills(content string) []string {
	var out []string
	for _, s := range strings.Split(content, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Register records (or replaces) an agent's capability declaration.
// skillsCSV is a comma-separated free-text skill list, matching the
// tool-call convention of a single "content" field.
func (s *Store) Register(ctx context.Context, agentID, agentName, skillsCSV string) (AgentEntry, error) {
	agentID = strings.TrimSpace(agentID)
	if agentName == "" {
		agentName = agentID
	}
	skills := splitSkills(skillsCSV)
	skillsJSON, _ := json.Marshal(skills)

	_, err := s.st.Exec(ctx, `
		INSERT INTO agent_registry (agent_id, agent_name, skills, registered_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET agent_name = EXCLUDED.agent_name, skills = EXCLUDED.skills, registered_at = NOW()`,
		agentID, agentName, skillsJSON)
	if err != nil {
		return AgentEntry{}, err
	}

	_ = s.audit.Append(ctx, audit.Event{EventType: "interaction", Action: "register", Result: "ok", Actor: agentID, Target: agentID})
	return AgentEntry{AgentID: agentID, AgentName: agentName, Skills: skills, Source: "registry", Online: false}, nil
}

// Roster merges registered capability declarations with currently
// connected sessions (from agent status) into a single discovery
// list, always including a builtin "master" entry.
func (s *Store) Roster(ctx context.Context) ([]AgentEntry, error) {
	skillsByAgent := map[string][]string{}
	nameByAgent := map[string]string{}

	rows, err := s.st.Query(ctx, `SELECT agent_id, agent_name, skills FROM agent_registry`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var agentID, agentName string
		var skillsJSON []byte
		if err := rows.Scan(&agentID, &agentName, &skillsJSON); err != nil {
			rows.Close()
			return nil, err
		}
		var skills []string
		_ = json.Unmarshal(skillsJSON, &skills)
		skillsByAgent[agentID] = skills
		nameByAgent[agentID] = agentName
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var roster []AgentEntry
	seen := map[string]bool{}

	if s.status != nil {
		statuses, err := s.status.Query(ctx, agentstatus.Filter{})
		if err == nil {
			for _, snap := range statuses {
				roster = append(roster, AgentEntry{
					AgentID:   snap.AgentID,
					AgentName: snap.AgentName,
					Skills:    skillsByAgent[snap.AgentID],
					Source:    "session",
					Online:    snap.SessionID != "" && snap.Status != agentstatus.StatusUnknown && snap.Status != agentstatus.StatusDisconnected,
				})
				seen[snap.AgentID] = true
			}
		}
	}

	for agentID, skills := range skillsByAgent {
		if seen[agentID] {
			continue
		}
		name := nameByAgent[agentID]
		if name == "" {
			name = agentID
		}
		roster = append(roster, AgentEntry{AgentID: agentID, AgentName: name, Skills: skills, Source: "registry"})
		seen[agentID] = true
	}

	if !seen["master"] {
		roster = append([]AgentEntry{{
			AgentID: "master", AgentName: "master", Source: "builtin", Online: true,
			Skills: []string{"orchestration", "task_assignment", "approval"},
		}}, roster...)
	}

	return roster, nil
}
