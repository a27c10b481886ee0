// Package ops is the agent-ops store: CRUD for agent interactions,
// prompt templates, and command cards, with key-format validation and
// version archiving shared across the two versioned tables.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

var keyRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{1,127}$`)

// ValidateKey enforces the shared *_key format for interactions, prompt
// templates, and command cards.
func ValidateKey(field, value string) (string, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", fmt.Errorf("%s must not be empty", field)
	}
	if !keyRE.MatchString(text) {
		return "", fmt.Errorf("%s has an invalid format: %s", field, text)
	}
	return text, nil
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "pending"
	}
	return s
}

// Store is the agent-ops persistence layer.
type Store struct {
	st    *store.Store
	audit *audit.Sink
}

// New returns a Store backed by st.
func New(st *store.Store, auditSink *audit.Sink) *Store {
	return &Store{st: st, audit: auditSink}
}

// --- Agent Interactions ---------------------------------------------------

// Interaction is one agent-to-agent message or review request.
type Interaction struct {
	ID              int64          `json:"id"`
	ThreadID        string         `json:"thread_id"`
	ParentID        *int64         `json:"parent_id,omitempty"`
	Sender          string         `json:"sender"`
	Receiver        string         `json:"receiver"`
	MsgType         string         `json:"msg_type"`
	Status          string         `json:"status"`
	RequiresReview  bool           `json:"requires_review"`
	Payload         map[string]any `json:"payload"`
	ReviewedBy      string         `json:"reviewed_by"`
	ReviewNote      string         `json:"review_note"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

const interactionCols = `id, thread_id, parent_id, sender, receiver, msg_type, status, requires_review, reviewed_by, review_note, reviewed_at, payload, created_at, updated_at`

func scanInteraction(row interface {
	Scan(dest ...any) error
}) (Interaction, error) {
	var it Interaction
	var payloadJSON []byte
	err := row.Scan(&it.ID, &it.ThreadID, &it.ParentID, &it.Sender, &it.Receiver, &it.MsgType, &it.Status,
		&it.RequiresReview, &it.ReviewedBy, &it.ReviewNote, &it.ReviewedAt, &payloadJSON, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Interaction{}, err
	}
	_ = json.Unmarshal(payloadJSON, &it.Payload)
	return it, nil
}

// CreateInteraction inserts a new agent interaction row.
func (s *Store) CreateInteraction(ctx context.Context, sender, receiver, msgType, threadID string, parentID *int64, requiresReview bool, payload map[string]any, status string) (Interaction, error) {
	senderText, err := ValidateKey("sender", sender)
	if err != nil {
		return Interaction{}, err
	}
	msgTypeText, err := ValidateKey("msg_type", msgType)
	if err != nil {
		return Interaction{}, err
	}
	statusText := normalizeStatus(status)
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Interaction{}, err
	}

	row := s.st.QueryRow(ctx, `
		INSERT INTO agent_interactions (thread_id, parent_id, sender, receiver, msg_type, status, requires_review, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, NOW())
		RETURNING `+interactionCols,
		strings.TrimSpace(threadID), parentID, senderText, strings.TrimSpace(receiver), msgTypeText, statusText, requiresReview, payloadJSON)
	it, err := scanInteraction(row)
	if err != nil {
		return Interaction{}, err
	}

	_ = s.audit.Append(ctx, audit.Event{
		EventType: "agent_interaction", Action: "create", Result: "ok",
		Actor: senderText, Target: receiver, Detail: "msg_type=" + msgTypeText,
		Extra: map[string]any{"interaction_id": it.ID, "thread_id": threadID},
	})
	return it, nil
}

// InteractionFilter narrows ListInteractions.
type InteractionFilter struct {
	ThreadID       string
	Sender         string
	Receiver       string
	MsgType        string
	Status         string
	RequiresReview *bool
	Limit          int
}

// ListInteractions returns matching interactions, newest-first.
func (s *Store) ListInteractions(ctx context.Context, f InteractionFilter) ([]Interaction, error) {
	sql := `SELECT ` + interactionCols + ` FROM agent_interactions WHERE 1=1`
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		sql += fmt.Sprintf(" AND "+clause, len(args))
	}
	if f.ThreadID != "" {
		add("thread_id = $%d", f.ThreadID)
	}
	if f.Sender != "" {
		add("sender = $%d", f.Sender)
	}
	if f.Receiver != "" {
		add("receiver = $%d", f.Receiver)
	}
	if f.MsgType != "" {
		add("msg_type = $%d", f.MsgType)
	}
	if f.Status != "" {
		add("status = $%d", normalizeStatus(f.Status))
	}
	if f.RequiresReview != nil {
		add("requires_review = $%d", *f.RequiresReview)
	}
	sql += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", store.NormalizeLimit(f.Limit, 100, 1000))

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ReviewInteraction transitions an interaction's status and records the
// reviewer's decision.
func (s *Store) ReviewInteraction(ctx context.Context, id int64, status, reviewer, note string) (Interaction, bool, error) {
	statusText := normalizeStatus(status)
	row := s.st.QueryRow(ctx, `
		UPDATE agent_interactions
		SET status = $1, reviewed_by = $2, review_note = $3, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $4
		RETURNING `+interactionCols, statusText, strings.TrimSpace(reviewer), strings.TrimSpace(note), id)
	it, err := scanInteraction(row)
	if err != nil {
		return Interaction{}, false, nil
	}
	_ = s.audit.Append(ctx, audit.Event{
		EventType: "agent_interaction", Action: "review", Result: "ok",
		Actor: reviewer, Target: fmt.Sprint(id), Detail: statusText,
	})
	return it, true, nil
}

// --- Prompt Templates ------------------------------------------------------

// PromptTemplate is one saved prompt.
type PromptTemplate struct {
	ID          int64          `json:"id"`
	PromptKey   string         `json:"prompt_key"`
	Title       string         `json:"title"`
	AgentKey    string         `json:"agent_key"`
	ToolName    string         `json:"tool_name"`
	PromptText  string         `json:"prompt_text"`
	Variables   map[string]any `json:"variables"`
	Tags        []string       `json:"tags"`
	Enabled     bool           `json:"enabled"`
	CreatedBy   string         `json:"created_by"`
	UpdatedBy   string         `json:"updated_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

const promptCols = `id, prompt_key, title, agent_key, tool_name, prompt_text, variables, tags, enabled, created_by, updated_by, created_at, updated_at`

func scanPrompt(row interface{ Scan(dest ...any) error }) (PromptTemplate, error) {
	var p PromptTemplate
	var varsJSON, tagsJSON []byte
	err := row.Scan(&p.ID, &p.PromptKey, &p.Title, &p.AgentKey, &p.ToolName, &p.PromptText, &varsJSON, &tagsJSON, &p.Enabled, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PromptTemplate{}, err
	}
	_ = json.Unmarshal(varsJSON, &p.Variables)
	_ = json.Unmarshal(tagsJSON, &p.Tags)
	return p, nil
}

// SavePromptTemplate archives the prior row (if any) into
// prompt_template_versions, then upserts by prompt_key.
func (s *Store) SavePromptTemplate(ctx context.Context, p PromptTemplate, actor string) (PromptTemplate, error) {
	key, err := ValidateKey("prompt_key", p.PromptKey)
	if err != nil {
		return PromptTemplate{}, err
	}
	p.PromptKey = key

	tx, err := s.st.BeginTx(ctx, pgxReadWrite())
	if err != nil {
		return PromptTemplate{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO prompt_template_versions (
			prompt_key, title, agent_key, tool_name, prompt_text, variables, tags, enabled,
			created_by, updated_by, source_created_at, source_updated_at
		)
		SELECT prompt_key, title, agent_key, tool_name, prompt_text, variables, tags, enabled,
			created_by, updated_by, created_at, updated_at
		FROM prompt_templates WHERE prompt_key = $1
	`, key)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("ops: archive prompt template: %w", err)
	}

	variablesJSON, _ := json.Marshal(nonNilMap(p.Variables))
	tagsJSON, _ := json.Marshal(nonNilSlice(p.Tags))

	row := tx.QueryRow(ctx, `
		INSERT INTO prompt_templates (prompt_key, title, agent_key, tool_name, prompt_text, variables, tags, enabled, created_by, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $9, NOW())
		ON CONFLICT (prompt_key) DO UPDATE SET
			title = EXCLUDED.title, agent_key = EXCLUDED.agent_key, tool_name = EXCLUDED.tool_name,
			prompt_text = EXCLUDED.prompt_text, variables = EXCLUDED.variables, tags = EXCLUDED.tags,
			enabled = EXCLUDED.enabled, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING `+promptCols,
		key, p.Title, p.AgentKey, p.ToolName, p.PromptText, variablesJSON, tagsJSON, p.Enabled, actor)

	saved, err := scanPrompt(row)
	if err != nil {
		return PromptTemplate{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PromptTemplate{}, err
	}

	_ = s.audit.Append(ctx, audit.Event{EventType: "prompt_template", Action: "save", Result: "ok", Actor: actor, Target: key})
	return saved, nil
}

// GetPromptTemplate fetches a single template by key.
func (s *Store) GetPromptTemplate(ctx context.Context, key string) (PromptTemplate, bool, error) {
	row := s.st.QueryRow(ctx, `SELECT `+promptCols+` FROM prompt_templates WHERE prompt_key = $1`, key)
	p, err := scanPrompt(row)
	if err != nil {
		return PromptTemplate{}, false, nil
	}
	return p, true, nil
}

// ListPromptTemplates does a case-insensitive keyword search over
// key+title+body+tags, newest-first.
func (s *Store) ListPromptTemplates(ctx context.Context, keyword string, limit int) ([]PromptTemplate, error) {
	sql := `SELECT ` + promptCols + ` FROM prompt_templates WHERE 1=1`
	var args []any
	if keyword != "" {
		args = append(args, "%"+store.EscapeLike(keyword)+"%")
		sql += fmt.Sprintf(` AND (prompt_key ILIKE $%d ESCAPE '\' OR title ILIKE $%d ESCAPE '\' OR prompt_text ILIKE $%d ESCAPE '\' OR tags::text ILIKE $%d ESCAPE '\')`, len(args), len(args), len(args), len(args))
	}
	sql += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", store.NormalizeLimit(limit, 100, 1000))

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PromptTemplate
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TogglePromptTemplate flips enabled without creating a version row
// (toggles are not content changes).
func (s *Store) TogglePromptTemplate(ctx context.Context, key string, enabled bool, actor string) error {
	n, err := s.st.Exec(ctx, `UPDATE prompt_templates SET enabled = $1, updated_by = $2, updated_at = NOW() WHERE prompt_key = $3`, enabled, actor, key)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ops: prompt template not found: %s", key)
	}
	_ = s.audit.Append(ctx, audit.Event{EventType: "prompt_template", Action: "toggle", Result: "ok", Actor: actor, Target: key})
	return nil
}

// RollbackPromptTemplate writes an archived version back through
// SavePromptTemplate, producing yet another version row — rollback is
// never destructive.
func (s *Store) RollbackPromptTemplate(ctx context.Context, key string, versionID int64, actor string) (PromptTemplate, error) {
	var archived PromptTemplate
	var varsJSON, tagsJSON []byte
	err := s.st.QueryRow(ctx, `
		SELECT prompt_key, title, agent_key, tool_name, prompt_text, variables, tags, enabled, created_by, updated_by
		FROM prompt_template_versions WHERE id = $1 AND prompt_key = $2
	`, versionID, key).Scan(&archived.PromptKey, &archived.Title, &archived.AgentKey, &archived.ToolName, &archived.PromptText, &varsJSON, &tagsJSON, &archived.Enabled, &archived.CreatedBy, &archived.UpdatedBy)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("ops: version not found: %d", versionID)
	}
	_ = json.Unmarshal(varsJSON, &archived.Variables)
	_ = json.Unmarshal(tagsJSON, &archived.Tags)
	return s.SavePromptTemplate(ctx, archived, actor)
}

// --- Command Cards -----------------------------------------------------

// CommandCard is one stored command-card definition.
type CommandCard struct {
	ID               int64          `json:"id"`
	CardKey          string         `json:"card_key"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	CommandTemplate  string         `json:"command_template"`
	ArgsSchema       map[string]any `json:"args_schema"`
	RiskLevel        string         `json:"risk_level"`
	Enabled          bool           `json:"enabled"`
	CreatedBy        string         `json:"created_by"`
	UpdatedBy        string         `json:"updated_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

const cardCols = `id, card_key, title, description, command_template, args_schema, risk_level, enabled, created_by, updated_by, created_at, updated_at`

var riskLevels = map[string]bool{"low": true, "normal": true, "high": true, "critical": true}

func normalizeRisk(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	if !riskLevels[r] {
		return "normal"
	}
	return r
}

func scanCard(row interface{ Scan(dest ...any) error }) (CommandCard, error) {
	var c CommandCard
	var schemaJSON []byte
	err := row.Scan(&c.ID, &c.CardKey, &c.Title, &c.Description, &c.CommandTemplate, &schemaJSON, &c.RiskLevel, &c.Enabled, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return CommandCard{}, err
	}
	_ = json.Unmarshal(schemaJSON, &c.ArgsSchema)
	return c, nil
}

// SaveCommandCard archives the prior row (if any) into
// command_card_versions, then upserts by card_key.
func (s *Store) SaveCommandCard(ctx context.Context, c CommandCard, actor string) (CommandCard, error) {
	key, err := ValidateKey("card_key", c.CardKey)
	if err != nil {
		return CommandCard{}, err
	}
	c.CardKey = key
	c.RiskLevel = normalizeRisk(c.RiskLevel)

	tx, err := s.st.BeginTx(ctx, pgxReadWrite())
	if err != nil {
		return CommandCard{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO command_card_versions (
			card_key, title, description, command_template, args_schema, risk_level, enabled,
			created_by, updated_by, source_created_at, source_updated_at
		)
		SELECT card_key, title, description, command_template, args_schema, risk_level, enabled,
			created_by, updated_by, created_at, updated_at
		FROM command_cards WHERE card_key = $1
	`, key)
	if err != nil {
		return CommandCard{}, fmt.Errorf("ops: archive command card: %w", err)
	}

	schemaJSON, _ := json.Marshal(nonNilMap(c.ArgsSchema))

	row := tx.QueryRow(ctx, `
		INSERT INTO command_cards (card_key, title, description, command_template, args_schema, risk_level, enabled, created_by, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $8, NOW())
		ON CONFLICT (card_key) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description, command_template = EXCLUDED.command_template,
			args_schema = EXCLUDED.args_schema, risk_level = EXCLUDED.risk_level, enabled = EXCLUDED.enabled,
			updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING `+cardCols,
		key, c.Title, c.Description, c.CommandTemplate, schemaJSON, c.RiskLevel, c.Enabled, actor)

	saved, err := scanCard(row)
	if err != nil {
		return CommandCard{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return CommandCard{}, err
	}

	_ = s.audit.Append(ctx, audit.Event{EventType: "command_card", Action: "save", Result: "ok", Actor: actor, Target: key})
	return saved, nil
}

// GetCommandCard fetches a single card by key.
func (s *Store) GetCommandCard(ctx context.Context, key string) (CommandCard, bool, error) {
	row := s.st.QueryRow(ctx, `SELECT `+cardCols+` FROM command_cards WHERE card_key = $1`, key)
	c, err := scanCard(row)
	if err != nil {
		return CommandCard{}, false, nil
	}
	return c, true, nil
}

// ListCommandCards does a case-insensitive keyword search over
// key+title+description, newest-first.
func (s *Store) ListCommandCards(ctx context.Context, keyword string, limit int) ([]CommandCard, error) {
	sql := `SELECT ` + cardCols + ` FROM command_cards WHERE 1=1`
	var args []any
	if keyword != "" {
		args = append(args, "%"+store.EscapeLike(keyword)+"%")
		sql += fmt.Sprintf(` AND (card_key ILIKE $%d ESCAPE '\' OR title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, len(args), len(args), len(args))
	}
	sql += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", store.NormalizeLimit(limit, 100, 1000))

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ToggleCommandCard flips enabled without creating a version row.
func (s *Store) ToggleCommandCard(ctx context.Context, key string, enabled bool, actor string) error {
	n, err := s.st.Exec(ctx, `UPDATE command_cards SET enabled = $1, updated_by = $2, updated_at = NOW() WHERE card_key = $3`, enabled, actor, key)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ops: command card not found: %s", key)
	}
	_ = s.audit.Append(ctx, audit.Event{EventType: "command_card", Action: "toggle", Result: "ok", Actor: actor, Target: key})
	return nil
}

// RollbackCommandCard writes an archived version back through
// SaveCommandCard, producing yet another version row.
func (s *Store) RollbackCommandCard(ctx context.Context, key string, versionID int64, actor string) (CommandCard, error) {
	var archived CommandCard
	var schemaJSON []byte
	err := s.st.QueryRow(ctx, `
		SELECT card_key, title, description, command_template, args_schema, risk_level, enabled, created_by, updated_by
		FROM command_card_versions WHERE id = $1 AND card_key = $2
	`, versionID, key).Scan(&archived.CardKey, &archived.Title, &archived.Description, &archived.CommandTemplate, &schemaJSON, &archived.RiskLevel, &archived.Enabled, &archived.CreatedBy, &archived.UpdatedBy)
	if err != nil {
		return CommandCard{}, fmt.Errorf("ops: version not found: %d", versionID)
	}
	_ = json.Unmarshal(schemaJSON, &archived.ArgsSchema)
	return s.SaveCommandCard(ctx, archived, actor)
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
