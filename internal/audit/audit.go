// Package audit is the append-only audit-event and system-log sink.
// Writes never update or delete; reads are filtered and newest-first.
package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/marcus-qen/orchestra/internal/store"
)

// Event is one append-only audit row.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"ts"`
	EventType string         `json:"event_type"`
	Action    string         `json:"action"`
	Result    string         `json:"result"`
	Actor     string         `json:"actor"`
	Target    string         `json:"target"`
	Detail    string         `json:"detail"`
	Level     string         `json:"level"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// LogLine is one append-only system-log row, the backing data for both
// the raw system-log view and the AI-log read-side projection.
type LogLine struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`
	Logger    string    `json:"logger"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// Filter narrows Query/QueryLogs and the distinct-values endpoint.
type Filter struct {
	EventType string
	Level     string
	Actor     string
	Logger    string
	Keyword   string
	Limit     int
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func (f Filter) clampedLimit() int {
	return store.NormalizeLimit(f.Limit, defaultLimit, maxLimit)
}

// Sink writes and reads audit events / system logs against the store.
type Sink struct {
	st *store.Store
}

// New returns a Sink backed by st.
func New(st *store.Store) *Sink {
	return &Sink{st: st}
}

// Append writes one audit event. Never returns a validation error for
// missing optional fields — Action and EventType are the only required
// fields; everything else defaults to empty/now.
func (s *Sink) Append(ctx context.Context, evt Event) error {
	if evt.EventType == "" || evt.Action == "" {
		return fmt.Errorf("audit: event_type and action are required")
	}
	if evt.Level == "" {
		evt.Level = "info"
	}
	extra := evt.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("audit: marshal extra: %w", err)
	}
	_, err = s.st.Exec(ctx, `
		INSERT INTO audit_events (event_type, action, result, actor, target, detail, level, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.EventType, evt.Action, evt.Result, evt.Actor, evt.Target, evt.Detail, evt.Level, extraJSON)
	return err
}

// AppendLog writes one system-log row. Used by the zap core adapter and
// directly by callers projecting the AI-log view.
func (s *Sink) AppendLog(ctx context.Context, line LogLine) error {
	if line.Level == "" {
		line.Level = "info"
	}
	_, err := s.st.Exec(ctx, `
		INSERT INTO system_logs (level, logger, message, raw)
		VALUES ($1, $2, $3, $4)
	`, line.Level, line.Logger, line.Message, line.Raw)
	return err
}

// Query returns matching audit events, newest-first.
func (s *Sink) Query(ctx context.Context, f Filter) ([]Event, error) {
	sql, args := buildQuery("audit_events", f, f.clampedLimit())
	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var extraJSON []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Action, &e.Result, &e.Actor, &e.Target, &e.Detail, &e.Level, &extraJSON); err != nil {
			return nil, err
		}
		if len(extraJSON) > 0 {
			_ = json.Unmarshal(extraJSON, &e.Extra)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// QueryLogs returns matching system-log rows, newest-first.
func (s *Sink) QueryLogs(ctx context.Context, f Filter) ([]LogLine, error) {
	sql, args := buildLogQuery(f, f.clampedLimit())
	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogLine
	for rows.Next() {
		var l LogLine
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Logger, &l.Message, &l.Raw); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DistinctEventTypes supplies the audit-view filter dropdown.
func (s *Sink) DistinctEventTypes(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "audit_events", "event_type")
}

// DistinctLoggers supplies the system-log-view filter dropdown.
func (s *Sink) DistinctLoggers(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "system_logs", "logger")
}

func (s *Sink) distinctColumn(ctx context.Context, table, column string) ([]string, error) {
	rows, err := s.st.Query(ctx, fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s <> '' ORDER BY %s`, column, table, column, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func buildQuery(table string, f Filter, limit int) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.EventType != "" {
		add("event_type = $%d", f.EventType)
	}
	if f.Level != "" {
		add("level = $%d", f.Level)
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Keyword != "" {
		add("(action ILIKE $%d ESCAPE '\\' OR detail ILIKE $%d ESCAPE '\\' OR target ILIKE $%d ESCAPE '\\')", "%"+store.EscapeLike(f.Keyword)+"%")
		// the ILIKE placeholder is reused three times; rebuild args to match.
		args[len(args)-1] = "%" + store.EscapeLike(f.Keyword) + "%"
		clauses[len(clauses)-1] = fmt.Sprintf("(action ILIKE $%d ESCAPE '\\' OR detail ILIKE $%d ESCAPE '\\' OR target ILIKE $%d ESCAPE '\\')", len(args), len(args), len(args))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	sql := fmt.Sprintf(`
		SELECT id, ts, event_type, action, result, actor, target, detail, level, extra
		FROM %s %s ORDER BY ts DESC, id DESC LIMIT %d
	`, table, where, limit)
	return sql, args
}

func buildLogQuery(f Filter, limit int) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Level != "" {
		add("level = $%d", f.Level)
	}
	if f.Logger != "" {
		add("logger = $%d", f.Logger)
	}
	if f.Keyword != "" {
		add("(message ILIKE $%d ESCAPE '\\' OR raw ILIKE $%d ESCAPE '\\')", "%"+store.EscapeLike(f.Keyword)+"%")
		args[len(args)-1] = "%" + store.EscapeLike(f.Keyword) + "%"
		clauses[len(clauses)-1] = fmt.Sprintf("(message ILIKE $%d ESCAPE '\\' OR raw ILIKE $%d ESCAPE '\\')", len(args), len(args))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	sql := fmt.Sprintf(`
		SELECT id, ts, level, logger, message, raw
		FROM system_logs %s ORDER BY ts DESC, id DESC LIMIT %d
	`, where, limit)
	return sql, args
}

// StreamJSONL writes matching audit events as newline-delimited JSON,
// for the /api/audit/export endpoint.
func (s *Sink) StreamJSONL(ctx context.Context, w io.Writer, f Filter) error {
	events, err := s.Query(ctx, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// StreamLogJSONL writes matching system-log rows as newline-delimited JSON.
func (s *Sink) StreamLogJSONL(ctx context.Context, w io.Writer, f Filter) error {
	lines, err := s.QueryLogs(ctx, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}

// StreamCSV writes matching audit events as CSV.
func (s *Sink) StreamCSV(ctx context.Context, w io.Writer, f Filter) error {
	events, err := s.Query(ctx, f)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{"id", "ts", "event_type", "action", "result", "actor", "target", "detail", "level"}); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write([]string{
			fmt.Sprint(e.ID), e.Timestamp.Format(time.RFC3339), e.EventType, e.Action, e.Result, e.Actor, e.Target, e.Detail, e.Level,
		}); err != nil {
			return err
		}
	}
	return nil
}
