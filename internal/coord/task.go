// Package coord implements the task DAG, in-tool approval requests,
// and resource lock primitives exposed to agents through the tool
// registry.
package coord

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marcus-qen/orchestra/internal/audit"
	"github.com/marcus-qen/orchestra/internal/store"
)

var taskPriorities = map[string]bool{"low": true, "normal": true, "high": true, "critical": true}
var taskStatuses = map[string]bool{"pending": true, "in_progress": true, "blocked": true, "done": true, "failed": true, "cancelled": true}

func normalizePriority(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if !taskPriorities[p] {
		return "normal"
	}
	return p
}

func normalizeTaskStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !taskStatuses[s] {
		return "pending"
	}
	return s
}

// Task is one unit of work in the coordination DAG.
type Task struct {
	TaskID         string    `json:"task_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Creator        string    `json:"creator"`
	Assignee       string    `json:"assignee"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	Result         string    `json:"result"`
	ProjectID      string    `json:"project_id"`
	DependsOn      []string  `json:"depends_on"`
	TimeoutSec     int       `json:"timeout_sec"`
	MaxRetries     int       `json:"max_retries"`
	RetryCount     int       `json:"retry_count"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const taskCols = `task_id, title, description, creator, assignee, priority, status, result, project_id, depends_on, timeout_sec, max_retries, retry_count, idempotency_key, created_at, updated_at`

func scanTask(row interface{ Scan(dest ...any) error }) (Task, error) {
	var t Task
	var dependsJSON []byte
	if err := row.Scan(&t.TaskID, &t.Title, &t.Description, &t.Creator, &t.Assignee, &t.Priority, &t.Status,
		&t.Result, &t.ProjectID, &dependsJSON, &t.TimeoutSec, &t.MaxRetries, &t.RetryCount, &t.IdempotencyKey,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, err
	}
	_ = json.Unmarshal(dependsJSON, &t.DependsOn)
	return t, nil
}

// TaskStore is the task-DAG persistence layer.
type TaskStore struct {
	st    *store.Store
	audit *audit.Sink

	mu      sync.Mutex
	counter int64
}

// NewTaskStore returns a TaskStore backed by st.
func NewTaskStore(st *store.Store, auditSink *audit.Sink) *TaskStore {
	return &TaskStore{st: st, audit: auditSink}
}

// nextTaskID assigns IDs from a monotonic counter seeded by
// now_ms mod 1e8, prefixed "T", guarding against same-millisecond
// collisions within this process with a mutex-held running counter.
func (s *TaskStore) nextTaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMS := time.Now().UnixMilli() % 100000000
	if nowMS <= s.counter {
		s.counter++
	} else {
		s.counter = nowMS
	}
	return "T" + strconv.FormatInt(s.counter, 10)
}

// CreateTask inserts a new task, or returns the existing row if
// idempotencyKey matches a prior task.
func (s *TaskStore) CreateTask(ctx context.Context, t Task) (Task, bool, error) {
	if strings.TrimSpace(t.IdempotencyKey) != "" {
		existing, ok, err := s.getByIdempotencyKey(ctx, t.IdempotencyKey)
		if err != nil {
			return Task{}, false, err
		}
		if ok {
			return existing, true, nil
		}
	}

	t.Priority = normalizePriority(t.Priority)
	t.Status = normalizeTaskStatus(t.Status)
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.TimeoutSec <= 0 {
		t.TimeoutSec = 0
	}
	if t.MaxRetries < 0 {
		t.MaxRetries = 0
	}
	if t.DependsOn == nil {
		t.DependsOn = []string{}
	}

	taskID := s.nextTaskID()
	dependsJSON, _ := json.Marshal(t.DependsOn)

	row := s.st.QueryRow(ctx, `
		INSERT INTO tasks (
			task_id, title, description, creator, assignee, priority, status, result,
			project_id, depends_on, timeout_sec, max_retries, retry_count, idempotency_key, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, 0, $13, NOW())
		RETURNING `+taskCols,
		taskID, t.Title, t.Description, t.Creator, t.Assignee, t.Priority, t.Status, t.Result,
		t.ProjectID, dependsJSON, t.TimeoutSec, t.MaxRetries, t.IdempotencyKey)
	created, err := scanTask(row)
	if err != nil {
		return Task{}, false, err
	}

	_ = s.audit.Append(ctx, audit.Event{
		EventType: "task", Action: "create", Result: "ok", Actor: t.Creator, Target: taskID,
	})
	return created, false, nil
}

func (s *TaskStore) getByIdempotencyKey(ctx context.Context, key string) (Task, bool, error) {
	row := s.st.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE idempotency_key = $1 LIMIT 1`, key)
	t, err := scanTask(row)
	if err != nil {
		return Task{}, false, nil
	}
	return t, true, nil
}

// GetTask fetches a task by id.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (Task, bool, error) {
	row := s.st.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE task_id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		return Task{}, false, nil
	}
	return t, true, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status    string
	Assignee  string
	ProjectID string
	Limit     int
}

// ListTasks returns matching tasks, newest-first.
func (s *TaskStore) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	sql := `SELECT ` + taskCols + ` FROM tasks WHERE 1=1`
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		sql += fmt.Sprintf(" AND "+clause, len(args))
	}
	if f.Status != "" {
		add("status = $%d", normalizeTaskStatus(f.Status))
	}
	if f.Assignee != "" {
		add("assignee = $%d", f.Assignee)
	}
	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", store.NormalizeLimit(f.Limit, 100, 1000))

	rows, err := s.st.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// IsReady reports whether t is eligible to run: status=pending and
// every dependency is done or cancelled.
func (s *TaskStore) IsReady(ctx context.Context, t Task) (bool, error) {
	if t.Status != "pending" {
		return false, nil
	}
	for _, dep := range t.DependsOn {
		depTask, ok, err := s.GetTask(ctx, dep)
		if err != nil {
			return false, err
		}
		if !ok || (depTask.Status != "done" && depTask.Status != "cancelled") {
			return false, nil
		}
	}
	return true, nil
}

// ListReady returns every pending task whose dependencies are satisfied.
func (s *TaskStore) ListReady(ctx context.Context, limit int) ([]Task, error) {
	candidates, err := s.ListTasks(ctx, TaskFilter{Status: "pending", Limit: store.NormalizeLimit(limit, 1000, 1000)})
	if err != nil {
		return nil, err
	}
	var ready []Task
	for _, t := range candidates {
		ok, err := s.IsReady(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready, nil
}

// UpdateResult is the outcome of UpdateTask.
type UpdateResult struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message,omitempty"`
	Task        *Task  `json:"task,omitempty"`
	AutoRetried bool   `json:"auto_retried,omitempty"`
}

// UpdateTask applies a status/result/assignee update. A transition to
// failed with retry budget remaining is automatically reverted to
// pending with retry_count incremented and the stored result prefixed
// with a retry marker — failures are never silently dropped.
func (s *TaskStore) UpdateTask(ctx context.Context, taskID string, status, result, assignee *string) (UpdateResult, error) {
	current, ok, err := s.GetTask(ctx, taskID)
	if err != nil {
		return UpdateResult{}, err
	}
	if !ok {
		return UpdateResult{OK: false, Message: fmt.Sprintf("task not found: %s", taskID)}, nil
	}

	nextStatus := current.Status
	if status != nil {
		nextStatus = normalizeTaskStatus(*status)
	}
	nextResult := current.Result
	if result != nil {
		nextResult = *result
	}
	nextAssignee := current.Assignee
	if assignee != nil {
		nextAssignee = *assignee
	}
	nextRetryCount := current.RetryCount
	autoRetried := false

	if nextStatus == "failed" && current.RetryCount < current.MaxRetries {
		nextRetryCount = current.RetryCount + 1
		nextStatus = "pending"
		// Mandatory retry marker preserved verbatim from the reference implementation.
		nextResult = fmt.Sprintf("[重试 %d/%d] %s", nextRetryCount, current.MaxRetries, nextResult)
		autoRetried = true
	}

	row := s.st.QueryRow(ctx, `
		UPDATE tasks SET status = $1, result = $2, assignee = $3, retry_count = $4, updated_at = NOW()
		WHERE task_id = $5
		RETURNING `+taskCols, nextStatus, nextResult, nextAssignee, nextRetryCount, taskID)
	updated, err := scanTask(row)
	if err != nil {
		return UpdateResult{OK: false, Message: fmt.Sprintf("task update failed: %s", taskID)}, nil
	}

	_ = s.audit.Append(ctx, audit.Event{
		EventType: "task", Action: "update", Result: nextStatus, Actor: nextAssignee, Target: taskID,
		Extra: map[string]any{"auto_retried": autoRetried},
	})
	return UpdateResult{OK: true, Task: &updated, AutoRetried: autoRetried}, nil
}
