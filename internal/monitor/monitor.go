// Package monitor runs the background agent-status patrol: it polls
// the terminal bridge for live sessions and output, classifies each
// agent's runtime status, persists the snapshot, and publishes it on
// the event bus.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/bridge"
	"github.com/marcus-qen/orchestra/internal/events"
)

var errorKeywords = []string{"traceback", "error", "exception"}
var disconnectedKeywords = []string{"timeout", "connection refused", "econnreset"}
var promptOnlyMarkers = map[string]bool{"$": true, "#": true, ">>>": true, "...": true, ">": true}

const (
	DefaultStuckSec    = 60
	DefaultReadLines    = 30
	MinReadLines        = 1
	MaxReadLines        = 200
	DefaultIntervalSec  = 5
	MinIntervalSec      = 1
	MaxIntervalSec      = 60
	outputTailKeep      = 20
	fingerprintTailKeep = 6
)

func normalizeLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isPromptOnly(lines []string) bool {
	if len(lines) == 0 {
		return true
	}
	for _, l := range lines {
		if !promptOnlyMarkers[l] {
			return false
		}
	}
	return true
}

// ClassifyStatus implements the ordered classification rules: no
// session → unknown; all-prompt output → idle; error/exception text →
// error; connectivity keywords → disconnected; stagnant past the
// stuck threshold → stuck; otherwise running.
func ClassifyStatus(lines []string, hasSession bool, stagnantSec int) agentstatus.Status {
	if !hasSession {
		return agentstatus.StatusUnknown
	}

	normalized := normalizeLines(lines)
	if isPromptOnly(normalized) {
		return agentstatus.StatusIdle
	}

	merged := strings.ToLower(strings.Join(normalized, "\n"))
	for _, kw := range errorKeywords {
		if strings.Contains(merged, kw) {
			return agentstatus.StatusError
		}
	}
	for _, kw := range disconnectedKeywords {
		if strings.Contains(merged, kw) {
			return agentstatus.StatusDisconnected
		}
	}
	if stagnantSec >= DefaultStuckSec {
		return agentstatus.StatusStuck
	}
	return agentstatus.StatusRunning
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

type memoryEntry struct {
	fingerprint  string
	lastChangeTS time.Time
}

// Monitor runs the periodic patrol loop.
type Monitor struct {
	bridge bridge.Bridge
	status *agentstatus.Store
	bus    *events.Bus

	mu     sync.Mutex
	memory map[string]memoryEntry
}

// New returns a Monitor polling br, persisting to statusStore, and
// publishing snapshots on bus.
func New(br bridge.Bridge, statusStore *agentstatus.Store, bus *events.Bus) *Monitor {
	return &Monitor{bridge: br, status: statusStore, bus: bus, memory: make(map[string]memoryEntry)}
}

// TickResult summarizes one patrol cycle.
type TickResult struct {
	OK    bool                   `json:"ok"`
	Error string                 `json:"error,omitempty"`
	Count int                    `json:"count"`
}

// Tick runs one patrol cycle: list sessions, read output, classify,
// upsert, publish. A bridge failure to list sessions fails the whole
// cycle (each agent known to the status store is marked disconnected);
// a read_output failure degrades every session to unknown with error
// "read_output_failed" but the cycle still completes.
func (m *Monitor) Tick(ctx context.Context, readLines int) TickResult {
	if readLines == 0 {
		readLines = DefaultReadLines
	}
	readLines = clampInt(readLines, MinReadLines, MaxReadLines)
	now := time.Now().UTC()

	sessionsResult, err := m.bridge.ListSessions(ctx)
	if err != nil || !sessionsResult.OK {
		errText := "list_sessions_failed"
		if err != nil {
			errText = err.Error()
		} else if sessionsResult.Error != "" {
			errText = sessionsResult.Error
		}
		m.markAllDisconnected(ctx, errText)
		return TickResult{OK: false, Error: errText}
	}

	outputResult, err := m.bridge.ReadOutput(ctx, bridge.AllAgents, readLines)
	outputOK := err == nil && outputResult.OK
	rowByAgent := map[string]bridge.OutputResult{}
	if outputOK {
		for _, r := range outputResult.Results {
			rowByAgent[r.AgentID] = r
		}
	}

	count := 0
	for _, sess := range sessionsResult.Sessions {
		snap := m.classifyOne(sess, rowByAgent, outputOK, now)
		if werr := m.status.Upsert(ctx, snap); werr != nil {
			continue
		}
		if m.bus != nil {
			m.bus.Publish(events.AgentStatus, snap)
		}
		count++
	}

	if !outputOK {
		errText := "read_output_failed"
		if err != nil {
			errText = err.Error()
		} else if outputResult.Error != "" {
			errText = outputResult.Error
		}
		return TickResult{OK: false, Error: errText, Count: count}
	}
	return TickResult{OK: true, Count: count}
}

func (m *Monitor) classifyOne(sess bridge.Session, rowByAgent map[string]bridge.OutputResult, outputOK bool, now time.Time) agentstatus.Snapshot {
	row, haveRow := rowByAgent[sess.AgentID]
	var outputTail []string
	var errorText string
	if outputOK && haveRow {
		outputTail = normalizeLines(row.Output)
		errorText = strings.TrimSpace(row.Error)
	} else if !outputOK {
		errorText = "read_output_failed"
	}

	hasSession := sess.SessionID != "" && !strings.Contains(strings.ToLower(errorText), "session not found")

	fingerprintLines := outputTail
	if len(fingerprintLines) > fingerprintTailKeep {
		fingerprintLines = fingerprintLines[len(fingerprintLines)-fingerprintTailKeep:]
	}
	fingerprint := strings.Join(fingerprintLines, "\n")

	m.mu.Lock()
	prior, ok := m.memory[sess.AgentID]
	lastChange := now
	if ok && prior.fingerprint == fingerprint {
		lastChange = prior.lastChangeTS
	}
	m.memory[sess.AgentID] = memoryEntry{fingerprint: fingerprint, lastChangeTS: lastChange}
	m.mu.Unlock()

	stagnantSec := int(now.Sub(lastChange).Seconds())
	if stagnantSec < 0 {
		stagnantSec = 0
	}

	var status agentstatus.Status
	if !outputOK {
		status = agentstatus.StatusUnknown
	} else {
		status = ClassifyStatus(outputTail, hasSession, stagnantSec)
	}
	if outputOK && errorText != "" && status != agentstatus.StatusError && status != agentstatus.StatusDisconnected {
		status = agentstatus.StatusDisconnected
	}

	tail := outputTail
	if len(tail) > outputTailKeep {
		tail = tail[len(tail)-outputTailKeep:]
	}

	return agentstatus.Snapshot{
		AgentID: sess.AgentID, AgentName: sess.AgentName, SessionID: sess.SessionID,
		Status: status, StagnantSec: stagnantSec, Error: errorText, OutputTail: tail,
	}
}

func (m *Monitor) markAllDisconnected(ctx context.Context, errText string) {
	known, err := m.status.Query(ctx, agentstatus.Filter{})
	if err != nil {
		return
	}
	for _, prior := range known {
		snap := agentstatus.Snapshot{
			AgentID: prior.AgentID, AgentName: prior.AgentName, SessionID: prior.SessionID,
			Status: agentstatus.StatusDisconnected, Error: errText,
		}
		if werr := m.status.Upsert(ctx, snap); werr == nil && m.bus != nil {
			m.bus.Publish(events.AgentStatus, snap)
		}
	}
}

// Run loops Tick every interval (clamped to [MinIntervalSec,
// MaxIntervalSec]) until ctx is done.
func (m *Monitor) Run(ctx context.Context, intervalSec, readLines int) {
	interval := time.Duration(clampInt(intervalSec, MinIntervalSec, MaxIntervalSec)) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx, readLines)
		}
	}
}
