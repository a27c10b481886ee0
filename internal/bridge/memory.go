package bridge

import (
	"context"
	"sync"
)

// MemoryBridge is an in-process Bridge backed by a fixed table of
// sessions and output lines. It exists for tests and for local/dev
// runs where no real terminal host is wired up; a production
// deployment supplies its own Bridge implementation over the same
// interface.
type MemoryBridge struct {
	mu       sync.Mutex
	sessions map[string]Session
	output   map[string][]string
	errors   map[string]string
}

// NewMemoryBridge returns an empty MemoryBridge.
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{
		sessions: make(map[string]Session),
		output:   make(map[string][]string),
		errors:   make(map[string]string),
	}
}

// Register adds or replaces a known session.
func (m *MemoryBridge) Register(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.AgentID] = s
}

// SetOutput replaces the recorded output lines for agentID.
func (m *MemoryBridge) SetOutput(agentID string, lines []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output[agentID] = lines
}

// SetError makes subsequent reads for agentID report err.
func (m *MemoryBridge) SetError(agentID, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[agentID] = err
}

func (m *MemoryBridge) ListSessions(ctx context.Context) (SessionsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return SessionsResult{OK: true, Sessions: sessions}, nil
}

func (m *MemoryBridge) ReadOutput(ctx context.Context, agentID string, tailLines int) (ReadOutputResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []string{agentID}
	if agentID == AllAgents {
		ids = ids[:0]
		for id := range m.sessions {
			ids = append(ids, id)
		}
	}

	var results []OutputResult
	for _, id := range ids {
		lines := m.output[id]
		if tailLines > 0 && len(lines) > tailLines {
			lines = lines[len(lines)-tailLines:]
		}
		results = append(results, OutputResult{AgentID: id, Output: lines, Error: m.errors[id]})
	}
	return ReadOutputResult{OK: true, Results: results}, nil
}

func (m *MemoryBridge) SendInput(ctx context.Context, agentID, text string, appendEnter bool, waitSec float64, tailLines int) (SendInputResult, error) {
	m.mu.Lock()
	line := text
	if appendEnter {
		line += "\n"
	}
	ids := []string{agentID}
	if agentID == AllAgents {
		ids = ids[:0]
		for id := range m.sessions {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		m.output[id] = append(m.output[id], line)
	}
	m.mu.Unlock()

	read, err := m.ReadOutput(ctx, agentID, tailLines)
	if err != nil {
		return SendInputResult{}, err
	}
	var results []SendResult
	for _, r := range read.Results {
		results = append(results, SendResult{AgentID: r.AgentID, Sent: true, Read: r.Error == "", Output: r.Output, Error: r.Error})
	}
	return SendInputResult{OK: true, Results: results}, nil
}

func (m *MemoryBridge) ReadScreen(ctx context.Context, sessionID string, lines int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for agentID, s := range m.sessions {
		if s.SessionID == sessionID {
			out := m.output[agentID]
			if lines > 0 && len(out) > lines {
				out = out[len(out)-lines:]
			}
			return out, nil
		}
	}
	return nil, nil
}

func (m *MemoryBridge) StartStreamer(ctx context.Context, sessionID string) error { return nil }
func (m *MemoryBridge) StopStreamer(ctx context.Context, sessionID string) error  { return nil }

var _ Bridge = (*MemoryBridge)(nil)
