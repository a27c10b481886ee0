// Package bridge defines the capability the orchestrator requires
// from the external terminal host (an iTerm/tmux/pty driver running
// in-process or behind a subprocess shim). The orchestrator only ever
// talks to this interface, and must tolerate any call failing.
package bridge

import "context"

// Session describes one live agent terminal session.
type Session struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	SessionID string `json:"session_id"`
}

// SessionsResult is the result of ListSessions.
type SessionsResult struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Sessions []Session `json:"sessions"`
}

// OutputResult is one agent's entry in ReadOutput's results.
type OutputResult struct {
	AgentID string   `json:"agent_id"`
	Output  []string `json:"output"`
	Error   string   `json:"error,omitempty"`
}

// ReadOutputResult is the result of ReadOutput.
type ReadOutputResult struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Results []OutputResult `json:"results"`
}

// SendResult is one agent's entry in SendInput's results.
type SendResult struct {
	AgentID string   `json:"agent_id"`
	Sent    bool     `json:"sent"`
	Read    bool     `json:"read"`
	Output  []string `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SendInputResult is the result of SendInput.
type SendInputResult struct {
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	Results []SendResult `json:"results"`
}

// AllAgents is the sentinel agent_id meaning "every known session".
const AllAgents = "all"

// Bridge is the terminal-host capability the orchestrator depends on.
// All methods must return a structured error rather than panicking or
// blocking indefinitely; every method accepts a context for
// cancellation/timeout.
type Bridge interface {
	// ListSessions enumerates every currently-known agent session.
	ListSessions(ctx context.Context) (SessionsResult, error)

	// ReadOutput returns the trailing tailLines of output for agentID,
	// or for every known session when agentID == AllAgents.
	ReadOutput(ctx context.Context, agentID string, tailLines int) (ReadOutputResult, error)

	// SendInput writes text into agentID's session (or every session
	// when agentID == AllAgents), optionally appending Enter, waiting
	// waitSec before reading back up to tailLines of output.
	SendInput(ctx context.Context, agentID, text string, appendEnter bool, waitSec float64, tailLines int) (SendInputResult, error)

	// ReadScreen dumps the last `lines` of a single session's screen,
	// for the on-demand live viewer.
	ReadScreen(ctx context.Context, sessionID string, lines int) ([]string, error)

	// StartStreamer begins pushing incremental screen chunks for
	// sessionID as events on the caller's event bus; StopStreamer ends it.
	StartStreamer(ctx context.Context, sessionID string) error
	StopStreamer(ctx context.Context, sessionID string) error
}
