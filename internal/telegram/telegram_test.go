package telegram

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/bridge"
	"github.com/marcus-qen/orchestra/internal/config"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text    string
		wantCmd string
		wantOK  bool
		wantLen int
	}{
		{"/start", "start", true, 0},
		{"/status", "status", true, 0},
		{"/wake please", "wake", true, 1},
		{"/watchdog@orchestra_bot", "watchdog", true, 0},
		{"hello there", "", false, 0},
		{"", "", false, 0},
	}
	for _, tc := range cases {
		cmd, args, ok := parseCommand(tc.text)
		if ok != tc.wantOK {
			t.Fatalf("parseCommand(%q) ok = %v, want %v", tc.text, ok, tc.wantOK)
		}
		if !ok {
			continue
		}
		if cmd != tc.wantCmd {
			t.Errorf("parseCommand(%q) cmd = %q, want %q", tc.text, cmd, tc.wantCmd)
		}
		if len(args) != tc.wantLen {
			t.Errorf("parseCommand(%q) args = %v, want len %d", tc.text, args, tc.wantLen)
		}
	}
}

func TestIsAuthorizedRequiresBoundChat(t *testing.T) {
	b := New(config.Config{}, "", nil, nil, nil, zap.NewNop())
	if b.isAuthorized(42) {
		t.Fatal("expected unbound chat to be unauthorized")
	}
	if err := b.bindChat(42); err != nil {
		t.Fatalf("bindChat: %v", err)
	}
	if !b.isAuthorized(42) {
		t.Fatal("expected bound chat to be authorized")
	}
	if b.isAuthorized(99) {
		t.Fatal("expected a different chat id to remain unauthorized")
	}
}

func TestClampWatchdogSec(t *testing.T) {
	if got := clampWatchdogSec(5); got != minWatchdogSec {
		t.Errorf("clampWatchdogSec(5) = %d, want %d", got, minWatchdogSec)
	}
	if got := clampWatchdogSec(120); got != 120 {
		t.Errorf("clampWatchdogSec(120) = %d, want 120", got)
	}
}

type fakeBridge struct {
	sessions bridge.SessionsResult
	sent     []string
}

func (f *fakeBridge) ListSessions(ctx context.Context) (bridge.SessionsResult, error) {
	return f.sessions, nil
}

func (f *fakeBridge) ReadOutput(ctx context.Context, agentID string, tailLines int) (bridge.ReadOutputResult, error) {
	return bridge.ReadOutputResult{OK: true}, nil
}

func (f *fakeBridge) SendInput(ctx context.Context, agentID, text string, appendEnter bool, waitSec float64, tailLines int) (bridge.SendInputResult, error) {
	f.sent = append(f.sent, agentID)
	return bridge.SendInputResult{OK: true, Results: []bridge.SendResult{{AgentID: agentID, Sent: true}}}, nil
}

func (f *fakeBridge) ReadScreen(ctx context.Context, sessionID string, lines int) ([]string, error) {
	return nil, nil
}

func (f *fakeBridge) StartStreamer(ctx context.Context, sessionID string) error { return nil }
func (f *fakeBridge) StopStreamer(ctx context.Context, sessionID string) error  { return nil }

func TestRunWatchdogSkipsMasterWhenNotIncluded(t *testing.T) {
	fb := &fakeBridge{sessions: bridge.SessionsResult{OK: true, Sessions: []bridge.Session{
		{AgentID: "master", SessionID: "s0"},
		{AgentID: "worker-1", SessionID: "s1"},
	}}}
	cfg := config.Config{}
	cfg.Telegram.WatchdogNudge = "ping"
	cfg.Telegram.WatchdogIncludeMaster = false
	b := New(cfg, "", fb, nil, nil, zap.NewNop())

	result := b.runWatchdog(context.Background())
	if result.Sent != 1 || result.Skipped != 1 {
		t.Fatalf("got %+v, want Sent=1 Skipped=1", result)
	}
	if len(fb.sent) != 1 || fb.sent[0] != "worker-1" {
		t.Fatalf("sent = %v, want only worker-1", fb.sent)
	}
}

func TestRunWatchdogIncludesMasterWhenConfigured(t *testing.T) {
	fb := &fakeBridge{sessions: bridge.SessionsResult{OK: true, Sessions: []bridge.Session{
		{AgentID: "master", SessionID: "s0"},
		{AgentID: "worker-1", SessionID: "s1"},
	}}}
	cfg := config.Config{}
	cfg.Telegram.WatchdogNudge = "ping"
	cfg.Telegram.WatchdogIncludeMaster = true
	b := New(cfg, "", fb, nil, nil, zap.NewNop())

	result := b.runWatchdog(context.Background())
	if result.Sent != 2 || result.Skipped != 0 {
		t.Fatalf("got %+v, want Sent=2 Skipped=0", result)
	}
}
