package monitor

import (
	"testing"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
)

func TestClassifyStatusNoSession(t *testing.T) {
	if got := ClassifyStatus(nil, false, 0); got != agentstatus.StatusUnknown {
		t.Fatalf("got %q, want unknown", got)
	}
}

func TestClassifyStatusPromptOnlyIsIdle(t *testing.T) {
	if got := ClassifyStatus([]string{"$"}, true, 0); got != agentstatus.StatusIdle {
		t.Fatalf("got %q, want idle", got)
	}
	if got := ClassifyStatus(nil, true, 0); got != agentstatus.StatusIdle {
		t.Fatalf("got %q, want idle for empty output", got)
	}
}

func TestClassifyStatusErrorKeyword(t *testing.T) {
	if got := ClassifyStatus([]string{"Traceback (most recent call last):"}, true, 0); got != agentstatus.StatusError {
		t.Fatalf("got %q, want error", got)
	}
}

func TestClassifyStatusDisconnectedKeyword(t *testing.T) {
	if got := ClassifyStatus([]string{"connection refused"}, true, 0); got != agentstatus.StatusDisconnected {
		t.Fatalf("got %q, want disconnected", got)
	}
}

func TestClassifyStatusStuck(t *testing.T) {
	if got := ClassifyStatus([]string{"still working..."}, true, 60); got != agentstatus.StatusStuck {
		t.Fatalf("got %q, want stuck", got)
	}
}

func TestClassifyStatusRunning(t *testing.T) {
	if got := ClassifyStatus([]string{"still working..."}, true, 5); got != agentstatus.StatusRunning {
		t.Fatalf("got %q, want running", got)
	}
}

func TestClassifyStatusErrorTakesPriorityOverDisconnected(t *testing.T) {
	got := ClassifyStatus([]string{"exception: timeout waiting for response"}, true, 0)
	if got != agentstatus.StatusError {
		t.Fatalf("got %q, want error (error keyword checked before disconnected)", got)
	}
}
