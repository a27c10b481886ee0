package topology

import "testing"

func validArchitecture() map[string]any {
	return map[string]any{
		"gateways": []any{
			map[string]any{
				"id": "gw-1",
				"agents": []any{
					map[string]any{"id": "agent-1"},
				},
			},
		},
	}
}

func TestIsValidArchitecture(t *testing.T) {
	if !isValidArchitecture(validArchitecture()) {
		t.Fatal("expected valid architecture to pass")
	}
	if isValidArchitecture(map[string]any{"gateways": []any{}}) {
		t.Fatal("expected empty gateways list to fail")
	}
	if isValidArchitecture(map[string]any{"gateways": []any{map[string]any{"id": "", "agents": []any{}}}}) {
		t.Fatal("expected blank gateway id to fail")
	}
	if isValidArchitecture(nil) {
		t.Fatal("expected nil architecture to fail")
	}
	missingAgents := map[string]any{"gateways": []any{map[string]any{"id": "gw-1"}}}
	if isValidArchitecture(missingAgents) {
		t.Fatal("expected gateway without agents to fail")
	}
}

func TestArchHashIsDeterministicAcrossKeyOrder(t *testing.T) {
	a := map[string]any{"gateways": []any{map[string]any{"id": "gw-1", "agents": []any{}}}, "version": 1}
	b := map[string]any{"version": 1, "gateways": []any{map[string]any{"agents": []any{}, "id": "gw-1"}}}
	if archHash(a) != archHash(b) {
		t.Fatal("expected archHash to be stable regardless of map key order")
	}
}

func TestArchHashChangesWithContent(t *testing.T) {
	a := validArchitecture()
	b := validArchitecture()
	b["gateways"] = []any{map[string]any{"id": "gw-2", "agents": []any{map[string]any{"id": "agent-1"}}}}
	if archHash(a) == archHash(b) {
		t.Fatal("expected archHash to change when content changes")
	}
}

func TestNewApprovalIDShape(t *testing.T) {
	id := newApprovalID()
	if len(id) != approvalIDHexLen {
		t.Fatalf("approval id length = %d, want %d", len(id), approvalIDHexLen)
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("approval id %q contains non-hex character %q", id, c)
		}
	}
}
