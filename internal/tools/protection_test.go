/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

import (
	"testing"
)

func TestProtectionEngineBuiltins(t *testing.T) {
	pe := NewProtectionEngine()

	tests := []struct {
		name     string
		domain   string
		target   string
		allowed  bool
		wantRule string
	}{
		{"DROP TABLE blocked", "db", "DROP TABLE users", false, "sql-data"},
		{"TRUNCATE blocked", "db", "TRUNCATE TABLE sessions", false, "sql-data"},
		{"DELETE FROM needs approval", "db", "DELETE FROM logs WHERE age > 30", false, "sql-data"},
		{"SELECT allowed", "db", "SELECT * FROM tasks", true, ""},

		{"rm -rf / blocked", "command_card", "bash -c rm -rf /", false, "command-card-exec"},
		{"mkfs blocked", "command_card", "mkfs.ext4 /dev/sdb1", false, "command-card-exec"},
		{"ls allowed", "command_card", "ls -la /var/log", true, ""},

		{"cross-domain db rule doesn't apply to command_card", "command_card", "DROP TABLE users", true, ""},
		{"cross-domain command_card rule doesn't apply to db", "db", "rm -rf /", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pe.Evaluate(tt.domain, tt.target)
			if result.Allowed != tt.allowed {
				rule := ""
				if result.MatchedRule != nil {
					rule = result.MatchedRule.Pattern
				}
				t.Errorf("Evaluate(%q, %q) Allowed=%v, want %v (matched: %q class: %q)",
					tt.domain, tt.target, result.Allowed, tt.allowed, rule, result.MatchedClass)
			}
			if !tt.allowed && tt.wantRule != "" {
				if result.MatchedClass != tt.wantRule {
					t.Errorf("MatchedClass = %q, want %q", result.MatchedClass, tt.wantRule)
				}
			}
		})
	}
}

func TestProtectionEngineUserClasses(t *testing.T) {
	lockGuard := ProtectionClass{
		Name:        "lock-force-release",
		Description: "Audits forced lock releases",
		Rules: []ProtectionRule{
			{Domain: "lock", Pattern: "*force_release*", Action: ProtectionAudit, Description: "Audit forced releases"},
		},
	}

	pe := NewProtectionEngine(lockGuard)

	tests := []struct {
		name    string
		domain  string
		target  string
		allowed bool
		action  ProtectionAction
	}{
		{"forced release audited (but allowed)", "lock", "force_release resource=build-lock", true, ProtectionAudit},
		{"release allowed (no matching rule)", "lock", "release resource=build-lock", true, ProtectionAction(0)},

		// Built-in classes still apply alongside user classes
		{"DROP TABLE still blocked", "db", "DROP TABLE users", false, ProtectionBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pe.Evaluate(tt.domain, tt.target)
			if result.Allowed != tt.allowed {
				t.Errorf("Evaluate(%q, %q) Allowed=%v, want %v", tt.domain, tt.target, result.Allowed, tt.allowed)
			}
			if !tt.allowed {
				if result.Action != tt.action {
					t.Errorf("Action = %v, want %v", result.Action, tt.action)
				}
			}
		})
	}
}

func TestProtectionEngineEmptyTarget(t *testing.T) {
	pe := NewProtectionEngine()

	result := pe.Evaluate("db", "")
	if !result.Allowed {
		t.Error("Empty target should be allowed")
	}

	result = pe.Evaluate("unknown-domain", "some action")
	if !result.Allowed {
		t.Error("Unknown domain should be allowed")
	}
}

func TestProtectionEngineClassList(t *testing.T) {
	custom := ProtectionClass{
		Name:        "custom",
		Description: "Custom rules",
		Rules:       []ProtectionRule{},
	}

	pe := NewProtectionEngine(custom)
	classes := pe.Classes()

	if len(classes) != 3 {
		t.Errorf("Expected 3 classes, got %d", len(classes))
	}

	names := make(map[string]bool)
	for _, c := range classes {
		names[c.Name] = true
	}

	for _, want := range []string{"sql-data", "command-card-exec", "custom"} {
		if !names[want] {
			t.Errorf("Missing protection class: %q", want)
		}
	}
}
