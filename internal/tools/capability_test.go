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

func TestActionTierString(t *testing.T) {
	tests := []struct {
		tier ActionTier
		want string
	}{
		{TierRead, "read"},
		{TierServiceMutation, "service-mutation"},
		{TierDestructiveMutation, "destructive-mutation"},
		{TierDataMutation, "data-mutation"},
		{ActionTier(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.tier.String(); got != tt.want {
			t.Errorf("ActionTier(%d).String() = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestParseActionTier(t *testing.T) {
	tests := []struct {
		input string
		want  ActionTier
	}{
		{"read", TierRead},
		{"service-mutation", TierServiceMutation},
		{"destructive-mutation", TierDestructiveMutation},
		{"data-mutation", TierDataMutation},
		{"unknown-value", TierDataMutation}, // Unknown defaults to most restrictive
		{"", TierDataMutation},
	}
	for _, tt := range tests {
		if got := ParseActionTier(tt.input); got != tt.want {
			t.Errorf("ParseActionTier(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestProtectionActionString(t *testing.T) {
	tests := []struct {
		action ProtectionAction
		want   string
	}{
		{ProtectionBlock, "block"},
		{ProtectionApprove, "approve"},
		{ProtectionAudit, "audit"},
		{ProtectionAction(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("ProtectionAction(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestDefaultSQLProtectionClass(t *testing.T) {
	pc := DefaultSQLProtectionClass()

	if pc.Name != "sql-data" {
		t.Errorf("Name = %q, want 'sql-data'", pc.Name)
	}
	if len(pc.Rules) < 2 {
		t.Errorf("Expected at least 2 rules, got %d", len(pc.Rules))
	}
	for _, rule := range pc.Rules {
		if rule.Domain != "db" {
			t.Errorf("Rule %q has domain %q, expected 'db'", rule.Pattern, rule.Domain)
		}
	}
}

func TestDefaultCommandCardProtectionClass(t *testing.T) {
	pc := DefaultCommandCardProtectionClass()

	if pc.Name != "command-card-exec" {
		t.Errorf("Name = %q, want 'command-card-exec'", pc.Name)
	}

	found := false
	for _, rule := range pc.Rules {
		if rule.Domain != "command_card" {
			t.Errorf("Rule %q has domain %q, expected 'command_card'", rule.Pattern, rule.Domain)
		}
		if rule.Pattern == "*rm -rf /*" && rule.Action == ProtectionBlock {
			found = true
		}
	}
	if !found {
		t.Error("Expected 'rm -rf /' to be blocked")
	}
}

func TestToolCapabilityDomain(t *testing.T) {
	cap := ToolCapability{
		Domain:              "db",
		SupportedTiers:      []ActionTier{TierRead, TierDataMutation},
		RequiresCredentials: true,
		RequiresConnection:  true,
	}

	if cap.Domain != "db" {
		t.Errorf("Domain = %q, want 'db'", cap.Domain)
	}
	if !cap.RequiresCredentials {
		t.Error("db tool should require credentials")
	}
	if !cap.RequiresConnection {
		t.Error("db tool should require connection")
	}
	if len(cap.SupportedTiers) != 2 {
		t.Errorf("Expected 2 supported tiers, got %d", len(cap.SupportedTiers))
	}
}

func TestActionClassificationBlocked(t *testing.T) {
	ac := ActionClassification{
		Tier:        TierDataMutation,
		Target:      "card_key=drop-prod-table",
		Description: "Attempt to run a destructive command card",
		Blocked:     true,
		BlockReason: "matches dangerous-pattern rule",
	}

	if !ac.Blocked {
		t.Error("Expected action to be blocked")
	}
	if ac.Tier != TierDataMutation {
		t.Errorf("Expected data-mutation tier, got %v", ac.Tier)
	}
}
