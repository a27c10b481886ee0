/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package tools

// ActionTier classifies the risk level of a tool action.
type ActionTier int

const (
	// TierRead is a read-only action with no side effects.
	TierRead ActionTier = iota
	// TierServiceMutation changes running services (restart, scale, deploy).
	TierServiceMutation
	// TierDestructiveMutation destroys or irreversibly modifies resources.
	TierDestructiveMutation
	// TierDataMutation modifies data (databases, files, object storage).
	// Always blocked by default — requires explicit approval.
	TierDataMutation
)

// String returns the human-readable name of an action tier.
func (t ActionTier) String() string {
	switch t {
	case TierRead:
		return "read"
	case TierServiceMutation:
		return "service-mutation"
	case TierDestructiveMutation:
		return "destructive-mutation"
	case TierDataMutation:
		return "data-mutation"
	default:
		return "unknown"
	}
}

// ParseActionTier converts a string to an ActionTier.
func ParseActionTier(s string) ActionTier {
	switch s {
	case "read":
		return TierRead
	case "service-mutation":
		return TierServiceMutation
	case "destructive-mutation":
		return TierDestructiveMutation
	case "data-mutation":
		return TierDataMutation
	default:
		return TierDataMutation // Unknown = most restrictive
	}
}

// ToolCapability declares what a tool can do.
type ToolCapability struct {
	// Domain is the tool's operational domain (e.g. "db", "lock", "command_card").
	Domain string

	// SupportedTiers lists the action tiers this tool can perform.
	SupportedTiers []ActionTier

	// RequiresCredentials indicates whether the tool needs credential injection.
	RequiresCredentials bool

	// RequiresConnection indicates whether the tool needs an active connection (shell, DB, etc.).
	RequiresConnection bool
}

// ActionClassification is the result of classifying a tool action.
type ActionClassification struct {
	// Tier is the risk level of this specific action.
	Tier ActionTier

	// Target describes what the action operates on (e.g. "resource=build-lock", "card_key=deploy-prod").
	Target string

	// Description is a human-readable summary of the action.
	Description string

	// Blocked indicates the action should be unconditionally blocked.
	Blocked bool

	// BlockReason explains why the action is blocked (if Blocked is true).
	BlockReason string
}

// ClassifiableTool extends Tool with action classification capabilities.
// No tool in this package implements it, and Registry.Execute does not
// consult it.
type ClassifiableTool interface {
	Tool

	// Capability returns the tool's declared capabilities.
	Capability() ToolCapability

	// ClassifyAction inspects the tool arguments and returns the action's risk tier.
	ClassifyAction(args map[string]interface{}) ActionClassification
}

// ProtectionClass defines a set of resources that require special protection.
// Protection classes are configurable per-environment or globally.
type ProtectionClass struct {
	// Name identifies this protection class (e.g. "kubernetes-data", "production-databases").
	Name string

	// Description explains what this class protects.
	Description string

	// Rules define the protection rules.
	Rules []ProtectionRule
}

// ProtectionRule specifies a single resource protection rule.
type ProtectionRule struct {
	// Domain is the tool domain this rule applies to (e.g. "kubernetes", "ssh", "sql").
	// Empty means all domains.
	Domain string

	// Pattern matches the action target (glob-style).
	// Examples: "PersistentVolumeClaim/*", "/etc/shadow", "DROP TABLE *"
	Pattern string

	// Action specifies what happens when a match is found.
	Action ProtectionAction

	// Description explains the rule.
	Description string
}

// ProtectionAction defines how a protection rule is enforced.
type ProtectionAction int

const (
	// ProtectionBlock unconditionally blocks the action.
	ProtectionBlock ProtectionAction = iota
	// ProtectionApprove requires human approval before proceeding.
	ProtectionApprove
	// ProtectionAudit allows the action but logs an audit event.
	ProtectionAudit
)

// String returns the human-readable name of a protection action.
func (a ProtectionAction) String() string {
	switch a {
	case ProtectionBlock:
		return "block"
	case ProtectionApprove:
		return "approve"
	case ProtectionAudit:
		return "audit"
	default:
		return "unknown"
	}
}

// DefaultSQLProtectionClass returns the built-in guard rules for SQL
// text in the "db" domain. They overlap store.ValidateExecuteQuery's
// DDL keyword ban (DROP, TRUNCATE) at a coarser grain and add an
// approval rule for DELETE FROM; no dispatch path evaluates them.
func DefaultSQLProtectionClass() ProtectionClass {
	return ProtectionClass{
		Name:        "sql-data",
		Description: "Protects against destructive statements reaching db.execute",
		Rules: []ProtectionRule{
			{Domain: "db", Pattern: "*DROP TABLE*", Action: ProtectionBlock, Description: "Never drop tables"},
			{Domain: "db", Pattern: "*TRUNCATE*", Action: ProtectionBlock, Description: "Never truncate tables"},
			{Domain: "db", Pattern: "*DELETE FROM*", Action: ProtectionApprove, Description: "Bulk deletes need approval"},
		},
	}
}

// DefaultCommandCardProtectionClass returns built-in guard rules for
// rendered command_card shell invocations.
func DefaultCommandCardProtectionClass() ProtectionClass {
	return ProtectionClass{
		Name:        "command-card-exec",
		Description: "Blocks rendered command cards matching known-dangerous shell patterns",
		Rules: []ProtectionRule{
			{Domain: "command_card", Pattern: "*rm -rf /*", Action: ProtectionBlock, Description: "Block recursive root deletion"},
			{Domain: "command_card", Pattern: "*mkfs*", Action: ProtectionBlock, Description: "Block filesystem creation"},
			{Domain: "command_card", Pattern: "*dd if=*", Action: ProtectionBlock, Description: "Block raw disk operations"},
			{Domain: "command_card", Pattern: "*> /dev/*", Action: ProtectionBlock, Description: "Block writes to device files"},
		},
	}
}
