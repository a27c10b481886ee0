package store

import (
	"fmt"
	"regexp"
	"strings"
)

const maxSQLLength = 4096

var (
	sqlTokenRE          = regexp.MustCompile(`(?s)('(?:''|[^'])*')|("(?:""|[^"])*")|(--[^\n]*)|(/\*.*?\*/)`)
	sqlWriteKeywordRE   = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|create|alter|drop|truncate|grant|revoke|comment|copy|vacuum|analyze|refresh|reindex|cluster|call|do)\b`)
	sqlDangerousExecRE  = regexp.MustCompile(`(?i)\b(create|alter|drop|truncate|grant|revoke|comment|copy|vacuum|analyze|refresh|reindex|cluster|call|do)\b`)
	sqlDMLKeywordRE     = regexp.MustCompile(`(?i)\b(insert|update|delete|merge)\b`)
	firstKeywordRE      = regexp.MustCompile(`^\s*([a-zA-Z_]+)`)
	dmlTargetTableRE    = regexp.MustCompile(`(?i)\b(?:insert\s+into|update|delete\s+from|merge\s+into)\s+([A-Za-z_][A-Za-z0-9_$]*(?:\.[A-Za-z_][A-Za-z0-9_$]*)?)\b`)
	allowedExecKeywords = map[string]bool{"insert": true, "update": true, "delete": true, "merge": true, "with": true}
	dbExecuteAllowedTables = map[string]bool{
		"agent_interactions": true,
		"prompt_templates":   true,
		"command_cards":      true,
		"command_card_runs":  true,
	}
)

func stripSQLLiterals(query string) string {
	return sqlTokenRE.ReplaceAllString(query, " ")
}

func validateSingleStatement(query string) (string, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return "", fmt.Errorf("sql must not be empty")
	}
	if len(text) > maxSQLLength {
		return "", fmt.Errorf("sql exceeds max length (%d chars)", maxSQLLength)
	}

	body := strings.TrimSpace(strings.TrimRight(text, ";"))
	if body == "" {
		return "", fmt.Errorf("sql must not be empty")
	}
	if strings.Contains(stripSQLLiterals(body), ";") {
		return "", fmt.Errorf("only a single sql statement is allowed")
	}
	return body, nil
}

func firstSQLKeyword(query string) string {
	m := firstKeywordRE.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// ValidateReadOnlyQuery implements the db_query guard: single statement,
// first keyword must be SELECT/WITH, no write keyword anywhere outside
// string/comment literals.
func ValidateReadOnlyQuery(query string) (string, error) {
	body, err := validateSingleStatement(query)
	if err != nil {
		return "", err
	}
	sanitized := stripSQLLiterals(body)
	first := firstSQLKeyword(sanitized)
	if first != "select" && first != "with" {
		return "", fmt.Errorf("db_query only allows SELECT/CTE queries")
	}
	if sqlWriteKeywordRE.MatchString(sanitized) {
		return "", fmt.Errorf("db_query detected a write keyword, rejected")
	}
	return body, nil
}

// ValidateExecuteQuery implements the db_execute guard: single statement,
// first keyword restricted to INSERT/UPDATE/DELETE/MERGE/WITH, DDL and
// management keywords rejected even inside a WITH clause, and the DML
// target table(s) must be in the fixed whitelist.
func ValidateExecuteQuery(query string) (string, error) {
	body, err := validateSingleStatement(query)
	if err != nil {
		return "", err
	}
	sanitized := stripSQLLiterals(body)
	first := firstSQLKeyword(sanitized)
	if first == "" {
		return "", fmt.Errorf("invalid sql syntax")
	}
	if first == "select" || first == "show" || first == "explain" {
		return "", fmt.Errorf("db_execute does not allow read-only sql, use db_query instead")
	}
	if !allowedExecKeywords[first] {
		return "", fmt.Errorf("db_execute does not support this sql type: %s", first)
	}
	if sqlDangerousExecRE.MatchString(sanitized) {
		return "", fmt.Errorf("db_execute forbids DDL/management statements")
	}
	if first == "with" && !sqlDMLKeywordRE.MatchString(sanitized) {
		return "", fmt.Errorf("db_execute WITH statements must contain an INSERT/UPDATE/DELETE/MERGE")
	}

	tables := map[string]bool{}
	for _, m := range dmlTargetTableRE.FindAllStringSubmatch(sanitized, -1) {
		name := strings.ToLower(strings.TrimSpace(m[1]))
		if name == "" {
			continue
		}
		parts := strings.Split(name, ".")
		tables[parts[len(parts)-1]] = true
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("db_execute found no DML target table")
	}

	var blocked []string
	for t := range tables {
		if !dbExecuteAllowedTables[t] {
			blocked = append(blocked, t)
		}
	}
	if len(blocked) > 0 {
		return "", fmt.Errorf("db_execute forbids non-whitelisted table(s): %s", strings.Join(blocked, ", "))
	}

	return body, nil
}

// EscapeLike escapes %, _ and \ for safe use inside a LIKE pattern,
// matching the convention used across every keyword-search endpoint.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// NormalizeLimit clamps limit into [1, max], substituting def when limit <= 0.
func NormalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
