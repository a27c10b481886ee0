package store

import "testing"

func TestValidateReadOnlyQuery(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"plain select", "SELECT * FROM tasks", false},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"write keyword", "SELECT * FROM tasks; DROP TABLE tasks", true},
		{"update disguised", "UPDATE tasks SET status='done'", true},
		{"write keyword in column name is fine", "SELECT delete_flag FROM tasks", false}, // "_" is a word character, so \bdelete\b does not match inside delete_flag
		{"multi statement", "SELECT 1; SELECT 2", true},
		{"empty", "   ", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateReadOnlyQuery(tc.query)
			if (err != nil) != tc.wantErr {
				t.Fatalf("query=%q err=%v wantErr=%v", tc.query, err, tc.wantErr)
			}
		})
	}
}

func TestValidateExecuteQuery(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"insert into non-whitelisted table", "INSERT INTO tasks (title) VALUES ('x')", true}, // tasks not in DB-execute whitelist
		{"insert allowed table", "INSERT INTO command_card_runs (card_key) VALUES ('x')", false},
		{"update allowed table", "UPDATE prompt_templates SET title='x' WHERE prompt_key='y'", false},
		{"ddl rejected", "DROP TABLE command_cards", true},
		{"select rejected", "SELECT * FROM command_cards", true},
		{"with without dml", "WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"with containing dml", "WITH x AS (SELECT 1) INSERT INTO agent_interactions (sender) SELECT 'a' FROM x", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateExecuteQuery(tc.query)
			if (err != nil) != tc.wantErr {
				t.Fatalf("query=%q err=%v wantErr=%v", tc.query, err, tc.wantErr)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0, 100, 1000); got != 100 {
		t.Fatalf("got %d", got)
	}
	if got := NormalizeLimit(5000, 100, 1000); got != 1000 {
		t.Fatalf("got %d", got)
	}
	if got := NormalizeLimit(50, 100, 1000); got != 50 {
		t.Fatalf("got %d", got)
	}
}
