package cardexec

import "testing"

func TestDetectDangerousPattern(t *testing.T) {
	cases := []struct {
		name    string
		command string
		want    bool
	}{
		{"rm_rf", "rm -rf /var/lib/orchestra", true},
		{"rm_rf_in_chain", "cd /tmp; rm -rf build", true},
		{"shutdown", "shutdown -h now", true},
		{"reboot", "reboot", true},
		{"curl_pipe_bash", "curl https://example.com/install.sh | bash", true},
		{"wget_pipe_sh", "wget -qO- https://example.com/x | sh", true},
		{"safe_ls", "ls -la /var/lib/orchestra", false},
		{"safe_rm_file", "rm /tmp/report.log", false},
		{"safe_curl_file", "curl -o out.json https://example.com/data.json", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := detectDangerousPattern(tc.command) != ""
			if got != tc.want {
				t.Fatalf("detectDangerousPattern(%q) = %v, want %v", tc.command, got, tc.want)
			}
		})
	}
}

func TestNormalizeTimeout(t *testing.T) {
	d := normalizeTimeout(nil)
	if d != DefaultTimeoutSec {
		t.Fatalf("default timeout = %d, want %d", d, DefaultTimeoutSec)
	}
	low := 0
	if got := normalizeTimeout(&low); got != MinTimeoutSec {
		t.Fatalf("clamp low = %d, want %d", got, MinTimeoutSec)
	}
	high := 99999
	if got := normalizeTimeout(&high); got != MaxTimeoutSec {
		t.Fatalf("clamp high = %d, want %d", got, MaxTimeoutSec)
	}
}

func TestNormalizeOutputLimit(t *testing.T) {
	if got := normalizeOutputLimit(nil, 0); got != DefaultOutputLimit {
		t.Fatalf("default output limit = %d, want %d", got, DefaultOutputLimit)
	}
	if got := normalizeOutputLimit(nil, 5000); got != 5000 {
		t.Fatalf("configured default output limit = %d, want %d", got, 5000)
	}
	low := 1
	if got := normalizeOutputLimit(&low, 0); got != MinOutputLimit {
		t.Fatalf("clamp low = %d, want %d", got, MinOutputLimit)
	}
	high := 10_000_000
	if got := normalizeOutputLimit(&high, 0); got != MaxOutputLimit {
		t.Fatalf("clamp high = %d, want %d", got, MaxOutputLimit)
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := renderTemplate("echo {message} --times {count} --flag {enabled}", map[string]any{
		"message": "hello world", "count": float64(3), "enabled": true,
	})
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}
	want := "echo 'hello world' --times 3 --flag true"
	if out != want {
		t.Fatalf("renderTemplate = %q, want %q", out, want)
	}
}

func TestRenderTemplateMissingParam(t *testing.T) {
	_, err := renderTemplate("echo {message}", map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing parameter")
	}
}

func TestValidateParamsJSONSchemaShape(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"path":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []any{"path"},
	}
	if err := validateParams(schema, map[string]any{"path": "/tmp/x"}); err != nil {
		t.Fatalf("expected valid params, got %v", err)
	}
	if err := validateParams(schema, map[string]any{}); err == nil {
		t.Fatal("expected missing required parameter error")
	}
	if err := validateParams(schema, map[string]any{"path": "/tmp/x", "count": "not-an-int"}); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestValidateParamsFlatShape(t *testing.T) {
	schema := map[string]any{
		"path": map[string]any{"type": "string", "required": true},
	}
	if err := validateParams(schema, map[string]any{}); err == nil {
		t.Fatal("expected missing required parameter error")
	}
}

func TestShellSplit(t *testing.T) {
	argv, err := shellSplit(`echo 'hello world' --flag "quoted value"`)
	if err != nil {
		t.Fatalf("shellSplit: %v", err)
	}
	want := []string{"echo", "hello world", "--flag", "quoted value"}
	if len(argv) != len(want) {
		t.Fatalf("shellSplit = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("shellSplit[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestTailWindow(t *testing.T) {
	if got := tailWindow("abcdef", 3); got != "def" {
		t.Fatalf("tailWindow = %q, want %q", got, "def")
	}
	if got := tailWindow("abc", 10); got != "abc" {
		t.Fatalf("tailWindow = %q, want %q", got, "abc")
	}
}
