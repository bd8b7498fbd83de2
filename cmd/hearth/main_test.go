package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/hearth/internal/auth"
	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/database"
	"github.com/nerrad567/hearth/internal/state"
)

const testSecret = "test-secret-for-development-only-32b"

// fakeOllama answers every generate call with answer.
func fakeOllama(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[]}`)) //nolint:errcheck // test server
		case "/api/generate":
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test server
				"response":      answer,
				"done":          true,
				"eval_count":    12,
				"eval_duration": int64(100 * time.Millisecond),
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a minimal config with everything optional switched off.
func writeConfig(t *testing.T, dir, endpoint, extra string) string {
	t.Helper()
	content := `
site:
  id: test-site
database:
  path: "` + filepath.Join(dir, "hearth.db") + `"
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  format: text
  output: discard
api:
  enabled: false
automation:
  enabled: false
language:
  endpoint: "` + endpoint + `"
  model: test-model
  timeout: 5
` + extra
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with an unparseable config file.
func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("site: [unclosed"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: path})
	if err == nil {
		t.Fatal("run() should fail with invalid config")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails validation without a database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  id: test-site
database:
  path: ""
logging:
  output: discard
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: path})
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path is required") {
		t.Errorf("run() error = %v", err)
	}
}

func TestRun_InvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte("devices: []\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	ollama := fakeOllama(t, `{}`)
	path := writeConfig(t, dir, ollama.URL, "catalog:\n  path: \""+catalogPath+"\"\n")

	err := run(context.Background(), options{configPath: path})
	if err == nil || !strings.Contains(err.Error(), "loading catalog") {
		t.Errorf("run() error = %v, want loading catalog", err)
	}
}

// TestRun_ServeUntilCancelled starts the headless mode and stops it.
func TestRun_ServeUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	ollama := fakeOllama(t, `{"intent": "unknown"}`)
	path := writeConfig(t, dir, ollama.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestRun_Interactive drives one command through the terminal session and
// checks the transitions reached the database, including the switch-off on exit.
func TestRun_Interactive(t *testing.T) {
	dir := t.TempDir()
	ollama := fakeOllama(t, `{"intent": "turn_on", "devices": ["kitchen_light"], "confidence": 0.95}`)
	path := writeConfig(t, dir, ollama.URL, "")

	var out bytes.Buffer
	err := run(context.Background(), options{
		configPath:  path,
		interactive: true,
		in:          strings.NewReader("turn on the kitchen light\nquit\n"),
		out:         &out,
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Hearth is ready.", "Assistant:", "Goodbye!"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(dir, "hearth.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	history, err := state.NewSQLiteRepository(db.DB).GetHistory(context.Background(), "kitchen_light", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history entries = %d, want 2 (on, then off at exit)", len(history))
	}
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins", "flag.yaml", "env.yaml", "flag.yaml"},
		{"env", "", "env.yaml", "env.yaml"},
		{"default", "", "", defaultConfigPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HEARTH_CONFIG", tt.env)
			if got := resolveConfigPath(tt.flag); got != tt.want {
				t.Errorf("resolveConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("loadEnvFile(missing) error = %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Errorf("loadEnvFile(\"\") error = %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("HEARTH_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("HEARTH_TEST_DOTENV", "")
	os.Unsetenv("HEARTH_TEST_DOTENV") //nolint:errcheck // t.Setenv restores it

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}
	if got := os.Getenv("HEARTH_TEST_DOTENV"); got != "loaded" {
		t.Errorf("HEARTH_TEST_DOTENV = %q, want loaded", got)
	}
}

func TestTokenCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "http://127.0.0.1:1", "security:\n  jwt:\n    secret: \""+testSecret+"\"\n")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--config", path, "--role", "viewer", "--subject", "panel", "--env-file", ""})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "panel" || claims.Role != auth.RoleViewer {
		t.Errorf("claims = %s/%s, want panel/viewer", claims.Subject, claims.Role)
	}
}

func TestTokenCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	noSecret := writeConfig(t, dir, "http://127.0.0.1:1", "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no secret", []string{"token", "--config", noSecret}, "authentication is disabled"},
		{"bad role", []string{"token", "--config", writeConfig(t, t.TempDir(), "http://127.0.0.1:1",
			"security:\n  jwt:\n    secret: \""+testSecret+"\"\n"), "--role", "admin"}, "generating token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetArgs(append(tt.args, "--env-file", ""))
			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestMigrateCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "http://127.0.0.1:1", "")

	migrate := func(sub string) []string {
		t.Helper()
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs([]string{"migrate", sub, "--config", path, "--env-file", ""})
		if err := root.Execute(); err != nil {
			t.Fatalf("migrate %s error = %v", sub, err)
		}
		return strings.Split(strings.TrimSpace(out.String()), "\n")
	}
	count := func(lines []string, prefix string) int {
		n := 0
		for _, l := range lines {
			if strings.HasPrefix(l, prefix) {
				n++
			}
		}
		return n
	}

	up := migrate("up")
	if count(up, "pending") != 0 || count(up, "applied") == 0 {
		t.Fatalf("after up: %q", up)
	}
	total := count(up, "applied")

	down := migrate("down")
	if count(down, "applied") != total-1 || count(down, "pending") != 1 {
		t.Fatalf("after down: %q", down)
	}
	if last := down[len(down)-1]; !strings.Contains(last, "automation_runs") {
		t.Errorf("reverted migration = %q, want the latest (automation_runs)", last)
	}

	if status := migrate("status"); count(status, "pending") != 1 {
		t.Errorf("status: %q", status)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "hearth "+version) {
		t.Errorf("output = %q", out.String())
	}
}
