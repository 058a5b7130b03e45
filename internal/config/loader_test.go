package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSONC(t *testing.T) {
	path := writeConfig(t, "config.jsonc", `{
	// This is a JSONC comment
	"storage": {"backend": "embedded-db", "path": "/data/tasks.db"},
	"tasks": {"transitions": "permissive"},
	"gateway": {
		"host": "0.0.0.0",
		"port": 9999, // trailing comma below
	},
	"auth": {"jwt_secret": "${{ .Env.TF_TEST_SECRET }}", "token_ttl": "2h"},
}`)
	t.Setenv("TF_TEST_SECRET", "s3cret")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.Backend != "embedded-db" || cfg.Storage.Path != "/data/tasks.db" {
		t.Errorf("storage: got %+v", cfg.Storage)
	}
	if cfg.Tasks.Transitions != "permissive" {
		t.Errorf("transitions: got %q", cfg.Tasks.Transitions)
	}
	if cfg.Gateway.Host != "0.0.0.0" || cfg.Gateway.Port != 9999 {
		t.Errorf("gateway: got %s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt_secret: got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL.Duration() != 2*time.Hour {
		t.Errorf("token_ttl: got %v", cfg.Auth.TokenTTL.Duration())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
storage:
  backend: file
gateway:
  port: 8080
auth:
  token_ttl: 30m
cleanup:
  schedule: "*/5 * * * *"
  retention_days: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("port: got %d", cfg.Gateway.Port)
	}
	if cfg.Auth.TokenTTL.Duration() != 30*time.Minute {
		t.Errorf("token_ttl: got %v", cfg.Auth.TokenTTL.Duration())
	}
	if cfg.Cleanup.Schedule != "*/5 * * * *" || cfg.Cleanup.RetentionDays != 7 {
		t.Errorf("cleanup: got %+v", cfg.Cleanup)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TASKFLOW_PATH", "/tmp/tf-home")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}

	if cfg.Storage.Backend != "file" {
		t.Errorf("backend: got %q", cfg.Storage.Backend)
	}
	if cfg.Tasks.Transitions != "strict" {
		t.Errorf("transitions: got %q", cfg.Tasks.Transitions)
	}
	if cfg.Gateway.Host != "127.0.0.1" || cfg.Gateway.Port != 3000 {
		t.Errorf("gateway: got %s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	if cfg.Gateway.Database != "/tmp/tf-home/server.db" {
		t.Errorf("database: got %q", cfg.Gateway.Database)
	}
	if cfg.Auth.TokenTTL.Duration() != 24*time.Hour {
		t.Errorf("token_ttl: got %v", cfg.Auth.TokenTTL.Duration())
	}
	if cfg.Events.BufferSize != 256 {
		t.Errorf("buffer_size: got %d", cfg.Events.BufferSize)
	}
	if cfg.Cleanup.Schedule != "0 3 * * *" || cfg.Cleanup.RetentionDays != 30 {
		t.Errorf("cleanup: got %+v", cfg.Cleanup)
	}
}

func TestJWTSecretEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.jsonc", `{"auth": {"jwt_secret": "from-file"}}`)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("jwt_secret: got %q, want from-env", cfg.Auth.JWTSecret)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "config.jsonc", `{"gateway": {"port": "not a number"}}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestExpandEnvTemplates(t *testing.T) {
	t.Setenv("TF_A", "alpha")
	got := expandEnvTemplates(`{"x": "${{ .Env.TF_A }}", "y": "${{.Env.TF_UNSET_VAR}}"}`)
	want := `{"x": "alpha", "y": ""}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
