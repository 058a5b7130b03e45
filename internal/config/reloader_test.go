package config

import (
	"context"
	"os"
	"slices"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestReloader_Current(t *testing.T) {
	cfg := &Config{}
	cfg.Cleanup.RetentionDays = 9

	r := NewReloader("", "", cfg)
	if got := r.Current().Cleanup.RetentionDays; got != 9 {
		t.Errorf("Current().Cleanup.RetentionDays = %d, want 9", got)
	}
}

func TestReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	dotenvPath := filepath.Join(dir, ".env")
	configPath := filepath.Join(dir, "config.jsonc")

	if err := os.WriteFile(dotenvPath, []byte("TF_RETENTION=10\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TF_RETENTION", "")
	configContent := `{"cleanup": {"retention_days": ${{ .Env.TF_RETENTION }}}}`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	initial := &Config{}
	r := NewReloader(configPath, dotenvPath, initial)

	var seen atomic.Int32
	r.OnReload(func(prev, next *Config) {
		if prev != initial {
			t.Errorf("listener prev = %p, want initial config", prev)
		}
		seen.Store(int32(next.Cleanup.RetentionDays))
	})

	if err := os.WriteFile(dotenvPath, []byte("TF_RETENTION=45\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if seen.Load() != 45 {
		t.Errorf("listener saw retention %d, want 45", seen.Load())
	}
	if got := r.Current(); got == initial || got.Cleanup.RetentionDays != 45 {
		t.Errorf("Current() not swapped: %+v", got.Cleanup)
	}
}

func TestReloader_ReloadKeepsCurrentOnError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(configPath, []byte(`{"gateway": `), 0o644); err != nil {
		t.Fatal(err)
	}

	initial := &Config{}
	r := NewReloader(configPath, filepath.Join(dir, ".env"), initial)
	if err := r.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if r.Current() != initial {
		t.Error("failed reload replaced the current config")
	}
}

func TestReloader_RunReloadsOnSignal(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(configPath, []byte(`{"cleanup": {"retention_days": 7}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewReloader(configPath, filepath.Join(dir, ".env"), &Config{})
	done := make(chan int, 1)
	r.OnReload(func(_, next *Config) { done <- next.Cleanup.RetentionDays })

	ctx, cancel := context.WithCancel(context.Background())
	hup := make(chan os.Signal, 1)
	stopped := make(chan error, 1)
	go func() { stopped <- r.Run(ctx, hup) }()

	hup <- os.Interrupt
	if got := <-done; got != 7 {
		t.Errorf("retention after signal = %d, want 7", got)
	}
	cancel()
	if err := <-stopped; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestRestartFields(t *testing.T) {
	prev := &Config{}
	prev.Gateway.Port = 3000
	prev.Cleanup.RetentionDays = 30

	next := *prev
	next.Gateway.Port = 4000
	next.Cleanup.RetentionDays = 10
	next.Cleanup.Schedule = "0 4 * * *"

	got := RestartFields(prev, &next)
	want := []string{"gateway.port", "cleanup.schedule"}
	if !slices.Equal(got, want) {
		t.Errorf("RestartFields = %v, want %v", got, want)
	}
	if got := RestartFields(prev, prev); got != nil {
		t.Errorf("unchanged config: %v", got)
	}
}
