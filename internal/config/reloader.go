package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Reloader re-reads .env and the config file while `taskflow serve` runs.
// Listeners decide which settings they can apply live; a failed reload
// keeps the previous config.
type Reloader struct {
	configPath string
	dotenvPath string

	cfg       atomic.Pointer[Config]
	mu        sync.Mutex
	listeners []func(prev, next *Config)
}

func NewReloader(configPath, dotenvPath string, initial *Config) *Reloader {
	r := &Reloader{configPath: configPath, dotenvPath: dotenvPath}
	r.cfg.Store(initial)
	return r
}

// Current returns the last successfully loaded config.
func (r *Reloader) Current() *Config {
	return r.cfg.Load()
}

// OnReload registers fn to run after each successful reload.
func (r *Reloader) OnReload(fn func(prev, next *Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Reload overrides the environment from .env, then loads the config file so
// that ${{ .Env.VAR }} templates see the new values.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ReloadDotenv(r.dotenvPath); err != nil {
		return fmt.Errorf("reload %s: %w", r.dotenvPath, err)
	}
	next, err := Load(r.configPath)
	if err != nil {
		return fmt.Errorf("reload %s: %w", r.configPath, err)
	}

	prev := r.cfg.Swap(next)
	if fields := RestartFields(prev, next); len(fields) > 0 {
		slog.Warn("config changes need a restart", "fields", fields)
	}
	slog.Info("config reloaded", "path", r.configPath)

	for _, fn := range r.listeners {
		fn(prev, next)
	}
	return nil
}

// Run reloads on every value received from hup until ctx is done.
// Reload failures are logged and do not stop the loop.
func (r *Reloader) Run(ctx context.Context, hup <-chan os.Signal) error {
	for {
		select {
		case <-hup:
			if err := r.Reload(); err != nil {
				slog.Warn("config reload failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// RestartFields names the settings that differ between prev and next and
// only take effect when the server starts.
func RestartFields(prev, next *Config) []string {
	var fields []string
	check := func(name string, changed bool) {
		if changed {
			fields = append(fields, name)
		}
	}
	check("gateway.host", prev.Gateway.Host != next.Gateway.Host)
	check("gateway.port", prev.Gateway.Port != next.Gateway.Port)
	check("gateway.database", prev.Gateway.Database != next.Gateway.Database)
	check("auth.jwt_secret", prev.Auth.JWTSecret != next.Auth.JWTSecret)
	check("auth.token_ttl", prev.Auth.TokenTTL != next.Auth.TokenTTL)
	check("tasks.transitions", prev.Tasks.Transitions != next.Tasks.Transitions)
	check("events.buffer_size", prev.Events.BufferSize != next.Events.BufferSize)
	check("events.log_dir", prev.Events.LogDir != next.Events.LogDir)
	check("cleanup.schedule", prev.Cleanup.Schedule != next.Cleanup.Schedule)
	return fields
}
