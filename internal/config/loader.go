package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/events"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC or YAML config file (chosen by extension), expands
// ${{ .Env.VAR }} templates, unmarshals it into Config, and applies defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := Parse(path, data, &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Parse decodes config content. YAML is used for .yaml/.yml files, JSONC
// (JSON with comments and trailing commas) otherwise.
func Parse(path string, data []byte, cfg *Config) error {
	// Expand environment variable templates (before parsing, since templates are in strings)
	expanded := []byte(expandEnvTemplates(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
	default:
		std, err := hujson.Standardize(expanded)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		if err := json.Unmarshal(std, cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
	}
	return nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Tasks.Transitions == "" {
		cfg.Tasks.Transitions = "strict"
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 3000
	}
	if cfg.Gateway.Database == "" {
		cfg.Gateway.Database = filepath.Join(TaskflowPath(), "server.db")
	}
	// The environment always wins for the signing secret.
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = Duration(auth.DefaultTokenTTL)
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = events.DefaultBufferSize
	}
	if cfg.Events.LogDir == "" {
		cfg.Events.LogDir = filepath.Join(TaskflowPath(), "logs")
	}
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = "0 3 * * *"
	}
	if cfg.Cleanup.RetentionDays == 0 {
		cfg.Cleanup.RetentionDays = 30
	}
}
