package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for TaskFlow.
type Config struct {
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Tasks   TasksConfig   `json:"tasks" yaml:"tasks"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Auth    AuthConfig    `json:"auth" yaml:"auth"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	Cleanup CleanupConfig `json:"cleanup" yaml:"cleanup"`
}

// StorageConfig selects the local backend.
type StorageConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "file" or "embedded-db"
	Path    string `json:"path" yaml:"path"`       // data file (default: $TASKFLOW_PATH/tasks.json|tasks.db)
}

// TasksConfig configures the task state machine.
type TasksConfig struct {
	Transitions string `json:"transitions" yaml:"transitions"` // "strict" or "permissive"
}

// GatewayConfig holds the web service settings.
type GatewayConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"` // default: $TASKFLOW_PATH/server.db
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSecret string   `json:"jwt_secret" yaml:"jwt_secret"` // direct value or ${{ .Env.VAR }} template
	TokenTTL  Duration `json:"token_ttl,omitempty" yaml:"token_ttl,omitempty"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size" yaml:"buffer_size"`
	LogDir     string `json:"log_dir" yaml:"log_dir"` // default: $TASKFLOW_PATH/logs
}

// CleanupConfig drives the scheduled purge of completed tasks.
type CleanupConfig struct {
	Schedule      string `json:"schedule" yaml:"schedule"`             // 5-field cron expression
	RetentionDays int    `json:"retention_days" yaml:"retention_days"` // <0 disables the purge
}

// Duration wraps time.Duration for JSON and YAML unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	dur, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
