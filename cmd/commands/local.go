package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/config"
	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// setupLogging installs a text handler on stderr, at Debug when --debug is set.
func setupLogging(cmd *cli.Command, level slog.Level) {
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads --config; a missing file yields defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if cmd.IsSet("storage") {
		cfg.Storage.Backend = cmd.String("storage")
	}
	if cmd.IsSet("data") {
		cfg.Storage.Path = cmd.String("data")
	}
	return cfg, nil
}

// dataPath resolves the data file for the configured backend.
func dataPath(cfg *config.Config) (string, error) {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}
	kind, err := storage.ParseKind(cfg.Storage.Backend)
	if err != nil {
		return "", err
	}
	return filepath.Join(config.TaskflowPath(), storage.DefaultFileName(kind)), nil
}

// local is one CLI invocation's view of the task store: load, mutate, save.
type local struct {
	cfg      *config.Config
	backend  storage.Backend
	registry *tasks.Registry
	path     string
	out      io.Writer
	in       io.Reader
}

func openLocal(ctx context.Context, cmd *cli.Command) (*local, error) {
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	policy, err := tasks.ParsePolicy(cfg.Tasks.Transitions)
	if err != nil {
		return nil, err
	}
	path, err := dataPath(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := storage.New(ctx, cfg.Storage.Backend, path)
	if err != nil {
		return nil, err
	}
	c, err := backend.Load(ctx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	reg := tasks.NewRegistry(policy)
	reg.Load(c)
	slog.Debug("tasks loaded", "backend", cfg.Storage.Backend, "path", path, "count", reg.Len())

	return &local{
		cfg:      cfg,
		backend:  backend,
		registry: reg,
		path:     path,
		out:      cmd.Root().Writer,
		in:       cmd.Root().Reader,
	}, nil
}

func (l *local) save(ctx context.Context) error {
	if err := l.backend.Save(ctx, l.registry.Export()); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (l *local) close() {
	if err := l.backend.Close(); err != nil {
		slog.Warn("close storage", "error", err)
	}
}

// resolve maps a typed id or unique prefix to a stored id.
func (l *local) resolve(arg string) (string, error) {
	if arg == "" {
		return "", &tasks.ValidationError{Field: "id", Message: "a task id is required"}
	}
	id, ok := l.registry.Resolve(arg)
	if !ok {
		return "", tasks.TaskNotFound(arg)
	}
	return id, nil
}

// withLocal adapts fn into a cli action that opens the store and, when
// mutating, saves it after fn succeeds.
func withLocal(mutating bool, fn func(ctx context.Context, cmd *cli.Command, l *local) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		l, err := openLocal(ctx, cmd)
		if err != nil {
			return err
		}
		defer l.close()

		if err := fn(ctx, cmd, l); err != nil {
			return err
		}
		if mutating {
			return l.save(ctx)
		}
		return nil
	}
}
