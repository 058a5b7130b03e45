package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	taskmcp "github.com/dohr-michael/taskflow/internal/mcp"
	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp-serve",
		Usage:  "Expose the local task store as an MCP server (stdio)",
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP stdio transport; logs stay on stderr
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	policy, err := tasks.ParsePolicy(cfg.Tasks.Transitions)
	if err != nil {
		return err
	}
	path, err := dataPath(cfg)
	if err != nil {
		return err
	}
	backend, err := storage.New(ctx, cfg.Storage.Backend, path)
	if err != nil {
		return err
	}
	defer backend.Close()

	slog.Debug("starting MCP server", "backend", cfg.Storage.Backend, "path", path)

	server := taskmcp.NewServer(taskmcp.NewTools(backend, policy), Version)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
