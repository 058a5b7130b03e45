package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/config"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "taskflow",
		Usage:   "Track tasks from the terminal or share them through a server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "storage",
				Aliases: []string{"s"},
				Usage:   "Storage backend (file, embedded-db)",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Path to the data file",
			},
		},
		Commands: []*cli.Command{
			NewAddCommand(),
			NewListCommand(),
			NewShowCommand(),
			NewTransitionCommand("start", "Start working on a task"),
			NewTransitionCommand("complete", "Mark a task as completed"),
			NewTransitionCommand("cancel", "Cancel a task"),
			NewDeleteCommand(),
			NewEditCommand(),
			NewSearchCommand(),
			NewTagCommand(),
			NewTagsCommand(),
			NewStatsCommand(),
			NewExportCommand(),
			NewImportCommand(),
			NewCleanCommand(),
			NewBackupCommand(),
			NewServeCommand(),
			NewStatusCommand(),
			NewLoginCommand(),
			NewSecretCommand(),
			NewWatchCommand(),
			NewMCPServeCommand(),
		},
	}
}
