package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/config"
	"github.com/dohr-michael/taskflow/internal/secrets"
	"github.com/dohr-michael/taskflow/internal/ui"
)

var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewSecretCommand returns the secret subcommand.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Store credentials encrypted in the .env file",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Encrypt a value and write it to .env",
				ArgsUsage: "<NAME>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "value", Usage: "Value to store (prompted when empty)"},
				},
				Action: runSecretSet,
			},
		},
	}
}

func runSecretSet(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)
	out := cmd.Root().Writer

	name := cmd.Args().First()
	if !envName.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}

	value := cmd.String("value")
	if value == "" {
		var err error
		value, err = ui.ReadPassword(os.Stdin, out, name+": ")
		if err != nil {
			return err
		}
	}
	if value == "" {
		return fmt.Errorf("refusing to store an empty %s", name)
	}

	keyring, err := secrets.OpenKeyring(secrets.KeyPath(), true)
	if err != nil {
		return err
	}
	sealed, err := keyring.Seal(value)
	if err != nil {
		return err
	}
	if err := secrets.SetEntry(config.DotenvPath(), name, sealed); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s stored encrypted in %s\n", ui.SuccessStyle.Render("✓"), name, config.DotenvPath())
	return nil
}
