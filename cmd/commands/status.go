package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/config"
	"github.com/dohr-michael/taskflow/internal/heartbeat"
	"github.com/dohr-michael/taskflow/internal/ui"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a local taskflow server is running",
		Action: func(_ context.Context, cmd *cli.Command) error {
			out := cmd.Root().Writer
			state, hb, err := heartbeat.Check(config.HeartbeatPath(), 2*time.Minute)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch state {
			case heartbeat.StateRunning:
				fmt.Fprintf(out, "Server: %s (PID %d, uptime %s)\n", ui.SuccessStyle.Render("ALIVE"), hb.PID, hb.Uptime())
				fmt.Fprintf(out, "  listening on %s, %d connected clients\n", hb.Addr, hb.Clients)
				fmt.Fprintf(out, "  database %s\n", hb.Database)
			case heartbeat.StateStale:
				fmt.Fprintf(out, "Server: %s (PID %d, last heartbeat %s ago)\n",
					ui.WarningStyle.Render("STALE"), hb.PID, time.Since(hb.UpdatedAt).Truncate(time.Second))
			default:
				fmt.Fprintln(out, "Server: NOT RUNNING")
				if hb != nil {
					fmt.Fprintf(out, "  PID %d exited without removing %s\n", hb.PID, config.HeartbeatPath())
				}
			}
			return nil
		},
	}
}
