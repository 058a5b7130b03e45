package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/taskflow/clients/ws"
	wsprotocol "github.com/dohr-michael/taskflow/internal/gateway/ws"
	"github.com/dohr-michael/taskflow/internal/tasks"
	"github.com/dohr-michael/taskflow/internal/ui"
)

// NewWatchCommand returns the watch subcommand.
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream live events from a taskflow server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "WebSocket URL (default: from gateway.host and gateway.port)",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Access token (default: the one saved by login)",
			},
			&cli.StringFlag{
				Name:    "events",
				Aliases: []string{"e"},
				Usage:   "Comma-separated event types to show (default: all)",
			},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)
	out := cmd.Root().Writer

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := cmd.String("url")
	if url == "" {
		url = serverURL(cfg, "ws") + "/ws"
	}
	token := cmd.String("token")
	if token == "" {
		token = savedToken()
	}

	client, err := wsclient.Dial(ctx, url, token)
	if err != nil {
		return err
	}
	defer client.Close()

	if types := cmd.String("events"); types != "" {
		if _, err := client.Subscribe(tasks.ParseTags(types)...); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	fmt.Fprintln(out, ui.MutedStyle.Render("Watching "+url+" (Ctrl-C to stop)"))

	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch frame.Type {
		case wsprotocol.FrameTypeEvent:
			e, err := wsclient.DecodeEvent(frame)
			if err != nil {
				slog.Debug("skip frame", "error", err)
				continue
			}
			fmt.Fprintln(out, ui.EventLine(e))
		case wsprotocol.FrameTypeResponse:
			if frame.OK != nil && !*frame.OK {
				return errors.New(frame.Error)
			}
		}
	}
}
