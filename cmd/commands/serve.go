package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/config"
	"github.com/dohr-michael/taskflow/internal/db"
	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/gateway"
	"github.com/dohr-michael/taskflow/internal/heartbeat"
	"github.com/dohr-michael/taskflow/internal/scheduler"
	"github.com/dohr-michael/taskflow/internal/secrets"
	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

var errNoSecret = errors.New("no JWT secret: set auth.jwt_secret or JWT_SECRET")

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the multi-user HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelInfo)

	configPath := cmd.String("config")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}
	if cfg.Auth.JWTSecret == "" {
		return errNoSecret
	}
	secret, err := secrets.Reveal(cfg.Auth.JWTSecret, secrets.KeyPath())
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}
	policy, err := tasks.ParsePolicy(cfg.Tasks.Transitions)
	if err != nil {
		return err
	}

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	// Task events are appended to daily JSONL files
	eventLog := storage.NewEventLogger(cfg.Events.LogDir, bus)
	defer eventLog.Close()

	// Database
	store, err := db.Open(ctx, cfg.Gateway.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	slog.Info("database ready", "path", store.Path())

	// Gateway server
	server := gateway.NewServer(bus, store, gateway.Options{
		Host:   cfg.Gateway.Host,
		Port:   cfg.Gateway.Port,
		JWT:    auth.NewJWTManager(secret, cfg.Auth.TokenTTL.Duration()),
		Hasher: auth.NewPasswordHasher(0),
		Policy: policy,
	})

	// Scheduled purge of old completed tasks
	sched, err := scheduler.New(scheduler.Config{
		Purger:        store,
		Bus:           bus,
		Schedule:      cfg.Cleanup.Schedule,
		RetentionDays: cfg.Cleanup.RetentionDays,
	})
	if err != nil {
		return fmt.Errorf("cleanup schedule: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	sched.Start(gctx)
	defer sched.Stop()

	hb := heartbeat.NewWriter(config.HeartbeatPath(), heartbeat.Options{
		Addr:     server.Addr(),
		Database: store.Path(),
		Clients:  server.Hub().ClientCount,
	})

	// SIGHUP re-reads .env and the config file; only the retention is live.
	reloader := config.NewReloader(configPath, config.DotenvPath(), cfg)
	reloader.OnReload(func(_, next *config.Config) {
		sched.SetRetention(next.Cleanup.RetentionDays)
	})

	g.Go(server.Start)
	g.Go(func() error { return hb.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		return reloader.Run(gctx, hup)
	})

	return g.Wait()
}
