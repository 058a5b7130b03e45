package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/config"
	"github.com/dohr-michael/taskflow/internal/ui"
)

// NewLoginCommand returns the login subcommand.
func NewLoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in to a taskflow server and store the token",
		ArgsUsage: "<email>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Server base URL (default: from gateway.host and gateway.port)",
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Password (prompted when empty)",
				Sources: cli.EnvVars("TASKFLOW_PASSWORD"),
			},
		},
		Action: runLogin,
	}
}

func runLogin(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)
	out := cmd.Root().Writer

	email := cmd.Args().First()
	if email == "" {
		return fmt.Errorf("login: an email is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base := cmd.String("url")
	if base == "" {
		base = serverURL(cfg, "http")
	}

	password := cmd.String("password")
	if password == "" {
		password, err = ui.ReadPassword(os.Stdin, out, "Password: ")
		if err != nil {
			return err
		}
	}

	resp, err := login(ctx, base, email, password)
	if err != nil {
		return err
	}

	path := config.TokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(resp.Token+"\n"), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Fprintf(out, "%s Logged in as %s\n", ui.SuccessStyle.Render("✓"), resp.User.Username)
	fmt.Fprintf(out, "Token saved to %s\n", path)
	return nil
}

func login(ctx context.Context, base, email, password string) (*auth.AuthResponse, error) {
	body, err := json.Marshal(auth.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(base, "/")+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("login failed: %s", e.Error)
		}
		return nil, fmt.Errorf("login failed: %s", res.Status)
	}

	var out auth.AuthResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &out, nil
}

// serverURL derives the server address from the gateway config.
// A wildcard listen host is dialed on loopback.
func serverURL(cfg *config.Config, scheme string) string {
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(cfg.Gateway.Port))
}

// savedToken returns the token written by login, or "" when there is none.
func savedToken() string {
	data, err := os.ReadFile(config.TokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
