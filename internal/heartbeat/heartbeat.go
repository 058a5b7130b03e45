// Package heartbeat publishes a running server's address and load to a file
// that `taskflow status` reads.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// State is what a reader can conclude from the heartbeat file.
type State string

const (
	StateRunning State = "running"
	StateStale   State = "stale"   // file not refreshed within maxAge
	StateStopped State = "stopped" // no file, or its process is gone
)

// DefaultInterval is how often Run refreshes the file.
const DefaultInterval = 30 * time.Second

// Report is the content of the heartbeat file.
type Report struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Addr      string    `json:"addr,omitempty"`
	Database  string    `json:"database,omitempty"`
	Clients   int       `json:"clients"`
}

// Uptime is the time between server start and the last refresh.
func (r *Report) Uptime() time.Duration {
	return r.UpdatedAt.Sub(r.StartedAt).Truncate(time.Second)
}

// Options describe the server being reported on.
type Options struct {
	Addr     string
	Database string
	Interval time.Duration
	Clients  func() int // live WebSocket connections
}

// Writer keeps the heartbeat file of one server process up to date.
type Writer struct {
	path    string
	opts    Options
	started time.Time
}

func NewWriter(path string, opts Options) *Writer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Writer{path: path, opts: opts, started: time.Now().UTC()}
}

// Run writes the file immediately, refreshes it every interval and removes
// it once ctx is done.
func (w *Writer) Run(ctx context.Context) error {
	if err := w.write(); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	defer os.Remove(w.path)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.write(); err != nil {
				slog.Warn("heartbeat write failed", "path", w.path, "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Writer) write() error {
	r := Report{
		PID:       os.Getpid(),
		StartedAt: w.started,
		UpdatedAt: time.Now().UTC(),
		Addr:      w.opts.Addr,
		Database:  w.opts.Database,
	}
	if w.opts.Clients != nil {
		r.Clients = w.opts.Clients()
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

// Check reads the heartbeat file at path. A report older than maxAge is
// stale; a report whose process no longer exists means the server stopped
// without cleaning up.
func Check(path string, maxAge time.Duration) (State, *Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return StateStopped, nil, nil
	}
	if err != nil {
		return StateStopped, nil, fmt.Errorf("read heartbeat: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return StateStopped, nil, fmt.Errorf("decode heartbeat %s: %w", path, err)
	}
	switch {
	case !processAlive(r.PID):
		return StateStopped, &r, nil
	case time.Since(r.UpdatedAt) > maxAge:
		return StateStale, &r, nil
	}
	return StateRunning, &r, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return !errors.Is(p.Signal(syscall.Signal(0)), os.ErrProcessDone)
}
