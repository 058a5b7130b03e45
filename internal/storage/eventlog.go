package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/taskflow/internal/events"
)

// auditedEvents are the bus events that change task data.
var auditedEvents = []events.EventType{
	events.EventTaskCreated,
	events.EventTaskUpdated,
	events.EventTaskDeleted,
	events.EventTaskStatusChanged,
}

// EventLogger appends task events to one JSONL file per UTC day,
// dir/events-YYYY-MM-DD.jsonl. It keeps the current day's file open.
type EventLogger struct {
	dir  string
	stop func()

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{dir: dir}
	el.stop = bus.Subscribe(el.record, auditedEvents...)
	return el
}

// Close stops logging and closes the open day file.
func (el *EventLogger) Close() {
	if el.stop != nil {
		el.stop()
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		el.file.Close()
		el.file, el.day = nil, ""
	}
}

func (el *EventLogger) record(e events.Event) {
	line, err := json.Marshal(e)
	if err != nil {
		slog.Warn("event log encode failed", "event", e.Type, "error", err)
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	f, err := el.fileFor(e)
	if err == nil {
		_, err = f.Write(append(line, '\n'))
	}
	if err != nil {
		slog.Warn("event log write failed", "event", e.Type, "error", err)
	}
}

// fileFor returns the open file for the event's day, rotating when the day
// changes. Callers hold el.mu.
func (el *EventLogger) fileFor(e events.Event) (*os.File, error) {
	day := dayOf(e)
	if el.file != nil && el.day == day {
		return el.file, nil
	}
	if err := os.MkdirAll(el.dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(el.LogPath(e), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if el.file != nil {
		el.file.Close()
	}
	el.file, el.day = f, day
	return f, nil
}

func dayOf(e events.Event) string {
	return e.Timestamp.UTC().Format("2006-01-02")
}

// LogPath returns the file an event is appended to.
func (el *EventLogger) LogPath(e events.Event) string {
	return filepath.Join(el.dir, "events-"+dayOf(e)+".jsonl")
}
