package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/taskflow/internal/events"
)

func waitForFile(path string) {
	for i := 0; i < 200; i++ {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEventLogger_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	evt := events.NewTypedEvent(events.SourceAPI, "u1", events.TaskDeletedPayload{TaskID: "t-1"})
	bus.Publish(evt)

	path := el.LogPath(evt)
	waitForFile(path)
	time.Sleep(20 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read JSONL: %v", err)
	}

	var got events.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != evt.ID {
		t.Errorf("got ID %q, want %q", got.ID, evt.ID)
	}
	if got.Type != events.EventTaskDeleted {
		t.Errorf("got type %q, want %q", got.Type, events.EventTaskDeleted)
	}
	if got.UserID != "u1" {
		t.Errorf("got user %q, want %q", got.UserID, "u1")
	}
}

func TestEventLogger_SkipsConnectionEvents(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.NewTypedEvent(events.SourceHub, "u1", events.UserConnectedPayload{Username: "a"}))
	bus.Publish(events.NewTypedEvent(events.SourceHub, "", events.NotificationPayload{Message: "hi"}))

	time.Sleep(100 * time.Millisecond)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}
}

func TestEventLogger_AppendsInOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	ids := []string{"a", "b", "c"}
	var last events.Event
	for _, id := range ids {
		last = events.NewTypedEvent(events.SourceScheduler, "", events.TaskDeletedPayload{TaskID: id})
		bus.Publish(last)
	}

	time.Sleep(100 * time.Millisecond)

	f, err := os.Open(el.LogPath(last))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e events.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line %d: %v", len(got), err)
		}
		got = append(got, events.TaskID(e))
	}
	if len(got) != len(ids) {
		t.Fatalf("got %d events, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], ids[i])
		}
	}
}

func TestEventLogger_RotatesByDay(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)

	first := events.NewTypedEvent(events.SourceAPI, "", events.TaskDeletedPayload{TaskID: "old"})
	first.Timestamp = time.Date(2030, 1, 1, 23, 59, 0, 0, time.UTC)
	second := events.NewTypedEvent(events.SourceAPI, "", events.TaskDeletedPayload{TaskID: "new"})
	second.Timestamp = time.Date(2030, 1, 2, 0, 1, 0, 0, time.UTC)
	bus.Publish(first)
	bus.Publish(second)

	waitForFile(el.LogPath(second))
	time.Sleep(20 * time.Millisecond)
	el.Close()

	for _, e := range []events.Event{first, second} {
		data, err := os.ReadFile(el.LogPath(e))
		if err != nil {
			t.Fatalf("read %s: %v", el.LogPath(e), err)
		}
		var got events.Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if events.TaskID(got) != events.TaskID(e) {
			t.Errorf("%s holds %q, want %q", filepath.Base(el.LogPath(e)), events.TaskID(got), events.TaskID(e))
		}
	}
}
