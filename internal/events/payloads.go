package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/taskflow/internal/tasks"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TASK EVENTS
// =============================================================================

type TaskCreatedPayload struct {
	Task tasks.Task `json:"task"`
}

func (TaskCreatedPayload) EventType() EventType { return EventTaskCreated }

type TaskUpdatedPayload struct {
	Task tasks.Task `json:"task"`
}

func (TaskUpdatedPayload) EventType() EventType { return EventTaskUpdated }

type TaskDeletedPayload struct {
	TaskID     string `json:"task_id"`
	Title      string `json:"title,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

func (TaskDeletedPayload) EventType() EventType { return EventTaskDeleted }

type TaskStatusChangedPayload struct {
	Task tasks.Task   `json:"task"`
	From tasks.Status `json:"from"`
	To   tasks.Status `json:"to"`
}

func (TaskStatusChangedPayload) EventType() EventType { return EventTaskStatusChanged }

// =============================================================================
// CONNECTION EVENTS
// =============================================================================

type UserConnectedPayload struct {
	Username string `json:"username"`
}

func (UserConnectedPayload) EventType() EventType { return EventUserConnected }

type UserDisconnectedPayload struct {
	Username string `json:"username"`
}

func (UserDisconnectedPayload) EventType() EventType { return EventUserDisconnected }

type NotificationPayload struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"` // info, warning
}

func (NotificationPayload) EventType() EventType { return EventNotification }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

// NewTypedEvent builds an event from payload on behalf of userID ("" for the system).
func NewTypedEvent(source EventSource, userID string, payload EventPayload) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      payload.EventType(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		UserID:    userID,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	if e.Type != result.EventType() {
		return result, false
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

// TaskID returns the id of the task an event refers to, or "".
func TaskID(e Event) string {
	if id, ok := e.Payload["task_id"].(string); ok {
		return id
	}
	if t, ok := e.Payload["task"].(map[string]any); ok {
		id, _ := t["id"].(string)
		return id
	}
	return ""
}

// TaskAudience returns the creator and assignee of the task a task event
// refers to, the only users allowed to see it. ok is false for events that
// are not about a task.
func TaskAudience(e Event) (users []string, ok bool) {
	var fields map[string]any
	switch e.Type {
	case EventTaskDeleted:
		fields = e.Payload
	case EventTaskCreated, EventTaskUpdated, EventTaskStatusChanged:
		fields, _ = e.Payload["task"].(map[string]any)
	default:
		return nil, false
	}
	for _, key := range []string{"created_by", "assigned_to"} {
		if id, _ := fields[key].(string); id != "" {
			users = append(users, id)
		}
	}
	return users, true
}
