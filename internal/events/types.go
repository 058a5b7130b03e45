package events

// EventType represents the type of event.
type EventType string

const (
	// Task lifecycle
	EventTaskCreated       EventType = "task.created"
	EventTaskUpdated       EventType = "task.updated"
	EventTaskDeleted       EventType = "task.deleted"
	EventTaskStatusChanged EventType = "task.status_changed"

	// Live connections
	EventUserConnected    EventType = "user.connected"
	EventUserDisconnected EventType = "user.disconnected"

	EventNotification EventType = "notification"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceAPI       EventSource = "api"
	SourceHub       EventSource = "hub"
	SourceScheduler EventSource = "scheduler"
)
