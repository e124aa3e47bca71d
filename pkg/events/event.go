package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_OPENED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeDocumentOpened = "DOCUMENT_OPENED"
	TypeDocumentClosed = "DOCUMENT_CLOSED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// DocumentOpened is emitted when a relay instance loads a document room.
func DocumentOpened(document, instance string, replayed int) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentOpened,
		Data: map[string]interface{}{
			"document": document,
			"instance": instance,
			"replayed": replayed,
		},
		OccurredAt: time.Now(),
	}
}

// DocumentClosed is emitted when the last client leaves a room.
func DocumentClosed(document, instance string, ops int) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentClosed,
		Data: map[string]interface{}{
			"document": document,
			"instance": instance,
			"ops":      ops,
		},
		OccurredAt: time.Now(),
	}
}
