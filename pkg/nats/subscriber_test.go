package nats

import (
	"encoding/json"
	"testing"
	"time"

	"collab-editor-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(map[string]interface{}{
		"document":    "doc-42",
		"occurred_at": at.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	event, err := DecodeEvent(Subject(events.TypeDocumentOpened), data)
	require.NoError(t, err)
	assert.Equal(t, events.TypeDocumentOpened, event.EventType())
	assert.Equal(t, "doc-42", event.Payload()["document"])
	assert.NotContains(t, event.Payload(), "occurred_at")
	assert.True(t, at.Equal(event.Timestamp()))
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := DecodeEvent(Subject(events.TypeDocumentClosed), []byte("{"))
	assert.Error(t, err)
}
