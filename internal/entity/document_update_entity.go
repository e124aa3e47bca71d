package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentUpdate is one accepted update in a document's log. A compacted log
// holds a single snapshot entry carrying the full replica state.
type DocumentUpdate struct {
	Id        uuid.UUID
	Document  string
	Sequence  int64
	UserId    string
	Instance  string
	Snapshot  bool
	Payload   []byte
	CreatedAt time.Time
}
