package crdt

import (
	"encoding/json"
	"fmt"
)

// OpKind names the mutation carried by an Op.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpSetAttr OpKind = "set_attr"
	OpSetText OpKind = "set_text"
)

// Op is a single replicated mutation. ID is unique per op and doubles as the
// last-writer-wins stamp for attribute and text writes. For inserts the new
// node's identity is the op ID.
type Op struct {
	ID     NodeID `json:"id"`
	Kind   OpKind `json:"kind"`
	Target NodeID `json:"target"`

	// Insert only
	Parent NodeID `json:"parent,omitempty"`
	After  NodeID `json:"after,omitempty"` // zero means "first child"
	Type   string `json:"type,omitempty"`

	// Insert / SetText
	Text string `json:"text,omitempty"`

	// Insert (initial attrs) / SetAttr
	Attrs map[string]any `json:"attrs,omitempty"`
	Key   string         `json:"key,omitempty"`
	Value any            `json:"value,omitempty"`
}

// Update is the wire envelope for a batch of ops.
type Update struct {
	Ops []Op `json:"ops"`
}

// EncodeUpdate serializes ops for the transport.
func EncodeUpdate(ops []Op) ([]byte, error) {
	data, err := json.Marshal(Update{Ops: ops})
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	return data, nil
}

// DecodeUpdate parses bytes produced by EncodeUpdate or Serialize.
func DecodeUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return u, nil
}
