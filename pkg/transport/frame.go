package transport

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged with the collaboration service.
const (
	FrameAuth          = "auth"
	FrameAuthenticated = "authenticated"
	FrameAuthFailed    = "auth_failed"
	FrameSync          = "sync"
	FrameSynced        = "synced"
	FrameUpdate        = "update"
)

// Frame is one JSON text message. Update carries encoded crdt updates and is
// base64 on the wire.
type Frame struct {
	Type     string `json:"type"`
	Document string `json:"document,omitempty"`
	Token    string `json:"token,omitempty"`
	Update   []byte `json:"update,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}
