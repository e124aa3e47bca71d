package relay

import (
	"sync"

	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/transport"
)

type source int

const (
	fromClient source = iota
	fromCluster
	fromLog
)

// Room is the server-side replica of one document and its local clients.
type Room struct {
	name string
	hub  *Hub
	doc  *crdt.Tree

	// mu serializes applies, broadcasts and membership. Change callbacks run
	// while it is held.
	mu      sync.Mutex
	clients map[*Client]bool
	origin  *Client
	source  source
	userID  string

	unsubscribe func()
}

func newRoom(hub *Hub, name string) *Room {
	r := &Room{
		name:    name,
		hub:     hub,
		doc:     crdt.NewTree(name, hub.instance),
		clients: make(map[*Client]bool),
	}
	r.unsubscribe = r.doc.Subscribe(r.onChange)
	return r
}

func (r *Room) Name() string { return r.name }

func (r *Room) Document() *crdt.Tree { return r.doc }

func (r *Room) add(c *Client) {
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()
}

// remove drops c and reports how many clients remain.
func (r *Room) remove(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[c] {
		delete(r.clients, c)
		close(c.send)
	}
	return len(r.clients)
}

// Clients reports how many local clients are in the room.
func (r *Room) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// apply merges an encoded update. Newly integrated ops are forwarded to
// every local client except from.
func (r *Room) apply(update []byte, from *Client, src source, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(update, from, src, userID)
}

func (r *Room) applyLocked(update []byte, from *Client, src source, userID string) error {
	r.origin, r.source, r.userID = from, src, userID
	defer func() { r.origin, r.userID = nil, "" }()
	return r.doc.ApplyRemote(update)
}

// sync merges a joining client's state and answers with the full room state.
func (r *Room) sync(c *Client, state []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(state) > 0 {
		if err := r.applyLocked(state, c, fromClient, c.userID); err != nil {
			return err
		}
	}
	full, err := r.doc.Serialize()
	if err != nil {
		return err
	}
	r.sendLocked(c, transport.Frame{Type: transport.FrameSync, Document: r.name, Update: full})
	r.sendLocked(c, transport.Frame{Type: transport.FrameSynced, Document: r.name})
	return nil
}

func (r *Room) onChange(change crdt.Change) {
	update, err := crdt.EncodeUpdate(change.Ops)
	if err != nil {
		r.hub.logger.Error(logModule, "Failed to encode change", map[string]interface{}{"document": r.name, "error": err.Error()})
		return
	}

	frame := transport.Frame{Type: transport.FrameUpdate, Document: r.name, Update: update}
	for c := range r.clients {
		if c != r.origin {
			r.sendLocked(c, frame)
		}
	}

	// Updates from other instances were already fanned out and persisted there.
	if r.source == fromClient {
		r.hub.publishCluster(r.name, update)
		r.hub.record(r.name, r.userID, update)
	}
}

// sendLocked queues frame for c. A client whose buffer is full is
// disconnected; its read pump then unregisters it.
func (r *Room) sendLocked(c *Client, frame transport.Frame) {
	data, err := frame.Encode()
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		r.hub.logger.Warn(logModule, "Client send buffer full, dropping connection", map[string]interface{}{"document": r.name, "user_id": c.userID})
		c.disconnect()
	}
}

// state serializes the replica for compaction.
func (r *Room) state() ([]byte, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := r.doc.Serialize()
	if err != nil {
		return nil, 0, err
	}
	update, err := crdt.DecodeUpdate(data)
	if err != nil {
		return nil, 0, err
	}
	return data, len(update.Ops), nil
}
