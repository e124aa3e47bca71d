package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	logModule          = "RELAY"
	defaultSendBuffer  = 256
	eventQueueSize     = 64
	eventPublishBudget = 5 * time.Second
)

// EventPublisher receives document lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type HubConfig struct {
	// Instance identifies this process on the cluster channel. Empty means a
	// random id.
	Instance      string
	Redis         *redis.Client
	ChannelPrefix string
	Log           *UpdateLog
	Events        EventPublisher
	Logger        logger.ILogger
	SendBuffer    int
}

type clusterMessage struct {
	Instance string `json:"instance"`
	Document string `json:"document"`
	Update   []byte `json:"update"`
}

// Hub owns the open rooms of this instance. Membership changes go through
// the register and unregister channels and are handled by Run.
type Hub struct {
	instance   string
	rooms      map[string]*Room
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	// Lock for safe map access
	mu sync.RWMutex

	rdb           *redis.Client
	channelPrefix string
	log           *UpdateLog
	events        EventPublisher
	eventQueue    chan events.Event
	logger        logger.ILogger
	sendBuffer    int
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Instance == "" {
		cfg.Instance = uuid.NewString()
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "collab:"
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Hub{
		instance:      cfg.Instance,
		rooms:         make(map[string]*Room),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		stopped:       make(chan struct{}),
		rdb:           cfg.Redis,
		channelPrefix: cfg.ChannelPrefix,
		log:           cfg.Log,
		events:        cfg.Events,
		eventQueue:    make(chan events.Event, eventQueueSize),
		logger:        cfg.Logger,
		sendBuffer:    cfg.SendBuffer,
	}
}

func (h *Hub) Instance() string { return h.instance }

// Start confirms the cluster subscription, when redis is configured, and
// runs the hub until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	if h.rdb != nil {
		pubsub := h.rdb.PSubscribe(ctx, h.channelPrefix+"*")
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return err
		}
		go func() {
			<-ctx.Done()
			pubsub.Close()
		}()
		go h.subscribeToRedis(pubsub)
	}
	if h.events != nil {
		go h.publishEvents(ctx)
	}
	go h.Run(ctx)
	return nil
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			room := h.open(ctx, client.document)
			room.add(client)
			client.joined <- room
			h.logger.Info(logModule, "Client joined", map[string]interface{}{"document": client.document, "user_id": client.userID})

		case client := <-h.unregister:
			room := client.room
			if room == nil {
				continue
			}
			if room.remove(client) == 0 {
				h.close(ctx, room)
			}
			h.logger.Info(logModule, "Client left", map[string]interface{}{"document": client.document, "user_id": client.userID})
		}
	}
}

// join blocks until Run has placed c in its room. It reports false when the
// hub has stopped.
func (h *Hub) join(c *Client) (*Room, bool) {
	select {
	case h.register <- c:
	case <-h.stopped:
		return nil, false
	}
	return <-c.joined, true
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) open(ctx context.Context, name string) *Room {
	h.mu.RLock()
	room, ok := h.rooms[name]
	h.mu.RUnlock()
	if ok {
		return room
	}

	room = newRoom(h, name)
	replayed := 0
	if h.log != nil {
		updates, err := h.log.Replay(ctx, name)
		if err != nil {
			h.logger.Error(logModule, "Failed to replay update log", map[string]interface{}{"document": name, "error": err.Error()})
		}
		for _, u := range updates {
			if err := room.apply(u, nil, fromLog, ""); err != nil {
				h.logger.Warn(logModule, "Skipping unreadable logged update", map[string]interface{}{"document": name, "error": err.Error()})
				continue
			}
			replayed++
		}
	}

	h.mu.Lock()
	h.rooms[name] = room
	h.mu.Unlock()

	h.logger.Info(logModule, "Room opened", map[string]interface{}{"document": name, "replayed": replayed})
	h.emit(events.DocumentOpened(name, h.instance, replayed))
	return room
}

func (h *Hub) close(ctx context.Context, room *Room) {
	h.mu.Lock()
	delete(h.rooms, room.name)
	h.mu.Unlock()
	room.unsubscribe()

	state, ops, err := room.state()
	if err != nil {
		h.logger.Error(logModule, "Failed to serialize room", map[string]interface{}{"document": room.name, "error": err.Error()})
	} else if h.log != nil && ops > 0 {
		if err := h.log.Compact(ctx, room.name, h.instance, state); err != nil {
			h.logger.Error(logModule, "Failed to compact update log", map[string]interface{}{"document": room.name, "error": err.Error()})
		}
	}

	h.logger.Info(logModule, "Room closed", map[string]interface{}{"document": room.name, "ops": ops})
	h.emit(events.DocumentClosed(room.name, h.instance, ops))
}

// Room returns the open room for document, if any.
func (h *Hub) Room(document string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[document]
	return room, ok
}

// Stats reports open rooms and connected clients.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	open := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		open = append(open, r)
	}
	h.mu.RUnlock()

	for _, r := range open {
		clients += r.Clients()
	}
	return len(open), clients
}

// emit queues event for publishing in order. Events are dropped when the
// queue is full.
func (h *Hub) emit(event events.Event) {
	if h.events == nil {
		return
	}
	select {
	case h.eventQueue <- event:
	default:
		h.logger.Warn(logModule, "Event queue full, dropping event", map[string]interface{}{"type": event.EventType()})
	}
}

func (h *Hub) publishEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.eventQueue:
			pubCtx, cancel := context.WithTimeout(ctx, eventPublishBudget)
			if err := h.events.Publish(pubCtx, event); err != nil {
				h.logger.Warn(logModule, "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
			}
			cancel()
		}
	}
}

func (h *Hub) record(document, userID string, update []byte) {
	if h.log == nil {
		return
	}
	if err := h.log.Record(document, userID, h.instance, update); err != nil {
		h.logger.Error(logModule, "Failed to queue update", map[string]interface{}{"document": document, "error": err.Error()})
	}
}

func (h *Hub) publishCluster(document string, update []byte) {
	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterMessage{Instance: h.instance, Document: document, Update: update})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), h.channelPrefix+document, payload).Err(); err != nil {
		h.logger.Warn(logModule, "Failed to publish to cluster", map[string]interface{}{"document": document, "error": err.Error()})
	}
}

// subscribeToRedis applies updates accepted by other instances to the
// matching local room.
func (h *Hub) subscribeToRedis(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn(logModule, "Cluster message parse error", map[string]interface{}{"channel": msg.Channel, "error": err.Error()})
			continue
		}
		if payload.Instance == h.instance {
			continue
		}
		room, ok := h.Room(payload.Document)
		if !ok {
			continue
		}
		if err := room.apply(payload.Update, nil, fromCluster, ""); err != nil {
			h.logger.Warn(logModule, "Failed to apply cluster update", map[string]interface{}{"document": payload.Document, "error": err.Error()})
		}
	}
}
