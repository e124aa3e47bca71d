package relay

import (
	"errors"
	"sync"
	"time"

	"collab-editor-be/pkg/transport"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
)

// Client is a middleman between an authenticated websocket connection and
// its document room.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	document string

	// Buffered channel of outbound frames.
	send   chan []byte
	joined chan *Room
	room   *Room

	// The connection is released when the handler returns, so the handler
	// waits for writePump. done ends writePump once reading stops and kick
	// ends it when the room drops the client.
	done       chan struct{}
	kick       chan struct{}
	kickOnce   sync.Once
	writerDone chan struct{}
}

// ServeClient joins the connection to its room and pumps frames until the
// connection closes. It runs in the websocket handler goroutine.
func ServeClient(hub *Hub, conn *websocket.Conn, userID, document string) {
	client := &Client{
		hub:        hub,
		conn:       conn,
		userID:     userID,
		document:   document,
		send:       make(chan []byte, hub.sendBuffer),
		joined:     make(chan *Room, 1),
		done:       make(chan struct{}),
		kick:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	room, ok := hub.join(client)
	if !ok {
		conn.Close()
		return
	}
	client.room = room

	go client.writePump()
	client.readPump()
	<-client.writerDone
}

// disconnect makes writePump close the connection, which ends readPump.
func (c *Client) disconnect() {
	c.kickOnce.Do(func() { close(c.kick) })
}

// readPump pumps frames from the websocket connection into the room.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(logModule, "Unexpected close", map[string]interface{}{"document": c.document, "user_id": c.userID, "error": err.Error()})
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := transport.DecodeFrame(data)
		if err != nil {
			c.hub.logger.Warn(logModule, "Ignoring malformed frame", map[string]interface{}{"document": c.document, "error": err.Error()})
			continue
		}
		if err := c.handle(frame); err != nil {
			c.hub.logger.Warn(logModule, "Rejected frame", map[string]interface{}{"document": c.document, "type": frame.Type, "error": err.Error()})
		}
	}
}

func (c *Client) handle(frame transport.Frame) error {
	switch frame.Type {
	case transport.FrameSync:
		return c.room.sync(c, frame.Update)
	case transport.FrameUpdate:
		if len(frame.Update) == 0 {
			return errors.New("empty update")
		}
		return c.room.apply(frame.Update, c, fromClient, c.userID)
	default:
		// Repeated auth frames and unknown types are ignored.
		return nil
	}
}

// writePump pumps frames from the room to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The room closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			return
		case <-c.kick:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
