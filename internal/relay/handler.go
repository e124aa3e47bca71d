package relay

import (
	"time"

	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/pkg/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const authWait = 10 * time.Second

type Handler struct {
	hub    *Hub
	auth   *Authenticator
	logger logger.ILogger
}

func NewHandler(hub *Hub, auth *Authenticator, log logger.ILogger) *Handler {
	return &Handler{hub: hub, auth: auth, logger: log}
}

func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Use("/collab", h.requireUpgrade)
	r.Get("/collab", websocket.New(h.serve))
}

func (h *Handler) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// serve authenticates the first frame before handing the connection to the
// hub. Only auth frames are accepted until then.
func (h *Handler) serve(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(authWait))

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	frame, err := transport.DecodeFrame(data)
	if err != nil || frame.Type != transport.FrameAuth || frame.Document == "" {
		h.reject(conn, "expected auth frame")
		return
	}

	userID, err := h.auth.Verify(frame.Token)
	if err != nil {
		h.logger.Warn(logModule, "Authentication failed", map[string]interface{}{"document": frame.Document, "error": err.Error()})
		h.reject(conn, "invalid token")
		return
	}

	if !h.write(conn, transport.Frame{Type: transport.FrameAuthenticated, Document: frame.Document}) {
		conn.Close()
		return
	}
	ServeClient(h.hub, conn, userID, frame.Document)
}

func (h *Handler) reject(conn *websocket.Conn, reason string) {
	h.write(conn, transport.Frame{Type: transport.FrameAuthFailed, Reason: reason})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	conn.Close()
}

func (h *Handler) write(conn *websocket.Conn, frame transport.Frame) bool {
	data, err := frame.Encode()
	if err != nil {
		return false
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data) == nil
}
