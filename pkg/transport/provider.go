// Package transport keeps one authenticated websocket per document session
// and streams crdt updates over it. It never reconnects on its own: failures
// are reported to the owner, which decides how to recover.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/pkg/crdt"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
	sendBuffer     = 256
)

const logModule = "TRANSPORT"

var ErrMalformedFrame = errors.New("malformed frame")

// Config describes one collaboration connection.
type Config struct {
	URL          string
	DocumentName string
	Token        string

	Dialer *websocket.Dialer
	Logger logger.ILogger

	// Zero values use the defaults above.
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

// Handlers are invoked from the provider's read goroutine, in the order the
// connection produces them. Any of them may be nil.
type Handlers struct {
	OnStatus               func(Status)
	OnSynced               func()
	OnDisconnect           func(err error)
	OnAuthenticationFailed func(reason string)
	OnClose                func(code int, reason string)
}

// Provider is the live handle of one connection.
type Provider struct {
	cfg      Config
	doc      crdt.Document
	handlers Handlers
	log      logger.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan []byte

	mu          sync.Mutex
	conn        *websocket.Conn
	status      Status
	synced      bool
	destroyed   bool
	unsubscribe func()

	destroyOnce sync.Once
}

// Connect returns at once; dialing and the handshake run in the background.
func Connect(cfg Config, doc crdt.Document, h Handlers) *Provider {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = pingPeriod
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = pongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = writeWait
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		cfg:      cfg,
		doc:      doc,
		handlers: h,
		log:      cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBuffer),
		status:   StatusConnecting,
	}
	go p.run()
	return p
}

func (p *Provider) DocumentName() string { return p.cfg.DocumentName }

func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Synced reports whether the initial synchronization completed.
func (p *Provider) Synced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synced
}

// Destroy closes the socket and stops the pumps. It is idempotent and no
// handler is invoked once it has returned.
func (p *Provider) Destroy() {
	p.destroyOnce.Do(func() {
		p.mu.Lock()
		p.destroyed = true
		conn := p.conn
		unsubscribe := p.unsubscribe
		p.unsubscribe = nil
		p.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		p.cancel()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(p.cfg.WriteWait))
			conn.Close()
		}
		p.log.Info(logModule, "Provider destroyed", map[string]interface{}{"document": p.cfg.DocumentName})
	})
}

func (p *Provider) run() {
	p.emitStatus(StatusConnecting)

	conn, _, err := p.cfg.Dialer.DialContext(p.ctx, p.cfg.URL, nil)
	if err != nil {
		p.log.Warn(logModule, "Dial failed", map[string]interface{}{"url": p.cfg.URL, "error": err.Error()})
		p.fail(fmt.Errorf("dial %s: %w", p.cfg.URL, err))
		return
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.conn = conn
	p.mu.Unlock()

	go p.writePump(conn)

	auth, err := Frame{Type: FrameAuth, Document: p.cfg.DocumentName, Token: p.cfg.Token}.Encode()
	if err == nil {
		p.enqueue(auth)
	}
	p.readPump(conn)
}

func (p *Provider) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				p.emit(func() {
					if p.handlers.OnClose != nil {
						p.handlers.OnClose(closeErr.Code, closeErr.Text)
					}
				})
			}
			p.fail(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))

		frame, err := DecodeFrame(data)
		if err != nil {
			p.log.Warn(logModule, "Dropping frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		if done := p.handle(frame); done {
			return
		}
	}
}

// handle processes one inbound frame and reports whether the connection is
// finished.
func (p *Provider) handle(f Frame) bool {
	switch f.Type {
	case FrameAuthenticated:
		p.emitStatus(StatusConnected)
		p.startSync()

	case FrameAuthFailed:
		p.log.Warn(logModule, "Authentication failed", map[string]interface{}{
			"document": p.cfg.DocumentName,
			"reason":   f.Reason,
		})
		p.emit(func() {
			if p.handlers.OnAuthenticationFailed != nil {
				p.handlers.OnAuthenticationFailed(f.Reason)
			}
		})
		p.emitStatus(StatusDisconnected)
		p.cancel()
		return true

	case FrameSync, FrameUpdate:
		if len(f.Update) == 0 {
			return false
		}
		if err := p.doc.ApplyRemote(f.Update); err != nil {
			p.log.Warn(logModule, "Rejected remote update", map[string]interface{}{"error": err.Error()})
		}

	case FrameSynced:
		p.mu.Lock()
		first := !p.synced && !p.destroyed
		p.synced = true
		p.mu.Unlock()
		if first {
			p.emit(func() {
				if p.handlers.OnSynced != nil {
					p.handlers.OnSynced()
				}
			})
		}
	}
	return false
}

// startSync sends local state and begins streaming local changes.
func (p *Provider) startSync() {
	p.mu.Lock()
	if p.destroyed || p.unsubscribe != nil {
		p.mu.Unlock()
		return
	}
	p.unsubscribe = p.doc.Subscribe(func(c crdt.Change) {
		if c.Origin != crdt.OriginLocal {
			return
		}
		update, err := crdt.EncodeUpdate(c.Ops)
		if err != nil {
			return
		}
		if frame, err := (Frame{Type: FrameUpdate, Update: update}).Encode(); err == nil {
			p.enqueue(frame)
		}
	})
	p.mu.Unlock()

	state, err := p.doc.Serialize()
	if err != nil {
		p.log.Error(logModule, "Serialize failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if frame, err := (Frame{Type: FrameSync, Update: state}).Encode(); err == nil {
		p.enqueue(frame)
	}
}

func (p *Provider) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(p.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case message := <-p.send:
			conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				p.log.Warn(logModule, "Write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *Provider) enqueue(msg []byte) {
	select {
	case p.send <- msg:
	case <-p.ctx.Done():
	}
}

func (p *Provider) fail(err error) {
	p.emitStatus(StatusDisconnected)
	p.emit(func() {
		if p.handlers.OnDisconnect != nil {
			p.handlers.OnDisconnect(err)
		}
	})
	p.cancel()
}

func (p *Provider) emitStatus(s Status) {
	p.mu.Lock()
	changed := p.status != s || s == StatusConnecting
	p.status = s
	p.mu.Unlock()
	if !changed {
		return
	}
	p.emit(func() {
		if p.handlers.OnStatus != nil {
			p.handlers.OnStatus(s)
		}
	})
}

func (p *Provider) emit(fn func()) {
	p.mu.Lock()
	destroyed := p.destroyed
	p.mu.Unlock()
	if destroyed {
		return
	}
	fn()
}
