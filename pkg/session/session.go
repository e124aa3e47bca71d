// Package session owns one editing view: its shared document, the editable
// surface built from the composed extensions, the collaboration transport and
// the menu state machine. Transport and timer callbacks re-enter through the
// session lock and are dropped once the session is destroyed.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/pkg/clipboard"
	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/extension"
	"collab-editor-be/pkg/selection"
	"collab-editor-be/pkg/transport"
)

const logModule = "SESSION"

// Transport is the part of a collaboration connection the session uses.
type Transport interface {
	DocumentName() string
	Status() transport.Status
	Destroy()
}

// Connector opens a transport for doc.
type Connector func(cfg transport.Config, doc crdt.Document, h transport.Handlers) Transport

// DialTransport is the default Connector.
func DialTransport(cfg transport.Config, doc crdt.Document, h transport.Handlers) Transport {
	return transport.Connect(cfg, doc, h)
}

type Config struct {
	// DocumentName selects the shared document; empty means local only.
	DocumentName string
	URL          string
	Token        string
	Peer         string

	Editable bool
	// Content seeds a local-only document.
	Content *crdt.Content

	Workspace      *extension.WorkspaceSettings
	HostExtensions bool
	CommentData    extension.CommentBinder
	Installed      []extension.Record
	Extensions     []*extension.Extension

	Shared    *SharedState
	Navigator Navigator
	Location  Location
	Scroller  Scroller
	Recoverer *Recoverer
	Connector Connector
	Logger    logger.ILogger

	PlacementDelay time.Duration
	OnPlacement    func(selection.Placement)
	// OnLoad fires once the surface has content: after the first sync, or at
	// creation when there is no transport.
	OnLoad func()
}

type Session struct {
	cfg    Config
	log    logger.ILogger
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	doc        *crdt.Tree
	surface    *Surface
	machine    *selection.Machine
	transport  Transport
	status     transport.Status
	synced     bool
	loaded     bool
	recovering bool
	recovery   Outcome
	destroyed  bool
	unsubs     []func()
}

// Create builds the session. Transport callbacks that arrive while Create is
// still running wait for it to finish.
func Create(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Connector == nil {
		cfg.Connector = DialTransport
	}
	for _, rec := range cfg.Installed {
		if err := extension.ValidateRecord(rec); err != nil {
			return nil, fmt.Errorf("installed extension %q: %w", rec.Name, err)
		}
	}

	s := &Session{cfg: cfg, log: cfg.Logger}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.mu.Lock()
	s.doc = crdt.NewTree(cfg.DocumentName, cfg.Peer)

	if cfg.DocumentName != "" {
		s.status = transport.StatusConnecting
		s.transport = cfg.Connector(transport.Config{
			URL:          cfg.URL,
			DocumentName: cfg.DocumentName,
			Token:        cfg.Token,
			Logger:       cfg.Logger,
		}, s.doc, s.transportHandlers())
	}

	in := extension.Input{
		Capabilities: extension.Capabilities{
			Editable:       cfg.Editable,
			HostExtensions: cfg.HostExtensions,
			CommentData:    cfg.CommentData,
			Extra:          cfg.Extensions,
		},
		Workspace: cfg.Workspace,
		Installed: cfg.Installed,
	}
	if s.transport != nil {
		in.Provider = s.transport
	}
	exts := extension.Compose(in)

	if cfg.Content != nil && s.transport == nil {
		if err := crdt.Load(s.doc, *cfg.Content); err != nil {
			s.mu.Unlock()
			s.cancel()
			return nil, fmt.Errorf("load initial content: %w", err)
		}
	}

	s.surface = NewSurface(s.doc, exts, cfg.Editable)
	_, marks := exts.Schema()
	s.surface.SetClipboard(clipboard.NewSerializer(marks))

	s.machine = selection.NewMachine(selection.Options{
		PlacementDelay: cfg.PlacementDelay,
		OnPlacement:    cfg.OnPlacement,
	})
	s.unsubs = append(s.unsubs, s.surface.OnSelectionChange(s.onSelection))
	if cfg.Location != nil {
		s.unsubs = append(s.unsubs, cfg.Location.OnChange(s.onLocationChange))
	}

	if cfg.Shared != nil {
		cfg.Shared.SetSurface(s.surface)
		if s.transport != nil {
			cfg.Shared.SetTransport(s.transport)
		}
	}

	offline := s.transport == nil
	s.mu.Unlock()

	s.log.Info(logModule, "Session created", map[string]interface{}{
		"document":   cfg.DocumentName,
		"editable":   cfg.Editable,
		"extensions": len(exts),
	})

	if offline {
		s.ready()
	}
	return s, nil
}

func (s *Session) Surface() *Surface              { return s.surface }
func (s *Session) Machine() *selection.Machine    { return s.machine }
func (s *Session) Document() crdt.Document        { return s.doc }
func (s *Session) MenuState() selection.MenuState { return s.machine.State() }

// Transport is nil for local-only sessions.
func (s *Session) Transport() Transport { return s.transport }

func (s *Session) Status() transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Recovery reports the outcome of the recovery run, if any.
func (s *Session) Recovery() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery
}

// BlockMenuOptions lists the slash menu entries for this workspace.
func (s *Session) BlockMenuOptions(snippets []extension.Snippet) []extension.MenuOption {
	return extension.BlockMenuOptions(s.cfg.Workspace, snippets)
}

// Blur drops surface focus. target is the element that received focus.
func (s *Session) Blur(target selection.Element) {
	s.machine.Blurred(target)
	s.surface.Blur()
}

// CanDismiss reports whether menus may close on the last blur.
func (s *Session) CanDismiss() bool {
	return s.machine.CanDismiss(s.surface)
}

// Destroy tears down the surface and its document, then the transport, then
// the published handles. It is safe to call more than once.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.machine.Close()
	s.surface.Destroy()
	if s.transport != nil {
		s.transport.Destroy()
	}
	if s.cfg.Shared != nil {
		s.cfg.Shared.Release(s.surface)
	}
	s.cancel()

	s.log.Info(logModule, "Session destroyed", map[string]interface{}{"document": s.cfg.DocumentName})
}

func (s *Session) transportHandlers() transport.Handlers {
	return transport.Handlers{
		OnStatus: func(st transport.Status) {
			if !s.alive(func() { s.status = st }) {
				return
			}
			if st == transport.StatusDisconnected {
				s.recover("disconnected")
			}
		},
		OnSynced: func() {
			first := false
			if !s.alive(func() {
				first = !s.synced
				s.synced = true
			}) || !first {
				return
			}
			s.ready()
		},
		OnDisconnect: func(err error) {
			s.recover("disconnect")
		},
		OnAuthenticationFailed: func(reason string) {
			s.recover("authentication_failed")
		},
		OnClose: func(code int, reason string) {
			s.recover("close")
		},
	}
}

// ready signals load and resolves a pending anchor.
func (s *Session) ready() {
	fire := false
	if !s.alive(func() {
		fire = !s.loaded
		s.loaded = true
	}) {
		return
	}
	if fire && s.cfg.OnLoad != nil {
		s.cfg.OnLoad()
	}
	s.scrollToAnchor()
}

func (s *Session) onLocationChange() {
	loaded := false
	if !s.alive(func() { loaded = s.loaded }) || !loaded {
		return
	}
	s.scrollToAnchor()
}

// scrollToAnchor scrolls to the node named by the URL fragment and clears
// the fragment so unrelated navigation does not scroll again.
func (s *Session) scrollToAnchor() {
	loc := s.cfg.Location
	if loc == nil || s.Destroyed() {
		return
	}
	node := FindSlug(s.doc.Snapshot(), loc.Hash())
	if node == nil {
		return
	}
	if s.cfg.Scroller != nil {
		s.cfg.Scroller.ScrollIntoView(node.ID)
	}
	if s.cfg.Navigator != nil {
		s.cfg.Navigator.Navigate(loc.Pathname(), true)
	}
}

func (s *Session) onSelection(snap selection.Snapshot) {
	if s.Destroyed() {
		return
	}
	s.machine.Update(snap)
}

// recover runs whole-session recovery at most once.
func (s *Session) recover(cause string) {
	start := false
	if !s.alive(func() {
		start = !s.recovering
		s.recovering = true
	}) || !start {
		return
	}

	if s.cfg.Recoverer == nil {
		s.log.Warn(logModule, "Transport failed without recoverer", map[string]interface{}{"cause": cause})
		return
	}
	outcome := s.cfg.Recoverer.Recover(s.ctx, cause)

	s.alive(func() { s.recovery = outcome })
}

// alive runs fn under the session lock unless the session is destroyed.
func (s *Session) alive(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	fn()
	return true
}
