package session

import (
	"strings"
	"sync"

	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/extension"
	"collab-editor-be/pkg/transport"
)

type fakeTransport struct {
	name string

	mu        sync.Mutex
	handlers  transport.Handlers
	status    transport.Status
	destroyed int
}

func (f *fakeTransport) DocumentName() string { return f.name }

func (f *fakeTransport) Status() transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) Destroy() {
	f.mu.Lock()
	f.destroyed++
	f.mu.Unlock()
}

func (f *fakeTransport) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// connector returns a Connector that hands out t.
func (f *fakeTransport) connector() Connector {
	return func(cfg transport.Config, _ crdt.Document, h transport.Handlers) Transport {
		f.mu.Lock()
		f.name = cfg.DocumentName
		f.handlers = h
		f.mu.Unlock()
		return f
	}
}

func (f *fakeTransport) setStatus(s transport.Status) {
	f.mu.Lock()
	f.status = s
	h := f.handlers
	f.mu.Unlock()
	h.OnStatus(s)
}

func (f *fakeTransport) synced() {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.OnSynced()
}

type navigation struct {
	Path    string
	Replace bool
}

// router is an in-memory Location and Navigator.
type router struct {
	mu       sync.Mutex
	path     string
	hash     string
	history  []navigation
	watchers map[int]func()
	next     int
}

func newRouter(path, hash string) *router {
	return &router{path: path, hash: hash, watchers: make(map[int]func())}
}

func (r *router) Pathname() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *router) Hash() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hash
}

func (r *router) OnChange(fn func()) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.watchers[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}

func (r *router) Navigate(path string, replace bool) {
	r.mu.Lock()
	r.history = append(r.history, navigation{Path: path, Replace: replace})
	r.path, r.hash = path, ""
	if i := strings.Index(path, "#"); i >= 0 {
		r.path, r.hash = path[:i], path[i:]
	}
	watchers := make([]func(), 0, len(r.watchers))
	for _, w := range r.watchers {
		watchers = append(watchers, w)
	}
	r.mu.Unlock()

	for _, w := range watchers {
		w()
	}
}

func (r *router) navigations() []navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navigation(nil), r.history...)
}

type scroller struct {
	mu  sync.Mutex
	ids []crdt.NodeID
}

func (s *scroller) ScrollIntoView(id crdt.NodeID) {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

func (s *scroller) scrolled() []crdt.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crdt.NodeID(nil), s.ids...)
}

func workspace() *extension.WorkspaceSettings {
	return &extension.WorkspaceSettings{
		Marks:  []string{"bold", "italic", "link"},
		Blocks: []string{crdt.TypeHeading, crdt.TypeImage, crdt.TypeBulletList},
	}
}
