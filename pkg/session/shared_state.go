package session

import "sync"

// Handles are the live objects a session publishes to dependent UI.
type Handles struct {
	Surface   *Surface
	Transport Transport
}

// SharedState is the context object through which dependents observe the
// session's surface and transport. Handles are set when ready and cleared on
// teardown, so readers see either a live handle or none.
type SharedState struct {
	mu      sync.Mutex
	handles Handles
	subs    map[int]func(Handles)
	nextID  int
}

func NewSharedState() *SharedState {
	return &SharedState{subs: make(map[int]func(Handles))}
}

func (s *SharedState) Handles() Handles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles
}

func (s *SharedState) SetSurface(surface *Surface) {
	s.set(func(h *Handles) { h.Surface = surface })
}

func (s *SharedState) SetTransport(t Transport) {
	s.set(func(h *Handles) { h.Transport = t })
}

// Release clears the handles if they still belong to surface. A session
// created by a reload may already have replaced them.
func (s *SharedState) Release(surface *Surface) {
	s.mu.Lock()
	owned := s.handles.Surface == surface
	s.mu.Unlock()
	if owned {
		s.Clear()
	}
}

// Clear drops both handles.
func (s *SharedState) Clear() {
	s.set(func(h *Handles) { *h = Handles{} })
}

// Subscribe calls fn with the handles after every change.
func (s *SharedState) Subscribe(fn func(Handles)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SharedState) set(fn func(*Handles)) {
	s.mu.Lock()
	fn(&s.handles)
	h := s.handles
	subs := make([]func(Handles), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if sub, ok := s.subs[i]; ok {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(h)
	}
}
