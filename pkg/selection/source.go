package selection

import "sync"

// Source fans selection snapshots out to subscribers, synchronously and in
// registration order.
type Source struct {
	mu     sync.Mutex
	subs   []sourceSub
	nextID int
}

type sourceSub struct {
	id int
	fn func(Snapshot)
}

func (s *Source) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, sourceSub{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Source) Emit(snap Snapshot) {
	s.mu.Lock()
	subs := append([]sourceSub(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// Len returns the number of subscribers.
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
