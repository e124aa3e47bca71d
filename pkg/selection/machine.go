package selection

import (
	"sync"
	"time"
)

// Element identifies a focusable element of the page.
type Element string

// Container answers whether an element lives inside the editing surface.
type Container interface {
	Contains(el Element) bool
}

// Options configure a Machine.
type Options struct {
	// PlacementDelay defaults to DefaultPlacementDelay.
	PlacementDelay time.Duration
	// OnPlacement receives refined bubble placements.
	OnPlacement func(Placement)
}

// Machine owns the menu state of one surface. Visibility is recomputed
// synchronously on every Update; only placement refinement is debounced.
//
// Subscribers run synchronously, in update order, and must not call Update.
type Machine struct {
	deliver sync.Mutex
	mu      sync.Mutex

	state   MenuState
	started bool
	closed  bool
	active  Element

	subs   []machineSub
	nextID int

	placement   *Debouncer
	onPlacement func(Placement)
}

type machineSub struct {
	id int
	fn func(MenuState)
}

func NewMachine(opts Options) *Machine {
	delay := opts.PlacementDelay
	if delay <= 0 {
		delay = DefaultPlacementDelay
	}
	m := &Machine{
		state:       MenuState{Placement: PlacementTop},
		onPlacement: opts.OnPlacement,
	}
	m.placement = NewDebouncer(delay, m.refinePlacement)
	return m
}

// Update reduces s into the menu state and notifies subscribers.
func (m *Machine) Update(s Snapshot) MenuState {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.closed {
		state := m.state
		m.mu.Unlock()
		return state
	}
	prevNode := m.state.IsNodeSelection
	if s.Focused {
		m.active = ""
	}
	m.state = Reduce(m.state, s)
	if !m.started || prevNode != m.state.IsNodeSelection {
		m.placement.Trigger()
	}
	m.started = true
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return state
}

func (m *Machine) State() MenuState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ForceMode lets a collaborator such as the link preview override the bubble
// mode until the next selection change. nil clears the override.
func (m *Machine) ForceMode(mode *Mode) {
	m.mutate(func(s *MenuState) {
		if mode == nil {
			s.ForcedMode = nil
			return
		}
		forced := *mode
		s.ForcedMode = &forced
		s.BubbleOpened = true
		s.BubbleMode = forced
	})
}

func (m *Machine) SetBlockMenuOpened(opened bool) {
	m.mutate(func(s *MenuState) { s.BlockMenuOpened = opened })
}

// Hide closes the bubble, as when a menu control blurs the editor.
func (m *Machine) Hide() {
	m.mutate(func(s *MenuState) { s.BubbleOpened = false })
	m.mu.Lock()
	m.active = ""
	m.mu.Unlock()
}

// Blurred records the element that received focus when the surface lost it.
func (m *Machine) Blurred(target Element) {
	m.mu.Lock()
	m.active = target
	m.mu.Unlock()
}

// CanDismiss is false while focus sits on an element inside c, so moving
// between the surface and its own menu controls does not close the menu.
func (m *Machine) CanDismiss(c Container) bool {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == "" || c == nil {
		return true
	}
	return !c.Contains(active)
}

func (m *Machine) Subscribe(fn func(MenuState)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, machineSub{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Close cancels pending placement work and detaches subscribers.
func (m *Machine) Close() {
	m.placement.Cancel()
	m.mu.Lock()
	m.closed = true
	m.subs = nil
	m.mu.Unlock()
}

func (m *Machine) mutate(fn func(*MenuState)) {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	fn(&m.state)
	state := m.state
	m.mu.Unlock()

	m.notify(state)
}

func (m *Machine) refinePlacement() {
	var p Placement
	m.mutate(func(s *MenuState) {
		s.Placement = PlacementFor(s.IsNodeSelection)
		p = s.Placement
	})
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if !closed && p != "" && m.onPlacement != nil {
		m.onPlacement(p)
	}
}

func (m *Machine) notify(state MenuState) {
	m.mu.Lock()
	subs := append([]machineSub(nil), m.subs...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(state)
	}
}
