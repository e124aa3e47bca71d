package crdt

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type register struct {
	value any
	stamp NodeID
}

type entry struct {
	id       NodeID
	parent   *entry
	typ      string
	text     register
	attrs    map[string]register
	children []*entry // RGA order, tombstones included
	deleted  bool
}

// Tree is the default Document implementation.
type Tree struct {
	mu sync.RWMutex

	name  string
	peer  string
	clock uint64

	nodes   map[NodeID]*entry
	root    *entry
	applied map[NodeID]struct{}
	log     []Op
	pending []Op

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewTree creates an empty replica. An empty peer gets a random uuid.
func NewTree(name, peer string) *Tree {
	if peer == "" {
		peer = uuid.NewString()
	}
	root := &entry{id: RootID, typ: "doc", attrs: map[string]register{}}
	return &Tree{
		name:    name,
		peer:    peer,
		nodes:   map[NodeID]*entry{RootID: root},
		root:    root,
		applied: make(map[NodeID]struct{}),
		subs:    make(map[int]func(Change)),
	}
}

func (t *Tree) Name() string { return t.name }
func (t *Tree) Peer() string { return t.peer }

// ApplyLocal stamps op with a fresh id, integrates it and notifies
// subscribers. Local ops must reference nodes this replica already knows.
func (t *Tree) ApplyLocal(op Op) (Op, error) {
	t.mu.Lock()
	t.clock++
	op.ID = NodeID{Clock: t.clock, Peer: t.peer}
	if op.Kind == OpInsert {
		op.Target = op.ID
	}
	if err := t.validateLocal(op); err != nil {
		t.clock--
		t.mu.Unlock()
		return Op{}, err
	}
	t.integrate(op)
	t.mu.Unlock()

	t.notify(Change{Origin: OriginLocal, Ops: []Op{op}})
	return op, nil
}

func (t *Tree) validateLocal(op Op) error {
	switch op.Kind {
	case OpInsert:
		if op.Type == "" {
			return fmt.Errorf("%w: insert without type", ErrInvalidOp)
		}
		parent, ok := t.nodes[op.Parent]
		if !ok || parent.deleted {
			return fmt.Errorf("%w: parent %s", ErrUnknownNode, op.Parent)
		}
		if !op.After.IsZero() {
			after, ok := t.nodes[op.After]
			if !ok || after.parent != parent {
				return fmt.Errorf("%w: sibling %s", ErrUnknownNode, op.After)
			}
		}
	case OpDelete, OpSetText, OpSetAttr:
		if op.Target == RootID {
			return fmt.Errorf("%w: root cannot be modified", ErrInvalidOp)
		}
		target, ok := t.nodes[op.Target]
		if !ok || target.deleted {
			return fmt.Errorf("%w: %s", ErrUnknownNode, op.Target)
		}
		if op.Kind == OpSetAttr && op.Key == "" {
			return fmt.Errorf("%w: set_attr without key", ErrInvalidOp)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidOp, op.Kind)
	}
	return nil
}

// ApplyRemote merges an encoded update. Duplicate ops are ignored and ops with
// missing dependencies wait in the pending queue.
func (t *Tree) ApplyRemote(data []byte) error {
	update, err := DecodeUpdate(data)
	if err != nil {
		return err
	}

	t.mu.Lock()
	var applied []Op
	for _, op := range update.Ops {
		if op.ID.IsZero() {
			continue
		}
		if _, seen := t.applied[op.ID]; seen {
			continue
		}
		if t.ready(op) {
			t.integrate(op)
			applied = append(applied, op)
			applied = append(applied, t.drainPending()...)
		} else {
			t.pending = append(t.pending, op)
		}
	}
	t.mu.Unlock()

	if len(applied) > 0 {
		t.notify(Change{Origin: OriginRemote, Ops: applied})
	}
	return nil
}

// Serialize returns every integrated op in causal order followed by any still
// pending ops. Applying the result to an empty replica reproduces this one.
func (t *Tree) Serialize() ([]byte, error) {
	t.mu.RLock()
	ops := make([]Op, 0, len(t.log)+len(t.pending))
	ops = append(ops, t.log...)
	ops = append(ops, t.pending...)
	t.mu.RUnlock()

	data, err := json.Marshal(Update{Ops: ops})
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", t.name, err)
	}
	return data, nil
}

// Subscribe registers fn for every change. Callbacks run outside the tree
// lock, in the goroutine that applied the change.
func (t *Tree) Subscribe(fn func(Change)) func() {
	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
		})
	}
}

// Pending reports how many ops are waiting on missing dependencies.
func (t *Tree) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}

func (t *Tree) notify(change Change) {
	t.subMu.Lock()
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.subs[id])
	}
	t.subMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (t *Tree) ready(op Op) bool {
	switch op.Kind {
	case OpInsert:
		parent, ok := t.nodes[op.Parent]
		if !ok {
			return false
		}
		if op.After.IsZero() {
			return true
		}
		after, ok := t.nodes[op.After]
		return ok && after.parent == parent
	default:
		_, ok := t.nodes[op.Target]
		return ok
	}
}

func (t *Tree) drainPending() []Op {
	var applied []Op
	for progress := true; progress; {
		progress = false
		rest := t.pending[:0]
		for _, op := range t.pending {
			if _, seen := t.applied[op.ID]; seen {
				progress = true
				continue
			}
			if t.ready(op) {
				t.integrate(op)
				applied = append(applied, op)
				progress = true
				continue
			}
			rest = append(rest, op)
		}
		t.pending = rest
	}
	return applied
}

// integrate assumes op is ready and not yet applied. Caller holds t.mu.
func (t *Tree) integrate(op Op) {
	t.applied[op.ID] = struct{}{}
	t.log = append(t.log, op)
	if op.ID.Clock > t.clock {
		t.clock = op.ID.Clock
	}

	switch op.Kind {
	case OpInsert:
		if _, exists := t.nodes[op.ID]; exists {
			return
		}
		parent := t.nodes[op.Parent]
		e := &entry{
			id:     op.ID,
			parent: parent,
			typ:    op.Type,
			text:   register{value: op.Text, stamp: op.ID},
			attrs:  make(map[string]register, len(op.Attrs)),
		}
		for k, v := range op.Attrs {
			e.attrs[k] = register{value: v, stamp: op.ID}
		}

		idx := 0
		if !op.After.IsZero() {
			for i, c := range parent.children {
				if c.id == op.After {
					idx = i + 1
					break
				}
			}
		}
		// RGA: skip siblings inserted concurrently with a greater id.
		for idx < len(parent.children) && op.ID.Less(parent.children[idx].id) {
			idx++
		}
		parent.children = append(parent.children, nil)
		copy(parent.children[idx+1:], parent.children[idx:])
		parent.children[idx] = e
		t.nodes[op.ID] = e

	case OpDelete:
		t.nodes[op.Target].deleted = true

	case OpSetText:
		e := t.nodes[op.Target]
		if e.text.stamp.Less(op.ID) {
			e.text = register{value: op.Text, stamp: op.ID}
		}

	case OpSetAttr:
		e := t.nodes[op.Target]
		if cur, ok := e.attrs[op.Key]; !ok || cur.stamp.Less(op.ID) {
			e.attrs[op.Key] = register{value: op.Value, stamp: op.ID}
		}
	}
}

// Snapshot materializes the visible tree. The result is a deep copy that the
// caller may keep.
func (t *Tree) Snapshot() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return materialize(t.root)
}

func materialize(e *entry) *Node {
	n := &Node{ID: e.id, Type: e.typ}
	if s, ok := e.text.value.(string); ok {
		n.Text = s
	}
	if len(e.attrs) > 0 {
		n.Attrs = make(map[string]any, len(e.attrs))
		for k, r := range e.attrs {
			if r.value != nil {
				n.Attrs[k] = r.value
			}
		}
	}
	for _, c := range e.children {
		if c.deleted {
			continue
		}
		n.Children = append(n.Children, materialize(c))
	}
	return n
}
