package session

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"collab-editor-be/pkg/clipboard"
	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/extension"
	"collab-editor-be/pkg/selection"
)

var (
	ErrReadOnly        = errors.New("surface is read-only")
	ErrUnknownType     = errors.New("type not in schema")
	ErrDestroyed       = errors.New("surface destroyed")
	ErrInvalidPosition = errors.New("invalid position")
)

// Selection is a document range plus its shape.
type Selection struct {
	Kind     selection.Kind
	From, To int
}

// Surface is the editable view over one document. All mutation goes through
// its commands; the document itself is only read by other collaborators.
type Surface struct {
	mu sync.Mutex

	doc        crdt.Document
	extensions extension.List
	nodes      map[string]bool
	marks      map[string]bool
	editable   bool

	focused    bool
	sel        Selection
	breakpoint selection.Breakpoint
	elements   map[selection.Element]bool

	clipboard *clipboard.Serializer
	events    selection.Source
	unsubDoc  func()
	destroyed bool
}

// NewSurface binds doc to the composed extensions. An empty extension list
// yields an inert surface that renders but rejects every command.
func NewSurface(doc crdt.Document, exts extension.List, editable bool) *Surface {
	nodes, marks := exts.Schema()
	s := &Surface{
		doc:        doc,
		extensions: exts,
		nodes:      nodes,
		marks:      marks,
		editable:   editable,
		breakpoint: selection.BreakpointLarge,
		elements:   make(map[selection.Element]bool),
	}
	s.unsubDoc = doc.Subscribe(func(crdt.Change) { s.emit() })
	return s
}

func (s *Surface) Document() crdt.Document                { return s.doc }
func (s *Surface) Extensions() extension.List             { return s.extensions }
func (s *Surface) Schema() (nodes, marks map[string]bool) { return s.nodes, s.marks }

// IsInert reports whether the surface was built without extensions.
func (s *Surface) IsInert() bool { return len(s.extensions) == 0 }

func (s *Surface) IsEditable() bool {
	return s.editable && !s.IsInert()
}

func (s *Surface) HasFocus() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

func (s *Surface) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// OnSelectionChange subscribes to selection snapshots. fn runs after every
// focus, selection or document change.
func (s *Surface) OnSelectionChange(fn func(selection.Snapshot)) func() {
	return s.events.Subscribe(fn)
}

func (s *Surface) Focus() {
	if s.update(func() { s.focused = true }) {
		s.emit()
	}
}

func (s *Surface) Blur() {
	if s.update(func() { s.focused = false }) {
		s.emit()
	}
}

func (s *Surface) SetBreakpoint(b selection.Breakpoint) {
	if s.update(func() { s.breakpoint = b }) {
		s.emit()
	}
}

// SetSelection moves the selection. A text range with equal ends collapses to
// an empty selection and a node selection spans exactly one node.
func (s *Surface) SetSelection(sel Selection) error {
	root := s.doc.Snapshot()
	size := root.ContentSize()
	if sel.From < 0 || sel.To < sel.From || sel.To > size {
		return fmt.Errorf("%w: [%d,%d) outside [0,%d]", ErrInvalidPosition, sel.From, sel.To, size)
	}
	switch sel.Kind {
	case selection.KindText, selection.KindEmpty:
		if sel.From == sel.To {
			sel.Kind = selection.KindEmpty
		}
	case selection.KindNode:
		n := crdt.NodeAt(root, sel.From)
		if n == nil {
			return fmt.Errorf("%w: no node at %d", ErrInvalidPosition, sel.From)
		}
		sel.To = sel.From + n.Size()
	case selection.KindAll:
		sel.From, sel.To = 0, size
	}

	if !s.update(func() { s.sel = sel }) {
		return ErrDestroyed
	}
	s.emit()
	return nil
}

// SelectAll selects the entire document.
func (s *Surface) SelectAll() error {
	return s.SetSelection(Selection{Kind: selection.KindAll})
}

// AddElement registers a UI element (menu control) as part of the surface.
func (s *Surface) AddElement(el selection.Element) {
	s.mu.Lock()
	s.elements[el] = true
	s.mu.Unlock()
}

func (s *Surface) Contains(el selection.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements[el]
}

// SetClipboard installs the serializer used by Copy.
func (s *Surface) SetClipboard(c *clipboard.Serializer) {
	s.mu.Lock()
	s.clipboard = c
	s.mu.Unlock()
}

// Copy renders the current selection for the clipboard.
func (s *Surface) Copy() (clipboard.Payload, error) {
	s.mu.Lock()
	c, sel, destroyed := s.clipboard, s.sel, s.destroyed
	s.mu.Unlock()
	if destroyed {
		return clipboard.Payload{}, ErrDestroyed
	}
	if c == nil {
		c = &clipboard.Serializer{}
	}
	return c.Serialize(s.doc.Snapshot(), sel.From, sel.To), nil
}

// InsertBlock adds a node of typ under parent, after the given sibling.
func (s *Surface) InsertBlock(parent, after crdt.NodeID, typ string, attrs map[string]any) (crdt.NodeID, error) {
	if err := s.checkNode(typ); err != nil {
		return crdt.NodeID{}, err
	}
	op, err := s.doc.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: parent, After: after, Type: typ, Attrs: attrs})
	if err != nil {
		return crdt.NodeID{}, err
	}
	return op.ID, nil
}

// InsertText adds a text node carrying marks.
func (s *Surface) InsertText(parent, after crdt.NodeID, text string, marks ...string) (crdt.NodeID, error) {
	if err := s.checkNode(crdt.TypeText); err != nil {
		return crdt.NodeID{}, err
	}
	var attrs map[string]any
	if len(marks) > 0 {
		names := make([]any, 0, len(marks))
		for _, m := range marks {
			if !s.marks[m] {
				return crdt.NodeID{}, fmt.Errorf("%w: mark %q", ErrUnknownType, m)
			}
			names = append(names, m)
		}
		attrs = map[string]any{crdt.AttrMarks: names}
	}
	op, err := s.doc.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: parent, After: after, Type: crdt.TypeText, Text: text, Attrs: attrs})
	if err != nil {
		return crdt.NodeID{}, err
	}
	return op.ID, nil
}

func (s *Surface) SetText(id crdt.NodeID, text string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	_, err := s.doc.ApplyLocal(crdt.Op{Kind: crdt.OpSetText, Target: id, Text: text})
	return err
}

func (s *Surface) SetAttr(id crdt.NodeID, key string, value any) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	_, err := s.doc.ApplyLocal(crdt.Op{Kind: crdt.OpSetAttr, Target: id, Key: key, Value: value})
	return err
}

func (s *Surface) Delete(id crdt.NodeID) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	_, err := s.doc.ApplyLocal(crdt.Op{Kind: crdt.OpDelete, Target: id})
	return err
}

// ToggleMark adds or removes a mark on one text node.
func (s *Surface) ToggleMark(id crdt.NodeID, mark string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if !s.marks[mark] {
		return fmt.Errorf("%w: mark %q", ErrUnknownType, mark)
	}
	node := s.doc.Snapshot().Find(func(n *crdt.Node) bool { return n.ID == id })
	if node == nil || !node.IsText() {
		return fmt.Errorf("%w: %s", crdt.ErrUnknownNode, id)
	}

	var next []any
	found := false
	for _, m := range node.Marks() {
		if m == mark {
			found = true
			continue
		}
		next = append(next, m)
	}
	if !found {
		next = append(next, mark)
	}
	_, err := s.doc.ApplyLocal(crdt.Op{Kind: crdt.OpSetAttr, Target: id, Key: crdt.AttrMarks, Value: next})
	return err
}

// IsActive reports whether name is the selected node, an enclosing node of
// the selection head, or a mark on the text at the selection head.
func (s *Surface) IsActive(name string) bool {
	sel := s.Selection()
	root := s.doc.Snapshot()
	if sel.Kind == selection.KindNode {
		if n := crdt.NodeAt(root, sel.From); n != nil {
			return n.Type == name
		}
	}
	rp, err := crdt.Resolve(root, min(sel.From, root.ContentSize()))
	if err != nil {
		return false
	}
	for _, n := range rp.Path[1:] {
		if n.Type == name {
			return true
		}
	}
	head := sel.From
	if sel.To > sel.From {
		head++
	}
	if t := crdt.TextNodeAt(root, head); t != nil {
		return t.HasMark(name)
	}
	return false
}

// Snapshot derives the classifier input from the current state.
func (s *Surface) Snapshot() selection.Snapshot {
	s.mu.Lock()
	sel, focused, bp := s.sel, s.focused, s.breakpoint
	s.mu.Unlock()

	root := s.doc.Snapshot()
	size := root.ContentSize()
	from, to := min(sel.From, size), min(sel.To, size)
	if sel.Kind == selection.KindAll {
		from, to = 0, size
	}

	snap := selection.Snapshot{
		Kind:       sel.Kind,
		From:       from,
		To:         to,
		TextLength: utf8.RuneCountInString(crdt.TextBetween(root, from, to)),
		Focused:    focused,
		Editable:   s.IsEditable(),
		Breakpoint: bp,
	}
	if sel.Kind == selection.KindNode {
		if n := crdt.NodeAt(root, from); n != nil {
			snap.NodeType = n.Type
		}
	}
	if rp, err := crdt.Resolve(root, from); err == nil {
		snap.AnchorDepth = rp.Depth
		snap.ParentType = rp.Parent.Type
		snap.ParentTextblock = crdt.IsTextblock(rp.Parent.Type)
		snap.ParentCode = crdt.IsCode(rp.Parent.Type)
		snap.ParentHasText = rp.Parent.TextContent() != ""
	}
	if t := crdt.TextNodeAt(root, from); t != nil && t.HasMark("link") {
		snap.InLink = true
		snap.LinkHref = t.AttrString("href")
	}
	return snap
}

// Destroy detaches the surface from its document. Later commands fail with
// ErrDestroyed and no further snapshots are emitted.
func (s *Surface) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	unsub := s.unsubDoc
	s.unsubDoc = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Surface) checkWritable() error {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}
	if !s.IsEditable() {
		return ErrReadOnly
	}
	return nil
}

func (s *Surface) checkNode(typ string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if !s.nodes[typ] {
		return fmt.Errorf("%w: node %q", ErrUnknownType, typ)
	}
	return nil
}

// update runs fn under the lock unless the surface is destroyed.
func (s *Surface) update(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	fn()
	return true
}

func (s *Surface) emit() {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return
	}
	s.events.Emit(s.Snapshot())
}
