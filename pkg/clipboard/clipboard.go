// Package clipboard renders a selected slice of a document for the system
// clipboard. Only marks the workspace enables survive the copy.
package clipboard

import (
	"collab-editor-be/pkg/crdt"
)

// Payload is what a copy places on the clipboard.
type Payload struct {
	HTML     string
	Markdown string
	Text     string
}

// Serializer renders document slices. The zero value drops every mark.
type Serializer struct {
	marks map[string]bool
}

// NewSerializer keeps the named marks and drops all others.
func NewSerializer(marks map[string]bool) *Serializer {
	allowed := make(map[string]bool, len(marks))
	for name, ok := range marks {
		if ok {
			allowed[name] = true
		}
	}
	return &Serializer{marks: allowed}
}

// Serialize renders [from, to) of root.
func (s *Serializer) Serialize(root *crdt.Node, from, to int) Payload {
	slice := Slice(root, from, to)
	return Payload{
		HTML:     s.HTML(slice),
		Markdown: s.Markdown(slice),
		Text:     crdt.TextBetween(root, from, to),
	}
}

func (s *Serializer) keep(mark string) bool {
	return s != nil && s.marks[mark]
}

func (s *Serializer) marksOf(n *crdt.Node) []string {
	var out []string
	for _, m := range n.Marks() {
		if s.keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Slice copies the part of root covered by [from, to). Text is cut at the
// boundaries and containers are kept whenever any of their content is.
func Slice(root *crdt.Node, from, to int) *crdt.Node {
	out := &crdt.Node{ID: root.ID, Type: root.Type, Attrs: root.Attrs}
	if from >= to {
		return out
	}
	out.Children = sliceChildren(root, 0, from, to)
	return out
}

func sliceChildren(n *crdt.Node, start, from, to int) []*crdt.Node {
	var out []*crdt.Node
	pos := start
	for _, c := range n.Children {
		size := c.Size()
		end := pos + size
		if end > from && pos < to {
			switch {
			case c.IsText():
				runes := []rune(c.Text)
				lo, hi := max(from-pos, 0), min(to-pos, len(runes))
				cp := *c
				cp.Text = string(runes[lo:hi])
				out = append(out, &cp)
			case crdt.IsLeaf(c.Type):
				out = append(out, c)
			default:
				cp := *c
				cp.Children = sliceChildren(c, pos+1, from, to)
				out = append(out, &cp)
			}
		}
		pos = end
	}
	return out
}

func headingLevel(n *crdt.Node) int {
	level := 1
	switch v := n.Attrs["level"].(type) {
	case int:
		level = v
	case float64:
		level = int(v)
	}
	return min(max(level, 1), 6)
}
