package crdt

import "strings"

// Node is a materialized, read-only view of one tree node.
type Node struct {
	ID       NodeID
	Type     string
	Attrs    map[string]any
	Text     string
	Children []*Node
}

const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeText           = "text"
	TypeHeading        = "heading"
	TypeHardBreak      = "hardBreak"
	TypeHorizontalRule = "horizontalRule"
	TypeImage          = "image"
	TypeCodeBlock      = "codeBlock"
	TypeEmbed          = "embed"
	TypeElement        = "element"
	TypeBlockquote     = "blockquote"
	TypeTable          = "table"
	TypeTableRow       = "tableRow"
	TypeTableCell      = "tableCell"
	TypeTableHeader    = "tableHeader"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeTaskList       = "taskList"
	TypeListItem       = "listItem"
	TypeTaskItem       = "taskItem"
)

// AttrMarks holds the mark names applied to a text node.
const AttrMarks = "marks"

var leafTypes = map[string]bool{
	TypeHardBreak:      true,
	TypeHorizontalRule: true,
	TypeImage:          true,
	TypeEmbed:          true,
}

var textblockTypes = map[string]bool{
	TypeParagraph: true,
	TypeHeading:   true,
	TypeCodeBlock: true,
}

// IsLeaf reports whether nodes of typ have no content and occupy one position.
func IsLeaf(typ string) bool { return leafTypes[typ] }

// IsTextblock reports whether nodes of typ hold inline content directly.
func IsTextblock(typ string) bool { return textblockTypes[typ] }

// IsCode reports whether typ is a code block (its content is not styled).
func IsCode(typ string) bool { return typ == TypeCodeBlock }

func (n *Node) IsText() bool { return n.Type == TypeText }

// AttrString returns a string attribute or "".
func (n *Node) AttrString(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	s, _ := n.Attrs[key].(string)
	return s
}

// Marks returns the mark names of a text node.
func (n *Node) Marks() []string {
	if n == nil || n.Attrs == nil {
		return nil
	}
	switch v := n.Attrs[AttrMarks].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, m := range v {
			if s, ok := m.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (n *Node) HasMark(name string) bool {
	for _, m := range n.Marks() {
		if m == name {
			return true
		}
	}
	return false
}

// TextContent concatenates the text of every descendant text node.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	if n.IsText() {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// Walk visits n and its descendants depth first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node matching pred.
func (n *Node) Find(pred func(*Node) bool) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}
