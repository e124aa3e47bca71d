package crdt

import (
	"fmt"
	"unicode/utf8"
)

// Size is the number of positions n occupies in its parent: one per rune for
// text, one for leaves, content plus an opening and closing token otherwise.
func (n *Node) Size() int {
	switch {
	case n.IsText():
		return utf8.RuneCountInString(n.Text)
	case IsLeaf(n.Type):
		return 1
	default:
		return 2 + n.ContentSize()
	}
}

// ContentSize is the number of positions inside n.
func (n *Node) ContentSize() int {
	size := 0
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}

// ResolvedPos describes a document position relative to its enclosing node.
type ResolvedPos struct {
	Pos          int
	Depth        int
	Parent       *Node
	ParentOffset int
	Path         []*Node
}

// Resolve maps a position inside root to its parent node and depth. Depth 0
// is the document itself; a cursor inside a top-level paragraph is depth 1.
func Resolve(root *Node, pos int) (ResolvedPos, error) {
	if pos < 0 || pos > root.ContentSize() {
		return ResolvedPos{}, fmt.Errorf("position %d out of range [0,%d]", pos, root.ContentSize())
	}

	path := []*Node{root}
	node := root
	start := 0
descend:
	for {
		childStart := start
		for _, c := range node.Children {
			size := c.Size()
			if !c.IsText() && !IsLeaf(c.Type) && pos > childStart && pos < childStart+size {
				node = c
				start = childStart + 1
				path = append(path, c)
				continue descend
			}
			childStart += size
		}
		break
	}

	return ResolvedPos{
		Pos:          pos,
		Depth:        len(path) - 1,
		Parent:       node,
		ParentOffset: pos - start,
		Path:         path,
	}, nil
}

// NodeAt returns the node that starts exactly at pos, or nil.
func NodeAt(root *Node, pos int) *Node {
	rp, err := Resolve(root, pos)
	if err != nil {
		return nil
	}
	offset := 0
	for _, c := range rp.Parent.Children {
		if offset == rp.ParentOffset && !c.IsText() {
			return c
		}
		offset += c.Size()
		if offset > rp.ParentOffset {
			break
		}
	}
	return nil
}

// TextBetween returns the text inside [from, to).
func TextBetween(root *Node, from, to int) string {
	if from >= to {
		return ""
	}
	var out []rune
	var walk func(n *Node, start int)
	walk = func(n *Node, start int) {
		pos := start
		for _, c := range n.Children {
			size := c.Size()
			end := pos + size
			if end > from && pos < to {
				switch {
				case c.IsText():
					runes := []rune(c.Text)
					lo, hi := max(from-pos, 0), min(to-pos, len(runes))
					out = append(out, runes[lo:hi]...)
				case !IsLeaf(c.Type):
					walk(c, pos+1)
				}
			}
			pos = end
		}
	}
	walk(root, 0)
	return string(out)
}

// TextNodeAt returns the text node covering pos, preferring the node that
// ends at pos so a cursor right after a link still counts as inside it.
func TextNodeAt(root *Node, pos int) *Node {
	rp, err := Resolve(root, pos)
	if err != nil {
		return nil
	}
	offset := 0
	for _, c := range rp.Parent.Children {
		size := c.Size()
		if c.IsText() && rp.ParentOffset > offset && rp.ParentOffset <= offset+size {
			return c
		}
		offset += size
	}
	return nil
}
