package crdt

import (
	"encoding/json"
	"fmt"
)

// Content is the JSON shape of initial document content (ProseMirror style).
type Content struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Content      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is a text mark (formatting) in Content.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// ParseContent decodes a JSON document.
func ParseContent(data []byte) (Content, error) {
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("parse content: %w", err)
	}
	if c.Type != TypeDoc {
		return Content{}, fmt.Errorf("parse content: root type %q, want %q", c.Type, TypeDoc)
	}
	return c, nil
}

// Load appends the children of c to the end of doc as local ops.
func Load(doc Document, c Content) error {
	root := doc.Snapshot()
	var after NodeID
	if n := len(root.Children); n > 0 {
		after = root.Children[n-1].ID
	}
	for _, child := range c.Content {
		id, err := loadNode(doc, RootID, after, child)
		if err != nil {
			return err
		}
		after = id
	}
	return nil
}

func loadNode(doc Document, parent, after NodeID, c Content) (NodeID, error) {
	attrs := make(map[string]any, len(c.Attrs)+2)
	for k, v := range c.Attrs {
		attrs[k] = v
	}
	if len(c.Marks) > 0 {
		names := make([]any, 0, len(c.Marks))
		for _, m := range c.Marks {
			names = append(names, m.Type)
			if m.Type == "link" {
				if href, ok := m.Attrs["href"].(string); ok {
					attrs["href"] = href
				}
			}
		}
		attrs[AttrMarks] = names
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	op, err := doc.ApplyLocal(Op{
		Kind:   OpInsert,
		Parent: parent,
		After:  after,
		Type:   c.Type,
		Text:   c.Text,
		Attrs:  attrs,
	})
	if err != nil {
		return NodeID{}, fmt.Errorf("load %s: %w", c.Type, err)
	}

	var prev NodeID
	for _, child := range c.Content {
		id, err := loadNode(doc, op.ID, prev, child)
		if err != nil {
			return NodeID{}, err
		}
		prev = id
	}
	return op.ID, nil
}

// ToContent converts a materialized node back to its JSON shape.
func ToContent(n *Node) Content {
	c := Content{Type: n.Type, Text: n.Text}
	for k, v := range n.Attrs {
		if k == AttrMarks || (k == "href" && n.IsText()) {
			continue
		}
		if c.Attrs == nil {
			c.Attrs = make(map[string]any)
		}
		c.Attrs[k] = v
	}
	for _, m := range n.Marks() {
		mark := Mark{Type: m}
		if m == "link" {
			mark.Attrs = map[string]any{"href": n.AttrString("href")}
		}
		c.Marks = append(c.Marks, mark)
	}
	for _, child := range n.Children {
		c.Content = append(c.Content, ToContent(child))
	}
	return c
}
