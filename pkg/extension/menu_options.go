package extension

import (
	"fmt"

	"collab-editor-be/pkg/crdt"
)

// MenuOption is one entry of the slash/block menu.
type MenuOption struct {
	Label string         `json:"label"`
	Block string         `json:"block"`
	Attrs map[string]any `json:"attrs,omitempty"`
	// SnippetID is set for options that insert a saved snippet.
	SnippetID string `json:"snippetId,omitempty"`
}

// Snippet is a reusable content fragment saved in the workspace.
type Snippet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BlockMenuOptions lists the blocks enabled by ws followed by snippets.
// Unresolved settings contribute nothing.
func BlockMenuOptions(ws *WorkspaceSettings, snippets []Snippet) []MenuOption {
	var out []MenuOption
	if ws != nil {
		if ws.HasBlock(crdt.TypeHeading) {
			for level := 1; level <= 3; level++ {
				out = append(out, MenuOption{
					Label: fmt.Sprintf("Heading %d", level),
					Block: crdt.TypeHeading,
					Attrs: map[string]any{"level": level},
				})
			}
		}
		for _, b := range []struct{ block, label string }{
			{crdt.TypeBulletList, "Bullet list"},
			{crdt.TypeOrderedList, "Ordered list"},
			{crdt.TypeTaskList, "Task list"},
			{crdt.TypeBlockquote, "Quote"},
			{crdt.TypeCodeBlock, "Code block"},
			{crdt.TypeHorizontalRule, "Divider"},
			{crdt.TypeImage, "Image"},
			{crdt.TypeTable, "Table"},
		} {
			if ws.HasBlock(b.block) {
				out = append(out, MenuOption{Label: b.label, Block: b.block})
			}
		}
		if ws.HasBlock(crdt.TypeEmbed) {
			for _, provider := range ws.Embeds {
				out = append(out, MenuOption{
					Label: "Embed " + provider,
					Block: crdt.TypeEmbed,
					Attrs: map[string]any{"embed": provider},
				})
			}
		}
	}
	for _, s := range snippets {
		out = append(out, MenuOption{Label: s.Name, Block: "snippet", SnippetID: s.ID})
	}
	return out
}
