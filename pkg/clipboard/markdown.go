package clipboard

import (
	"fmt"
	"strings"

	"collab-editor-be/pkg/crdt"
)

// Markdown renders n as CommonMark with GitHub table and task syntax.
func (s *Serializer) Markdown(n *crdt.Node) string {
	var sb strings.Builder
	s.walkBlocks(n.Children, &sb, "")
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// walkBlocks writes block children separated by blank lines. prefix is
// prepended to every line (quote markers, list indentation).
func (s *Serializer) walkBlocks(blocks []*crdt.Node, sb *strings.Builder, prefix string) {
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString(strings.TrimRight(prefix, " ") + "\n")
		}
		s.walkBlock(b, sb, prefix)
	}
}

func (s *Serializer) walkBlock(n *crdt.Node, sb *strings.Builder, prefix string) {
	switch n.Type {
	case crdt.TypeParagraph:
		sb.WriteString(prefix + s.inline(n) + "\n")

	case crdt.TypeHeading:
		sb.WriteString(prefix + strings.Repeat("#", headingLevel(n)) + " " + s.inline(n) + "\n")

	case crdt.TypeBlockquote:
		s.walkBlocks(n.Children, sb, prefix+"> ")

	case crdt.TypeCodeBlock:
		lang := n.AttrString("language")
		sb.WriteString(prefix + "```" + lang + "\n")
		for _, line := range strings.Split(n.TextContent(), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
		sb.WriteString(prefix + "```\n")

	case crdt.TypeBulletList, crdt.TypeOrderedList, crdt.TypeTaskList:
		s.handleList(n, sb, prefix)

	case crdt.TypeTable:
		s.handleTable(n, sb, prefix)

	case crdt.TypeHorizontalRule:
		sb.WriteString(prefix + "---\n")

	case crdt.TypeImage:
		fmt.Fprintf(sb, "%s![%s](%s)\n", prefix, n.AttrString("alt"), n.AttrString("src"))

	case crdt.TypeEmbed:
		fmt.Fprintf(sb, "%s<%s>\n", prefix, n.AttrString("src"))

	default:
		if len(n.Children) > 0 && n.Children[0].IsText() {
			sb.WriteString(prefix + s.inline(n) + "\n")
			return
		}
		s.walkBlocks(n.Children, sb, prefix)
	}
}

func (s *Serializer) handleList(n *crdt.Node, sb *strings.Builder, prefix string) {
	for i, item := range n.Children {
		var marker string
		switch {
		case n.Type == crdt.TypeOrderedList:
			marker = fmt.Sprintf("%d. ", i+1)
		case item.Type == crdt.TypeTaskItem:
			if checked, _ := item.Attrs["checked"].(bool); checked {
				marker = "- [x] "
			} else {
				marker = "- [ ] "
			}
		default:
			marker = "- "
		}
		indent := prefix + strings.Repeat(" ", len(marker))

		for j, child := range item.Children {
			var block strings.Builder
			s.walkBlock(child, &block, indent)
			text := block.String()
			if j == 0 {
				text = prefix + marker + strings.TrimPrefix(text, indent)
			}
			sb.WriteString(text)
		}
	}
}

func (s *Serializer) handleTable(n *crdt.Node, sb *strings.Builder, prefix string) {
	for i, row := range n.Children {
		cells := make([]string, 0, len(row.Children))
		for _, cell := range row.Children {
			var parts []string
			for _, b := range cell.Children {
				parts = append(parts, s.inline(b))
			}
			cells = append(cells, strings.ReplaceAll(strings.Join(parts, " "), "|", `\|`))
		}
		sb.WriteString(prefix + "| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, len(cells))
			for k := range sep {
				sep[k] = "---"
			}
			sb.WriteString(prefix + "| " + strings.Join(sep, " | ") + " |\n")
		}
	}
}

// inline renders the inline content of a textblock.
func (s *Serializer) inline(n *crdt.Node) string {
	var sb strings.Builder
	for _, c := range n.Children {
		switch {
		case c.IsText():
			sb.WriteString(s.textMarkdown(c))
		case c.Type == crdt.TypeHardBreak:
			sb.WriteString("  \n")
		case c.Type == crdt.TypeImage:
			fmt.Fprintf(&sb, "![%s](%s)", c.AttrString("alt"), c.AttrString("src"))
		default:
			sb.WriteString(s.inline(c))
		}
	}
	return sb.String()
}

// textMarkdown wraps text in mark delimiters, code innermost.
func (s *Serializer) textMarkdown(n *crdt.Node) string {
	text := n.Text
	if text == "" {
		return ""
	}
	has := make(map[string]bool)
	for _, m := range s.marksOf(n) {
		has[m] = true
	}

	if has["code"] {
		text = "`" + text + "`"
	}
	if has["bold"] {
		text = "**" + text + "**"
	}
	if has["italic"] {
		text = "_" + text + "_"
	}
	if has["strike"] {
		text = "~~" + text + "~~"
	}
	if has["highlight"] {
		text = "==" + text + "=="
	}
	if has["superscript"] {
		text = "<sup>" + text + "</sup>"
	}
	if has["subscript"] {
		text = "<sub>" + text + "</sub>"
	}
	if has["link"] {
		text = fmt.Sprintf("[%s](%s)", text, n.AttrString("href"))
	}
	return text
}
