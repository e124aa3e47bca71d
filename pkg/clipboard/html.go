package clipboard

import (
	"fmt"
	"html"
	"strings"

	"collab-editor-be/pkg/crdt"
)

// HTML renders n and its descendants.
func (s *Serializer) HTML(n *crdt.Node) string {
	var sb strings.Builder
	s.renderHTML(n, &sb)
	return sb.String()
}

func (s *Serializer) renderHTML(n *crdt.Node, sb *strings.Builder) {
	wrap := func(open, close string) {
		sb.WriteString(open)
		for _, c := range n.Children {
			s.renderHTML(c, sb)
		}
		sb.WriteString(close)
	}

	switch n.Type {
	case crdt.TypeDoc:
		wrap("", "")
	case crdt.TypeParagraph:
		wrap("<p>", "</p>")
	case crdt.TypeHeading:
		level := headingLevel(n)
		wrap(fmt.Sprintf("<h%d>", level), fmt.Sprintf("</h%d>", level))
	case crdt.TypeBulletList:
		wrap("<ul>", "</ul>")
	case crdt.TypeOrderedList:
		wrap("<ol>", "</ol>")
	case crdt.TypeTaskList:
		wrap(`<ul data-type="taskList">`, "</ul>")
	case crdt.TypeListItem:
		wrap("<li>", "</li>")
	case crdt.TypeTaskItem:
		checked, _ := n.Attrs["checked"].(bool)
		wrap(fmt.Sprintf(`<li data-type="taskItem" data-checked="%t">`, checked), "</li>")
	case crdt.TypeBlockquote:
		wrap("<blockquote>", "</blockquote>")
	case crdt.TypeCodeBlock:
		sb.WriteString("<pre><code>")
		sb.WriteString(html.EscapeString(n.TextContent()))
		sb.WriteString("</code></pre>")
	case crdt.TypeTable:
		wrap("<table>", "</table>")
	case crdt.TypeTableRow:
		wrap("<tr>", "</tr>")
	case crdt.TypeTableCell:
		wrap("<td>", "</td>")
	case crdt.TypeTableHeader:
		wrap("<th>", "</th>")
	case crdt.TypeHorizontalRule:
		sb.WriteString("<hr>")
	case crdt.TypeHardBreak:
		sb.WriteString("<br>")
	case crdt.TypeImage:
		fmt.Fprintf(sb, `<img src="%s" alt="%s">`,
			html.EscapeString(n.AttrString("src")), html.EscapeString(n.AttrString("alt")))
	case crdt.TypeEmbed:
		fmt.Fprintf(sb, `<div data-embed="%s" data-src="%s"></div>`,
			html.EscapeString(n.AttrString("provider")), html.EscapeString(n.AttrString("src")))
	case crdt.TypeText:
		sb.WriteString(s.textHTML(n))
	default:
		wrap("", "")
	}
}

// textHTML applies marks from the inside out in declaration order.
func (s *Serializer) textHTML(n *crdt.Node) string {
	out := html.EscapeString(n.Text)
	if out == "" {
		return ""
	}
	marks := s.marksOf(n)
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i] {
		case "bold":
			out = "<strong>" + out + "</strong>"
		case "italic":
			out = "<em>" + out + "</em>"
		case "code":
			out = "<code>" + out + "</code>"
		case "strike":
			out = "<s>" + out + "</s>"
		case "highlight":
			out = "<mark>" + out + "</mark>"
		case "superscript":
			out = "<sup>" + out + "</sup>"
		case "subscript":
			out = "<sub>" + out + "</sub>"
		case "link":
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(n.AttrString("href")), out)
		}
	}
	return out
}
