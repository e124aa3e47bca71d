package clipboard

import (
	"testing"

	"collab-editor-be/pkg/crdt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string, marks ...crdt.Mark) crdt.Content {
	return crdt.Content{Type: crdt.TypeText, Text: s, Marks: marks}
}

func block(typ string, children ...crdt.Content) crdt.Content {
	return crdt.Content{Type: typ, Content: children}
}

func sampleDoc(t *testing.T) *crdt.Node {
	t.Helper()
	heading := block(crdt.TypeHeading, text("Title"))
	heading.Attrs = map[string]any{"level": 2}

	doc := crdt.NewTree("doc-1", "peer-a")
	require.NoError(t, crdt.Load(doc, crdt.Content{
		Type: crdt.TypeDoc,
		Content: []crdt.Content{
			block(crdt.TypeParagraph,
				text("Hello "),
				text("world", crdt.Mark{Type: "bold"}, crdt.Mark{Type: "link", Attrs: map[string]any{"href": "https://x.dev"}}),
			),
			heading,
			block(crdt.TypeBulletList,
				block(crdt.TypeListItem, block(crdt.TypeParagraph, text("one"))),
				block(crdt.TypeListItem, block(crdt.TypeParagraph, text("two"))),
			),
		},
	}))
	return doc.Snapshot()
}

func TestSerialize_DropsDisabledMarks(t *testing.T) {
	root := sampleDoc(t)
	s := NewSerializer(map[string]bool{"bold": true, "link": false})

	p := s.Serialize(root, 0, root.ContentSize())
	assert.Equal(t, "<p>Hello <strong>world</strong></p><h2>Title</h2><ul><li><p>one</p></li><li><p>two</p></li></ul>", p.HTML)
	assert.Equal(t, "Hello **world**\n\n## Title\n\n- one\n- two\n", p.Markdown)
}

func TestSerialize_NestsEnabledMarks(t *testing.T) {
	root := sampleDoc(t)
	s := NewSerializer(map[string]bool{"bold": true, "link": true})

	p := s.Serialize(root, 0, 13)
	assert.Equal(t, `<p>Hello <strong><a href="https://x.dev">world</a></strong></p>`, p.HTML)
	assert.Equal(t, "Hello [**world**](https://x.dev)\n", p.Markdown)
}

func TestSerialize_CutsAtSelection(t *testing.T) {
	root := sampleDoc(t)
	s := NewSerializer(map[string]bool{"bold": true})

	p := s.Serialize(root, 3, 10)
	assert.Equal(t, "llo wor", p.Text)
	assert.Equal(t, "<p>llo <strong>wor</strong></p>", p.HTML)
	assert.Equal(t, "llo **wor**\n", p.Markdown)
}

func TestZeroSerializerDropsAllMarks(t *testing.T) {
	root := sampleDoc(t)
	var s Serializer
	assert.Equal(t, "<p>Hello world</p>", s.HTML(Slice(root, 0, 13)))
}

func TestMarkdown_BlocksAndTables(t *testing.T) {
	code := block(crdt.TypeCodeBlock, text("a := 1\nb := 2"))
	code.Attrs = map[string]any{"language": "go"}
	task := block(crdt.TypeTaskItem, block(crdt.TypeParagraph, text("ship")))
	task.Attrs = map[string]any{"checked": true}
	img := crdt.Content{Type: crdt.TypeImage, Attrs: map[string]any{"src": "/a.png", "alt": "A"}}

	doc := crdt.NewTree("doc-1", "peer-a")
	require.NoError(t, crdt.Load(doc, crdt.Content{
		Type: crdt.TypeDoc,
		Content: []crdt.Content{
			block(crdt.TypeBlockquote, block(crdt.TypeParagraph, text("quoted"))),
			code,
			block(crdt.TypeTaskList, task),
			block(crdt.TypeTable,
				block(crdt.TypeTableRow,
					block(crdt.TypeTableHeader, block(crdt.TypeParagraph, text("k"))),
					block(crdt.TypeTableHeader, block(crdt.TypeParagraph, text("v"))),
				),
				block(crdt.TypeTableRow,
					block(crdt.TypeTableCell, block(crdt.TypeParagraph, text("a|b"))),
					block(crdt.TypeTableCell, block(crdt.TypeParagraph, text("1"))),
				),
			),
			{Type: crdt.TypeHorizontalRule},
			img,
		},
	}))

	md := NewSerializer(nil).Markdown(doc.Snapshot())
	assert.Equal(t, "> quoted\n"+
		"\n"+
		"```go\na := 1\nb := 2\n```\n"+
		"\n"+
		"- [x] ship\n"+
		"\n"+
		"| k | v |\n| --- | --- |\n| a\\|b | 1 |\n"+
		"\n"+
		"---\n"+
		"\n"+
		"![A](/a.png)\n", md)
}
