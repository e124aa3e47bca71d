package session

import (
	"context"
	"testing"

	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localSession(t *testing.T, editable bool) *Session {
	t.Helper()
	s, err := Create(context.Background(), Config{Editable: editable, Workspace: workspace(), Peer: "peer-a"})
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func TestSurface_DrivesMenuState(t *testing.T) {
	s := localSession(t, true)
	surface := s.Surface()

	p, err := surface.InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeParagraph, nil)
	require.NoError(t, err)

	surface.Focus()
	require.NoError(t, surface.SetSelection(Selection{Kind: selection.KindText, From: 1, To: 1}))
	assert.Equal(t, selection.KindEmpty, surface.Selection().Kind)
	st := s.MenuState()
	assert.True(t, st.FloatingOpened)
	assert.False(t, st.BubbleOpened)

	text, err := surface.InsertText(p, crdt.NodeID{}, "hello", "bold")
	require.NoError(t, err)
	assert.False(t, s.MenuState().FloatingOpened, "paragraph has text now")

	require.NoError(t, surface.SetSelection(Selection{Kind: selection.KindText, From: 1, To: 4}))
	st = s.MenuState()
	assert.True(t, st.BubbleOpened)
	assert.Equal(t, selection.ModeText, st.BubbleMode)
	assert.True(t, surface.IsActive("bold"))
	assert.True(t, surface.IsActive(crdt.TypeParagraph))

	img, err := surface.InsertBlock(crdt.RootID, p, crdt.TypeImage, map[string]any{"src": "/a.png"})
	require.NoError(t, err)
	require.NoError(t, surface.SetSelection(Selection{Kind: selection.KindNode, From: 7}))
	assert.Equal(t, 8, surface.Selection().To)
	st = s.MenuState()
	assert.False(t, st.BubbleOpened)
	assert.True(t, st.IsNodeSelection)
	assert.True(t, surface.IsActive(crdt.TypeImage))

	require.NoError(t, surface.Delete(img))
	require.NoError(t, surface.SetText(text, ""))
	require.NoError(t, surface.SetSelection(Selection{Kind: selection.KindEmpty, From: 1, To: 1}))
	surface.SetBreakpoint(selection.BreakpointSmall)
	st = s.MenuState()
	assert.False(t, st.FloatingOpened)
	assert.True(t, st.BubbleOpened)
	require.NotNil(t, st.ForcedMode)
	assert.Equal(t, selection.ModeBlock, *st.ForcedMode)
}

func TestSurface_SelectAllHidesBubble(t *testing.T) {
	s := localSession(t, true)
	surface := s.Surface()
	p, err := surface.InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeParagraph, nil)
	require.NoError(t, err)
	_, err = surface.InsertText(p, crdt.NodeID{}, "hello")
	require.NoError(t, err)

	surface.Focus()
	require.NoError(t, surface.SelectAll())
	assert.Equal(t, Selection{Kind: selection.KindAll, From: 0, To: 7}, surface.Selection())
	assert.False(t, s.MenuState().BubbleOpened)
}

func TestSurface_SchemaChecks(t *testing.T) {
	s := localSession(t, true)
	surface := s.Surface()

	_, err := surface.InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeTable, nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	p, err := surface.InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeParagraph, nil)
	require.NoError(t, err)
	_, err = surface.InsertText(p, crdt.NodeID{}, "x", "strike")
	assert.ErrorIs(t, err, ErrUnknownType)

	text, err := surface.InsertText(p, crdt.NodeID{}, "x", "bold")
	require.NoError(t, err)
	require.NoError(t, surface.ToggleMark(text, "italic"))
	require.NoError(t, surface.ToggleMark(text, "bold"))
	node := s.Document().Snapshot().Find(func(n *crdt.Node) bool { return n.ID == text })
	require.NotNil(t, node)
	assert.Equal(t, []string{"italic"}, node.Marks())

	assert.ErrorIs(t, surface.ToggleMark(text, "strike"), ErrUnknownType)
	assert.ErrorIs(t, surface.ToggleMark(p, "bold"), crdt.ErrUnknownNode)
	assert.ErrorIs(t, surface.SetSelection(Selection{Kind: selection.KindText, From: 0, To: 99}), ErrInvalidPosition)
}

func TestSurface_ReadOnly(t *testing.T) {
	s := localSession(t, false)
	_, err := s.Surface().InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeParagraph, nil)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.False(t, s.Surface().Extensions().Has("slashMenu"))
}

func TestSurface_LinkPreview(t *testing.T) {
	s := localSession(t, true)
	surface := s.Surface()
	p, err := surface.InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeParagraph, nil)
	require.NoError(t, err)
	link, err := surface.InsertText(p, crdt.NodeID{}, "docs", "link")
	require.NoError(t, err)
	require.NoError(t, surface.SetAttr(link, "href", "https://example.com"))

	surface.Focus()
	require.NoError(t, surface.SetSelection(Selection{Kind: selection.KindEmpty, From: 3, To: 3}))
	snap := surface.Snapshot()
	assert.True(t, snap.InLink)
	assert.Equal(t, "https://example.com", snap.LinkHref)
	assert.True(t, s.MenuState().LinkPreview)
}

func TestSession_BlurInsideSurfaceKeepsMenus(t *testing.T) {
	s := localSession(t, true)
	s.Surface().AddElement("bubble-bold")

	s.Surface().Focus()
	s.Blur("bubble-bold")
	assert.False(t, s.CanDismiss())
	assert.False(t, s.Surface().HasFocus())

	s.Surface().Focus()
	s.Blur("sidebar")
	assert.True(t, s.CanDismiss())
}

func TestSurface_CopyUsesWorkspaceMarks(t *testing.T) {
	s := localSession(t, true)
	surface := s.Surface()
	p, err := surface.InsertBlock(crdt.RootID, crdt.NodeID{}, crdt.TypeParagraph, nil)
	require.NoError(t, err)
	_, err = surface.InsertText(p, crdt.NodeID{}, "hello", "bold")
	require.NoError(t, err)

	require.NoError(t, surface.SetSelection(Selection{Kind: selection.KindText, From: 1, To: 6}))
	payload, err := surface.Copy()
	require.NoError(t, err)
	assert.Equal(t, "hello", payload.Text)
	assert.Equal(t, "**hello**\n", payload.Markdown)
	assert.Equal(t, "<p><strong>hello</strong></p>", payload.HTML)
}

func TestSharedState_Subscribe(t *testing.T) {
	shared := NewSharedState()
	var seen []Handles
	unsubscribe := shared.Subscribe(func(h Handles) { seen = append(seen, h) })

	s, err := Create(context.Background(), Config{Workspace: workspace(), Shared: shared})
	require.NoError(t, err)
	s.Destroy()
	unsubscribe()
	shared.SetSurface(nil)

	require.Len(t, seen, 2)
	assert.Same(t, s.Surface(), seen[0].Surface)
	assert.Nil(t, seen[1].Surface)
}
