package selection

import "collab-editor-be/pkg/crdt"

// Mode selects what the bubble menu renders.
type Mode string

const (
	ModeText  Mode = "text"
	ModeTable Mode = "table"
	ModeBlock Mode = "block"
	ModeLink  Mode = "link"
)

// Placement anchors the bubble relative to the selection.
type Placement string

const (
	PlacementTop      Placement = "top"
	PlacementTopStart Placement = "top-start"
)

// Decision is the bubble classifier output.
type Decision struct {
	Visible bool
	Mode    Mode
}

// nonTextNodes are node kinds whose node selection never shows the bubble.
var nonTextNodes = map[string]bool{
	crdt.TypeHorizontalRule: true,
	crdt.TypeImage:          true,
	crdt.TypeCodeBlock:      true,
	crdt.TypeEmbed:          true,
	crdt.TypeElement:        true,
	crdt.TypeBlockquote:     true,
}

// ClassifyBubble applies the bubble precedence rules; the first match wins.
func ClassifyBubble(s Snapshot) Decision {
	switch {
	case (!s.Focused && s.Kind != KindNode) || s.Kind == KindAll:
		return Decision{}
	case s.Kind == KindCell:
		return Decision{Visible: true, Mode: ModeTable}
	case s.Kind == KindNode && nonTextNodes[s.NodeType]:
		return Decision{}
	case s.Empty() || (s.Kind == KindText && s.TextLength == 0):
		return Decision{}
	default:
		return Decision{Visible: true, Mode: ModeText}
	}
}

// ShowFloating reports whether the empty-line menu applies: a focused,
// editable surface with a collapsed cursor in an empty top-level paragraph.
func ShowFloating(s Snapshot) bool {
	plainEmptyParagraph := s.ParentTextblock &&
		!s.ParentCode &&
		s.ParentType == crdt.TypeParagraph &&
		!s.ParentHasText
	return s.Focused && s.Empty() && s.AnchorDepth == 1 && plainEmptyParagraph && s.Editable
}

// LinkPreviewVisible reports whether the cursor rests inside a link.
func LinkPreviewVisible(s Snapshot) bool {
	return s.Editable && s.Focused && s.Empty() && s.InLink
}

// PlacementFor returns the bubble anchor for a selection.
func PlacementFor(isNodeSelection bool) Placement {
	if isNodeSelection {
		return PlacementTopStart
	}
	return PlacementTop
}
