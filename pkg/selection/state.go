package selection

// MenuState is everything rendering collaborators need to draw menus.
type MenuState struct {
	BubbleOpened    bool
	BubbleMode      Mode
	FloatingOpened  bool
	BlockMenuOpened bool
	LinkPreview     bool
	ForcedMode      *Mode
	IsNodeSelection bool
	Placement       Placement
}

// Reduce derives the next menu state from a snapshot. It is pure. The block
// menu flag carries over from prev. A node selection takes the top-start
// placement at once; otherwise the placement carries over until the
// debounced refinement settles it.
func Reduce(prev MenuState, s Snapshot) MenuState {
	next := MenuState{
		BlockMenuOpened: prev.BlockMenuOpened,
		Placement:       prev.Placement,
		IsNodeSelection: s.Kind == KindNode,
		LinkPreview:     LinkPreviewVisible(s),
	}
	if next.IsNodeSelection {
		next.Placement = PlacementFor(true)
	} else if next.Placement == "" {
		next.Placement = PlacementTop
	}

	floating := ShowFloating(s)
	next.FloatingOpened = floating && s.Breakpoint.Wide()

	if !s.Breakpoint.Wide() && floating {
		block := ModeBlock
		next.ForcedMode = &block
		next.BubbleOpened = true
		next.BubbleMode = ModeBlock
		return next
	}

	d := ClassifyBubble(s)
	next.BubbleOpened = d.Visible
	next.BubbleMode = d.Mode
	return next
}
