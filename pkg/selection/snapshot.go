// Package selection classifies the editor selection and derives which
// contextual menu is visible and where it is anchored.
package selection

// Kind is the shape of the current selection.
type Kind int

const (
	KindEmpty Kind = iota // collapsed text cursor
	KindText              // text range
	KindNode              // one whole node
	KindCell              // table cell range
	KindAll               // entire document
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNode:
		return "node"
	case KindCell:
		return "cell"
	case KindAll:
		return "all"
	default:
		return "empty"
	}
}

// Breakpoint is the viewport width class.
type Breakpoint int

const (
	BreakpointSmall Breakpoint = iota
	BreakpointMedium
	BreakpointLarge
)

// Wide reports whether inline menus are used instead of the block menu.
func (b Breakpoint) Wide() bool { return b >= BreakpointMedium }

// Snapshot is the derived, per-change view of the selection the classifier
// works on. It is never persisted.
type Snapshot struct {
	Kind       Kind
	From, To   int
	TextLength int    // visible characters in [From, To)
	NodeType   string // node selections only

	Focused  bool
	Editable bool

	AnchorDepth     int
	ParentType      string
	ParentTextblock bool
	ParentCode      bool
	ParentHasText   bool

	InLink   bool
	LinkHref string

	Breakpoint Breakpoint
}

func (s Snapshot) Empty() bool {
	return s.Kind == KindEmpty || s.From == s.To
}
