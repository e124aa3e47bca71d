package extension

// Segment contributes a run of extensions when its predicate holds.
type Segment struct {
	Name  string
	When  func(Input) bool
	Build func(Input) []*Extension
}

// Builder concatenates segments in the order they were appended.
type Builder struct {
	segments []Segment
}

func NewBuilder(segments ...Segment) *Builder {
	return &Builder{segments: append([]Segment(nil), segments...)}
}

func (b *Builder) Append(seg Segment) *Builder {
	return &Builder{segments: append(append([]Segment(nil), b.segments...), seg)}
}

// Segments returns the segment names in order.
func (b *Builder) Segments() []string {
	names := make([]string, 0, len(b.segments))
	for _, s := range b.segments {
		names = append(names, s.Name)
	}
	return names
}

// Build evaluates every segment, drops nil entries and removes duplicate
// names. When a name repeats, the last declaration is kept at its own
// position because it is the one the schema would resolve to.
func (b *Builder) Build(in Input) List {
	var all []*Extension
	for _, seg := range b.segments {
		if seg.When != nil && !seg.When(in) {
			continue
		}
		for _, e := range seg.Build(in) {
			if e != nil && e.Name != "" {
				all = append(all, e)
			}
		}
	}

	last := make(map[string]int, len(all))
	for i, e := range all {
		last[e.Name] = i
	}
	out := make(List, 0, len(last))
	for i, e := range all {
		if last[e.Name] == i {
			out = append(out, e)
		}
	}
	return out
}

var defaultBuilder = NewBuilder(
	FormattingSegment,
	StructureSegment,
	UtilitySegment,
	CollaborationSegment,
	InteractiveSegment,
	ExtraSegment,
)

// Compose returns the extension set for a surface. Without workspace
// settings it returns an empty list, leaving the surface inert.
func Compose(in Input) List {
	if in.Workspace == nil {
		return List{}
	}
	return defaultBuilder.Build(in)
}
