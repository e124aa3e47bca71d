// Package extension assembles the capability set of an editing surface.
package extension

// Kind separates schema nodes, schema marks and pure behaviors.
type Kind int

const (
	KindBehavior Kind = iota
	KindNode
	KindMark
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindMark:
		return "mark"
	default:
		return "behavior"
	}
}

// Extension is a named capability unit with optional configuration.
type Extension struct {
	Name    string
	Kind    Kind
	Options map[string]any
}

func NewNode(name string) *Extension     { return &Extension{Name: name, Kind: KindNode} }
func NewMark(name string) *Extension     { return &Extension{Name: name, Kind: KindMark} }
func NewBehavior(name string) *Extension { return &Extension{Name: name, Kind: KindBehavior} }

// Configure returns a copy of e with opts merged over its options.
func (e *Extension) Configure(opts map[string]any) *Extension {
	out := &Extension{Name: e.Name, Kind: e.Kind, Options: make(map[string]any, len(e.Options)+len(opts))}
	for k, v := range e.Options {
		out.Options[k] = v
	}
	for k, v := range opts {
		out.Options[k] = v
	}
	return out
}

// List is an ordered extension set. Order is significant: later entries
// shadow earlier ones when the schema is resolved.
type List []*Extension

func (l List) Names() []string {
	names := make([]string, 0, len(l))
	for _, e := range l {
		names = append(names, e.Name)
	}
	return names
}

func (l List) Get(name string) (*Extension, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Name == name {
			return l[i], true
		}
	}
	return nil, false
}

func (l List) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// Schema returns the node and mark names the list makes representable.
func (l List) Schema() (nodes, marks map[string]bool) {
	nodes = make(map[string]bool)
	marks = make(map[string]bool)
	for _, e := range l {
		switch e.Kind {
		case KindNode:
			nodes[e.Name] = true
		case KindMark:
			marks[e.Name] = true
		}
	}
	return nodes, marks
}
