package session

import (
	"strings"

	"collab-editor-be/pkg/crdt"
)

// AttrSlug is the node attribute URL fragments are matched against.
const AttrSlug = "slug"

// Navigator changes the current route.
type Navigator interface {
	Navigate(path string, replace bool)
}

// Location is the current route of the hosting view.
type Location interface {
	Pathname() string
	Hash() string
	// OnChange registers fn for route changes and returns an unsubscribe.
	OnChange(fn func()) func()
}

// Scroller brings a node into view.
type Scroller interface {
	ScrollIntoView(id crdt.NodeID)
}

// FindSlug returns the first node whose slug matches the fragment, which may
// carry a leading '#'.
func FindSlug(root *crdt.Node, fragment string) *crdt.Node {
	slug := strings.TrimPrefix(fragment, "#")
	if slug == "" {
		return nil
	}
	return root.Find(func(n *crdt.Node) bool {
		return n.AttrString(AttrSlug) == slug
	})
}
