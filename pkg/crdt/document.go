// Package crdt implements the shared, mergeable document tree.
//
// The tree is an operation-based CRDT: sibling order follows the RGA rule,
// attributes and text are last-writer-wins registers and deletes are
// tombstones. Ops that arrive before their causal dependencies are parked
// until the dependencies show up, so updates may be applied in any order and
// any number of times.
package crdt

import "errors"

var (
	ErrUnknownNode     = errors.New("unknown node")
	ErrInvalidOp       = errors.New("invalid op")
	ErrMalformedUpdate = errors.New("malformed update")
)

// Origin tells subscribers where a change came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Change is delivered to subscribers after ops have been integrated.
type Change struct {
	Origin Origin
	Ops    []Op
}

// Document is the narrow capability the rest of the editor depends on. Any
// merge algorithm satisfying it can replace Tree.
type Document interface {
	Name() string
	Peer() string
	ApplyLocal(op Op) (Op, error)
	ApplyRemote(update []byte) error
	Serialize() ([]byte, error)
	Subscribe(fn func(Change)) (unsubscribe func())
	Snapshot() *Node
}
