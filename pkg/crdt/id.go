package crdt

import "fmt"

// NodeID identifies a node (and the operation that produced it) across every
// replica. Clock is a Lamport timestamp and Peer the id of the creating client.
type NodeID struct {
	Clock uint64 `json:"clock"`
	Peer  string `json:"peer"`
}

// RootID is the identity of the document root. It is never produced by an op.
var RootID = NodeID{}

func (id NodeID) IsZero() bool {
	return id.Clock == 0 && id.Peer == ""
}

// Less orders ids by clock, then by peer. The order is total, so every replica
// breaks ties between concurrent operations the same way.
func (id NodeID) Less(other NodeID) bool {
	if id.Clock != other.Clock {
		return id.Clock < other.Clock
	}
	return id.Peer < other.Peer
}

func (id NodeID) String() string {
	if id.IsZero() {
		return "root"
	}
	return fmt.Sprintf("%d@%s", id.Clock, id.Peer)
}
