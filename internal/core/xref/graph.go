package xref

import (
	"fmt"
	"slices"
)

// Graph is the cross-reference graph of one import job. Nodes are only ever
// added; the graph is the single place that mutates both ends of a link.
type Graph struct {
	nodes   []*Node
	anchors map[string]*Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		anchors: make(map[string]*Node),
	}
}

// AddNode adds n to the graph and indexes its external ids. Adding the same
// node twice is a no-op.
func (g *Graph) AddNode(n *Node) error {
	if n.graph == g {
		return nil
	}
	if n.graph != nil {
		return fmt.Errorf("node %v belongs to another graph", n)
	}
	for _, id := range n.externalIDs {
		if owner, ok := g.anchors[id]; ok && owner != n {
			return fmt.Errorf("%w: %q", ErrDuplicateAnchor, id)
		}
	}
	for _, id := range n.externalIDs {
		g.anchors[id] = n
	}
	n.graph = g
	g.nodes = append(g.nodes, n)
	return nil
}

// AddExternalID makes n addressable by one more anchor.
func (g *Graph) AddExternalID(n *Node, id string) error {
	if n.graph != g {
		return ErrNodeNotInGraph
	}
	if id == "" {
		return ErrEmptyExternalID
	}
	if owner, ok := g.anchors[id]; ok {
		if owner == n {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrDuplicateAnchor, id)
	}
	g.anchors[id] = n
	n.externalIDs = append(n.externalIDs, id)
	return nil
}

// GetNodeByExternalID returns the node addressable by id, or nil.
func (g *Graph) GetNodeByExternalID(id string) *Node {
	return g.anchors[id]
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddOutgoingRequirement records that if from becomes candidate, the node
// owning anchor must become target, and mirrors it as an incoming
// requirement on that node. It reports whether the requirement was accepted;
// a requirement that contradicts an earlier one for the same anchor poisons
// the candidate instead.
func (g *Graph) AddOutgoingRequirement(from *Node, candidate TopicID, anchor string, target TopicID) (bool, error) {
	if from.graph != g {
		return false, ErrNodeNotInGraph
	}
	if from.matches == nil {
		precondition("outgoing requirement on %v which has no candidates", from)
	}
	if candidate == "" || target == "" {
		precondition("outgoing requirement on %v with an unset id", from)
	}
	to := g.anchors[anchor]
	if to == nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownAnchor, anchor)
	}
	if !from.addOutgoing(candidate, anchor, target) {
		return false, nil
	}
	to.addIncoming(target, from, candidate)
	return true, nil
}
