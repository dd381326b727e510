package xref

import (
	"log"
	"slices"
)

// TopicID identifies an existing stored topic. The zero value means "unset".
type TopicID string

// New marks a node that has to be created as a fresh topic.
const New TopicID = "N"

// CandidateMatch is one existing topic returned by the similarity search.
// Viable is cleared when the candidate turns out to be self-contradictory;
// the entry is kept so later processing can see it was tried.
type CandidateMatch struct {
	Viable    bool
	SourceXML string
}

// Requirement says: the node owning Anchor must become Target.
type Requirement struct {
	Anchor string
	Target TopicID
}

// IncomingRequirement says: Node must become one of IDs.
type IncomingRequirement struct {
	Node *Node
	IDs  []TopicID
}

// Assumption pins a node to a topic id inside one exploration.
type Assumption struct {
	Node *Node
	ID   TopicID
}

// Assignment is an ordered, self-consistent partial mapping of nodes to ids.
type Assignment []Assumption

// Lookup returns the id assumed for n, if n is part of the assignment.
func (a Assignment) Lookup(n *Node) (TopicID, bool) {
	for _, as := range a {
		if as.Node == n {
			return as.ID, true
		}
	}
	return "", false
}

// Node is one candidate topic of the imported document.
type Node struct {
	graph *Graph

	externalIDs []string

	// nil means the similarity search returned nothing for this node.
	matches    map[TopicID]*CandidateMatch
	matchOrder []TopicID

	outgoing      map[TopicID][]Requirement
	outgoingOrder []TopicID
	incoming      map[TopicID][]*IncomingRequirement
	incomingOrder []TopicID

	resolved TopicID

	noMatchesLogged bool
}

// NewNode creates a detached node addressable by the given anchors.
// Use Graph.AddNode to make it part of a graph.
func NewNode(externalIDs ...string) *Node {
	n := &Node{}
	for _, id := range externalIDs {
		if id != "" && !slices.Contains(n.externalIDs, id) {
			n.externalIDs = append(n.externalIDs, id)
		}
	}
	return n
}

func (n *Node) ExternalIDs() []string {
	return slices.Clone(n.externalIDs)
}

// AddCandidateMatch records an existing topic the similarity search found.
// Adding the same id twice keeps the first position and viability.
func (n *Node) AddCandidateMatch(id TopicID, sourceXML string) {
	if id == "" || id == New {
		precondition("candidate id %q is reserved", id)
	}
	if n.matches == nil {
		n.matches = make(map[TopicID]*CandidateMatch)
	}
	if _, ok := n.matches[id]; ok {
		return
	}
	n.matches[id] = &CandidateMatch{Viable: true, SourceXML: sourceXML}
	n.matchOrder = append(n.matchOrder, id)
}

// RejectCandidate marks a candidate as non-viable without forgetting it.
func (n *Node) RejectCandidate(id TopicID) {
	if m, ok := n.matches[id]; ok {
		m.Viable = false
	}
}

// HasCandidates reports whether the similarity search found anything.
func (n *Node) HasCandidates() bool {
	return len(n.matches) > 0
}

// Candidates returns candidate ids in the order they were added.
func (n *Node) Candidates() []TopicID {
	return slices.Clone(n.matchOrder)
}

// ViableCandidates returns viable candidate ids in insertion order.
func (n *Node) ViableCandidates() []TopicID {
	var out []TopicID
	for _, id := range n.matchOrder {
		if n.matches[id].Viable {
			out = append(out, id)
		}
	}
	return out
}

// Match returns the candidate entry for id.
func (n *Node) Match(id TopicID) (CandidateMatch, bool) {
	m, ok := n.matches[id]
	if !ok {
		return CandidateMatch{}, false
	}
	return *m, true
}

func (n *Node) IsViable(id TopicID) bool {
	m, ok := n.matches[id]
	return ok && m.Viable
}

// HasOutgoingRequirements reports whether the node links into a network.
func (n *Node) HasOutgoingRequirements() bool {
	return len(n.outgoing) > 0
}

// OutgoingRequirements returns the requirements that hold if the node
// becomes id.
func (n *Node) OutgoingRequirements(id TopicID) []Requirement {
	return slices.Clone(n.outgoing[id])
}

// IncomingRequirements returns the requirements on other nodes that hold if
// this node becomes id.
func (n *Node) IncomingRequirements(id TopicID) []IncomingRequirement {
	out := make([]IncomingRequirement, 0, len(n.incoming[id]))
	for _, in := range n.incoming[id] {
		out = append(out, IncomingRequirement{Node: in.Node, IDs: slices.Clone(in.IDs)})
	}
	return out
}

// ResolvedID returns the final decision, or "" while unresolved.
func (n *Node) ResolvedID() TopicID {
	return n.resolved
}

func (n *Node) IsResolved() bool {
	return n.resolved != ""
}

func (n *Node) resolve(id TopicID) {
	if id == "" {
		precondition("resolving %v to an unset id", n)
	}
	if n.resolved != "" && n.resolved != id {
		precondition("node %v already resolved to %q, cannot become %q", n, n.resolved, id)
	}
	n.resolved = id
}

func (n *Node) String() string {
	if len(n.externalIDs) == 0 {
		return "<anonymous>"
	}
	return n.externalIDs[0]
}

// addOutgoing is called by Graph.AddOutgoingRequirement. It returns false
// when the requirement conflicts with an earlier one for the same anchor,
// in which case the candidate has been poisoned.
func (n *Node) addOutgoing(candidate TopicID, anchor string, target TopicID) bool {
	if n.outgoing == nil {
		n.outgoing = make(map[TopicID][]Requirement)
	}
	reqs, seen := n.outgoing[candidate]
	for _, r := range reqs {
		if r.Anchor != anchor {
			continue
		}
		if r.Target != target {
			n.RejectCandidate(candidate)
			return false
		}
		return true
	}
	if !seen {
		n.outgoingOrder = append(n.outgoingOrder, candidate)
	}
	n.outgoing[candidate] = append(reqs, Requirement{Anchor: anchor, Target: target})
	return true
}

func (n *Node) addIncoming(candidate TopicID, from *Node, fromCandidate TopicID) {
	if n.incoming == nil {
		n.incoming = make(map[TopicID][]*IncomingRequirement)
	}
	for _, in := range n.incoming[candidate] {
		if in.Node == from {
			if !slices.Contains(in.IDs, fromCandidate) {
				in.IDs = append(in.IDs, fromCandidate)
			}
			return
		}
	}
	if _, ok := n.incoming[candidate]; !ok {
		n.incomingOrder = append(n.incomingOrder, candidate)
	}
	n.incoming[candidate] = append(n.incoming[candidate], &IncomingRequirement{
		Node: from,
		IDs:  []TopicID{fromCandidate},
	})
}

// IsValid checks whether assuming this node becomes candidate is consistent
// with the rest of the graph, extending existing. It returns the extended
// assignment, or false when the assumption has to be rejected.
func (n *Node) IsValid(candidate TopicID, existing Assignment) (Assignment, bool) {
	if candidate == "" {
		precondition("IsValid called on %v with an unset candidate id", n)
	}
	if n.resolved != "" {
		if n.resolved != candidate {
			return nil, false
		}
		precondition("IsValid re-entered on %v which is already resolved to %q", n, candidate)
	}
	if n.matches == nil {
		if !n.noMatchesLogged {
			log.Printf("xref: %v has no existing topic matches", n)
			n.noMatchesLogged = true
		}
		return nil, false
	}
	if !n.IsViable(candidate) {
		return nil, false
	}

	if id, ok := existing.Lookup(n); ok {
		if id == candidate {
			return existing, true
		}
		return nil, false
	}

	acc := append(existing[:len(existing):len(existing)], Assumption{Node: n, ID: candidate})

	for _, req := range n.outgoing[candidate] {
		target := n.graph.GetNodeByExternalID(req.Anchor)
		if target == nil {
			precondition("%v requires unknown anchor %q", n, req.Anchor)
		}
		next, ok := target.IsValid(req.Target, acc)
		if !ok {
			return nil, false
		}
		acc = next
	}

	for _, in := range n.incoming[candidate] {
		if _, ok := acc.Lookup(in.Node); ok {
			continue
		}
		var best Assignment
		for _, id := range in.IDs {
			next, ok := in.Node.IsValid(id, acc)
			if ok && len(next) > len(best) {
				best = next
			}
		}
		if best == nil {
			return nil, false
		}
		acc = best
	}

	return acc, true
}

// UnresolvedSubgraph collects every unresolved node reachable from n over
// outgoing or incoming requirements, n included.
func (n *Node) UnresolvedSubgraph(collector []*Node) []*Node {
	if n.resolved != "" || slices.Contains(collector, n) {
		return collector
	}
	collector = append(collector, n)

	for _, candidate := range n.outgoingOrder {
		for _, req := range n.outgoing[candidate] {
			if target := n.graph.GetNodeByExternalID(req.Anchor); target != nil {
				collector = target.UnresolvedSubgraph(collector)
			}
		}
	}
	for _, candidate := range n.incomingOrder {
		for _, in := range n.incoming[candidate] {
			collector = in.Node.UnresolvedSubgraph(collector)
		}
	}
	return collector
}
