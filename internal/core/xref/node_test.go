package xref

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(a Assignment) map[string]TopicID {
	out := make(map[string]TopicID, len(a))
	for _, as := range a {
		out[as.Node.String()] = as.ID
	}
	return out
}

// assertClosed checks that every outgoing requirement of every assumption
// is satisfied inside the same assignment.
func assertClosed(t *testing.T, g *Graph, a Assignment) {
	t.Helper()
	for _, as := range a {
		for _, req := range as.Node.OutgoingRequirements(as.ID) {
			target := g.GetNodeByExternalID(req.Anchor)
			got, ok := a.Lookup(target)
			if assert.True(t, ok, "%v requires %v which is missing", as.Node, target) {
				assert.Equal(t, req.Target, got, "%v requires %v=%s", as.Node, target, req.Target)
			}
		}
	}
}

func TestIsValid_TwoNodes(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "n1", "n2")
	n1, n2 := nodes[0], nodes[1]
	n1.AddCandidateMatch("101", "")
	n2.AddCandidateMatch("201", "")
	mustRequire(t, g, n1, "101", "n2", "201")

	result, ok := n1.IsValid("101", nil)
	require.True(t, ok)
	assert.Equal(t, map[string]TopicID{"n1": "101", "n2": "201"}, ids(result))
	assertClosed(t, g, result)
}

func TestIsValid_MissingTarget(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "n1", "n2")
	n1, n2 := nodes[0], nodes[1]
	n1.AddCandidateMatch("101", "")
	n2.AddCandidateMatch("202", "")
	mustRequire(t, g, n1, "101", "n2", "201")

	result, ok := n1.IsValid("101", nil)
	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestIsValid_HardRejects(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "with", "without")
	with, without := nodes[0], nodes[1]
	with.AddCandidateMatch("101", "")
	with.AddCandidateMatch("102", "")
	with.RejectCandidate("102")

	_, ok := with.IsValid("999", nil)
	assert.False(t, ok, "unknown candidate")
	_, ok = with.IsValid("102", nil)
	assert.False(t, ok, "non-viable candidate")
	_, ok = without.IsValid("101", nil)
	assert.False(t, ok, "node without any candidates")

	with.resolve("101")
	_, ok = with.IsValid("102", nil)
	assert.False(t, ok, "resolved to a different id")
}

func TestIsValid_Preconditions(t *testing.T) {
	g := NewGraph()
	n := addNodes(t, g, "n")[0]
	n.AddCandidateMatch("101", "")

	assert.Panics(t, func() { n.IsValid("", nil) })

	n.resolve("101")
	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrPrecondition))
		var pe *PreconditionError
		assert.ErrorAs(t, err, &pe)
	}()
	n.IsValid("101", nil)
}

func TestIsValid_IdempotentReentry(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "a", "b")
	a, b := nodes[0], nodes[1]
	a.AddCandidateMatch("1", "")
	b.AddCandidateMatch("2", "")
	b.AddCandidateMatch("3", "")

	acc := Assignment{{Node: a, ID: "1"}, {Node: b, ID: "2"}}

	same, ok := b.IsValid("2", acc)
	require.True(t, ok)
	assert.Equal(t, acc, same)
	assert.Len(t, same, 2)

	_, ok = b.IsValid("3", acc)
	assert.False(t, ok, "conflicting re-entry must be rejected")
}

func TestIsValid_DoesNotMutateExisting(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "a", "b", "c")
	for i, id := range []TopicID{"1", "2", "3"} {
		nodes[i].AddCandidateMatch(id, "")
	}

	base := make(Assignment, 1, 8)
	base[0] = Assumption{Node: nodes[0], ID: "1"}

	first, ok := nodes[1].IsValid("2", base)
	require.True(t, ok)
	second, ok := nodes[2].IsValid("3", base)
	require.True(t, ok)

	assert.Len(t, base, 1)
	assert.Same(t, nodes[1], first[1].Node, "sibling explorations must not share a backing array")
	assert.Same(t, nodes[2], second[1].Node)
}

func TestIsValid_Cycle(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "a", "b", "c")
	a, b, c := nodes[0], nodes[1], nodes[2]
	a.AddCandidateMatch("1", "")
	b.AddCandidateMatch("2", "")
	c.AddCandidateMatch("3", "")
	mustRequire(t, g, a, "1", "b", "2")
	mustRequire(t, g, b, "2", "c", "3")
	mustRequire(t, g, c, "3", "a", "1")

	result, ok := a.IsValid("1", nil)
	require.True(t, ok)
	require.Len(t, result, 3)
	assert.Equal(t, map[string]TopicID{"a": "1", "b": "2", "c": "3"}, ids(result))
	assertClosed(t, g, result)
}

func TestIsValid_CycleWithContradiction(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "a", "b")
	a, b := nodes[0], nodes[1]
	a.AddCandidateMatch("1", "")
	a.AddCandidateMatch("9", "")
	b.AddCandidateMatch("2", "")
	mustRequire(t, g, a, "1", "b", "2")
	mustRequire(t, g, b, "2", "a", "9")

	_, ok := a.IsValid("1", nil)
	assert.False(t, ok)
}

func TestIsValid_IncomingPicksLongest(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "p", "t", "s", "u", "v")
	p, tgt, s, u, v := nodes[0], nodes[1], nodes[2], nodes[3], nodes[4]
	p.AddCandidateMatch("1", "")
	tgt.AddCandidateMatch("10", "")
	s.AddCandidateMatch("s2", "")
	s.AddCandidateMatch("s1", "")
	u.AddCandidateMatch("20", "")
	v.AddCandidateMatch("30", "")

	mustRequire(t, g, p, "1", "t", "10")
	mustRequire(t, g, s, "s2", "t", "10")
	mustRequire(t, g, s, "s1", "t", "10")
	mustRequire(t, g, s, "s1", "u", "20")
	mustRequire(t, g, u, "20", "v", "30")

	result, ok := p.IsValid("1", nil)
	require.True(t, ok)
	assert.Equal(t, map[string]TopicID{"p": "1", "t": "10", "s": "s1", "u": "20", "v": "30"}, ids(result))
	assertClosed(t, g, result)
}

func TestIsValid_IncomingAllOptionsFail(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "a", "b", "c")
	a, b, c := nodes[0], nodes[1], nodes[2]
	a.AddCandidateMatch("1", "")
	b.AddCandidateMatch("2", "")
	c.AddCandidateMatch("3", "")
	mustRequire(t, g, a, "1", "b", "2")
	// c can only become 3 if b becomes 2, but 3 also needs a missing id on a.
	mustRequire(t, g, c, "3", "b", "2")
	mustRequire(t, g, c, "3", "a", "7")

	_, ok := a.IsValid("1", nil)
	assert.False(t, ok)
}

func TestUnresolvedSubgraph(t *testing.T) {
	g := NewGraph()
	nodes := addNodes(t, g, "a", "b", "c", "d", "lonely")
	a, b, c, d := nodes[0], nodes[1], nodes[2], nodes[3]
	a.AddCandidateMatch("1", "")
	c.AddCandidateMatch("3", "")
	d.AddCandidateMatch("4", "")
	mustRequire(t, g, a, "1", "b", "2")
	mustRequire(t, g, c, "3", "b", "2")
	mustRequire(t, g, c, "3", "a", "1")
	mustRequire(t, g, d, "4", "c", "3")
	d.resolve("4")

	got := b.UnresolvedSubgraph(nil)
	assert.ElementsMatch(t, []*Node{a, b, c}, got)

	assert.Empty(t, d.UnresolvedSubgraph(nil), "a resolved node collects nothing")
}

func TestIsValid_ClosureOnDenseGraph(t *testing.T) {
	g := NewGraph()
	anchors := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	nodes := addNodes(t, g, anchors...)
	for i, n := range nodes {
		n.AddCandidateMatch(TopicID(anchors[i]+"-x"), "")
		n.AddCandidateMatch(TopicID(anchors[i]+"-y"), "")
	}
	// Every node links to the next two; the "x" family is consistent, the
	// "y" family points half of its links at the wrong variant.
	for i, n := range nodes {
		for _, step := range []int{1, 2} {
			j := (i + step) % len(nodes)
			mustRequire(t, g, n, TopicID(anchors[i]+"-x"), anchors[j], TopicID(anchors[j]+"-x"))
			variant := "-y"
			if step == 2 {
				variant = "-x"
			}
			mustRequire(t, g, n, TopicID(anchors[i]+"-y"), anchors[j], TopicID(anchors[j]+variant))
		}
	}

	for _, n := range nodes {
		for _, id := range n.Candidates() {
			result, ok := n.IsValid(id, nil)
			if !ok {
				continue
			}
			assertClosed(t, g, result)
			seen := make(map[*Node]bool)
			for _, as := range result {
				assert.False(t, seen[as.Node], "%v appears twice", as.Node)
				seen[as.Node] = true
			}
		}
	}

	result, ok := nodes[0].IsValid("n0-x", nil)
	require.True(t, ok)
	assert.Len(t, result, len(nodes))
}
