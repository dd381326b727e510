package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/topicsync/internal/config"
	"github.com/agenthands/topicsync/internal/core/xref"
)

func newLinker(t *testing.T) *Linker {
	t.Helper()
	l, err := New(config.Defaults().Markup)
	require.NoError(t, err)
	return l
}

func TestNew_IncompleteConfig(t *testing.T) {
	_, err := New(config.MarkupConfig{XrefElement: "xref"})
	assert.Error(t, err)
}

func TestOutgoingAnchors(t *testing.T) {
	l := newLinker(t)
	xml := `<section><para>See <xref linkend="install"/> and <xref endterm="x" linkend='config' />.</para>
<para><xref linkend="faq">FAQ</xref></para><para>xreflabel="nope"</para></section>`

	assert.Equal(t, []string{"install", "config", "faq"}, l.OutgoingAnchors(xml))
	assert.Empty(t, l.OutgoingAnchors("<section><para>plain</para></section>"))
}

func TestInjectedTargets(t *testing.T) {
	l := newLinker(t)
	xml := `<section><para>See <!-- Inject: 12 --> and <!--Inject:34-->, <!-- Inject: 5a1d-77 -->.</para><!-- other --></section>`

	assert.Equal(t, []xref.TopicID{"12", "34", "5a1d-77"}, l.InjectedTargets(xml))
}

func TestRewrite(t *testing.T) {
	l := newLinker(t)
	xml := `<para>See <xref linkend="install"/> and <xref linkend="external"/>.</para>`

	out := l.Rewrite(xml, func(anchor string) (string, bool) {
		if anchor == "install" {
			return "42", true
		}
		return "", false
	})

	assert.Equal(t, `<para>See <!-- Inject: 42 --> and <xref linkend="external"/>.</para>`, out)
	assert.Equal(t, []xref.TopicID{"42"}, l.InjectedTargets(out))
}

func TestContentHash_IgnoresLinksAndWhitespace(t *testing.T) {
	l := newLinker(t)
	candidate := `<section>
	<title>Install</title>
	<para>See <xref linkend="config"/> first.</para>
</section>`
	stored := `<section><title>Install</title> <para>See <!-- Inject: 77 --> first.</para></section>`

	assert.Equal(t, l.Normalize(candidate), l.Normalize(stored))
	assert.Equal(t, l.ContentHash(candidate), l.ContentHash(stored))
	assert.NotEqual(t, l.ContentHash(candidate), l.ContentHash(`<section><title>Other</title></section>`))
	assert.Len(t, l.ContentHash(stored), 64)
}

func TestDerive(t *testing.T) {
	l := newLinker(t)
	g := xref.NewGraph()
	intro := xref.NewNode("intro")
	install := xref.NewNode("install")
	require.NoError(t, g.AddNode(intro))
	require.NoError(t, g.AddNode(install))

	intro.AddCandidateMatch("101", `<para><!-- Inject: 201 --> <xref linkend="outside"/></para>`)
	intro.AddCandidateMatch("102", `<para><!-- Inject: 202 --> <!-- Inject: 900 --></para>`)
	install.AddCandidateMatch("201", `<para/>`)

	// "outside" is not part of the document, so only "install" is paired.
	added, err := l.Derive(g, intro, []string{"outside", "install"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	assert.Equal(t, []xref.Requirement{{Anchor: "install", Target: "201"}}, intro.OutgoingRequirements("101"))
	assert.False(t, intro.IsViable("102"), "a candidate with the wrong number of links is rejected")
	assert.Len(t, install.IncomingRequirements("201"), 1)
}

func TestDerive_NoCandidates(t *testing.T) {
	l := newLinker(t)
	g := xref.NewGraph()
	n := xref.NewNode("n")
	require.NoError(t, g.AddNode(n))

	added, err := l.Derive(g, n, []string{"n"})
	assert.NoError(t, err)
	assert.Zero(t, added)
	assert.False(t, n.HasOutgoingRequirements())
}

func TestDerive_NoLocalAnchors(t *testing.T) {
	l := newLinker(t)
	g := xref.NewGraph()
	n := xref.NewNode("n")
	require.NoError(t, g.AddNode(n))
	n.AddCandidateMatch("1", `<para><xref linkend="outside"/></para>`)
	n.AddCandidateMatch("2", `<para><!-- Inject: 7 --></para>`)

	added, err := l.Derive(g, n, []string{"outside"})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.True(t, n.IsViable("1"))
	assert.False(t, n.IsViable("2"), "the stored copy links a topic the document lacks")
}

func TestRewriteThenDerive_ExternalLink(t *testing.T) {
	l := newLinker(t)
	candidate := `<para>See <xref linkend="install"/> and <xref linkend="outside"/>.</para>`
	anchors := l.OutgoingAnchors(candidate)

	stored := l.Rewrite(candidate, func(anchor string) (string, bool) {
		if anchor == "install" {
			return "id-2", true
		}
		return "", false
	})
	require.Equal(t, `<para>See <!-- Inject: id-2 --> and <xref linkend="outside"/>.</para>`, stored)
	require.Equal(t, l.ContentHash(candidate), l.ContentHash(stored))

	// Importing the same document again must be able to reuse the stored copy.
	g := xref.NewGraph()
	intro := xref.NewNode("intro")
	install := xref.NewNode("install")
	require.NoError(t, g.AddNode(intro))
	require.NoError(t, g.AddNode(install))
	intro.AddCandidateMatch("id-1", stored)
	install.AddCandidateMatch("id-2", `<para/>`)

	added, err := l.Derive(g, intro, anchors)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, intro.IsViable("id-1"))
	assert.Equal(t, []xref.Requirement{{Anchor: "install", Target: "id-2"}}, intro.OutgoingRequirements("id-1"))
}
