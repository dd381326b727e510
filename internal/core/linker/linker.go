package linker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/agenthands/topicsync/internal/config"
	"github.com/agenthands/topicsync/internal/core/xref"
)

var whitespace = regexp.MustCompile(`\s+`)

// Linker reads and writes cross references in topic XML. Candidate topics
// carry references as elements (<xref linkend="anchor"/>); stored topics
// carry them as injection markers (<!-- Inject: 1234 -->).
type Linker struct {
	xref          *regexp.Regexp
	inject        *regexp.Regexp
	injectKeyword string
}

func New(cfg config.MarkupConfig) (*Linker, error) {
	if cfg.XrefElement == "" || cfg.LinkAttribute == "" || cfg.InjectKeyword == "" {
		return nil, fmt.Errorf("markup config is incomplete: %+v", cfg)
	}
	xrefPattern := fmt.Sprintf(`<%s\b[^>]*?\b%s\s*=\s*["']([^"']+)["'][^>]*?(?:/>|>[^<]*</%s\s*>)`,
		regexp.QuoteMeta(cfg.XrefElement), regexp.QuoteMeta(cfg.LinkAttribute), regexp.QuoteMeta(cfg.XrefElement))
	xrefRe, err := regexp.Compile(xrefPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile xref pattern: %w", err)
	}
	injectRe, err := regexp.Compile(fmt.Sprintf(`<!--\s*%s\s*:\s*([^\s<>]+?)\s*-->`, regexp.QuoteMeta(cfg.InjectKeyword)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile injection pattern: %w", err)
	}
	return &Linker{
		xref:          xrefRe,
		inject:        injectRe,
		injectKeyword: cfg.InjectKeyword,
	}, nil
}

// OutgoingAnchors returns the anchors of the cross references in document order.
func (l *Linker) OutgoingAnchors(xml string) []string {
	var anchors []string
	for _, m := range l.xref.FindAllStringSubmatch(xml, -1) {
		anchors = append(anchors, m[1])
	}
	return anchors
}

// InjectedTargets returns the topic ids of the injection markers in document order.
func (l *Linker) InjectedTargets(xml string) []xref.TopicID {
	var targets []xref.TopicID
	for _, m := range l.inject.FindAllStringSubmatch(xml, -1) {
		targets = append(targets, xref.TopicID(m[1]))
	}
	return targets
}

// Derive adds the link requirements of node to the graph: for every viable
// candidate, the Nth anchor that belongs to the document has to resolve to
// the topic named by the Nth injection marker of the candidate's stored XML.
// Anchors outside the document take no part in the pairing, matching
// Rewrite, which leaves them as references and writes no marker. A
// candidate whose marker count differs from the local anchor count can
// never line up and is rejected.
func (l *Linker) Derive(g *xref.Graph, node *xref.Node, anchors []string) (int, error) {
	if !node.HasCandidates() {
		return 0, nil
	}

	var local []string
	for _, anchor := range anchors {
		if g.GetNodeByExternalID(anchor) != nil {
			local = append(local, anchor)
		}
	}

	added := 0
	for _, id := range node.ViableCandidates() {
		match, _ := node.Match(id)
		targets := l.InjectedTargets(match.SourceXML)
		if len(targets) != len(local) {
			log.Printf("linker: %v candidate %s has %d links, document has %d", node, id, len(targets), len(local))
			node.RejectCandidate(id)
			continue
		}
		for i, anchor := range local {
			ok, err := g.AddOutgoingRequirement(node, id, anchor, targets[i])
			if err != nil {
				return added, fmt.Errorf("failed to add requirement %v -> %s: %w", node, anchor, err)
			}
			if !ok {
				log.Printf("linker: %v candidate %s links %s inconsistently", node, id, anchor)
				break
			}
			added++
		}
	}
	return added, nil
}

// Rewrite replaces every cross reference whose anchor resolve knows with an
// injection marker naming the final topic id. Other references are kept.
func (l *Linker) Rewrite(xml string, resolve func(anchor string) (string, bool)) string {
	return l.xref.ReplaceAllStringFunc(xml, func(ref string) string {
		m := l.xref.FindStringSubmatch(ref)
		if m == nil {
			return ref
		}
		id, ok := resolve(m[1])
		if !ok {
			return ref
		}
		return fmt.Sprintf("<!-- %s: %s -->", l.injectKeyword, id)
	})
}

// Normalize strips cross references and injection markers and collapses
// whitespace, so a candidate and its stored twin normalize to the same text.
func (l *Linker) Normalize(xml string) string {
	s := l.xref.ReplaceAllString(xml, "")
	s = l.inject.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "> <", "><")
	return strings.TrimSpace(s)
}

// ContentHash is the content address of a topic's normalized XML.
func (l *Linker) ContentHash(xml string) string {
	sum := sha256.Sum256([]byte(l.Normalize(xml)))
	return hex.EncodeToString(sum[:])
}
