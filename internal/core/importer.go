package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/topicsync/internal/config"
	"github.com/agenthands/topicsync/internal/core/linker"
	"github.com/agenthands/topicsync/internal/core/model"
	"github.com/agenthands/topicsync/internal/core/search"
	"github.com/agenthands/topicsync/internal/core/xref"
	"github.com/agenthands/topicsync/internal/driver"
	"github.com/agenthands/topicsync/internal/llm"
)

var ErrEmptyTopic = errors.New("topic has no content")

// Importer matches the topics of an imported document against the topic
// store and persists the ones that have to be created.
type Importer struct {
	Driver   driver.GraphDriver
	Store    *driver.TopicStore
	Searcher *search.Searcher
	Linker   *linker.Linker
	NewID    func() string
}

// NewImporter wires an importer. llmClient and embedder may be nil, in which
// case matching falls back to identical content only.
func NewImporter(d driver.GraphDriver, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg *config.Config) (*Importer, error) {
	l, err := linker.New(cfg.Markup)
	if err != nil {
		return nil, err
	}
	var reranker llm.RerankerClient
	if llmClient != nil {
		reranker = llm.NewSimpleLLMReranker(llmClient)
	}
	store := driver.NewTopicStore(d)

	return &Importer{
		Driver:   d,
		Store:    store,
		Searcher: search.NewSearcher(store, embedder, reranker, l, cfg),
		Linker:   l,
		NewID:    func() string { return uuid.New().String() },
	}, nil
}

func (im *Importer) BuildIndices(ctx context.Context) error {
	return im.Driver.BuildIndices(ctx)
}

// Import reconciles topics with the store. Every topic ends up either
// reusing an existing topic or as a new one; links between topics of the
// document are rewritten to the final ids. With dryRun nothing is written.
func (im *Importer) Import(ctx context.Context, topics []model.CandidateTopic, dryRun bool) (*model.ImportResult, error) {
	result := &model.ImportResult{ImportID: im.NewID(), DryRun: dryRun}
	if len(topics) == 0 {
		return result, nil
	}

	g := xref.NewGraph()
	nodes := make([]*xref.Node, len(topics))
	for i, t := range topics {
		if t.XML == "" {
			return nil, fmt.Errorf("topic %d %v: %w", i, t.ExternalIDs, ErrEmptyTopic)
		}
		nodes[i] = xref.NewNode(t.ExternalIDs...)
		if err := g.AddNode(nodes[i]); err != nil {
			return nil, fmt.Errorf("topic %d: %w", i, err)
		}
	}

	found, err := im.Searcher.FindAll(ctx, topics)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar topics: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := im.reconcile(g, nodes, topics, found)
	if err != nil {
		return nil, err
	}
	result.Report = report
	log.Printf("Import %s reconciled %d topics: %d reused, %d created", result.ImportID, g.Len(), report.Reused, report.Created)

	finalIDs := make(map[*xref.Node]string, len(nodes))
	for _, n := range nodes {
		if id := n.ResolvedID(); id != xref.New {
			finalIDs[n] = string(id)
		} else {
			finalIDs[n] = im.NewID()
		}
	}
	resolve := func(anchor string) (string, bool) {
		n := g.GetNodeByExternalID(anchor)
		if n == nil {
			return "", false
		}
		return finalIDs[n], true
	}

	result.Results = make([]model.TopicResult, len(topics))
	for i, n := range nodes {
		created := n.ResolvedID() == xref.New
		tr := model.TopicResult{
			ExternalIDs: n.ExternalIDs(),
			TopicID:     finalIDs[n],
			Created:     created,
			Links:       im.links(finalIDs[n], topics[i].XML, resolve),
		}
		for _, c := range n.Candidates() {
			tr.Candidates = append(tr.Candidates, string(c))
		}
		if created {
			tr.XML = im.Linker.Rewrite(topics[i].XML, resolve)
		} else {
			match, _ := n.Match(n.ResolvedID())
			tr.XML = match.SourceXML
		}
		result.Results[i] = tr
	}

	if dryRun {
		return result, nil
	}
	if err := im.persist(ctx, result, found); err != nil {
		return nil, err
	}
	return result, nil
}

// reconcile fills the graph from the search results and resolves it.
func (im *Importer) reconcile(g *xref.Graph, nodes []*xref.Node, topics []model.CandidateTopic, found []search.Result) (report xref.Report, err error) {
	defer catchPrecondition(&err)

	for i, n := range nodes {
		for _, t := range found[i].Topics {
			switch t.ID {
			case "":
				continue
			case string(xref.New):
				log.Printf("Skipping stored topic with reserved id %q for %v", t.ID, n)
				continue
			}
			n.AddCandidateMatch(xref.TopicID(t.ID), t.XML)
		}
	}
	for i, n := range nodes {
		if _, err := im.Linker.Derive(g, n, im.Linker.OutgoingAnchors(topics[i].XML)); err != nil {
			return report, err
		}
	}

	return xref.NewReconciler(g).Reconcile(), nil
}

// catchPrecondition turns a precondition panic from the graph into *err.
// Any other panic is re-raised.
func catchPrecondition(err *error) {
	r := recover()
	if r == nil {
		return
	}
	pe, ok := r.(*xref.PreconditionError)
	if !ok {
		panic(r)
	}
	*err = fmt.Errorf("failed to reconcile topics: %w", pe)
}

func (im *Importer) links(sourceID, xml string, resolve func(string) (string, bool)) []model.TopicLink {
	var links []model.TopicLink
	seen := make(map[string]bool)
	for _, anchor := range im.Linker.OutgoingAnchors(xml) {
		target, ok := resolve(anchor)
		if !ok || seen[anchor] {
			continue
		}
		seen[anchor] = true
		links = append(links, model.TopicLink{SourceID: sourceID, TargetID: target, Anchor: anchor})
	}
	return links
}

// persist writes the created topics first, then their links, so every link
// endpoint exists when the edge is merged. Reused topics already carry
// matching links and are left untouched.
func (im *Importer) persist(ctx context.Context, result *model.ImportResult, found []search.Result) error {
	now := time.Now().UTC()
	for i, tr := range result.Results {
		if !tr.Created {
			continue
		}
		topic := model.StoredTopic{
			ID:          tr.TopicID,
			XML:         tr.XML,
			ContentHash: found[i].Hash,
			CreatedAt:   now,
		}
		if err := im.Store.SaveTopic(ctx, topic, found[i].Embedding); err != nil {
			return err
		}
	}

	for _, tr := range result.Results {
		if !tr.Created {
			continue
		}
		for _, link := range tr.Links {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := im.Store.SaveLink(ctx, result.ImportID, link); err != nil {
				return err
			}
		}
	}
	return nil
}
