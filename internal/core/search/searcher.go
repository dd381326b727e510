// Package search proposes existing topics that a candidate topic may be a
// copy of.
package search

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/topicsync/internal/config"
	"github.com/agenthands/topicsync/internal/core/linker"
	"github.com/agenthands/topicsync/internal/core/model"
	"github.com/agenthands/topicsync/internal/llm"
)

// TopicFinder is the part of the topic store the searcher reads from.
type TopicFinder interface {
	FindByHash(ctx context.Context, hash string, limit int) ([]model.StoredTopic, error)
	FindByEmbedding(ctx context.Context, embedding []float32, minScore float64, limit int) ([]model.StoredTopic, error)
}

// Result holds the similar topics found for one candidate, best first.
// Hash and Embedding are kept so a new topic can be stored without
// computing them again.
type Result struct {
	Hash      string
	Embedding []float32
	Topics    []model.StoredTopic
}

type Searcher struct {
	Store       TopicFinder
	Embedder    llm.EmbedderClient
	Reranker    llm.RerankerClient
	Linker      *linker.Linker
	Config      config.SearchConfig
	Concurrency int
}

// NewSearcher wires a searcher. The embedder and reranker are optional;
// without an embedder only identical content is found.
func NewSearcher(store TopicFinder, embedder llm.EmbedderClient, reranker llm.RerankerClient, l *linker.Linker, cfg *config.Config) *Searcher {
	s := &Searcher{
		Store:       store,
		Embedder:    embedder,
		Linker:      l,
		Config:      cfg.Search,
		Concurrency: cfg.Concurrency.Search,
	}
	if cfg.Search.Rerank {
		s.Reranker = reranker
	}
	return s
}

func (s *Searcher) FindSimilar(ctx context.Context, xml string) (Result, error) {
	res := Result{Hash: s.Linker.ContentHash(xml)}

	exact, err := s.Store.FindByHash(ctx, res.Hash, s.Config.Limit)
	if err != nil {
		return res, fmt.Errorf("hash lookup: %w", err)
	}
	res.Topics = exact

	if s.Embedder != nil {
		vec, err := s.Embedder.Embed(ctx, s.Linker.Normalize(xml))
		if err != nil {
			log.Printf("Embedding failed, using exact matches only: %v", err)
		} else {
			res.Embedding = vec
			similar, err := s.Store.FindByEmbedding(ctx, vec, s.Config.MinScore, s.Config.Limit)
			if err != nil {
				log.Printf("Vector lookup failed, using exact matches only: %v", err)
			} else {
				res.Topics = mergeByID(res.Topics, similar)
			}
		}
	}

	if s.Reranker != nil && len(res.Topics) > 1 {
		res.Topics = s.rerank(ctx, xml, res.Topics)
	}
	return res, nil
}

// FindAll searches for every candidate concurrently. Results are indexed
// like topics; the first failure cancels the rest.
func (s *Searcher) FindAll(ctx context.Context, topics []model.CandidateTopic) ([]Result, error) {
	results := make([]Result, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, t := range topics {
		i, t := i, t
		g.Go(func() error {
			res, err := s.FindSimilar(gctx, t.XML)
			if err != nil {
				return fmt.Errorf("searching topic %v: %w", t.ExternalIDs, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Searcher) rerank(ctx context.Context, xml string, topics []model.StoredTopic) []model.StoredTopic {
	docs := make([]string, len(topics))
	for i, t := range topics {
		docs[i] = s.Linker.Normalize(t.XML)
	}
	order, err := s.Reranker.Rank(ctx, s.Linker.Normalize(xml), docs)
	if err != nil {
		log.Printf("Rerank failed, keeping search order: %v", err)
		return topics
	}
	return reorder(topics, order)
}

func mergeByID(first, second []model.StoredTopic) []model.StoredTopic {
	seen := make(map[string]bool, len(first)+len(second))
	out := make([]model.StoredTopic, 0, len(first)+len(second))
	for _, list := range [][]model.StoredTopic{first, second} {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}

// reorder applies a ranking that may be partial or contain junk indices.
// Topics the ranking leaves out keep their relative order at the end.
func reorder(topics []model.StoredTopic, order []int) []model.StoredTopic {
	used := make([]bool, len(topics))
	out := make([]model.StoredTopic, 0, len(topics))
	for _, i := range order {
		if i < 0 || i >= len(topics) || used[i] {
			continue
		}
		used[i] = true
		out = append(out, topics[i])
	}
	for i, t := range topics {
		if !used[i] {
			out = append(out, t)
		}
	}
	return out
}
