package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/topicsync/internal/core/model"
)

var ErrTopicNotFound = errors.New("topic not found")

// TopicStore keeps topics and their cross references in the graph database.
type TopicStore struct {
	Driver GraphDriver
}

func NewTopicStore(d GraphDriver) *TopicStore {
	return &TopicStore{Driver: d}
}

func (s *TopicStore) SaveTopic(ctx context.Context, topic model.StoredTopic, embedding []float32) error {
	params := map[string]interface{}{
		"id":           topic.ID,
		"xml":          topic.XML,
		"content_hash": topic.ContentHash,
		"created_at":   topic.CreatedAt.UTC().Format(time.RFC3339),
		"embedding":    embedding,
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveTopicQuery, params); err != nil {
		return fmt.Errorf("failed to save topic %s: %w", topic.ID, err)
	}
	return nil
}

func (s *TopicStore) GetTopic(ctx context.Context, id string) (*model.StoredTopic, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetTopicQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get topic %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	topic := recordToTopic(res.Records[0])
	return &topic, nil
}

func (s *TopicStore) FindByHash(ctx context.Context, hash string, limit int) ([]model.StoredTopic, error) {
	res, err := s.Driver.ExecuteQuery(ctx, FindTopicsByHashQuery, map[string]interface{}{
		"content_hash": hash,
		"limit":        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find topics by hash: %w", err)
	}
	topics := make([]model.StoredTopic, 0, len(res.Records))
	for _, rec := range res.Records {
		t := recordToTopic(rec)
		t.Score = 1
		topics = append(topics, t)
	}
	return topics, nil
}

func (s *TopicStore) FindByEmbedding(ctx context.Context, embedding []float32, minScore float64, limit int) ([]model.StoredTopic, error) {
	res, err := s.Driver.ExecuteQuery(ctx, FindTopicsByEmbeddingQuery, map[string]interface{}{
		"embedding": embedding,
		"min_score": minScore,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find topics by embedding: %w", err)
	}
	topics := make([]model.StoredTopic, 0, len(res.Records))
	for _, rec := range res.Records {
		topics = append(topics, recordToTopic(rec))
	}
	return topics, nil
}

func (s *TopicStore) SaveLink(ctx context.Context, importID string, link model.TopicLink) error {
	params := map[string]interface{}{
		"source_id":  link.SourceID,
		"target_id":  link.TargetID,
		"anchor":     link.Anchor,
		"import_id":  importID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveXrefEdgeQuery, params); err != nil {
		return fmt.Errorf("failed to link %s -> %s: %w", link.SourceID, link.TargetID, err)
	}
	return nil
}

func recordToTopic(rec *neo4j.Record) model.StoredTopic {
	var t model.StoredTopic
	if v, ok := rec.Get("id"); ok {
		t.ID = fmt.Sprint(v)
	}
	if v, ok := rec.Get("xml"); ok {
		t.XML, _ = v.(string)
	}
	if v, ok := rec.Get("content_hash"); ok {
		t.ContentHash, _ = v.(string)
	}
	if v, ok := rec.Get("created_at"); ok {
		if s, ok := v.(string); ok {
			t.CreatedAt, _ = time.Parse(time.RFC3339, s)
		}
	}
	if v, ok := rec.Get("score"); ok {
		switch score := v.(type) {
		case float64:
			t.Score = score
		case int64:
			t.Score = float64(score)
		}
	}
	return t
}
