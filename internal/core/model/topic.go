package model

import (
	"time"

	"github.com/agenthands/topicsync/internal/core/xref"
)

// StoredTopic is a topic already persisted in the topic store.
type StoredTopic struct {
	ID          string    `json:"id"`
	XML         string    `json:"xml"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	Score       float64   `json:"score,omitempty"` // similarity score, 1 for hash matches
}

// CandidateTopic is one topic the caller split out of an imported document.
type CandidateTopic struct {
	ExternalIDs []string `json:"external_ids"`
	XML         string   `json:"xml"`
}

// TopicLink is a resolved cross reference between two stored topics.
type TopicLink struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Anchor   string `json:"anchor"`
}

// TopicResult is the outcome for one candidate topic.
type TopicResult struct {
	ExternalIDs []string    `json:"external_ids"`
	TopicID     string      `json:"topic_id"`
	Created     bool        `json:"created"`
	XML         string      `json:"xml"`
	Candidates  []string    `json:"candidates,omitempty"`
	Links       []TopicLink `json:"links,omitempty"`
}

type ImportResult struct {
	ImportID string        `json:"import_id"`
	Results  []TopicResult `json:"results"`
	Report   xref.Report   `json:"report"`
	DryRun   bool          `json:"dry_run"`
}
