package driver

import "fmt"

const vectorIndexName = "topic_embedding"

// indexQueries lists the indices topics need. The vector index is only
// created when the embedding dimension is known.
func indexQueries(dimension, capacity int) []string {
	queries := []string{
		"CREATE INDEX ON :Topic(id);",
		"CREATE INDEX ON :Topic(content_hash);",
	}
	if dimension > 0 {
		queries = append(queries, fmt.Sprintf(
			`CREATE VECTOR INDEX %s ON :Topic(embedding) WITH CONFIG {"dimension": %d, "capacity": %d, "metric": "cos"};`,
			vectorIndexName, dimension, capacity))
	}
	return queries
}

const (
	SaveTopicQuery = `
		MERGE (t:Topic {id: $id})
		SET t.xml = $xml,
			t.content_hash = $content_hash,
			t.created_at = $created_at,
			t.embedding = $embedding
		RETURN t.id AS id
	`

	GetTopicQuery = `
		MATCH (t:Topic {id: $id})
		RETURN t.id AS id, t.xml AS xml, t.content_hash AS content_hash, t.created_at AS created_at
	`

	FindTopicsByHashQuery = `
		MATCH (t:Topic {content_hash: $content_hash})
		RETURN t.id AS id, t.xml AS xml, t.content_hash AS content_hash, t.created_at AS created_at
		ORDER BY t.created_at ASC
		LIMIT $limit
	`

	// Needs the vector index created by BuildIndices.
	FindTopicsByEmbeddingQuery = `
		CALL vector_search.search("` + vectorIndexName + `", $limit, $embedding)
		YIELD node, similarity
		WITH node AS t, similarity
		WHERE similarity >= $min_score
		RETURN t.id AS id, t.xml AS xml, t.content_hash AS content_hash, t.created_at AS created_at, similarity AS score
		ORDER BY score DESC
	`

	SaveXrefEdgeQuery = `
		MATCH (source:Topic {id: $source_id})
		MATCH (target:Topic {id: $target_id})
		MERGE (source)-[e:XREF {anchor: $anchor}]->(target)
		SET e.import_id = $import_id,
			e.created_at = $created_at
		RETURN e.anchor AS anchor
	`
)
