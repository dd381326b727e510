package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var indexPattern = regexp.MustCompile(`\d+`)

// SimpleLLMReranker asks a text model to order topics by how closely they
// match a candidate topic.
type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	var docList strings.Builder
	for i, d := range docs {
		content := d
		if len(content) > 400 {
			content = content[:400] + "..."
		}
		fmt.Fprintf(&docList, "[%d] %s\n", i, content)
	}

	prompt := fmt.Sprintf(`You compare documentation topics.
Candidate topic:
%s

Stored topics:
%s
Rank the stored topics by how likely each one is the same topic as the candidate, possibly with minor edits.
Output ONLY the indices, most likely first, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList.String())

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ranking topics: %w", err)
	}
	return parseIndices(resp), nil
}

func parseIndices(s string) []int {
	var indices []int
	for _, m := range indexPattern.FindAllString(s, -1) {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}
