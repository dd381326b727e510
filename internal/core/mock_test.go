package core

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockDriver struct {
	mu      sync.Mutex
	Queries []string
	Params  []map[string]interface{}
	// Handler answers a query; nil means an empty result.
	Handler func(query string, params map[string]interface{}) (neo4j.EagerResult, error)
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	m.mu.Unlock()
	if m.Handler == nil {
		return neo4j.EagerResult{}, nil
	}
	return m.Handler(query, params)
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

// Executed returns the params of every call of query, in call order.
func (m *MockDriver) Executed(query string) []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]interface{}
	for i, q := range m.Queries {
		if q == query {
			out = append(out, m.Params[i])
		}
	}
	return out
}

type MockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

type MockLLM struct {
	Response string
	Err      error
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Response, m.Err
}
