package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

// MemgraphConfig holds the connection settings. VectorDimension must match
// the embedding model; zero skips creating the vector index.
type MemgraphConfig struct {
	URI             string `toml:"uri"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	VectorDimension int    `toml:"vector_dimension"`
	VectorCapacity  int    `toml:"vector_capacity"`
}

// SearchConfig tunes the similarity search that proposes existing topics.
type SearchConfig struct {
	MinScore float64 `toml:"min_score"`
	Limit    int     `toml:"limit"`
	Rerank   bool    `toml:"rerank"`
}

type ConcurrencyConfig struct {
	Search int `toml:"search"`
}

// MarkupConfig names the markup conventions used for cross references.
type MarkupConfig struct {
	XrefElement   string `toml:"xref_element"`
	LinkAttribute string `toml:"link_attribute"`
	InjectKeyword string `toml:"inject_keyword"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Search      SearchConfig      `toml:"search"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Markup      MarkupConfig      `toml:"markup"`
	Server      ServerConfig      `toml:"server"`
}

// Defaults returns the configuration used for anything a file leaves out.
func Defaults() *Config {
	return &Config{
		Memgraph: MemgraphConfig{
			URI:            "bolt://localhost:7687",
			VectorCapacity: 10000,
		},
		Search: SearchConfig{
			MinScore: 0.95,
			Limit:    5,
		},
		Concurrency: ConcurrencyConfig{
			Search: 4,
		},
		Markup: MarkupConfig{
			XrefElement:   "xref",
			LinkAttribute: "linkend",
			InjectKeyword: "Inject",
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings with environment variables when present.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
	if v := os.Getenv("MEMGRAPH_VECTOR_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Memgraph.VectorDimension = n
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SEARCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Concurrency.Search = n
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}
