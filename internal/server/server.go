package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/topicsync/internal/config"
	"github.com/agenthands/topicsync/internal/core"
	"github.com/agenthands/topicsync/internal/core/model"
	"github.com/agenthands/topicsync/internal/core/xref"
	"github.com/agenthands/topicsync/internal/driver"
	"github.com/agenthands/topicsync/internal/llm"
)

type Server struct {
	Importer *core.Importer
}

// NewServer connects to Memgraph and the configured LLM provider.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Memgraph: %w", err)
	}
	d.VectorDimension = cfg.Memgraph.VectorDimension
	d.VectorCapacity = cfg.Memgraph.VectorCapacity

	llmClient, embedderClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if llmClient == nil {
		log.Println("No LLM provider configured, matching identical topics only")
	}

	im, err := core.NewImporter(d, llmClient, embedderClient, cfg)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	if err := im.BuildIndices(ctx); err != nil {
		log.Printf("Warning: could not build indices: %v", err)
	}

	return &Server{Importer: im}, nil
}

func (s *Server) Close(ctx context.Context) error {
	return s.Importer.Driver.Close(ctx)
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.POST("/imports", s.Import)
	r.GET("/topics/:id", s.GetTopic)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ImportRequest struct {
	Topics []model.CandidateTopic `json:"topics" binding:"required"`
	DryRun bool                   `json:"dry_run"`
}

func (s *Server) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := s.Importer.Import(c.Request.Context(), req.Topics, req.DryRun)
	if err != nil {
		log.Printf("Failed to import topics: %v", err)
		switch {
		case errors.Is(err, core.ErrEmptyTopic), errors.Is(err, xref.ErrDuplicateAnchor):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import topics"})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) GetTopic(c *gin.Context) {
	topic, err := s.Importer.Store.GetTopic(c.Request.Context(), c.Param("id"))
	if errors.Is(err, driver.ErrTopicNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to get topic: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get topic"})
		return
	}

	c.JSON(http.StatusOK, topic)
}
