// Package rpcfacade implements the Model Context Protocol (MCP) server for
// postdevaid. It bridges AI coding assistants with the hybrid tiered memory
// engine (internal/hybrid), exposing the memory façade as a small set of
// MCP tools over stdio.
package rpcfacade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/postdevai/postdevai/internal/hybrid"
	"github.com/postdevai/postdevai/pkg/version"
)

// Server is the MCP server over a hybrid.Memory instance.
type Server struct {
	mcp    *mcp.Server
	memory *hybrid.Memory
	logger *slog.Logger
}

// NewServer creates a new MCP server wrapping mem.
func NewServer(mem *hybrid.Memory) (*Server, error) {
	if mem == nil {
		return nil, errors.New("memory engine is required")
	}

	s := &Server{
		memory: mem,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "postdevaid",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// StoreCodeInput defines the input schema for the memory.store_code tool.
type StoreCodeInput struct {
	Path     string `json:"path" jsonschema:"file path of the code being stored"`
	Content  string `json:"content" jsonschema:"the code content"`
	Language string `json:"language,omitempty" jsonschema:"programming language, e.g. go, python"`
}

// StoreCodeOutput defines the output schema for the memory.store_code tool.
type StoreCodeOutput struct {
	ID string `json:"id" jsonschema:"id the code was stored under"`
}

// GetCodeInput defines the input schema for the memory.get_code tool.
type GetCodeInput struct {
	ID string `json:"id" jsonschema:"id returned by memory.store_code"`
}

// GetCodeOutput defines the output schema for the memory.get_code tool.
type GetCodeOutput struct {
	Path     string `json:"path" jsonschema:"file path of the stored code"`
	Content  string `json:"content" jsonschema:"the code content"`
	Language string `json:"language,omitempty" jsonschema:"programming language"`
}

// SearchSimilarInput defines the input schema for the memory.search_similar tool.
type SearchSimilarInput struct {
	Embedding []float32 `json:"embedding" jsonschema:"query embedding vector"`
	K         int       `json:"k,omitempty" jsonschema:"number of nearest neighbors to return, default 10"`
}

// SearchSimilarOutput defines the output schema for the memory.search_similar tool.
type SearchSimilarOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"nearest-neighbor results ordered by score"`
}

// SearchResultOutput is a single nearest-neighbor match.
type SearchResultOutput struct {
	ID    string  `json:"id" jsonschema:"matched entry id"`
	Score float64 `json:"score" jsonschema:"similarity score"`
}

// MetricsInput defines the (empty) input schema for the memory.metrics tool.
type MetricsInput struct{}

// MetricsOutput defines the output schema for the memory.metrics tool.
type MetricsOutput struct {
	TotalEntries      uint64  `json:"total_entries" jsonschema:"total entries across RAM and persistent tiers"`
	RAMEntries        uint64  `json:"ram_entries" jsonschema:"entries currently held in the RAM lake"`
	PersistentEntries uint64  `json:"persistent_entries" jsonschema:"entries durably stored"`
	CacheHitRate      float64 `json:"cache_hit_rate" jsonschema:"exponential moving average of RAM lake read hits"`
	LastSync          string  `json:"last_sync,omitempty" jsonschema:"RFC3339 timestamp of the last sync to the persistent store"`
	HasSynced         bool    `json:"has_synced" jsonschema:"whether at least one sync has completed"`
}

func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory.store_code",
		Description: "Store a code snippet in the hybrid memory engine, indexed by file path and language.",
	}, s.handleStoreCode)
	s.logger.Debug("registered tool", slog.String("name", "memory.store_code"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory.get_code",
		Description: "Retrieve a previously stored code snippet by id.",
	}, s.handleGetCode)
	s.logger.Debug("registered tool", slog.String("name", "memory.get_code"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory.search_similar",
		Description: "Find the k nearest entries to an embedding vector in the RAM lake's vector store.",
	}, s.handleSearchSimilar)
	s.logger.Debug("registered tool", slog.String("name", "memory.search_similar"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory.metrics",
		Description: "Report hybrid memory engine metrics: entry counts per tier and cache hit rate.",
	}, s.handleMetrics)
	s.logger.Debug("registered tool", slog.String("name", "memory.metrics"))

	s.logger.Info("MCP tools registered", slog.Int("count", 4))
}

func (s *Server) handleStoreCode(_ context.Context, _ *mcp.CallToolRequest, input StoreCodeInput) (
	*mcp.CallToolResult,
	StoreCodeOutput,
	error,
) {
	if input.Path == "" {
		return nil, StoreCodeOutput{}, NewInvalidParamsError("path parameter is required")
	}

	id, err := s.memory.StoreCode(input.Path, input.Content, input.Language)
	if err != nil {
		return nil, StoreCodeOutput{}, MapError(err)
	}

	return nil, StoreCodeOutput{ID: id.String()}, nil
}

func (s *Server) handleGetCode(_ context.Context, _ *mcp.CallToolRequest, input GetCodeInput) (
	*mcp.CallToolResult,
	GetCodeOutput,
	error,
) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, GetCodeOutput{}, NewInvalidParamsError("id parameter must be a valid UUID")
	}

	result, err := s.memory.GetCode(id)
	if err != nil {
		return nil, GetCodeOutput{}, MapError(err)
	}

	return nil, GetCodeOutput{Path: result.Path, Content: result.Content, Language: result.Language}, nil
}

func (s *Server) handleSearchSimilar(_ context.Context, _ *mcp.CallToolRequest, input SearchSimilarInput) (
	*mcp.CallToolResult,
	SearchSimilarOutput,
	error,
) {
	if len(input.Embedding) == 0 {
		return nil, SearchSimilarOutput{}, NewInvalidParamsError("embedding parameter is required")
	}

	k := input.K
	if k <= 0 {
		k = 10
	}

	results, err := s.memory.SearchSimilar(input.Embedding, k)
	if err != nil {
		return nil, SearchSimilarOutput{}, MapError(err)
	}

	output := SearchSimilarOutput{Results: make([]SearchResultOutput, len(results))}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{ID: r.ID.String(), Score: float64(r.Score)}
	}

	return nil, output, nil
}

func (s *Server) handleMetrics(_ context.Context, _ *mcp.CallToolRequest, _ MetricsInput) (
	*mcp.CallToolResult,
	MetricsOutput,
	error,
) {
	m := s.memory.Metrics()

	output := MetricsOutput{
		TotalEntries:      m.TotalEntries,
		RAMEntries:        m.RAMEntries,
		PersistentEntries: m.PersistentEntries,
		CacheHitRate:      m.CacheHitRate,
		HasSynced:         m.HasSynced,
	}
	if m.HasSynced {
		output.LastSync = m.LastSync.Format("2006-01-02T15:04:05Z07:00")
	}

	return nil, output, nil
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "postdevaid", version.Version
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		return fmt.Errorf("sse transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The MCP server itself has no handle to
// release; it stops when its Run context is canceled.
func (s *Server) Close() error {
	return nil
}
