package rpcfacade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postdevai/postdevai/internal/hybrid"
	"github.com/postdevai/postdevai/internal/persistent"
	"github.com/postdevai/postdevai/internal/ramlake"
)

func newTestMemory(t *testing.T) *hybrid.Memory {
	t.Helper()

	rl, err := ramlake.New(ramlake.Config{
		BasePath:  t.TempDir(),
		TotalSize: 1 << 20,
		Allocation: ramlake.StoreAllocation{
			Vectors: 0.25, Code: 0.25, History: 0.25, Metadata: 0.25,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rl.Close() })

	ps, err := persistent.New(persistent.Config{
		BasePath:    t.TempDir(),
		MaxSize:     1 << 20,
		CacheSizeMB: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })

	return hybrid.New(rl, ps, hybrid.Config{
		HotRetentionSecs: 3600,
		SyncIntervalSecs: 30,
		MaxRAMEntries:    1000,
	})
}

func TestNewServer_NilMemory_ReturnsError(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)
}

func TestNewServer_WithMemory_CreatesMCPServer(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)
	require.NotNil(t, s.mcp)
}

func TestHandleStoreCodeAndGetCode_RoundTrips(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	_, storeOut, err := s.handleStoreCode(t.Context(), nil, StoreCodeInput{
		Path: "/a.go", Content: "package a", Language: "go",
	})
	require.NoError(t, err)
	require.NotEmpty(t, storeOut.ID)

	_, getOut, err := s.handleGetCode(t.Context(), nil, GetCodeInput{ID: storeOut.ID})
	require.NoError(t, err)
	require.Equal(t, "/a.go", getOut.Path)
	require.Equal(t, "package a", getOut.Content)
	require.Equal(t, "go", getOut.Language)
}

func TestHandleStoreCode_EmptyPath_ReturnsInvalidParams(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	_, _, err = s.handleStoreCode(t.Context(), nil, StoreCodeInput{Content: "x"})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	require.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleGetCode_InvalidUUID_ReturnsInvalidParams(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	_, _, err = s.handleGetCode(t.Context(), nil, GetCodeInput{ID: "not-a-uuid"})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	require.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleGetCode_Missing_ReturnsNotFound(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	_, _, err = s.handleGetCode(t.Context(), nil, GetCodeInput{
		ID: "00000000-0000-0000-0000-000000000000",
	})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	require.Equal(t, ErrCodeEntryNotFound, mcpErr.Code)
}

func TestHandleSearchSimilar_EmptyEmbedding_ReturnsInvalidParams(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	_, _, err = s.handleSearchSimilar(t.Context(), nil, SearchSimilarInput{})
	require.Error(t, err)
}

func TestHandleSearchSimilar_ReturnsNearestNeighbor(t *testing.T) {
	mem := newTestMemory(t)
	s, err := NewServer(mem)
	require.NoError(t, err)

	embedding := []float32{1, 0, 0}
	id, err := mem.StoreAndIndexCode("/v.go", "package v", "go", embedding)
	require.NoError(t, err)

	_, out, err := s.handleSearchSimilar(t.Context(), nil, SearchSimilarInput{
		Embedding: embedding, K: 1,
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.Equal(t, id.String(), out.Results[0].ID)
}

func TestHandleMetrics_ReportsEntryCounts(t *testing.T) {
	mem := newTestMemory(t)
	s, err := NewServer(mem)
	require.NoError(t, err)

	_, err = mem.StoreCode("/m.go", "package m", "go")
	require.NoError(t, err)

	// The metrics snapshot is refreshed by the background loop once a second.
	mem.Start(t.Context())
	t.Cleanup(func() { _ = mem.Close() })

	var out MetricsOutput
	require.Eventually(t, func() bool {
		_, out, err = s.handleMetrics(t.Context(), nil, MetricsInput{})
		return err == nil && out.TotalEntries >= 1
	}, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, out.TotalEntries, uint64(1))
}

func TestServe_UnknownTransport_ReturnsError(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	err = s.Serve(t.Context(), "carrier-pigeon")
	require.Error(t, err)
}

func TestServe_SSE_ReturnsNotImplementedError(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	err = s.Serve(t.Context(), "sse")
	require.Error(t, err)
}

func TestInfo_ReturnsServerName(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)

	name, _ := s.Info()
	require.Equal(t, "postdevaid", name)
}

func TestClose_ReturnsNoError(t *testing.T) {
	s, err := NewServer(newTestMemory(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
