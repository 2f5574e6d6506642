package store

import (
	"bufio"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
	"github.com/postdevai/postdevai/internal/apperrors"
)

// HNSWVectorStore is the approximate-nearest-neighbor VectorStore backend,
// an opt-in substitute for BruteForceVectorStore, selected by RamLake's
// UseHNSW setting.
// It keeps coder/hnsw's lazy-deletion idiom: deleting a node mid-graph is
// avoided (it can corrupt the graph), the id↔key mapping is simply
// orphaned instead.
type HNSWVectorStore struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	dim     int
	idMap   map[uuid.UUID]uint64
	keyMap  map[uint64]uuid.UUID
	nextKey uint64
}

type hnswPersisted struct {
	IDMap   map[uuid.UUID]uint64
	NextKey uint64
	Dim     int
}

// NewHNSWVectorStore creates an empty HNSW-backed store using cosine
// distance, matching BruteForceVectorStore's similarity semantics.
func NewHNSWVectorStore() *HNSWVectorStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &HNSWVectorStore{
		graph:  graph,
		idMap:  make(map[uuid.UUID]uint64),
		keyMap: make(map[uint64]uuid.UUID),
	}
}

// Store inserts the vector for id, rejecting an id that is already
// present.
func (s *HNSWVectorStore) Store(id uuid.UUID, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(vector)
	} else if len(vector) != s.dim {
		return apperrors.DimensionMismatch(s.dim, len(vector))
	}

	if _, exists := s.idMap[id]; exists {
		return apperrors.Duplicate("vector", id.String())
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, vec))
	s.idMap[id] = key
	s.keyMap[key] = id
	return nil
}

// Get is not supported efficiently by the underlying graph and is
// unused by HM's read path (vectors are retrieved via Search, not Get).
func (s *HNSWVectorStore) Get(id uuid.UUID) ([]float32, bool) {
	return nil, false
}

// Delete orphans id's key rather than removing the node from the graph.
func (s *HNSWVectorStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, exists := s.idMap[id]; exists {
		delete(s.keyMap, key)
		delete(s.idMap, id)
	}
	return nil
}

// Search returns up to k approximate nearest neighbors by cosine score.
func (s *HNSWVectorStore) Search(query []float32, k int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim != 0 && len(query) != s.dim {
		return nil, apperrors.DimensionMismatch(s.dim, len(query))
	}
	if s.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	nodes := s.graph.Search(q, k)
	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // orphaned (lazily deleted) node
		}
		dist := s.graph.Distance(q, node.Value)
		results = append(results, VectorResult{
			ID:       id,
			Distance: dist,
			Score:    1 - dist, // cosine distance is 1 - cosine similarity
		})
	}
	return results, nil
}

// Count returns the number of live (non-orphaned) vectors.
func (s *HNSWVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Size returns accounted bytes for live vectors only; orphaned graph
// nodes are not charged against the budget.
func (s *HNSWVectorStore) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.idMap)) * entrySize(s.dim)
}

// Persist writes the HNSW graph export plus a gob-encoded id mapping.
func (s *HNSWVectorStore) Persist(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IO("failed to create hnsw store directory", err)
	}

	indexPath := filepath.Join(dir, "index.hnsw")
	tmp := indexPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperrors.IO("failed to create hnsw index file", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperrors.IO("failed to export hnsw graph", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperrors.IO("failed to close hnsw index file", err)
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		return apperrors.IO("failed to rename hnsw index file", err)
	}

	return s.saveMetadata(filepath.Join(dir, "index.hnsw.meta"))
}

func (s *HNSWVectorStore) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperrors.IO("failed to create hnsw metadata file", err)
	}
	meta := hnswPersisted{IDMap: s.idMap, NextKey: s.nextKey, Dim: s.dim}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperrors.DecodeError("failed to encode hnsw metadata", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperrors.IO("failed to close hnsw metadata file", err)
	}
	return os.Rename(tmp, path)
}

// Load reads the graph export and id mapping back from dir.
func (s *HNSWVectorStore) Load(dir string) error {
	metaPath := filepath.Join(dir, "index.hnsw.meta")
	metaFile, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.IO("failed to open hnsw metadata file", err)
	}
	var meta hnswPersisted
	decErr := gob.NewDecoder(metaFile).Decode(&meta)
	metaFile.Close()
	if decErr != nil {
		return apperrors.DecodeError("failed to decode hnsw metadata", decErr)
	}

	indexFile, err := os.Open(filepath.Join(dir, "index.hnsw"))
	if err != nil {
		return apperrors.IO("failed to open hnsw index file", err)
	}
	defer indexFile.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	if err := graph.Import(bufio.NewReader(indexFile)); err != nil {
		return apperrors.DecodeError("failed to import hnsw graph", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = graph
	s.dim = meta.Dim
	s.nextKey = meta.NextKey
	s.idMap = meta.IDMap
	s.keyMap = make(map[uint64]uuid.UUID, len(meta.IDMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// normalizeInPlace scales v to unit length; a zero vector is left as-is.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

var _ VectorStore = (*HNSWVectorStore)(nil)
