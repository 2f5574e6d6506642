package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/postdevai/postdevai/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBruteForceStoreAndGet(t *testing.T) {
	vs := NewBruteForceVectorStore()
	id := uuid.New()
	require.NoError(t, vs.Store(id, []float32{1, 0, 0}))

	got, ok := vs.Get(id)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, got)
}

func TestBruteForceDimensionLocksOnFirstStore(t *testing.T) {
	vs := NewBruteForceVectorStore()
	require.NoError(t, vs.Store(uuid.New(), []float32{1, 2, 3}))

	err := vs.Store(uuid.New(), []float32{1, 2})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDimensionMismatch, apperrors.Code(err))
}

func TestBruteForceStoreRejectsDuplicateID(t *testing.T) {
	vs := NewBruteForceVectorStore()
	id := uuid.New()
	require.NoError(t, vs.Store(id, []float32{1, 0, 0}))

	err := vs.Store(id, []float32{0, 1, 0})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDuplicate, apperrors.Code(err))

	got, ok := vs.Get(id)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, got, "original vector must be untouched")
}

func TestBruteForceSearchRanksByCosine(t *testing.T) {
	vs := NewBruteForceVectorStore()
	idA := uuid.New()
	idB := uuid.New()
	require.NoError(t, vs.Store(idA, []float32{1, 0}))
	require.NoError(t, vs.Store(idB, []float32{0, 1}))

	results, err := vs.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, idA, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestBruteForceSearchZeroNormScoresZero(t *testing.T) {
	vs := NewBruteForceVectorStore()
	id := uuid.New()
	require.NoError(t, vs.Store(id, []float32{0, 0}))

	results, err := vs.Search([]float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Score)
}

func TestBruteForceDeleteRemovesVector(t *testing.T) {
	vs := NewBruteForceVectorStore()
	id := uuid.New()
	require.NoError(t, vs.Store(id, []float32{1, 2}))
	require.NoError(t, vs.Delete(id))

	_, ok := vs.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, vs.Count())
}

func TestBruteForcePersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vs := NewBruteForceVectorStore()
	idA := uuid.New()
	idB := uuid.New()
	require.NoError(t, vs.Store(idA, []float32{1, 2, 3}))
	require.NoError(t, vs.Store(idB, []float32{4, 5, 6}))
	require.NoError(t, vs.Persist(dir))

	loaded := NewBruteForceVectorStore()
	require.NoError(t, loaded.Load(dir))

	assert.Equal(t, 2, loaded.Count())
	got, ok := loaded.Get(idA)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestBruteForceLoadMissingDirIsNoop(t *testing.T) {
	vs := NewBruteForceVectorStore()
	require.NoError(t, vs.Load(t.TempDir()))
	assert.Equal(t, 0, vs.Count())
}

func TestHNSWStoreMatchesBruteForceAgreement(t *testing.T) {
	bf := NewBruteForceVectorStore()
	hn := NewHNSWVectorStore()

	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.9, 0.1, 0}}
	ids := make([]uuid.UUID, len(vectors))
	for i, v := range vectors {
		ids[i] = uuid.New()
		require.NoError(t, bf.Store(ids[i], v))
		require.NoError(t, hn.Store(ids[i], v))
	}

	query := []float32{1, 0, 0}
	bfResults, err := bf.Search(query, 1)
	require.NoError(t, err)
	hnResults, err := hn.Search(query, 1)
	require.NoError(t, err)

	require.Len(t, bfResults, 1)
	require.Len(t, hnResults, 1)
	assert.Equal(t, bfResults[0].ID, hnResults[0].ID)
}

func TestHNSWDeleteOrphansKeyNotNode(t *testing.T) {
	hn := NewHNSWVectorStore()
	id := uuid.New()
	require.NoError(t, hn.Store(id, []float32{1, 0}))
	require.NoError(t, hn.Delete(id))
	assert.Equal(t, 0, hn.Count())
}

func TestHNSWPersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hn := NewHNSWVectorStore()
	id := uuid.New()
	require.NoError(t, hn.Store(id, []float32{1, 2, 3}))
	require.NoError(t, hn.Persist(dir))

	loaded := NewHNSWVectorStore()
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, 1, loaded.Count())
}
