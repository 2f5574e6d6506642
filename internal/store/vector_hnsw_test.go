package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/postdevai/postdevai/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWStoreAndSearch(t *testing.T) {
	vs := NewHNSWVectorStore()
	idA := uuid.New()
	idB := uuid.New()
	require.NoError(t, vs.Store(idA, []float32{1, 0}))
	require.NoError(t, vs.Store(idB, []float32{0, 1}))

	results, err := vs.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idA, results[0].ID)
}

func TestHNSWStoreRejectsDuplicateID(t *testing.T) {
	vs := NewHNSWVectorStore()
	id := uuid.New()
	require.NoError(t, vs.Store(id, []float32{1, 0, 0}))

	err := vs.Store(id, []float32{0, 1, 0})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDuplicate, apperrors.Code(err))
	assert.Equal(t, 1, vs.Count(), "duplicate store must not add a second node")
}

func TestHNSWDeleteOrphansKey(t *testing.T) {
	vs := NewHNSWVectorStore()
	id := uuid.New()
	require.NoError(t, vs.Store(id, []float32{1, 0}))
	require.NoError(t, vs.Delete(id))
	assert.Equal(t, 0, vs.Count())

	// the id is free again once deleted.
	require.NoError(t, vs.Store(id, []float32{0, 1}))
	assert.Equal(t, 1, vs.Count())
}
