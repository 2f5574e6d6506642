package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataAddRelationIsIdempotent(t *testing.T) {
	ms := NewMetadataStore()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(a, "calls", b))

	assert.Equal(t, 1, ms.Count())
}

func TestMetadataAddRelationRejectsEmptyLabel(t *testing.T) {
	ms := NewMetadataStore()
	err := ms.AddRelation(uuid.New(), "", uuid.New())
	assert.Error(t, err)
}

func TestMetadataRelatedEntitiesBothDirections(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(c, "imports", a))

	related := ms.RelatedEntities([]uuid.UUID{a}, nil)
	assert.ElementsMatch(t, []uuid.UUID{b, c}, related)
}

func TestMetadataRelatedEntitiesExcludesSelfLoop(t *testing.T) {
	ms := NewMetadataStore()
	a := uuid.New()
	require.NoError(t, ms.AddRelation(a, "self", a))

	assert.Empty(t, ms.RelatedEntities([]uuid.UUID{a}, nil))
}

func TestMetadataRemoveRelation(t *testing.T) {
	ms := NewMetadataStore()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, ms.AddRelation(a, "calls", b))

	require.NoError(t, ms.RemoveRelation(a, "calls", b))
	assert.Equal(t, 0, ms.Count())
	assert.Empty(t, ms.RelatedEntities([]uuid.UUID{a}, nil))
	assert.Empty(t, ms.RelatedEntities([]uuid.UUID{b}, nil))
}

func TestMetadataRemoveRelationNotFound(t *testing.T) {
	ms := NewMetadataStore()
	err := ms.RemoveRelation(uuid.New(), "calls", uuid.New())
	assert.Error(t, err)
}

func TestMetadataDeleteEntityRelationsRemovesBothDirections(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(c, "calls", a))
	require.NoError(t, ms.AddRelation(b, "calls", c))

	removed := ms.DeleteEntityRelations(a)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, ms.Count())
	assert.Empty(t, ms.RelatedEntities([]uuid.UUID{a}, nil))
}

func TestMetadataFindEntitiesByRelationGlob(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ms.AddRelation(a, "calls_fn", b))
	require.NoError(t, ms.AddRelation(a, "calls_method", c))
	require.NoError(t, ms.AddRelation(a, "imports", c))

	matches := ms.FindEntitiesByRelation("calls_*")
	assert.Len(t, matches, 2)
}

func TestMetadataPersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ms := NewMetadataStore()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.Persist(dir))

	loaded := NewMetadataStore()
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, 1, loaded.Count())
	assert.ElementsMatch(t, []uuid.UUID{b}, loaded.RelatedEntities([]uuid.UUID{a}, nil))
}

func TestMetadataSizeAccountsForLabelsAndIDs(t *testing.T) {
	ms := NewMetadataStore()
	require.NoError(t, ms.AddRelation(uuid.New(), "calls", uuid.New()))
	assert.Equal(t, uint64(32+len("calls")), ms.Size())
}

func TestMetadataRelatedEntitiesUnionsAcrossSetAndExcludesWholeSet(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(b, "calls", c))
	require.NoError(t, ms.AddRelation(c, "calls", a))

	related := ms.RelatedEntities([]uuid.UUID{a, b}, nil)
	assert.ElementsMatch(t, []uuid.UUID{c}, related)
}

func TestMetadataRelatedEntitiesFiltersByLabel(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(a, "imports", c))

	label := "calls"
	related := ms.RelatedEntities([]uuid.UUID{a}, &label)
	assert.ElementsMatch(t, []uuid.UUID{b}, related)
}

func TestMetadataNeighborsBothDirections(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(c, "imports", a))

	neighbors := ms.Neighbors(a, nil)
	assert.Len(t, neighbors, 2)
}

func TestMetadataForwardAndBackward(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(c, "imports", a))

	fwd := ms.Forward(a, nil)
	require.Len(t, fwd, 1)
	assert.Equal(t, b, fwd[0].Target)

	back := ms.Backward(a, nil)
	require.Len(t, back, 1)
	assert.Equal(t, c, back[0].Source)

	label := "calls"
	assert.Empty(t, ms.Backward(a, &label))
}

func TestMetadataByLabel(t *testing.T) {
	ms := NewMetadataStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, ms.AddRelation(a, "calls", b))
	require.NoError(t, ms.AddRelation(b, "calls", c))
	require.NoError(t, ms.AddRelation(a, "imports", c))

	matches := ms.ByLabel("calls")
	assert.Len(t, matches, 2)
}
