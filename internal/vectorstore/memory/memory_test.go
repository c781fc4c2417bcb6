package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iirdsrag/internal/domain"
)

func seeded(t *testing.T) *Storage {
	t.Helper()
	s := NewStorage()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Upsert(ctx, []domain.ChunkPoint{
		{ID: "a", Text: "pump installation", Vector: []float32{1, 0, 0},
			Metadata: map[string]any{"parent_iri": "urn:t1", "components": "urn:c1"}},
		{ID: "b", Text: "pump maintenance", Vector: []float32{0, 1, 0},
			Metadata: map[string]any{"parent_iri": "urn:t2", "components": "urn:c2"}},
		{ID: "c", Text: "safety notes", Vector: []float32{0, 0, 1},
			Metadata: map[string]any{"parent_iri": "urn:t1"}},
	}))
	return s
}

func TestQueryRanksByCosineDistance(t *testing.T) {
	s := seeded(t)
	hits, err := s.Query(context.Background(), []float32{1, 0.1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestQueryEqFilter(t *testing.T) {
	s := seeded(t)
	filter := &domain.Filter{Must: []domain.FilterClause{{Key: "components", Eq: "urn:c1"}}}
	hits, err := s.Query(context.Background(), []float32{0, 0, 1}, 10, filter)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestQueryMissingKeyNeverMatches(t *testing.T) {
	s := seeded(t)
	// point "c" has no components key and must not satisfy the clause
	filter := &domain.Filter{Must: []domain.FilterClause{{Key: "components", Eq: "urn:c1"}}}
	hits, err := s.Query(context.Background(), []float32{0, 0, 1}, 10, filter)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "c", h.ID)
	}
}

func TestQueryInFilter(t *testing.T) {
	s := seeded(t)
	filter := &domain.Filter{Must: []domain.FilterClause{{Key: "parent_iri", In: []string{"urn:t1"}}}}
	hits, err := s.Query(context.Background(), []float32{1, 1, 1}, 10, filter)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestQueryEmptyInMatchesNothing(t *testing.T) {
	s := seeded(t)
	filter := &domain.Filter{Must: []domain.FilterClause{{Key: "parent_iri", In: []string{}}}}
	hits, err := s.Query(context.Background(), []float32{1, 1, 1}, 10, filter)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertIdempotentByID(t *testing.T) {
	s := seeded(t)
	require.Equal(t, 3, s.Count())

	require.NoError(t, s.Upsert(context.Background(), []domain.ChunkPoint{
		{ID: "a", Text: "pump installation, revised", Vector: []float32{1, 0, 0},
			Metadata: map[string]any{"parent_iri": "urn:t1"}},
	}))
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
}

func TestInitDimensionMismatch(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Init(ctx, 3))
	assert.Error(t, s.Init(ctx, 4))
	assert.Error(t, s.Upsert(ctx, []domain.ChunkPoint{{ID: "x", Vector: []float32{1, 2}}}))
}
