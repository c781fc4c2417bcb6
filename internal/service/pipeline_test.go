package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iirdsrag/internal/domain"
	"iirdsrag/internal/embedding"
	graphmemory "iirdsrag/internal/graphstore/memory"
	vecmemory "iirdsrag/internal/vectorstore/memory"
)

func seededPipeline(t *testing.T) *Pipeline {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(32)

	graph := graphmemory.NewStore()
	require.NoError(t, graph.UpsertGraph(ctx, &domain.GraphData{
		Package: &domain.Package{IRI: "urn:pkg:p1"},
		Topics: []domain.Unit{
			{IRI: "urn:topic:t1", Kind: domain.KindTopic, Components: []string{"urn:component:C1"}},
			{IRI: "urn:topic:t2", Kind: domain.KindTopic, Components: []string{"urn:component:C2"}},
		},
	}))

	vectors := vecmemory.NewStorage()
	require.NoError(t, vectors.Init(ctx, 32))
	texts := map[string]string{
		"chk_1": "install the pump on topic one",
		"chk_2": "drain the pump on topic one",
		"chk_3": "maintain the valve on topic two",
	}
	parents := map[string]string{"chk_1": "urn:topic:t1", "chk_2": "urn:topic:t1", "chk_3": "urn:topic:t2"}
	var points []domain.ChunkPoint
	for id, text := range texts {
		vecs, err := emb.Embed(ctx, []string{text})
		require.NoError(t, err)
		points = append(points, domain.ChunkPoint{
			ID:     id,
			Text:   text,
			Vector: vecs[0],
			Metadata: map[string]any{
				"chunk_id":   id,
				"parent_iri": parents[id],
				"path":       "content/" + id + ".xhtml",
				"language":   "en",
			},
		})
	}
	require.NoError(t, vectors.Upsert(ctx, points))

	return NewPipeline(graph, vectors, emb, nil)
}

func TestSearchUnfiltered(t *testing.T) {
	p := seededPipeline(t)
	hits, err := p.Search(context.Background(), "pump", nil, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearchFacetFilterNarrowsToCandidates(t *testing.T) {
	p := seededPipeline(t)
	hits, err := p.Search(context.Background(), "pump", Filters{"components": "urn:component:C1"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "urn:topic:t1", h.Metadata["parent_iri"])
	}
}

func TestSearchFacetFilterWithNoCandidatesYieldsZeroHits(t *testing.T) {
	p := seededPipeline(t)
	hits, err := p.Search(context.Background(), "pump", Filters{"components": "urn:component:none"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchScalarFilter(t *testing.T) {
	p := seededPipeline(t)
	hits, err := p.Search(context.Background(), "pump", Filters{"language": "en"}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = p.Search(context.Background(), "pump", Filters{"language": "de"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchDefaultTopK(t *testing.T) {
	p := seededPipeline(t)
	hits, err := p.Search(context.Background(), "pump", nil, 0)
	require.NoError(t, err)
	// fewer points than the default limit, so everything comes back
	assert.Len(t, hits, 3)
}

func TestAnswerContext(t *testing.T) {
	p := seededPipeline(t)
	answer, citations, hits, err := p.AnswerContext(context.Background(), "pump", Filters{"components": "urn:component:C1"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Len(t, citations, 2)

	parts := strings.Split(answer, ContextDelimiter)
	require.Len(t, parts, 2)
	for i, h := range hits {
		assert.Equal(t, h.Text, parts[i])
		assert.Equal(t, "urn:topic:t1", citations[i].ParentIRI)
		assert.NotEmpty(t, citations[i].Path)
	}
}

func TestPartitionFilters(t *testing.T) {
	facets, scalar := partitionFilters(Filters{
		"components": []string{"urn:c1", "urn:c2"},
		"doc_types":  "urn:manual",
		"language":   "en",
	})
	assert.Equal(t, []string{"urn:c1", "urn:c2"}, facets.Components)
	assert.Equal(t, []string{"urn:manual"}, facets.DocTypes)
	assert.Equal(t, Filters{"language": "en"}, scalar)
}

func TestCompileScalarFilter(t *testing.T) {
	filter := compileScalarFilter(Filters{
		"language": "en",
		"format":   []string{"application/xhtml+xml", "application/pdf"},
		"blank":    "  ",
		"missing":  nil,
	})
	require.NotNil(t, filter)
	require.Len(t, filter.Must, 2)

	assert.Nil(t, compileScalarFilter(Filters{}))
	assert.Nil(t, compileScalarFilter(Filters{"blank": ""}))
}
