package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iirdsrag/internal/chunker"
	"iirdsrag/internal/domain"
	"iirdsrag/internal/embedding"
	"iirdsrag/internal/extract"
	graphmemory "iirdsrag/internal/graphstore/memory"
	"iirdsrag/internal/service"
	vecmemory "iirdsrag/internal/vectorstore/memory"
)

const testRDF = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:iirds="http://iirds.tekom.de/iirds#">
  <rdf:Description rdf:about="urn:test:package:p1">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Package"/>
  </rdf:Description>
  <rdf:Description rdf:about="urn:test:topic:t1">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Topic"/>
    <rdfs:label>Install the pump</rdfs:label>
    <iirds:relates-to-component rdf:resource="urn:test:component:C1"/>
    <iirds:source>/Content/T1.XHTML</iirds:source>
  </rdf:Description>
</rdf:RDF>`

func testXHTML() string {
	words := make([]string, 60)
	for i := range words {
		words[i] = fmt.Sprintf("token%02d", i)
	}
	return "<html><head><title>t</title></head><body><p>" + strings.Join(words, " ") + "</p></body></html>"
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testPackageZip(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		MetadataPath:       testRDF,
		"content/t1.xhtml": testXHTML(),
	})
}

func newTestIngestor(graph *graphmemory.Store, vectors *vecmemory.Storage) *Ingestor {
	return New(graph, vectors, embedding.NewMockEmbedder(32), extract.NewRegistry(), chunker.New(50, 10, 40), nil)
}

func TestIngestZip(t *testing.T) {
	graph := graphmemory.NewStore()
	vectors := vecmemory.NewStorage()
	ing := newTestIngestor(graph, vectors)

	summary, err := ing.IngestZip(context.Background(), testPackageZip(t), "p1.zip")
	require.NoError(t, err)

	assert.Equal(t, "urn:test:package:p1", summary.Package)
	assert.Equal(t, 1, summary.Topics)
	assert.Equal(t, 0, summary.Documents)
	assert.Equal(t, 1, summary.RenditionsSeen)
	// 60 tokens at window 50 / step 40 yield two chunks
	assert.Equal(t, 2, summary.Chunks)
	assert.Equal(t, 2, vectors.Count())
}

func TestIngestZipChunkMetadata(t *testing.T) {
	graph := graphmemory.NewStore()
	vectors := vecmemory.NewStorage()
	ing := newTestIngestor(graph, vectors)

	_, err := ing.IngestZip(context.Background(), testPackageZip(t), "p1.zip")
	require.NoError(t, err)

	hits, err := vectors.Query(context.Background(), embedOne(t, "token00"), 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "p1.zip", h.Metadata["source_zip"])
		assert.Equal(t, "urn:test:package:p1", h.Metadata["package"])
		assert.Equal(t, "urn:test:topic:t1", h.Metadata["parent_iri"])
		// declared path resolved to the real archive entry
		assert.Equal(t, "content/t1.xhtml", h.Metadata["path"])
		assert.Equal(t, "urn:test:component:C1", h.Metadata["components"])
	}
}

func TestIngestZipIdempotent(t *testing.T) {
	graph := graphmemory.NewStore()
	vectors := vecmemory.NewStorage()
	ing := newTestIngestor(graph, vectors)
	ctx := context.Background()

	blob := testPackageZip(t)
	_, err := ing.IngestZip(ctx, blob, "p1.zip")
	require.NoError(t, err)
	ids1 := vectors.IDs()
	nodes1, rels1 := graph.Stats()

	summary, err := ing.IngestZip(ctx, blob, "p1.zip")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Chunks)

	assert.Equal(t, ids1, vectors.IDs())
	nodes2, rels2 := graph.Stats()
	assert.Equal(t, nodes1, nodes2)
	assert.Equal(t, rels1, rels2)
}

func TestIngestZipMissingMetadata(t *testing.T) {
	ing := newTestIngestor(graphmemory.NewStore(), vecmemory.NewStorage())
	blob := buildZip(t, map[string]string{"content/t1.xhtml": testXHTML()})

	_, err := ing.IngestZip(context.Background(), blob, "p1.zip")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingMetadata)
}

func TestIngestZipNotAZip(t *testing.T) {
	ing := newTestIngestor(graphmemory.NewStore(), vecmemory.NewStorage())
	_, err := ing.IngestZip(context.Background(), []byte("junk"), "p1.zip")
	assert.Error(t, err)
}

func TestIngestZipSkipsMissingRendition(t *testing.T) {
	graph := graphmemory.NewStore()
	vectors := vecmemory.NewStorage()
	ing := newTestIngestor(graph, vectors)

	blob := buildZip(t, map[string]string{MetadataPath: testRDF})
	summary, err := ing.IngestZip(context.Background(), blob, "p1.zip")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RenditionsSeen)
	assert.Equal(t, 0, summary.Chunks)
	assert.Equal(t, 0, vectors.Count())
}

func TestIngestThenQuery(t *testing.T) {
	graph := graphmemory.NewStore()
	vectors := vecmemory.NewStorage()
	ing := newTestIngestor(graph, vectors)
	ctx := context.Background()

	_, err := ing.IngestZip(ctx, testPackageZip(t), "p1.zip")
	require.NoError(t, err)

	pipeline := service.NewPipeline(graph, vectors, embedding.NewMockEmbedder(32), nil)

	hits, err := pipeline.Search(ctx, "install the pump", service.Filters{"components": "urn:test:component:C1"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	for _, h := range hits {
		assert.Equal(t, "urn:test:topic:t1", h.Metadata["parent_iri"])
	}

	hits, err = pipeline.Search(ctx, "install the pump", service.Filters{"components": "urn:test:component:C2"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func embedOne(t *testing.T, text string) []float32 {
	t.Helper()
	vecs, err := embedding.NewMockEmbedder(32).Embed(context.Background(), []string{text})
	require.NoError(t, err)
	return vecs[0]
}
