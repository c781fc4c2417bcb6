// Package ingest drives the ingestion of one package archive: metadata
// parsing, graph persistence, rendition text extraction, chunking and
// vector indexing.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"iirdsrag/internal/chunker"
	"iirdsrag/internal/domain"
	"iirdsrag/internal/embedding"
	"iirdsrag/internal/extract"
	"iirdsrag/internal/graphstore"
	"iirdsrag/internal/metadata"
	"iirdsrag/internal/vectorstore"
)

// MetadataPath is the conventional location of the metadata document
// inside a package archive.
const MetadataPath = "META-INF/metadata.rdf"

// Ingestor runs the sequential ingestion pipeline for package archives.
// Concurrent ingestion of different packages is safe: all graph writes
// are idempotent merges and chunk upserts are keyed by content hash.
type Ingestor struct {
	graph     graphstore.Store
	vectors   vectorstore.Storage
	embedder  embedding.Embedder
	extractor extract.TextExtractor
	chunks    *chunker.TokenWindowChunker
	log       *slog.Logger
}

func New(graph graphstore.Store, vectors vectorstore.Storage, embedder embedding.Embedder, extractor extract.TextExtractor, chunks *chunker.TokenWindowChunker, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		graph:     graph,
		vectors:   vectors,
		embedder:  embedder,
		extractor: extractor,
		chunks:    chunks,
		log:       log,
	}
}

// IngestZip ingests one package archive given as bytes. The graph is
// persisted before chunks are indexed so facet lookups at chunk time
// succeed; graph writes already merged are retained on later failure.
func (ing *Ingestor) IngestZip(ctx context.Context, blob []byte, zipName string) (domain.IngestSummary, error) {
	var summary domain.IngestSummary

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return summary, fmt.Errorf("open package: %w", err)
	}

	rdfBytes, err := readEntry(zr, MetadataPath)
	if err != nil {
		return summary, fmt.Errorf("%w: %s", domain.ErrMissingMetadata, MetadataPath)
	}

	data, err := metadata.Parse(rdfBytes)
	if err != nil {
		return summary, err
	}

	if err := ing.graph.UpsertGraph(ctx, data); err != nil {
		return summary, fmt.Errorf("upsert graph: %w", err)
	}

	packageIRI := ""
	if data.Package != nil {
		packageIRI = data.Package.IRI
	}
	summary = domain.IngestSummary{
		Package:        packageIRI,
		Topics:         len(data.Topics),
		Documents:      len(data.Documents),
		RenditionsSeen: len(data.Renditions),
	}

	var points []domain.ChunkPoint
	var chunkNodes []domain.ChunkNode
	attrsCache := make(map[string]domain.FacetAttrs)

	for _, rend := range data.Renditions {
		rawSrc := strings.TrimLeft(rend.SourcePath, "/")
		if rawSrc == "" {
			continue
		}

		src := resolveArchivePath(zr, rawSrc)
		if src == "" {
			ing.log.Warn("rendition not found in archive, skipping", "path", rawSrc, "zip", zipName)
			continue
		}

		content, err := readEntry(zr, src)
		if err != nil {
			continue
		}

		ext := strings.ToLower(path.Ext(src))
		text, err := ing.extractor.Extract(content, ext)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedFormat) {
				ing.log.Debug("no extractor for rendition, skipping", "path", src, "ext", ext)
			} else {
				ing.log.Warn("text extraction failed, skipping", "path", src, "error", err)
			}
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		attrs, ok := attrsCache[rend.ParentIRI]
		if !ok {
			attrs, err = ing.graph.FetchFacets(ctx, rend.ParentIRI)
			if err != nil {
				return summary, fmt.Errorf("fetch facets for %s: %w", rend.ParentIRI, err)
			}
			attrsCache[rend.ParentIRI] = attrs
		}
		scalar := scalarizeFacets(attrs)

		for _, piece := range ing.chunks.Chunk(text) {
			id := chunker.ChunkID(zipName, src, piece.StartChar, piece.EndChar, piece.Text)
			meta := map[string]any{
				"chunk_id":   id,
				"source_zip": zipName,
				"package":    packageIRI,
				"path":       src,
				"parent_iri": rend.ParentIRI,
				"format":     rend.Format,
				"text_len":   utf8.RuneCountInString(piece.Text),
			}
			for k, v := range scalar {
				meta[k] = v
			}
			points = append(points, domain.ChunkPoint{ID: id, Text: piece.Text, Metadata: meta})
			chunkNodes = append(chunkNodes, domain.ChunkNode{
				ChunkID:   id,
				Path:      src,
				StartChar: piece.StartChar,
				EndChar:   piece.EndChar,
				ParentIRI: rend.ParentIRI,
			})
		}
	}

	if len(points) > 0 {
		texts := make([]string, len(points))
		for i, p := range points {
			texts[i] = p.Text
		}
		// one batched embedding call per ingestion
		vectors, err := ing.embedder.Embed(ctx, texts)
		if err != nil {
			return summary, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(points) {
			return summary, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(points))
		}
		for i := range points {
			points[i].Vector = vectors[i]
		}
		if err := ing.vectors.Init(ctx, len(vectors[0])); err != nil {
			return summary, err
		}
		if err := ing.vectors.Upsert(ctx, points); err != nil {
			return summary, fmt.Errorf("upsert chunks: %w", err)
		}
	}

	if len(chunkNodes) > 0 {
		if err := ing.graph.LinkChunks(ctx, chunkNodes); err != nil {
			return summary, fmt.Errorf("link chunks: %w", err)
		}
	}

	summary.Chunks = len(points)
	ing.log.Info("package ingested",
		"zip", zipName,
		"package", packageIRI,
		"topics", summary.Topics,
		"documents", summary.Documents,
		"renditions", summary.RenditionsSeen,
		"chunks", summary.Chunks,
	)
	return summary, nil
}

// scalarizeFacets joins list-valued facet attributes with ";" into single
// strings; vector-store metadata values must be scalar. Empty lists map
// to nil.
func scalarizeFacets(attrs domain.FacetAttrs) map[string]any {
	out := make(map[string]any, 4)
	out["product_variants"] = joinOrNil(attrs.ProductVariants)
	out["components"] = joinOrNil(attrs.Components)
	out["roles"] = joinOrNil(attrs.Roles)
	out["doc_types"] = joinOrNil(attrs.DocTypes)
	return out
}

func joinOrNil(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return strings.Join(values, ";")
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

// resolveArchivePath finds the archive entry for a declared source path:
// exact match, then case-insensitive match, then basename match with a
// preference for entries under content/. Returns "" when nothing matches.
func resolveArchivePath(zr *zip.Reader, src string) string {
	src = strings.TrimLeft(src, "/")

	for _, f := range zr.File {
		if f.Name == src {
			return f.Name
		}
	}

	lowered := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		lowered[strings.ToLower(f.Name)] = f.Name
	}
	if name, ok := lowered[strings.ToLower(src)]; ok {
		return name
	}

	tail := strings.ToLower(path.Base(src))
	var candidates []string
	for _, f := range zr.File {
		ln := strings.ToLower(f.Name)
		if strings.HasSuffix(ln, "/"+tail) || ln == tail {
			candidates = append(candidates, f.Name)
		}
	}
	if len(candidates) > 0 {
		for _, name := range candidates {
			if strings.HasPrefix(strings.ToLower(name), "content/") {
				return name
			}
		}
		return candidates[0]
	}
	return ""
}
