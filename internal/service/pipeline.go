// Package service implements the hybrid retrieval planner: structured
// filters are split into graph-resolvable facets and scalar metadata
// keys, facets narrow the candidate-unit set through the graph store,
// and the merged filter constrains vector similarity search.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"iirdsrag/internal/domain"
	"iirdsrag/internal/embedding"
	"iirdsrag/internal/graphstore"
	"iirdsrag/internal/vectorstore"
)

// ContextDelimiter separates hit texts in the assembled answer context.
const ContextDelimiter = "\n\n---\n\n"

// DefaultTopK is the hit limit used when the caller passes k <= 0.
const DefaultTopK = 8

// Filters maps filter keys to a string (equality) or []string
// (membership). The six facet keys below resolve through the graph
// store; every other key compiles directly into the vector-store filter.
type Filters map[string]any

var graphFilterKeys = map[string]struct{}{
	"product_variants": {},
	"components":       {},
	"roles":            {},
	"doc_types":        {},
	"subjects":         {},
	"phases":           {},
}

// Pipeline answers retrieval queries against the graph and vector stores.
type Pipeline struct {
	graph    graphstore.Store
	vectors  vectorstore.Storage
	embedder embedding.Embedder
	log      *slog.Logger
}

func NewPipeline(graph graphstore.Store, vectors vectorstore.Storage, embedder embedding.Embedder, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{graph: graph, vectors: vectors, embedder: embedder, log: log}
}

// Search runs filtered nearest-neighbor retrieval for the question.
// When graph facets are present and resolve to no candidate units, the
// search still executes and returns zero hits; that is a valid outcome,
// not an error.
func (p *Pipeline) Search(ctx context.Context, question string, filters Filters, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	facets, scalar := partitionFilters(filters)

	filter := compileScalarFilter(scalar)
	if !facets.Empty() {
		candidates, err := p.graph.FindCandidates(ctx, facets)
		if err != nil {
			return nil, fmt.Errorf("resolve candidates: %w", err)
		}
		if candidates == nil {
			candidates = []string{}
		}
		if filter == nil {
			filter = &domain.Filter{}
		}
		// an empty candidate list matches nothing, by design
		filter.Must = append(filter.Must, domain.FilterClause{Key: "parent_iri", In: candidates})
	}

	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	hits, err := p.vectors.Query(ctx, vectors[0], k, filter)
	if err != nil {
		return nil, err
	}
	p.log.Debug("search executed", "k", k, "clauses", clauseCount(filter), "hits", len(hits))
	return hits, nil
}

// AnswerContext runs Search and assembles the ranked context string plus
// one citation per hit, duplicates preserved.
func (p *Pipeline) AnswerContext(ctx context.Context, question string, filters Filters, k int) (string, []domain.Citation, []domain.SearchHit, error) {
	hits, err := p.Search(ctx, question, filters, k)
	if err != nil {
		return "", nil, nil, err
	}
	texts := make([]string, len(hits))
	citations := make([]domain.Citation, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
		citations[i] = domain.Citation{
			ParentIRI: metaString(h.Metadata, "parent_iri"),
			Path:      metaString(h.Metadata, "path"),
		}
	}
	return strings.Join(texts, ContextDelimiter), citations, hits, nil
}

// partitionFilters splits filters into graph facet sets and scalar
// metadata filters. Facet values are normalized to sets; a scalar value
// becomes a singleton set.
func partitionFilters(filters Filters) (domain.FacetFilters, Filters) {
	var facets domain.FacetFilters
	scalar := make(Filters)
	for key, val := range filters {
		if _, ok := graphFilterKeys[key]; !ok {
			scalar[key] = val
			continue
		}
		values := normalizeValues(val)
		switch key {
		case "product_variants":
			facets.ProductVariants = values
		case "components":
			facets.Components = values
		case "roles":
			facets.Roles = values
		case "doc_types":
			facets.DocTypes = values
		case "subjects":
			facets.Subjects = values
		case "phases":
			facets.Phases = values
		}
	}
	return facets, scalar
}

// compileScalarFilter turns the remaining filters into an AND of
// equality and membership clauses. Nil values and blank strings are
// dropped. Returns nil when nothing remains.
func compileScalarFilter(filters Filters) *domain.Filter {
	var clauses []domain.FilterClause
	for key, val := range filters {
		switch v := val.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			clauses = append(clauses, domain.FilterClause{Key: key, Eq: v})
		case []string:
			clauses = append(clauses, domain.FilterClause{Key: key, In: v})
		case []any:
			in := make([]string, len(v))
			for i, item := range v {
				in[i] = fmt.Sprint(item)
			}
			clauses = append(clauses, domain.FilterClause{Key: key, In: in})
		default:
			clauses = append(clauses, domain.FilterClause{Key: key, Eq: fmt.Sprint(v)})
		}
	}
	if len(clauses) == 0 {
		return nil
	}
	return &domain.Filter{Must: clauses}
}

func normalizeValues(val any) []string {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func clauseCount(filter *domain.Filter) int {
	if filter == nil {
		return 0
	}
	return len(filter.Must)
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
