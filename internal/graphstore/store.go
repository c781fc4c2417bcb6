// Package graphstore defines the graph-store capability: idempotent
// persistence of the parsed metadata graph plus the facet lookups and
// candidate-resolution query the retrieval planner builds on.
package graphstore

import (
	"context"

	"iirdsrag/internal/domain"
)

// Store persists the normalized metadata graph and answers facet queries.
// All writes are merges by natural key (package/unit iri, rendition
// source_path, chunk id): re-ingesting the same package never creates
// duplicate nodes or relationships.
type Store interface {
	// EnsureSchema creates uniqueness constraints or indexes, if the
	// backend has any. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error

	// UpsertGraph merges all nodes and relationships of one parsed package.
	UpsertGraph(ctx context.Context, data *domain.GraphData) error

	// LinkChunks merges chunk nodes and their DERIVED_FROM edges to parent
	// units, in one batch after vector indexing.
	LinkChunks(ctx context.Context, chunks []domain.ChunkNode) error

	// FetchFacets returns the facet attribute sets of one unit.
	FetchFacets(ctx context.Context, iri string) (domain.FacetAttrs, error)

	// FindCandidates resolves facet filters to the set of unit iris
	// related to at least one accepted target per supplied facet kind
	// (AND across kinds). Empty filter sets place no constraint; no
	// matches yields an empty, non-error result.
	FindCandidates(ctx context.Context, filters domain.FacetFilters) ([]string, error)

	Close(ctx context.Context) error
}
