package vectorstore

import (
	"context"

	"iirdsrag/internal/domain"
)

// Storage persists chunk vectors and supports filtered similarity search.
// Upserts are keyed by the chunk's content-addressed id: indexing the
// same content twice replaces, never duplicates.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []domain.ChunkPoint) error
	// Query returns up to k hits in the store's native similarity order.
	// A nil filter matches everything.
	Query(ctx context.Context, vector []float32, k int, filter *domain.Filter) ([]domain.SearchHit, error)
}
