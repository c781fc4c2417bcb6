package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"iirdsrag/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine
// similarity, with filter evaluation over chunk metadata.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	points    map[string]domain.ChunkPoint
}

func NewStorage() *Storage {
	return &Storage{points: make(map[string]domain.ChunkPoint)}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("dimension mismatch: have %d, got %d", s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, points []domain.ChunkPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		if _, ok := s.points[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.points[p.ID] = p
	}
	return nil
}

func (s *Storage) Query(_ context.Context, vector []float32, k int, filter *domain.Filter) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		k = 5
	}
	type scored struct {
		id       string
		distance float32
	}
	var candidates []scored
	for _, id := range s.order {
		p := s.points[id]
		if !matches(filter, p.Metadata) {
			continue
		}
		candidates = append(candidates, scored{id: id, distance: cosineDistance(vector, p.Vector)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]domain.SearchHit, 0, k)
	for _, c := range candidates[:k] {
		p := s.points[c.id]
		hits = append(hits, domain.SearchHit{ID: p.ID, Text: p.Text, Metadata: p.Metadata, Distance: c.distance})
	}
	return hits, nil
}

// Count reports the number of stored points; tests use it to check
// idempotent re-indexing.
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// IDs returns the stored point ids in insertion order.
func (s *Storage) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func matches(filter *domain.Filter, meta map[string]any) bool {
	if filter == nil {
		return true
	}
	for _, clause := range filter.Must {
		raw, ok := meta[clause.Key]
		if !ok || raw == nil {
			return false
		}
		val := fmt.Sprint(raw)
		if clause.In != nil {
			found := false
			for _, accept := range clause.In {
				if val == accept {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if val != clause.Eq {
			return false
		}
	}
	return true
}

// cosineDistance is 1 - cosine similarity, so lower means closer.
func cosineDistance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
