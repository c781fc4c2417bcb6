package embedding

import (
	"context"
	"math"
)

// MockEmbedder produces deterministic pseudo-random unit vectors from a
// text hash. Not semantically meaningful; it exists so the pipeline can
// run hermetically in tests and offline development.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &MockEmbedder{dimension: dimension}
}

func (m *MockEmbedder) Name() string { return "mock" }

func (m *MockEmbedder) Dimension() int { return m.dimension }

func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.embedOne(text)
	}
	return vectors, nil
}

func (m *MockEmbedder) embedOne(text string) []float32 {
	hash := djb2(text)
	vec := make([]float32, m.dimension)
	for i := range vec {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		vec[i] = val*2.0 - 1.0
	}
	// normalize to unit length
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func djb2(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}
