package embedding

import "context"

// Embedder converts text into numeric vector representations. Embed is
// batched: the result has one vector per input text, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
