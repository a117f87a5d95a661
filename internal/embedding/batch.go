package embedding

import (
	"context"
	"fmt"
)

// Batcher splits large EmbedBatch calls into provider requests of at most size texts.
// Results are concatenated in input order, so batching never changes the output.
type Batcher struct {
	inner Embedder
	size  int
}

// Compile-time check that Batcher implements Embedder.
var _ Embedder = (*Batcher)(nil)

// NewBatcher wraps inner; size <= 0 disables splitting.
func NewBatcher(inner Embedder, size int) *Batcher {
	return &Batcher{inner: inner, size: size}
}

// Model returns the wrapped model name.
func (b *Batcher) Model() string {
	return b.inner.Model()
}

// Dimension returns the wrapped dimension.
func (b *Batcher) Dimension() int {
	return b.inner.Dimension()
}

// Embed passes through to the wrapped embedder.
func (b *Batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.inner.Embed(ctx, text)
}

// EmbedBatch sends texts in chunks.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.size <= 0 || len(texts) <= b.size {
		return b.inner.EmbedBatch(ctx, texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		chunk, err := b.inner.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		if len(chunk) != end-start {
			return nil, fmt.Errorf("batch %d-%d: embedding count mismatch: got %d, want %d", start, end-1, len(chunk), end-start)
		}
		vectors = append(vectors, chunk...)
	}
	return vectors, nil
}
