package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimension matches all-minilm:l6-v2 so outputs are shape-compatible.
const DefaultHashingDimension = 384

const (
	wordWeight    = 1.0
	trigramWeight = 0.5
)

// HashingEmbedder maps text to a vector by signed feature hashing of lowercased words
// and their character trigrams, then normalizes to unit length. It is pure and
// deterministic: equal texts give equal vectors, texts with no shared features score
// near zero. Texts with no letters or digits hash the raw text as a single feature,
// so the result is never the zero vector.
type HashingEmbedder struct {
	dimension int
}

// Compile-time check that HashingEmbedder implements Embedder.
var _ Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder creates a hashing embedder; dimension 0 uses DefaultHashingDimension.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingEmbedder{dimension: dimension}
}

// Model returns a descriptive model name.
func (e *HashingEmbedder) Model() string {
	return "hashing"
}

// Dimension returns the vector dimension.
func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

// Embed hashes text into a unit vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

// EmbedBatch hashes each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vector(text)
	}
	return vectors, nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dimension)
	words := tokenize(text)
	if len(words) == 0 {
		e.add(acc, "r:"+text, wordWeight)
	}
	for _, word := range words {
		e.add(acc, "w:"+word, wordWeight)
		padded := []rune("^" + word + "$")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(acc, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}

	var sum float64
	for _, x := range acc {
		sum += x * x
	}
	v := make([]float32, e.dimension)
	inv := 1 / math.Sqrt(sum)
	for i, x := range acc {
		v[i] = float32(x * inv)
	}
	return v
}

func (e *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
