// Package similarity derives pairwise cosine-similarity link tables from embeddings.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/raphaelgruber/linkograph/internal/models"
)

var (
	// ErrDimensionMismatch indicates vectors of different lengths in one episode.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNonFinite indicates a vector containing NaN or infinite components.
	ErrNonFinite = errors.New("embedding has non-finite components")
)

// Engine builds link tables. The zero value is usable and runs one row worker per CPU.
type Engine struct {
	workers int
}

// NewEngine creates an engine with the given number of row workers.
// workers <= 0 uses GOMAXPROCS.
func NewEngine(workers int) *Engine {
	return &Engine{workers: workers}
}

// Workers returns the effective worker count.
func (e *Engine) Workers() int {
	if e == nil || e.workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return e.workers
}

// BuildLinks computes the lower-triangular link table for vectors: row i holds the
// scores of vector i against vectors 0..i-1. Rows are independent and are spread
// across workers; the result does not depend on the worker count.
func (e *Engine) BuildLinks(ctx context.Context, vectors [][]float32) (models.LinkTable, error) {
	n := len(vectors)
	links := models.NewLinkTable(n)
	if n == 0 {
		return links, nil
	}

	dim := len(vectors[0])
	norms := make([]float64, n)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		norms[i] = norm(v)
		if math.IsNaN(norms[i]) || math.IsInf(norms[i], 0) {
			return nil, fmt.Errorf("%w: vector %d", ErrNonFinite, i)
		}
	}
	if n == 1 {
		return links, nil
	}

	workers := min(e.Workers(), n-1)

	// Longest rows first so the tail of the queue is cheap.
	rows := make(chan int, n-1)
	for i := n - 1; i >= 1; i-- {
		rows <- i
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				if ctx.Err() != nil {
					return
				}
				row := links[i]
				for j := range row {
					row[j] = score(vectors[i], vectors[j], norms[i], norms[j])
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// BuildLinks computes a link table with a default engine.
func BuildLinks(ctx context.Context, vectors [][]float32) (models.LinkTable, error) {
	return (&Engine{}).BuildLinks(ctx, vectors)
}

// Cosine returns dot(a,b) / (|a|*|b|). Vectors of different lengths, empty vectors
// and zero-norm vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return score(a, b, norm(a), norm(b))
}

func score(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot(a, b) / (normA * normB))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// clamp absorbs rounding that pushes parallel vectors just past ±1.
func clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
