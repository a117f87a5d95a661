// Package service turns episodes into linked episodes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/linkograph/internal/embedding"
	"github.com/raphaelgruber/linkograph/internal/metrics"
	"github.com/raphaelgruber/linkograph/internal/models"
	"github.com/raphaelgruber/linkograph/internal/similarity"
)

// DefaultConcurrency is the number of episodes transformed at once.
const DefaultConcurrency = 4

// LinkService embeds moves and builds link tables. It holds no per-episode state and
// is safe for concurrent use.
type LinkService struct {
	embedder embedding.Embedder
	engine   *similarity.Engine
	metrics  *metrics.Collector
}

// NewLinkService creates a link service. engine and collector may be nil.
func NewLinkService(embedder embedding.Embedder, engine *similarity.Engine, collector *metrics.Collector) *LinkService {
	if engine == nil {
		engine = similarity.NewEngine(0)
	}
	return &LinkService{
		embedder: embedder,
		engine:   engine,
		metrics:  collector,
	}
}

// TransformOptions configures a collection run.
type TransformOptions struct {
	// Concurrency sets number of episodes in flight (default 4)
	Concurrency int
	// OnProgress is called after each finished episode. Calls are serialized.
	OnProgress func(done, total int)
}

// Transform links a single episode. The returned moves are the input moves, untouched.
func (s *LinkService) Transform(ctx context.Context, episode models.Episode) (models.LinkedEpisode, error) {
	if err := ctx.Err(); err != nil {
		return models.LinkedEpisode{}, err
	}
	start := time.Now()

	texts, index, err := episode.Texts()
	if err != nil {
		return models.LinkedEpisode{}, &MalformedMoveError{EpisodeID: episode.ID, Index: index, Err: err}
	}

	vectors, err := s.embed(ctx, episode.ID, texts)
	if err != nil {
		return models.LinkedEpisode{}, err
	}

	simStart := time.Now()
	links, err := s.engine.BuildLinks(ctx, vectors)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.LinkedEpisode{}, ctxErr
		}
		return models.LinkedEpisode{}, &EmbeddingError{EpisodeID: episode.ID, Err: err}
	}
	s.metrics.RecordBatch(metrics.OpSimilarity, time.Since(simStart), links.Pairs())
	s.metrics.RecordBatch(metrics.OpEpisode, time.Since(start), len(texts))

	slog.Debug("episode linked",
		"episode", episode.ID,
		"moves", len(texts),
		"pairs", links.Pairs(),
		"duration_ms", time.Since(start).Milliseconds())

	return models.LinkedEpisode{ID: episode.ID, Moves: episode.Moves, Links: links}, nil
}

// embed sends all texts of an episode to the provider in one batch and checks
// the provider kept its side of the contract.
func (s *LinkService) embed(ctx context.Context, episodeID string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{EpisodeID: episodeID, Err: err}
	}
	s.metrics.RecordBatch(metrics.OpEmbedding, time.Since(start), len(texts))

	if len(vectors) != len(texts) {
		return nil, &EmbeddingError{
			EpisodeID: episodeID,
			Err:       fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts)),
		}
	}
	want := s.embedder.Dimension()
	for i, v := range vectors {
		if len(v) != want {
			return nil, &EmbeddingError{
				EpisodeID: episodeID,
				Err:       fmt.Errorf("%w: move %d has %d dimensions, want %d", similarity.ErrDimensionMismatch, i, len(v), want),
			}
		}
	}
	return vectors, nil
}

// TransformAll links every episode of a collection. Episodes run concurrently; the
// result keeps the input's identifiers and order. The first failure cancels the
// remaining episodes and no partial collection is returned.
func (s *LinkService) TransformAll(ctx context.Context, collection models.Collection, opts TransformOptions) (models.LinkedCollection, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	total := len(collection)
	start := time.Now()

	slog.Info("linking collection",
		"episodes", total,
		"moves", collection.MoveCount(),
		"model", s.embedder.Model(),
		"concurrency", concurrency)

	out := make(models.LinkedCollection, total)

	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, episode := range collection {
		g.Go(func() error {
			linked, err := s.Transform(gctx, episode)
			if err != nil {
				return err
			}
			out[i] = linked

			progressMu.Lock()
			done++
			if opts.OnProgress != nil {
				opts.OnProgress(done, total)
			}
			progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("collection linked", "episodes", total, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Similarity embeds two texts and returns their cosine similarity.
func (s *LinkService) Similarity(ctx context.Context, a, b string) (float64, error) {
	vectors, err := s.embed(ctx, "", []string{a, b})
	if err != nil {
		return 0, err
	}
	return similarity.Cosine(vectors[0], vectors[1]), nil
}
