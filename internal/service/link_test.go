package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/raphaelgruber/linkograph/internal/embedding"
	"github.com/raphaelgruber/linkograph/internal/metrics"
	"github.com/raphaelgruber/linkograph/internal/models"
	"github.com/raphaelgruber/linkograph/internal/service"
	"github.com/raphaelgruber/linkograph/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns fixed results and counts calls.
type stubEmbedder struct {
	dim     int
	err     error
	vectors func(texts []string) [][]float32
	calls   atomic.Int64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors(texts), nil
}

func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Dimension() int { return s.dim }

func newService() *service.LinkService {
	return service.NewLinkService(embedding.NewHashingEmbedder(128), similarity.NewEngine(2), metrics.NewCollector())
}

func decodeCollection(t *testing.T, input string) models.Collection {
	t.Helper()
	var c models.Collection
	require.NoError(t, json.Unmarshal([]byte(input), &c))
	return c
}

func TestTransformScenario(t *testing.T) {
	c := decodeCollection(t, `{"ep1": [{"text": "open door"}, {"text": "open door"}, {"text": "close window"}]}`)

	linked, err := newService().Transform(context.Background(), c[0])
	require.NoError(t, err)

	links := linked.Links
	require.Equal(t, 3, links.Len())
	assert.Empty(t, links[0])
	assert.InDelta(t, 1.0, links[1][0], 1e-5)
	assert.Less(t, links[2][0], 1.0)
	assert.Less(t, links[2][1], 1.0)
	assert.Equal(t, c[0].Moves, linked.Moves)
	assert.Equal(t, "ep1", linked.ID)
}

func TestTransformIdenticalTextsWithoutWords(t *testing.T) {
	c := decodeCollection(t, `{"e": [{"text": "..."}, {"text": "..."}, {"text": ""}, {"text": ""}]}`)

	linked, err := newService().Transform(context.Background(), c[0])
	require.NoError(t, err)

	assert.InDelta(t, 1.0, linked.Links[1][0], 1e-5)
	assert.InDelta(t, 1.0, linked.Links[3][2], 1e-5)
}

func TestTransformShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single move",
			input: `{"solo": [{"text": "look around", "t": 3}]}`,
			want:  `{"solo":{"moves":[{"text":"look around","t":3}],"links":{"0":{}}}}`,
		},
		{
			name:  "empty episode",
			input: `{"empty": []}`,
			want:  `{"empty":{"moves":[],"links":{}}}`,
		},
		{
			name:  "empty collection",
			input: `{}`,
			want:  `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newService().TransformAll(context.Background(), decodeCollection(t, tt.input), service.TransformOptions{})
			require.NoError(t, err)

			data, err := json.Marshal(out)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestTransformSkipsProviderForEmptyEpisode(t *testing.T) {
	stub := &stubEmbedder{dim: 2, err: errors.New("must not be called")}
	svc := service.NewLinkService(stub, nil, nil)

	linked, err := svc.Transform(context.Background(), models.Episode{ID: "e"})
	require.NoError(t, err)
	assert.Equal(t, 0, linked.Links.Len())
	assert.Zero(t, stub.calls.Load())
}

func TestTransformAllPreservesIdentifiersAndMoves(t *testing.T) {
	input := `{
		"b": [{"text": "alpha", "speaker": "x", "meta": {"k": [1, 2]}}, {"text": "beta"}],
		"a": [{"id": 7, "text": "gamma"}],
		"c": [{"text": "delta"}, {"text": "alpha"}, {"text": "epsilon", "note": null}]
	}`
	c := decodeCollection(t, input)

	var progress []int
	out, err := newService().TransformAll(context.Background(), c, service.TransformOptions{
		Concurrency: 3,
		OnProgress: func(done, total int) {
			assert.Equal(t, 3, total)
			progress = append(progress, done)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, out.IDs())
	assert.Equal(t, []int{1, 2, 3}, progress)
	for i, ep := range out {
		assert.Equal(t, c[i].Moves, ep.Moves)
		assert.NoError(t, ep.Links.Validate())
		for _, row := range ep.Links {
			for _, s := range row {
				assert.GreaterOrEqual(t, s, -1.0-1e-6)
				assert.LessOrEqual(t, s, 1.0+1e-6)
			}
		}
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)
	var roundTrip map[string]struct {
		Moves []json.RawMessage `json:"moves"`
	}
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	assert.JSONEq(t, `{"text": "alpha", "speaker": "x", "meta": {"k": [1, 2]}}`, string(roundTrip["b"].Moves[0]))
	assert.JSONEq(t, `{"text": "epsilon", "note": null}`, string(roundTrip["c"].Moves[2]))
}

func TestTransformAllDeterministic(t *testing.T) {
	c := decodeCollection(t, `{"e": [{"text": "a b c"}, {"text": "b c d"}, {"text": "c d e"}, {"text": "x y z"}]}`)

	first, err := newService().TransformAll(context.Background(), c, service.TransformOptions{Concurrency: 1})
	require.NoError(t, err)
	second, err := service.NewLinkService(embedding.NewHashingEmbedder(128), similarity.NewEngine(8), nil).
		TransformAll(context.Background(), c, service.TransformOptions{Concurrency: 8})
	require.NoError(t, err)

	for i := range first[0].Links {
		assert.InDeltaSlice(t, first[0].Links[i], second[0].Links[i], 1e-12)
	}
}

func TestTransformAllMalformedMove(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		episode string
		index   int
		cause   error
	}{
		{
			name:    "missing text",
			input:   `{"ok": [{"text": "fine"}], "bad": [{"text": "x"}, {"label": "no text"}]}`,
			episode: "bad",
			index:   1,
			cause:   models.ErrNoText,
		},
		{
			name:    "numeric text",
			input:   `{"bad": [{"text": 42}]}`,
			episode: "bad",
			index:   0,
			cause:   models.ErrTextNotString,
		},
		{
			name:    "move is not an object",
			input:   `{"bad": [{"text": "x"}, {"text": "y"}, "z"]}`,
			episode: "bad",
			index:   2,
			cause:   models.ErrNotRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newService().TransformAll(context.Background(), decodeCollection(t, tt.input), service.TransformOptions{})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, service.ErrMalformedMove)
			assert.ErrorIs(t, err, tt.cause)

			var malformed *service.MalformedMoveError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.episode, malformed.EpisodeID)
			assert.Equal(t, tt.index, malformed.Index)
		})
	}
}

func TestTransformAllProviderError(t *testing.T) {
	providerErr := errors.New("model unavailable")
	stub := &stubEmbedder{dim: 2, err: providerErr}
	svc := service.NewLinkService(stub, nil, nil)

	c := decodeCollection(t, `{"e1": [{"text": "a"}], "e2": [{"text": "b"}]}`)
	out, err := svc.TransformAll(context.Background(), c, service.TransformOptions{Concurrency: 1})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, service.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, providerErr)
	assert.NotErrorIs(t, err, service.ErrMalformedMove)
}

func TestTransformProviderContractViolations(t *testing.T) {
	tests := []struct {
		name    string
		vectors func(texts []string) [][]float32
	}{
		{
			name:    "too few vectors",
			vectors: func([]string) [][]float32 { return [][]float32{{1, 0}} },
		},
		{
			name: "wrong dimension",
			vectors: func(texts []string) [][]float32 {
				out := make([][]float32, len(texts))
				for i := range out {
					out[i] = []float32{1, 0, 0}
				}
				return out
			},
		},
		{
			name: "non-finite values",
			vectors: func(texts []string) [][]float32 {
				out := make([][]float32, len(texts))
				for i := range out {
					out[i] = []float32{float32(i), 0}
				}
				out[1][1] = float32(math.Inf(1))
				return out
			},
		},
	}

	episode := models.Episode{ID: "e", Moves: []models.Move{models.NewMove("a"), models.NewMove("b")}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := service.NewLinkService(&stubEmbedder{dim: 2, vectors: tt.vectors}, nil, nil)
			_, err := svc.Transform(context.Background(), episode)
			assert.ErrorIs(t, err, service.ErrEmbeddingProvider)
		})
	}
}

func TestTransformAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := decodeCollection(t, `{"e": [{"text": "a"}, {"text": "b"}]}`)
	_, err := newService().TransformAll(ctx, c, service.TransformOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimilarity(t *testing.T) {
	svc := newService()

	same, err := svc.Similarity(context.Background(), "open door", "open door")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-6)

	different, err := svc.Similarity(context.Background(), "open door", "close window")
	require.NoError(t, err)
	assert.Less(t, different, same)
}

func TestTransformRecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	svc := service.NewLinkService(embedding.NewHashingEmbedder(16), nil, collector)

	c := decodeCollection(t, `{"e": [{"text": "a"}, {"text": "b"}, {"text": "c"}]}`)
	_, err := svc.TransformAll(context.Background(), c, service.TransformOptions{})
	require.NoError(t, err)

	snap := collector.Snapshot()
	require.NotNil(t, snap.Embedding)
	assert.Equal(t, int64(3), snap.Embedding.Items)
	require.NotNil(t, snap.Similarity)
	assert.Equal(t, int64(3), snap.Similarity.Items)
	require.NotNil(t, snap.Episode)
	assert.Equal(t, int64(1), snap.Episode.Count)
}
