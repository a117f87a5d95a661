package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOllamaModel is the embedding model that produces 384-dimensional vectors.
	DefaultOllamaModel = "all-minilm:l6-v2"

	// DefaultOllamaDimension is the dimension for all-minilm:l6-v2.
	DefaultOllamaDimension = 384

	// DefaultOllamaHost is used when no host is configured.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the dimension for text-embedding-3-small.
	DefaultOpenAIDimension = 1536
)

// LangchainEmbedder wraps langchaingo embeddings with dimension validation.
type LangchainEmbedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
}

// Compile-time check that LangchainEmbedder implements Embedder.
var _ Embedder = (*LangchainEmbedder)(nil)

// NewOllamaEmbedder creates an embedder backed by an Ollama server.
// Empty host, model or zero dimension fall back to the defaults (all-minilm:l6-v2, 384).
func NewOllamaEmbedder(host, model string, dimension int) (*LangchainEmbedder, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension == 0 {
		dimension = DefaultOllamaDimension
	}

	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return newLangchainEmbedder(llm, model, dimension)
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
func NewOpenAIEmbedder(apiKey, model string, dimension int) (*LangchainEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimension == 0 {
		dimension = DefaultOpenAIDimension
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return newLangchainEmbedder(llm, model, dimension)
}

func newLangchainEmbedder(client embeddings.EmbedderClient, model string, dimension int) (*LangchainEmbedder, error) {
	// Texts are embedded verbatim; langchaingo would otherwise rewrite newlines.
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &LangchainEmbedder{
		model:     e,
		dimension: dimension,
		modelName: model,
	}, nil
}

// Embed generates an embedding vector for text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	slog.Debug("embedding texts", "model", e.modelName, "count", len(texts))

	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "count", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed batch: %w", wrapFatalError(err))
	}
	if err := checkBatch(vectors, texts, e.dimension); err != nil {
		return nil, err
	}

	slog.Debug("embedding complete", "model", e.modelName, "count", len(texts), "duration_ms", duration.Milliseconds())
	return vectors, nil
}

// Model returns the embedding model name.
func (e *LangchainEmbedder) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *LangchainEmbedder) Dimension() int {
	return e.dimension
}
