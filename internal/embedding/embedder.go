// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"fmt"
)

// Embedder defines the interface for text embedding providers.
// Implementations must be deterministic for a fixed model: the same text always
// yields the same vector.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	Dimension() int
}

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server through langchaingo.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API through langchaingo.
	ProviderOpenAI ProviderType = "openai"

	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"

	// ProviderBedrock uses Amazon Titan text embeddings on AWS Bedrock.
	ProviderBedrock ProviderType = "bedrock"

	// ProviderHashing uses the in-process feature-hashing embedder. No model download,
	// no network; useful offline and in tests.
	ProviderHashing ProviderType = "hashing"
)

// Providers lists every supported provider.
var Providers = []ProviderType{ProviderOllama, ProviderOpenAI, ProviderVoyage, ProviderBedrock, ProviderHashing}

// Config holds configuration for creating an Embedder.
type Config struct {
	// Provider specifies which embedding backend to use.
	Provider ProviderType

	// Model is the embedding model name (provider-specific).
	// Ollama: "all-minilm:l6-v2" (384-dim), "nomic-embed-text" (768-dim)
	Model string

	// Dimension is the required output dimension. 0 uses the provider default.
	Dimension int

	// OllamaHost is the Ollama server URL.
	OllamaHost string

	// OpenAIAPIKey authenticates the OpenAI provider.
	OpenAIAPIKey string

	// VoyageAPIKey authenticates the Voyage provider.
	VoyageAPIKey string

	// BedrockRegion selects the AWS region. Empty uses the SDK's default chain.
	BedrockRegion string

	// BatchSize caps texts per provider request. 0 sends each batch whole.
	BatchSize int

	// CacheSize is the number of distinct texts whose vectors are kept. 0 disables caching.
	CacheSize int
}

// New creates an Embedder based on the provided configuration. It is meant to be
// called once per process; the returned handle is safe for concurrent use.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch cfg.Provider {
	case ProviderOllama, "":
		e, err = NewOllamaEmbedder(cfg.OllamaHost, cfg.Model, cfg.Dimension)

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires API key")
		}
		e, err = NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimension)

	case ProviderVoyage:
		if cfg.VoyageAPIKey == "" {
			return nil, fmt.Errorf("voyage provider requires API key")
		}
		e, err = NewVoyageClient(cfg.VoyageAPIKey, cfg.Model, cfg.Dimension)

	case ProviderBedrock:
		e, err = NewBedrockEmbedder(ctx, cfg.BedrockRegion, cfg.Model, cfg.Dimension)

	case ProviderHashing:
		e = NewHashingEmbedder(cfg.Dimension)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.BatchSize > 0 {
		e = NewBatcher(e, cfg.BatchSize)
	}
	if cfg.CacheSize > 0 {
		e, err = NewCachedEmbedder(e, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// checkBatch verifies a provider returned one vector per text, each of the expected size.
func checkBatch(vectors [][]float32, texts []string, dimension int) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), dimension)
		}
	}
	return nil
}
