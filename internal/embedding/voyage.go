package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultVoyageModel is the default Voyage AI embedding model.
	DefaultVoyageModel = "voyage-3"

	// DefaultVoyageDimension is the dimension for voyage-3.
	DefaultVoyageDimension = 1024

	// VoyageAPIEndpoint is the Voyage AI API endpoint.
	VoyageAPIEndpoint = "https://api.voyageai.com/v1/embeddings"
)

// VoyageClient implements Embedder using the Voyage AI HTTP API.
type VoyageClient struct {
	apiKey    string
	model     string
	dimension int
	endpoint  string
	client    *http.Client
}

// Compile-time check that VoyageClient implements Embedder.
var _ Embedder = (*VoyageClient)(nil)

// VoyageOption customizes a VoyageClient.
type VoyageOption func(*VoyageClient)

// WithVoyageEndpoint points the client at a different API URL.
func WithVoyageEndpoint(url string) VoyageOption {
	return func(c *VoyageClient) { c.endpoint = url }
}

// WithVoyageHTTPClient replaces the HTTP client.
func WithVoyageHTTPClient(hc *http.Client) VoyageOption {
	return func(c *VoyageClient) { c.client = hc }
}

// NewVoyageClient creates a new embedding client using Voyage AI.
// If model is empty, uses DefaultVoyageModel (voyage-3).
// If dimension is 0, uses DefaultVoyageDimension (1024).
func NewVoyageClient(apiKey, model string, dimension int, opts ...VoyageOption) (*VoyageClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for Voyage embeddings")
	}
	if model == "" {
		model = DefaultVoyageModel
	}
	if dimension == 0 {
		dimension = DefaultVoyageDimension
	}

	c := &VoyageClient{
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		endpoint:  VoyageAPIEndpoint,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured embedding model name.
func (c *VoyageClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *VoyageClient) Dimension() int {
	return c.dimension
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates an embedding vector for the given text.
func (c *VoyageClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonBody, err := json.Marshal(voyageRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, wrapFatalError(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var voyageResp voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&voyageResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(voyageResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(voyageResp.Data), len(texts))
	}

	// Results carry their own index; order them by it.
	embeddings := make([][]float32, len(texts))
	for _, d := range voyageResp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) || embeddings[d.Index] != nil {
			return nil, fmt.Errorf("invalid embedding index: %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	if err := checkBatch(embeddings, texts, c.dimension); err != nil {
		return nil, err
	}
	return embeddings, nil
}
