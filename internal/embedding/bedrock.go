package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultBedrockModel is Amazon Titan text embeddings v2.
	DefaultBedrockModel = "amazon.titan-embed-text-v2:0"

	// DefaultBedrockDimension is Titan v2's default output size (256 and 512 also allowed).
	DefaultBedrockDimension = 1024
)

// bedrockInvoker is the slice of the Bedrock runtime client the embedder needs.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEmbedder implements Embedder with Titan text embeddings on AWS Bedrock.
// Titan takes one text per request, so batches are sent sequentially.
type BedrockEmbedder struct {
	client    bedrockInvoker
	model     string
	dimension int
}

// Compile-time check that BedrockEmbedder implements Embedder.
var _ Embedder = (*BedrockEmbedder)(nil)

// NewBedrockEmbedder loads AWS credentials from the default chain and creates the client.
func NewBedrockEmbedder(ctx context.Context, region, model string, dimension int) (*BedrockEmbedder, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newBedrockEmbedder(bedrockruntime.NewFromConfig(awsCfg), model, dimension), nil
}

func newBedrockEmbedder(client bedrockInvoker, model string, dimension int) *BedrockEmbedder {
	if model == "" {
		model = DefaultBedrockModel
	}
	if dimension == 0 {
		dimension = DefaultBedrockDimension
	}
	return &BedrockEmbedder{client: client, model: model, dimension: dimension}
}

// Model returns the Bedrock model ID.
func (e *BedrockEmbedder) Model() string {
	return e.model
}

// Dimension returns the requested embedding dimension.
func (e *BedrockEmbedder) Dimension() int {
	return e.dimension
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed generates an embedding vector for the given text.
func (e *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{InputText: text, Dimensions: e.dimension, Normalize: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", wrapFatalError(err))
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Embedding) != e.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)", len(resp.Embedding), e.dimension, e.model)
	}

	slog.Debug("bedrock embedding complete", "model", e.model, "tokens", resp.InputTextTokenCount)
	return resp.Embedding, nil
}

// EmbedBatch embeds each text in order.
func (e *BedrockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}
