package embedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI defaults.
const (
	DefaultOpenAIModel     = string(openai.EmbeddingModelTextEmbedding3Small)
	DefaultOpenAIDimension = 1536
)

// OpenAI embeds text with the OpenAI embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAI creates an OpenAI embedder. An empty model uses DefaultOpenAIModel.
func NewOpenAI(apiKey, model string, dim int) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dim <= 0 {
		dim = DefaultOpenAIDimension
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAI{client: &client, model: model, dim: dim}, nil
}

// Embed embeds one text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single request. Results are ordered by input index.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, unavailable("openai", fmt.Errorf("failed to generate embeddings: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return nil, unavailable("openai", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		// Convert []float64 to []float32
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the configured vector size.
func (o *OpenAI) Dimension() int { return o.dim }

// Model returns the provider-qualified model name.
func (o *OpenAI) Model() string { return "openai/" + o.model }

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (o *OpenAI) Close() error { return nil }
