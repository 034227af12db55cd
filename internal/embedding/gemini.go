package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini defaults.
const (
	DefaultGeminiModel     = "text-embedding-004"
	DefaultGeminiDimension = 768
)

// Gemini embeds text with the Google Gemini embedding API.
type Gemini struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
	dim    int
}

// NewGemini creates a Gemini embedder. An empty model uses DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey, model string, dim int) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if dim <= 0 {
		dim = DefaultGeminiDimension
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.EmbeddingModel(model),
		name:   model,
		dim:    dim,
	}, nil
}

// Embed embeds one text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, unavailable("gemini", fmt.Errorf("failed to embed content: %w", err))
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, unavailable("gemini", fmt.Errorf("no embedding in response"))
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds texts in a single request.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := g.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, unavailable("gemini", fmt.Errorf("failed to batch embed contents: %w", err))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, unavailable("gemini", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Dimension returns the configured vector size.
func (g *Gemini) Dimension() int { return g.dim }

// Model returns the provider-qualified model name.
func (g *Gemini) Model() string { return "gemini/" + g.name }

// Close releases resources held by the client
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
