package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/genai"
)

// Embedder computes dense vectors for text, used by the CKG Builder's
// cross-file resolution pass to disambiguate multiple same-named candidates by
// similarity of their surrounding code rather than picking the first
// indexed match.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiEmbedder wraps Gemini's embedding endpoint via google.golang.org/genai.
// Only embeddings are used here; chat completion goes through the three
// Provider variants instead.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiEmbedder creates an embedding client. model defaults to
// "text-embedding-004" when empty, matching config.LLMConfig.EmbeddingModel.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required for embedding-assisted resolution")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini embedding client: %w", err)
	}
	return &GeminiEmbedder{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "gemini-embedder"),
	}, nil
}

// Embed returns one vector per input text, in order.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return nil, fmt.Errorf("gemini returned no embedding values")
		}
		out = append(out, resp.Embeddings[0].Values)
	}
	e.logger.Debug("computed embeddings", "count", len(out))
	return out, nil
}

// CosineSimilarity is the similarity measure the semantic resolver ranks
// candidates by.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
