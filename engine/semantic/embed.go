package semantic

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/WessleyAI/wessley-diagnostics/pkg/ollama"
)

// Embedding task types understood by Gemini embedding models.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// DefaultEmbedModel is used when no model is configured.
const DefaultEmbedModel = "text-embedding-004"

var (
	errNoEmbedding = errors.New("semantic: empty embedding response")
	// ErrNoBackend is returned by NewEmbedder when nothing is configured.
	ErrNoBackend = errors.New("semantic: no embedding backend configured")
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text, task string) ([]float32, error)
}

type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds through the Gemini API.
type GeminiEmbedder struct {
	api   embedAPI
	model string
}

// NewGeminiEmbedder creates a Gemini API client for model.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("semantic: gemini client: %w", err)
	}
	return newGeminiEmbedder(cli.Models, model), nil
}

func newGeminiEmbedder(api embedAPI, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultEmbedModel
	}
	return &GeminiEmbedder{api: api, model: model}
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text, task string) ([]float32, error) {
	resp, err := g.api.EmbedContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{TaskType: task},
	)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errNoEmbedding
	}
	return resp.Embeddings[0].Values, nil
}

// EmbedConfig selects an embedding backend. A set OllamaURL takes
// precedence over GeminiKey.
type EmbedConfig struct {
	OllamaURL   string
	OllamaModel string
	GeminiKey   string
	GeminiModel string
}

// NewEmbedder builds the configured backend.
func NewEmbedder(ctx context.Context, cfg EmbedConfig) (Embedder, error) {
	switch {
	case cfg.OllamaURL != "":
		return ollama.NewEmbedder(cfg.OllamaURL, cfg.OllamaModel), nil
	case cfg.GeminiKey != "":
		return NewGeminiEmbedder(ctx, cfg.GeminiKey, cfg.GeminiModel)
	default:
		return nil, ErrNoBackend
	}
}
