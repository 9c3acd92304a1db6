package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/cropmind/cropmind/config"
)

// ErrDimensionMismatch indicates that a produced vector does not match the
// dimension the store was created with. Callers treat it as fatal for the
// whole ingestion run rather than as a per-document failure.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Model     string
	Dimension int
	APIKey    string
	BaseURL   string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	return NewOpenAIEmbedder(Options{
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
	}), nil
}
