package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/cropmind/cropmind/embeddings"
	"github.com/cropmind/cropmind/llm"
	"github.com/cropmind/cropmind/vectorstore"
)

const (
	// ToolName is the function name the model uses to request retrieval.
	ToolName = "retrieve_context"

	defaultTopK = 4
)

// RetrievalTool wraps vector similarity search behind the callable contract
// offered to the language model. Retrieve is a pure read.
type RetrievalTool struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	topK     int
}

func NewRetrievalTool(embedder embeddings.Embedder, store vectorstore.Store, topK int) *RetrievalTool {
	if topK <= 0 {
		topK = defaultTopK
	}

	return &RetrievalTool{
		embedder: embedder,
		store:    store,
		topK:     topK,
	}
}

// Definition declares the tool's name and argument schema to the model.
func (t *RetrievalTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolName,
		Description: "Retrieve relevant documentation passages to help answer user questions about smart agriculture.",
		Parameters: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {
					Type:        jsonschema.String,
					Description: "Search query describing the information needed.",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *RetrievalTool) Retrieve(ctx context.Context, query string) ([]vectorstore.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	vectors, err := t.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	matches, err := t.store.Query(ctx, vectors[0], t.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return matches, nil
}

// FormatMatches renders retrieval results as the tool-result content shown
// to the model.
func FormatMatches(matches []vectorstore.Match) string {
	if len(matches) == 0 {
		return "No relevant documents found."
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		header := fmt.Sprintf("Source: %s", m.Metadata.Source)
		if m.Metadata.Page > 0 {
			header = fmt.Sprintf("%s (page %d)", header, m.Metadata.Page)
		}
		blocks = append(blocks, header+"\n"+m.Metadata.Text)
	}
	return strings.Join(blocks, "\n\n")
}
