package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/cropmind/cropmind/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role    string
	Content string

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall
	// ToolCallID is set on tool-role messages carrying a tool's result.
	ToolCallID string
}

// ToolCall is the model's structured request to invoke a declared tool.
// Arguments holds the raw JSON argument object produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition declares a callable tool to the model: its name and the
// JSON schema of its argument object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Definition
}

// Completion is the model's reply for one reasoning step. Exactly one of the
// two variants is meaningful: a populated ToolCalls slice means the model
// wants tool results before answering, otherwise Answer is the final text.
type Completion struct {
	Answer    string
	ToolCalls []ToolCall
}

func (c *Completion) WantsTool() bool {
	return len(c.ToolCalls) > 0
}

type Client interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)
}

type Options struct {
	Model   string
	APIKey  string
	BaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	return NewOpenAIClient(Options{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	}), nil
}
