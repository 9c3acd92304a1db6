package llm_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cropmind/cropmind/config"
	"github.com/cropmind/cropmind/llm"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{Model: "gpt-4o"},
	}

	if _, err := llm.NewClient(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewClientWithKey(t *testing.T) {
	cfg := config.Config{
		OpenAIAPIKey: "test-key",
		LLM:          config.LLMConfig{Model: "gpt-4o"},
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		t.Fatalf("expected llm client, got error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestCompletionWantsTool(t *testing.T) {
	direct := llm.Completion{Answer: "4"}
	if direct.WantsTool() {
		t.Fatal("direct answer must not request a tool")
	}

	call := llm.Completion{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "retrieve_context"}}}
	if !call.WantsTool() {
		t.Fatal("tool-call completion must request a tool")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}, true},
		{"auth failure", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"content policy", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"wrapped api error", fmt.Errorf("create openai chat completion: %w", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}), true},
		{"network failure", errors.New("connection reset by peer"), true},
		{"canceled", context.Canceled, false},
	}

	for _, tc := range cases {
		if got := llm.IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
