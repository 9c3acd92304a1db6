package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cropmind/cropmind/llm"
)

const (
	defaultMaxToolRounds = 3
	defaultMaxAttempts   = 3
	defaultBackoffBase   = 500 * time.Millisecond

	systemPrompt = "You are a helpful AI assistant that answers questions about smart agriculture. " +
		"You have access to a tool that retrieves relevant documentation. " +
		"Use the tool to find relevant information before answering questions. " +
		"If you cannot find the answer in the retrieved documentation, say so."

	retrievalUnavailableResult = "Retrieval is currently unavailable. Answer from the context gathered so far " +
		"and from general knowledge, and note that supporting documentation could not be consulted."

	answerFallback = "I was unable to produce a complete answer with the available context. Please try rephrasing the question."
)

// Orchestrator drives one conversation turn: reasoning calls to the language
// model, interleaved with retrieval whenever the model asks for it, until
// the model answers or the retrieval budget runs out.
type Orchestrator struct {
	llm    llm.Client
	tool   *RetrievalTool
	logger *log.Logger

	maxToolRounds int
	maxAttempts   int
	backoffBase   time.Duration
	callTimeout   time.Duration
}

type Options struct {
	MaxToolRounds int
	MaxAttempts   int
	BackoffBase   time.Duration
	CallTimeout   time.Duration
}

func NewOrchestrator(client llm.Client, tool *RetrievalTool, logger *log.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}

	return &Orchestrator{
		llm:           client,
		tool:          tool,
		logger:        logger,
		maxToolRounds: opts.MaxToolRounds,
		maxAttempts:   opts.MaxAttempts,
		backoffBase:   opts.BackoffBase,
		callTimeout:   opts.CallTimeout,
	}
}

// RunTurn answers one user question, mutating state only on success. Whether
// to retrieve is decided entirely by the model's structured output; the
// orchestrator only bounds the loop and feeds tool results back in order.
func (o *Orchestrator) RunTurn(ctx context.Context, question string, state *ConversationState) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question cannot be empty")
	}
	if state == nil {
		return "", fmt.Errorf("conversation state is nil")
	}
	if o.llm == nil {
		return "", fmt.Errorf("llm client is not configured")
	}
	if o.tool == nil {
		return "", fmt.Errorf("retrieval tool is not configured")
	}

	// Work on a copy; commit to the caller's state only when the turn
	// succeeds, so a failed turn rolls back for free.
	msgs := make([]llm.Message, 0, len(state.Messages)+2)
	if len(state.Messages) == 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, state.Messages...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	tools := []llm.ToolDefinition{o.tool.Definition()}

	var answer string
	for round := 0; ; round++ {
		offered := tools
		if round >= o.maxToolRounds {
			// Retrieval budget spent: withhold the tool so the model must
			// produce a terminal answer from whatever has been gathered.
			o.logger.Printf("retrieval round cap (%d) reached, forcing final answer", o.maxToolRounds)
			offered = nil
		}

		completion, err := o.complete(ctx, msgs, offered)
		if err != nil {
			return "", err
		}

		if offered == nil || !completion.WantsTool() {
			answer = strings.TrimSpace(completion.Answer)
			break
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Answer,
			ToolCalls: completion.ToolCalls,
		})
		// Every requested call gets its result appended before the next
		// reasoning step sees the history.
		for _, call := range completion.ToolCalls {
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    o.runToolCall(ctx, call),
			})
		}
	}

	if answer == "" {
		answer = answerFallback
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: answer})

	state.Messages = msgs
	state.Turns++
	return answer, nil
}

// complete invokes the model with bounded exponential backoff. Only
// transient failures are retried; exhaustion or a permanent failure aborts
// the turn.
func (o *Orchestrator) complete(ctx context.Context, msgs []llm.Message, tools []llm.ToolDefinition) (*llm.Completion, error) {
	backoff := retry.WithMaxRetries(uint64(o.maxAttempts-1), retry.NewExponential(o.backoffBase))

	var completion *llm.Completion
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if o.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
		}

		var callErr error
		completion, callErr = o.llm.Complete(callCtx, msgs, tools)
		if callErr != nil {
			if llm.IsRetryable(callErr) {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("language model completion: %w", err)
	}
	return completion, nil
}

// runToolCall executes one requested retrieval and always returns in-band
// content: a failed retrieval becomes an explicit unavailability notice
// instead of aborting the turn.
func (o *Orchestrator) runToolCall(ctx context.Context, call llm.ToolCall) string {
	if call.Name != ToolName {
		return fmt.Sprintf("Unknown tool %q.", call.Name)
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return fmt.Sprintf("Invalid tool arguments: %v.", err)
	}

	matches, err := o.tool.Retrieve(ctx, args.Query)
	if err != nil {
		o.logger.Printf("retrieval failed: %v", err)
		return retrievalUnavailableResult
	}
	return FormatMatches(matches)
}
