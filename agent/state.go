// Package agent runs one conversation turn as a bounded decision loop: the
// model either answers directly or requests retrieval, and retrieved context
// feeds the next reasoning step.
package agent

import "github.com/cropmind/cropmind/llm"

// ConversationState is the message history of one chat session. A state
// value is owned by exactly one in-flight turn at a time; the orchestrator
// mutates it only when the turn succeeds, so a failed turn leaves it exactly
// as it was.
type ConversationState struct {
	Messages []llm.Message
	Turns    int
}

func NewConversationState() *ConversationState {
	return &ConversationState{}
}
