// Package llm defines the chat completion interface the qualifier agent
// drives.
package llm

import (
	"context"
)

// Role of a message in a chat conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest holds one completion request. Zero Model, MaxTokens or
// Temperature leave the provider's configured value in place.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float32
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Message      Message
	TokensUsed   int
	FinishReason string
}

// Capabilities describes an LLM provider.
type Capabilities struct {
	Model              string
	SupportsSystemRole bool
}

// LLM is implemented by chat completion providers.
type LLM interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Capabilities() Capabilities
}
