// Package llm provides the provider-agnostic client interface used by the invoker.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem carries the interviewer persona and output rules.
	RoleSystem CompletionRole = "system"
	// RoleUser carries the rendered prompt.
	RoleUser CompletionRole = "user"
	// RoleAssistant carries earlier model output.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens bounds replies when the caller does not.
	DefaultMaxTokens = 2048

	// TemperatureDefault is used for conversational question generation.
	TemperatureDefault = 0.7

	// TemperatureStructured is used when a JSON object is expected back.
	TemperatureStructured = 0.2
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // fieldalignment: value semantics preferred
type CompletionRequest struct {
	Messages    []CompletionMessage
	Purpose     string // metrics label: next_question, critique, report
	MaxTokens   int
	Temperature float32
	JSONMode    bool // ask the provider for a bare JSON object when it supports it
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string
	StopReason string
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // name kept for symmetry with provider packages
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// SplitSystem separates system content from the conversational messages.
// Providers that take the system prompt out-of-band use this.
func SplitSystem(messages []CompletionMessage) (system string, rest []CompletionMessage) {
	rest = make([]CompletionMessage, 0, len(messages))
	for i := range messages {
		if messages[i].Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += messages[i].Content
			continue
		}
		rest = append(rest, messages[i])
	}
	return system, rest
}

// LLMConfig represents configuration for a provider client.
type LLMConfig struct { //nolint:revive // name kept for symmetry with LLMClient
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
}

// Validate validates the client configuration.
func (c *LLMConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
