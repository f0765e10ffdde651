// Package anthropic provides the Claude client implementation of llm.LLMClient.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
)

const providerName = "anthropic"

// ClaudeClient wraps the Anthropic API client.
//
//nolint:govet // simple struct
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClientWithModel creates a raw Claude client; middleware is applied by the factory.
func NewClaudeClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	system, messages, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Anthropic API")
	}

	var sb strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			sb.WriteString(resp.Content[i].Text)
		}
	}
	return llm.CompletionResponse{
		Content:    sb.String(),
		StopReason: string(resp.StopReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// convertMessages extracts the system prompt and merges consecutive same-role messages,
// since the API requires strict user/assistant alternation starting with user.
func convertMessages(in []llm.CompletionMessage) (string, []anthropic.MessageParam, error) {
	system, rest := llm.SplitSystem(in)
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("no user content to send")
	}

	type turn struct {
		role llm.CompletionRole
		text string
	}
	var merged []turn
	for i := range rest {
		switch rest[i].Role {
		case llm.RoleUser, llm.RoleAssistant:
		default:
			return "", nil, fmt.Errorf("unsupported message role: %s", rest[i].Role)
		}
		if n := len(merged); n > 0 && merged[n-1].role == rest[i].Role {
			merged[n-1].text += "\n\n" + rest[i].Content
			continue
		}
		merged = append(merged, turn{role: rest[i].Role, text: rest[i].Content})
	}
	if merged[0].role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].role)
	}

	out := make([]anthropic.MessageParam, 0, len(merged))
	for _, m := range merged {
		block := anthropic.NewTextBlock(m.text)
		if m.role == llm.RoleUser {
			out = append(out, anthropic.NewUserMessage(block))
		} else {
			out = append(out, anthropic.NewAssistantMessage(block))
		}
	}
	return system, out, nil
}

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(apiErr.StatusCode, err, providerName)
	}
	return llmerrors.Classify(err, providerName)
}
