// Package openaiofficial provides the OpenAI client implementation of llm.LLMClient
// using the official Go SDK and the Responses API.
package openaiofficial

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
)

const providerName = "openai"

// OfficialClient wraps the official OpenAI Go client.
//
//nolint:govet // simple struct
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClientWithModel creates a raw OpenAI client; middleware is applied by the factory.
func NewOfficialClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OfficialClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	instructions, input := buildInput(in.Messages)

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	return llm.CompletionResponse{
		Content:    resp.OutputText(),
		StopReason: string(resp.Status),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OfficialClient) GetModelName() string {
	return o.model
}

// buildInput flattens the conversation into the Responses API single-string input,
// with system content moved to instructions.
func buildInput(messages []llm.CompletionMessage) (instructions, input string) {
	instructions, rest := llm.SplitSystem(messages)
	var sb strings.Builder
	for i := range rest {
		if rest[i].Role == llm.RoleAssistant {
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(rest[i].Content)
		if i < len(rest)-1 {
			sb.WriteString("\n\n")
		}
	}
	return instructions, sb.String()
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(apiErr.StatusCode, err, providerName)
	}
	return llmerrors.Classify(err, providerName)
}
