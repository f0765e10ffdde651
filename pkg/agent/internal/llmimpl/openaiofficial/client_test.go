package openaiofficial

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
)

func TestBuildInput(t *testing.T) {
	instructions, input := buildInput([]llm.CompletionMessage{
		llm.NewSystemMessage("You are an interviewer."),
		llm.NewUserMessage("Ask."),
		{Role: llm.RoleAssistant, Content: "Why this role?"},
		llm.NewUserMessage("Continue."),
	})

	assert.Equal(t, "You are an interviewer.", instructions)
	assert.Equal(t, "Ask.\n\nAssistant: Why this role?\n\nContinue.", input)
}

func TestClassifyPlainError(t *testing.T) {
	err := classifyError(errors.New("dial tcp: connection refused"))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeTransient))
}

func TestCompleteAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOfficialClientWithModel("bad", "gpt-4o-mini", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))

	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth), err.Error())
	assert.False(t, llmerrors.IsRetryable(err))
}

func TestGetModelName(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", NewOfficialClientWithModel("k", "gpt-4o-mini").GetModelName())
}
