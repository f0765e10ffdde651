// Package agent provides LLM client factory with middleware chain construction.
package agent

import (
	"fmt"

	"interviewcoach/pkg/agent/internal/llmimpl/anthropic"
	"interviewcoach/pkg/agent/internal/llmimpl/google"
	"interviewcoach/pkg/agent/internal/llmimpl/ollama"
	"interviewcoach/pkg/agent/internal/llmimpl/openaiofficial"
	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/middleware/metrics"
	"interviewcoach/pkg/agent/middleware/resilience/timeout"
	"interviewcoach/pkg/config"
	"interviewcoach/pkg/logx"
)

// Provider is a named, fully wrapped LLM client.
type Provider struct {
	Client llm.LLMClient
	Name   string
}

// LLMClientFactory creates LLM clients with properly configured middleware chains.
type LLMClientFactory struct {
	metricsRecorder metrics.Recorder
	logger          *logx.Logger
	config          config.Config
}

// NewLLMClientFactory creates a new LLM client factory with the given configuration.
// A nil recorder disables metrics.
func NewLLMClientFactory(cfg config.Config, recorder metrics.Recorder) *LLMClientFactory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &LLMClientFactory{
		config:          cfg,
		metricsRecorder: recorder,
		logger:          logx.NewLogger("llm"),
	}
}

// CreatePrimary creates the remote provider client configured under "primary".
// The API key is retrieved from the secrets file or environment based on the provider.
func (f *LLMClientFactory) CreatePrimary() (Provider, error) {
	provider := f.config.Primary.Provider
	if provider == "" {
		detected, err := config.GetModelProvider(f.config.Primary.Model)
		if err != nil {
			return Provider{}, fmt.Errorf("failed to determine provider for model %s: %w", f.config.Primary.Model, err)
		}
		provider = detected
	}

	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return Provider{}, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	var rawClient llm.LLMClient
	switch provider {
	case config.ProviderGoogle:
		rawClient = google.NewGeminiClientWithModel(apiKey, f.config.Primary.Model)
	case config.ProviderOpenAI:
		rawClient = openaiofficial.NewOfficialClientWithModel(apiKey, f.config.Primary.Model)
	case config.ProviderAnthropic:
		rawClient = anthropic.NewClaudeClientWithModel(apiKey, f.config.Primary.Model)
	case config.ProviderOllama:
		rawClient = ollama.NewOllamaClientWithModel(apiKey, f.config.Primary.Model)
	default:
		return Provider{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	return Provider{Name: provider, Client: f.wrap(provider, rawClient)}, nil
}

// CreateSecondary creates the local Ollama fallback. ok is false when the secondary is disabled.
func (f *LLMClientFactory) CreateSecondary() (p Provider, ok bool) {
	if !f.config.Secondary.Enabled {
		return Provider{}, false
	}
	rawClient := ollama.NewOllamaClientWithModel(f.config.Secondary.Host, f.config.Secondary.Model)
	return Provider{Name: config.ProviderOllama, Client: f.wrap(config.ProviderOllama, rawClient)}, true
}

// wrap builds the middleware chain: Metrics -> Timeout -> RawClient.
// Retry and failover sit above the client in the invoker so that unparseable replies are retried too.
func (f *LLMClientFactory) wrap(provider string, rawClient llm.LLMClient) llm.LLMClient {
	return llm.Chain(rawClient,
		metrics.Middleware(provider, f.metricsRecorder, nil, f.logger.With(provider)),
		timeout.Middleware(f.config.Resilience.AttemptTimeout),
	)
}
