// Package utils provides tiktoken-based token counting.
package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with a tiktoken codec. Provider tokenizers differ;
// the GPT-4 encoding is used as a common approximation for metrics.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // shared codec, loading it is expensive
var (
	defaultCounter     *TokenCounter
	defaultCounterErr  error
	defaultCounterOnce sync.Once
)

// NewTokenCounter creates a token counter using the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text, estimating 4 chars per token on failure.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToTokenLimit truncates text proportionally so it fits roughly within limit tokens.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	current := tc.CountTokens(text)
	if current <= limit {
		return text
	}
	ratio := float64(limit) / float64(current)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) {
		return text
	}
	if charLimit < 0 {
		charLimit = 0
	}
	return text[:charLimit] + "..."
}

// CountTokensSimple counts tokens with a shared counter.
func CountTokensSimple(text string) int {
	defaultCounterOnce.Do(func() {
		defaultCounter, defaultCounterErr = NewTokenCounter()
	})
	if defaultCounterErr != nil {
		return len(text) / 4
	}
	return defaultCounter.CountTokens(text)
}
