// Package retry provides retry logic with exponential backoff for provider calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"interviewcoach/pkg/agent/llmerrors"
	"interviewcoach/pkg/agent/middleware/resilience/circuit"
)

// ErrCallerGone is returned when the caller's context ended between attempts.
var ErrCallerGone = errors.New("caller went away before retry")

// Config defines configuration for retry behavior.
type Config struct {
	MaxRetries int           `json:"max_retries"` // Retries after the first attempt
	BaseDelay  time.Duration `json:"base_delay"`  // Delay before retry n is BaseDelay * 2^n
	MaxJitter  time.Duration `json:"max_jitter"`  // Plus uniform(0, MaxJitter)
}

// DefaultConfig: three retries, 1s base, up to 1s jitter.
//
//nolint:gochecknoglobals // sensible default config pattern
var DefaultConfig = Config{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxJitter:  time.Second,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ShouldRetry is the default classifier: classified LLM errors decide for themselves,
// open circuits and cancellation are never retried, anything else is.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var circuitErr *circuit.Error
	if errors.As(err, &circuitErr) {
		return false
	}
	return llmerrors.IsRetryable(err)
}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
	Sleep      Sleeper
	Rand       func() float64 // uniform [0,1)
}

// NewPolicy creates a retry policy; a nil classifier means ShouldRetry.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
		Sleep:      SleepContext,
		Rand:       rand.Float64,
	}
}

// MaxAttempts is the total number of calls Do will make.
func (p *Policy) MaxAttempts() int {
	return p.Config.MaxRetries + 1
}

// CalculateDelay returns the wait after the zero-based attempt failed.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.Config.BaseDelay) * math.Pow(2, float64(attempt)))
	if p.Config.MaxJitter > 0 && p.Rand != nil {
		delay += time.Duration(p.Rand() * float64(p.Config.MaxJitter))
	}
	return delay
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}

// Do calls op until it succeeds, returns a non-retryable error, or the budget is spent.
// ctx is checked before every retry; a finished ctx stops retrying with ErrCallerGone.
// The returned error is the last one op produced.
func (p *Policy) Do(ctx context.Context, op func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts(); attempt++ {
		lastErr = op(attempt)
		if lastErr == nil {
			return nil
		}
		if !p.ShouldRetry(lastErr) || attempt == p.Config.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCallerGone, lastErr)
		}
		if err := p.Sleep(ctx, p.CalculateDelay(attempt)); err != nil {
			return fmt.Errorf("%w: %w", ErrCallerGone, lastErr)
		}
	}
	return lastErr
}
