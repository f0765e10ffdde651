package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"interviewcoach/pkg/agent"
	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
	"interviewcoach/pkg/agent/middleware/metrics"
	"interviewcoach/pkg/agent/middleware/resilience/circuit"
	"interviewcoach/pkg/agent/middleware/resilience/retry"
	"interviewcoach/pkg/logx"
)

// Config holds the invoker's call settings.
type Config struct {
	Retry       retry.Config
	MaxTokens   int
	Temperature float32
}

// Invoker calls the primary provider and falls back to the secondary.
//
//nolint:govet // logical grouping preferred
type Invoker struct {
	primary   agent.Provider
	secondary *agent.Provider
	health    *ProviderHealth
	config    Config
	recorder  metrics.Recorder
	logger    *logx.Logger
	sleep     retry.Sleeper
	rand      func() float64
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(inv *Invoker) { inv.recorder = r }
}

// WithSleeper replaces the backoff sleeper (tests pass a no-op).
func WithSleeper(s retry.Sleeper) Option {
	return func(inv *Invoker) { inv.sleep = s }
}

// WithRand replaces the jitter source.
func WithRand(r func() float64) Option {
	return func(inv *Invoker) { inv.rand = r }
}

// New creates an Invoker. secondary may be nil. health must know both provider names;
// nil creates one with circuit defaults.
func New(cfg Config, primary agent.Provider, secondary *agent.Provider, health *ProviderHealth, opts ...Option) *Invoker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = llm.TemperatureDefault
	}
	if health == nil {
		secondaryName := ""
		if secondary != nil {
			secondaryName = secondary.Name
		}
		health = NewProviderHealth(primary.Name, secondaryName, circuit.DefaultConfig)
	}
	inv := &Invoker{
		primary:   primary,
		secondary: secondary,
		health:    health,
		config:    cfg,
		recorder:  metrics.Nop(),
		logger:    logx.NewLogger("invoker"),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Health exposes provider health for status reporting.
func (inv *Invoker) Health() *ProviderHealth {
	return inv.health
}

// Invoke runs req against the providers. It never panics and never returns an error:
// failures are reported as KindFailed with a Reason.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (result Result) {
	var admitted string // provider admitted by its breaker whose outcome is not recorded yet
	defer func() {
		if r := recover(); r != nil {
			inv.logger.Error("Provider panicked during %s: %v", req.Purpose, r)
			result = Failed(ReasonProviderUnavailable)
		}
		if admitted != "" {
			inv.health.release(admitted)
		}
		inv.recorder.ObserveResult(req.Purpose, string(result.Kind), string(result.Reason))
	}()

	logx.Debug(ctx, "invoker", "invoke purpose=%s prompt=%s", req.Purpose, llmerrors.SanitizePrompt(req.Prompt, 400))

	var (
		attempts int
		tried    int
		lastErr  error
	)

	primaryUp := inv.health.allow(inv.primary.Name)
	if primaryUp {
		admitted = inv.primary.Name
		res, n, err := inv.run(ctx, inv.primary, req)
		attempts += n
		tried++
		if err == nil {
			admitted = ""
			inv.health.record(inv.primary.Name, true)
			res.Attempts = attempts
			return res
		}
		lastErr = err
		if errors.Is(err, retry.ErrCallerGone) {
			inv.logger.Debug("Caller gone during %s after %d attempts; no further retries", req.Purpose, attempts)
			return inv.failure(tried, lastErr, attempts)
		}
		inv.logger.Warn("Primary provider %s failed %s after %d attempts: %v", inv.primary.Name, req.Purpose, n, err)
		if inv.secondary != nil {
			admitted = ""
			inv.health.record(inv.primary.Name, false)
		}
	}

	if inv.secondary == nil || ctx.Err() != nil {
		return inv.failure(tried, lastErr, attempts)
	}
	if !inv.health.allow(inv.secondary.Name) {
		return inv.failure(tried, lastErr, attempts)
	}
	admitted = inv.secondary.Name

	res, n, err := inv.run(ctx, *inv.secondary, req)
	attempts += n
	tried++
	if err != nil {
		inv.logger.Warn("Secondary provider %s failed %s after %d attempts: %v", inv.secondary.Name, req.Purpose, n, err)
		if !errors.Is(err, retry.ErrCallerGone) {
			admitted = ""
			inv.health.record(inv.secondary.Name, false)
		}
		return inv.failure(tried, err, attempts)
	}

	admitted = ""
	inv.health.record(inv.secondary.Name, true)
	inv.recorder.IncFailover(inv.primary.Name, inv.secondary.Name)
	if primaryUp {
		inv.logger.Info("Failed over from %s to %s for %s", inv.primary.Name, inv.secondary.Name, req.Purpose)
	}
	res.Attempts = attempts
	return res
}

// failure maps what happened into a failed Result.
func (inv *Invoker) failure(tried int, lastErr error, attempts int) Result {
	var res Result
	switch {
	case tried == 0:
		res = Failed(ReasonProviderUnavailable)
	case tried > 1:
		res = Failed(ReasonExhaustedRetries)
	case lastErr != nil && !llmerrors.IsTransport(lastErr):
		res = Failed(ReasonMalformedReply)
	default:
		res = Failed(ReasonProviderUnavailable)
	}
	res.Attempts = attempts
	return res
}

// run spends one provider's retry budget on req.
func (inv *Invoker) run(ctx context.Context, p agent.Provider, req Request) (Result, int, error) {
	cfg := inv.config.Retry
	if req.Policy != nil {
		cfg = *req.Policy
	}
	policy := retry.NewPolicy(cfg, shouldRetry)
	if inv.sleep != nil {
		policy.Sleep = inv.sleep
	}
	if inv.rand != nil {
		policy.Rand = inv.rand
	}

	var (
		result Result
		calls  int
	)
	err := policy.Do(ctx, func(attempt int) error {
		calls++
		res, err := inv.attempt(ctx, p, req)
		if err != nil {
			logx.Debug(ctx, "invoker", "%s attempt %d for %s failed: %v", p.Name, attempt+1, req.Purpose, err)
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return Result{}, calls, err
	}
	return result, calls, nil
}

// attempt makes one provider call. The call runs detached from the caller's
// cancellation; the timeout middleware bounds it.
func (inv *Invoker) attempt(ctx context.Context, p agent.Provider, req Request) (Result, error) {
	messages := make([]llm.CompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, llm.NewSystemMessage(req.System))
	}
	messages = append(messages, llm.NewUserMessage(req.Prompt))

	creq := llm.NewCompletionRequest(messages)
	creq.Purpose = req.Purpose
	creq.MaxTokens = inv.config.MaxTokens
	creq.Temperature = inv.config.Temperature
	if req.Shape.Kind == ShapeStructured {
		creq.JSONMode = true
		creq.Temperature = llm.TemperatureStructured
	}

	resp, err := p.Client.Complete(context.WithoutCancel(ctx), creq)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // provider errors are already classified
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, fmt.Sprintf("%s returned an empty reply", p.Name))
	}

	if req.Shape.Kind == ShapeStructured {
		data, err := Sanitize(text, req.Shape.Required)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindStructured, Data: data, Text: text, Provider: p.Name}, nil
	}
	return Result{Kind: KindText, Text: text, Provider: p.Name}, nil
}

// shouldRetry retries transport, auth, empty and malformed failures. Rejected prompts
// and cancellation are final.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt)
}
