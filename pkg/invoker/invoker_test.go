package invoker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewcoach/pkg/agent"
	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
	"interviewcoach/pkg/agent/middleware/resilience/circuit"
	"interviewcoach/pkg/agent/middleware/resilience/retry"
	"interviewcoach/pkg/agent/middleware/resilience/timeout"
)

type step struct {
	err    error
	onCall func()
	reply  string
	block  bool
	panics bool
}

// scriptedClient plays steps in order and repeats the last one.
type scriptedClient struct {
	lastReq llm.CompletionRequest
	steps   []step
	mu      sync.Mutex
	calls   int
}

func (s *scriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	st := s.steps[idx]
	s.calls++
	s.lastReq = req
	s.mu.Unlock()

	if st.onCall != nil {
		st.onCall()
	}
	if st.panics {
		panic("provider exploded")
	}
	if st.block {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	}
	if st.err != nil {
		return llm.CompletionResponse{}, st.err
	}
	return llm.CompletionResponse{Content: st.reply}, nil
}

func (s *scriptedClient) GetModelName() string { return "scripted" }

func (s *scriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func transient() error {
	return llmerrors.NewError(llmerrors.ErrorTypeTransient, "connection reset")
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testConfig() Config {
	return Config{Retry: retry.Config{MaxRetries: 3, BaseDelay: time.Second, MaxJitter: time.Second}}
}

func newInvoker(primary, secondary *scriptedClient, health *ProviderHealth) *Invoker {
	var sec *agent.Provider
	if secondary != nil {
		sec = &agent.Provider{Name: "ollama", Client: secondary}
	}
	return New(testConfig(), agent.Provider{Name: "google", Client: primary}, sec, health, WithSleeper(noSleep))
}

func TestInvokeText(t *testing.T) {
	primary := &scriptedClient{steps: []step{{reply: "  What is a goroutine?  "}}}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(context.Background(), Request{Prompt: "ask", System: "persona", Purpose: "question", Shape: Text()})
	require.True(t, res.Ok())
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "What is a goroutine?", res.Text)
	assert.Equal(t, "google", res.Provider)
	assert.Equal(t, 1, res.Attempts)

	require.Len(t, primary.lastReq.Messages, 2)
	assert.Equal(t, llm.RoleSystem, primary.lastReq.Messages[0].Role)
	assert.False(t, primary.lastReq.JSONMode)
	assert.Equal(t, "question", primary.lastReq.Purpose)
}

func TestInvokeStructuredSanitizesFencedReply(t *testing.T) {
	primary := &scriptedClient{steps: []step{{reply: "Sure! Here is the analysis:\n```json\n{\"score\": 7, \"sentiment\": \"positive\"}\n```\nHope it helps."}}}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(context.Background(), Request{Prompt: "rate", Shape: Structured("score", "sentiment")})
	require.True(t, res.Ok())
	assert.Equal(t, KindStructured, res.Kind)
	assert.True(t, primary.lastReq.JSONMode)

	var out struct {
		Sentiment string `json:"sentiment"`
		Score     int    `json:"score"`
	}
	require.NoError(t, res.Decode(&out))
	assert.Equal(t, 7, out.Score)
	assert.Equal(t, "positive", out.Sentiment)
}

func TestInvokeRetriesMalformedReply(t *testing.T) {
	primary := &scriptedClient{steps: []step{{reply: "I cannot produce JSON today"}, {reply: `{"score": 5}`}}}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(context.Background(), Request{Shape: Structured("score")})
	require.True(t, res.Ok())
	assert.Equal(t, 2, res.Attempts)
}

func TestInvokeRetriesEmptyReply(t *testing.T) {
	primary := &scriptedClient{steps: []step{{reply: "   "}, {reply: "Describe a conflict you resolved."}}}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(context.Background(), Request{Shape: Text()})
	require.True(t, res.Ok())
	assert.Equal(t, 2, primary.Calls())
}

func TestPrimaryTimeoutSecondarySucceeds(t *testing.T) {
	primaryRaw := &scriptedClient{steps: []step{{block: true}}}
	secondary := &scriptedClient{steps: []step{{reply: "Walk me through your last project."}}}
	health := NewProviderHealth("google", "ollama", circuit.Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})

	primary := agent.Provider{Name: "google", Client: llm.Chain(primaryRaw, timeout.Middleware(10*time.Millisecond))}
	inv := New(testConfig(), primary, &agent.Provider{Name: "ollama", Client: secondary}, health, WithSleeper(noSleep))

	res := inv.Invoke(context.Background(), Request{Shape: Text(), Purpose: "question"})
	require.True(t, res.Ok(), "no Failed result when the secondary answers")
	assert.Equal(t, "ollama", res.Provider)
	assert.Equal(t, 4, primaryRaw.Calls(), "timeouts use the full retry budget")
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, "ollama", health.Active())
}

func TestBothProvidersExhausted(t *testing.T) {
	primary := &scriptedClient{steps: []step{{err: transient()}}}
	secondary := &scriptedClient{steps: []step{{reply: "not json at all"}}}
	inv := newInvoker(primary, secondary, nil)

	res := inv.Invoke(context.Background(), Request{Shape: Structured("score")})
	assert.False(t, res.Ok())
	assert.Equal(t, ReasonExhaustedRetries, res.Reason)
	assert.Equal(t, 8, res.Attempts)
	assert.Equal(t, 4, primary.Calls())
	assert.Equal(t, 4, secondary.Calls())
}

func TestSingleProviderFailureReasons(t *testing.T) {
	tests := []struct {
		name   string
		step   step
		reason Reason
	}{
		{name: "malformed", step: step{reply: "{broken"}, reason: ReasonMalformedReply},
		{name: "transport", step: step{err: transient()}, reason: ReasonProviderUnavailable},
		{name: "auth", step: step{err: llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")}, reason: ReasonProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &scriptedClient{steps: []step{tt.step}}
			inv := newInvoker(primary, nil, nil)

			res := inv.Invoke(context.Background(), Request{Shape: Structured("score")})
			assert.Equal(t, KindFailed, res.Kind)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, 4, primary.Calls())
		})
	}
}

func TestBadPromptIsNotRetried(t *testing.T) {
	primary := &scriptedClient{steps: []step{{err: llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "too long")}}}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(context.Background(), Request{Shape: Text()})
	assert.False(t, res.Ok())
	assert.Equal(t, 1, primary.Calls())
}

func TestCallerGoneStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := &scriptedClient{steps: []step{{err: transient(), onCall: cancel}}}
	secondary := &scriptedClient{steps: []step{{reply: "unused"}}}
	inv := newInvoker(primary, secondary, nil)

	res := inv.Invoke(ctx, Request{Shape: Text()})
	assert.False(t, res.Ok())
	assert.Equal(t, 1, primary.Calls(), "no retry for a caller that went away")
	assert.Equal(t, 0, secondary.Calls())
	assert.Equal(t, "google", inv.Health().Active(), "caller loss does not mark the provider down")
}

func TestInFlightCallSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seen error
	primary := &scriptedClient{steps: []step{{reply: "finished anyway"}}}
	primary.steps[0].onCall = func() {
		cancel()
		seen = ctx.Err()
	}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(ctx, Request{Shape: Text()})
	require.ErrorIs(t, seen, context.Canceled)
	assert.True(t, res.Ok())
	assert.Equal(t, "finished anyway", res.Text)
}

func TestPanicBecomesProviderUnavailable(t *testing.T) {
	primary := &scriptedClient{steps: []step{{panics: true}}}
	inv := newInvoker(primary, nil, nil)

	var res Result
	require.NotPanics(t, func() {
		res = inv.Invoke(context.Background(), Request{Shape: Text()})
	})
	assert.Equal(t, Failed(ReasonProviderUnavailable), res)
}

func TestRequestPolicyOverride(t *testing.T) {
	primary := &scriptedClient{steps: []step{{err: transient()}}}
	inv := newInvoker(primary, nil, nil)

	res := inv.Invoke(context.Background(), Request{Shape: Text(), Policy: &retry.Config{MaxRetries: 1}})
	assert.False(t, res.Ok())
	assert.Equal(t, 2, primary.Calls())
}

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestPrimaryRecoveryAfterCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	health := NewProviderHealth("google", "ollama", circuit.Config{
		Now: clock.Now, FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute,
	})

	primary := &scriptedClient{steps: []step{
		{err: transient()}, {err: transient()}, {err: transient()}, {err: transient()},
		{reply: "primary is back"},
	}}
	secondary := &scriptedClient{steps: []step{{reply: "local answer"}}}
	inv := newInvoker(primary, secondary, health)

	res := inv.Invoke(context.Background(), Request{Shape: Text()})
	require.True(t, res.Ok())
	assert.Equal(t, "ollama", res.Provider)
	assert.Equal(t, "ollama", health.Active())

	// Still cooling down: primary is skipped entirely.
	res = inv.Invoke(context.Background(), Request{Shape: Text()})
	assert.Equal(t, "ollama", res.Provider)
	assert.Equal(t, 4, primary.Calls())

	clock.Advance(61 * time.Second)
	assert.Equal(t, "google", health.Active())

	res = inv.Invoke(context.Background(), Request{Shape: Text()})
	require.True(t, res.Ok())
	assert.Equal(t, "google", res.Provider)
	assert.Equal(t, "primary is back", res.Text)
	assert.Equal(t, circuit.Closed.String(), health.Status().Providers["google"].State)
}

func TestDecodeOnTextResult(t *testing.T) {
	res := Result{Kind: KindText, Text: "plain"}
	var v map[string]any
	assert.True(t, errors.Is(res.Decode(&v), ErrNotStructured))
	assert.False(t, Failed(ReasonMalformedReply).Ok())
	assert.False(t, Result{}.Ok())
}

func TestAbandonedTrialIsReleased(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	health := NewProviderHealth("google", "ollama", circuit.Config{
		Now: clock.Now, FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute,
	})
	trialCtx, cancelTrial := context.WithCancel(context.Background())
	defer cancelTrial()

	primary := &scriptedClient{steps: []step{
		{err: transient()}, {err: transient()}, {err: transient()}, {err: transient()},
		{err: transient(), onCall: cancelTrial},
		{reply: "primary is back"},
	}}
	secondary := &scriptedClient{steps: []step{{reply: "local answer"}}}
	inv := newInvoker(primary, secondary, health)

	res := inv.Invoke(context.Background(), Request{Shape: Text()})
	require.Equal(t, "ollama", res.Provider)

	clock.Advance(61 * time.Second)
	res = inv.Invoke(trialCtx, Request{Shape: Text()})
	assert.False(t, res.Ok(), "the trial caller went away")
	assert.Equal(t, circuit.HalfOpen.String(), health.Status().Providers["google"].State)

	res = inv.Invoke(context.Background(), Request{Shape: Text()})
	require.True(t, res.Ok())
	assert.Equal(t, "google", res.Provider, "the next caller gets the trial")
	assert.Equal(t, circuit.Closed.String(), health.Status().Providers["google"].State)
}

func TestConcurrentInvokesFailOverTogether(t *testing.T) {
	health := NewProviderHealth("google", "ollama", circuit.Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour})
	primary := &scriptedClient{steps: []step{{err: transient()}}}
	secondary := &scriptedClient{steps: []step{{reply: `{"score": 7}`}}}
	inv := newInvoker(primary, secondary, health)

	const callers = 16
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = inv.Invoke(context.Background(), Request{Shape: Structured("score"), Purpose: "critique"})
		}()
	}
	wg.Wait()

	for i, res := range results {
		require.True(t, res.Ok(), "caller %d", i)
		assert.Equal(t, "ollama", res.Provider, "caller %d", i)
		assert.JSONEq(t, `{"score": 7}`, string(res.Data))
	}
	assert.Equal(t, "ollama", health.Active())
	assert.Equal(t, callers, secondary.Calls())
	assert.LessOrEqual(t, primary.Calls(), callers*4)

	// Once open, the primary is skipped entirely.
	before := primary.Calls()
	res := inv.Invoke(context.Background(), Request{Shape: Text()})
	require.True(t, res.Ok())
	assert.Equal(t, before, primary.Calls())
}
