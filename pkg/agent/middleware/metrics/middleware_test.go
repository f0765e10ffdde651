package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
)

type fakeClient struct {
	reply string
	err   error
}

func (f fakeClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	return llm.CompletionResponse{Content: f.reply}, nil
}

func (f fakeClient) GetModelName() string { return "fake-model" }

func newRequest(purpose string) llm.CompletionRequest {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("Tell me about yourself.")})
	req.Purpose = purpose
	return req
}

func TestMiddlewareRecordsSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg, "")
	fixedUsage := func(_ llm.CompletionRequest, _ llm.CompletionResponse) (int, int) { return 11, 7 }

	client := llm.Chain(fakeClient{reply: "Great answer."}, Middleware("google", rec, fixedUsage, nil))
	resp, err := client.Complete(context.Background(), newRequest("question"))
	require.NoError(t, err)
	assert.Equal(t, "Great answer.", resp.Content)
	assert.Equal(t, "fake-model", client.GetModelName())

	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("google", "fake-model", "question", "success", "")), 0)
	assert.InDelta(t, 11, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("google", "fake-model", "prompt")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("google", "fake-model", "completion")), 0)
}

func TestMiddlewareRecordsErrorType(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg, "")

	failure := llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down")
	client := llm.Chain(fakeClient{err: failure}, Middleware("ollama", rec, nil, nil))
	_, err := client.Complete(context.Background(), newRequest("critique"))
	require.ErrorIs(t, err, failure)

	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("ollama", "fake-model", "critique", "error", "rate_limit")), 0)
}

func TestMiddlewareCanceled(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg, "")

	client := llm.Chain(fakeClient{err: context.Canceled}, Middleware("google", rec, nil, nil))
	_, err := client.Complete(context.Background(), newRequest("report"))
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("google", "fake-model", "report", "error", "canceled")), 0)
}

func TestSessionAndInvokerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg, "")

	rec.SessionStarted()
	rec.SessionStarted()
	rec.SessionStarted()
	rec.SessionEnded("completed")
	rec.SessionEnded("disconnected")
	rec.IncFailover("google", "ollama")
	rec.ObserveResult("question", "failed", "exhausted_retries")
	rec.IncFinalized("saved")

	assert.InDelta(t, 1, testutil.ToFloat64(rec.sessionsActive), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.sessionsAbandoned), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.failoversTotal.WithLabelValues("google", "ollama")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.resultsTotal.WithLabelValues("question", "failed", "exhausted_retries")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.finalizedTotal.WithLabelValues("saved")), 0)
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	assert.NotPanics(t, func() {
		rec.ObserveRequest("p", "m", "q", 1, 1, true, "", time.Millisecond)
		rec.ObserveResult("q", "text", "")
		rec.IncFailover("a", "b")
		rec.SessionStarted()
		rec.SessionEnded("idle")
		rec.IncFinalized("saved")
	})
}
