package invoker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"interviewcoach/pkg/agent/middleware/resilience/circuit"
)

func TestProviderHealthWithoutSecondary(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := NewProviderHealth("google", "", circuit.Config{Now: clock.Now, Timeout: time.Minute})

	h.record("google", false)
	assert.Equal(t, "google", h.Active(), "nothing to fall back to")
	assert.False(t, h.allow("google"))

	clock.Advance(time.Minute)
	assert.True(t, h.allow("google"), "half-open trial after cool-down")
	assert.Equal(t, circuit.HalfOpen.String(), h.Status().Providers["google"].State)
}

func TestProviderHealthStatus(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	h := NewProviderHealth("google", "ollama", circuit.Config{Now: clock.Now, Timeout: time.Minute})

	st := h.Status()
	assert.Equal(t, "google", st.Active)
	assert.Equal(t, "google", st.Primary)
	assert.Equal(t, "ollama", st.Secondary)
	assert.Len(t, st.Providers, 2)

	h.record("google", false)
	st = h.Status()
	assert.Equal(t, "ollama", st.Active)
	assert.Equal(t, circuit.Open.String(), st.Providers["google"].State)
	assert.Equal(t, time.Unix(100, 0), st.Providers["google"].OpenedAt)
	assert.Equal(t, 1, st.Providers["google"].Failures)

	assert.False(t, h.allow("watson"))
}
