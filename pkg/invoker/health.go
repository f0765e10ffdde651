package invoker

import (
	"time"

	"interviewcoach/pkg/agent/middleware/resilience/circuit"
)

// ProviderHealth tracks which providers are usable, one circuit breaker per provider.
// A provider is marked down after its retry budget is spent and tried again
// (half-open) once the breaker's cool-down elapses. Safe for concurrent use; no lock
// is held across a provider call.
type ProviderHealth struct {
	breakers  map[string]circuit.Breaker
	now       func() time.Time
	primary   string
	secondary string
	cooldown  time.Duration
}

// Status is a point-in-time view for the provider status endpoint.
type Status struct {
	Providers map[string]circuit.Snapshot `json:"providers"`
	Active    string                      `json:"active"`
	Primary   string                      `json:"primary"`
	Secondary string                      `json:"secondary,omitempty"`
}

// NewProviderHealth creates health tracking for primary and, when non-empty, secondary.
func NewProviderHealth(primary, secondary string, cfg circuit.Config) *ProviderHealth {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &ProviderHealth{
		breakers: map[string]circuit.Breaker{primary: circuit.New(cfg)},
		now:      cfg.Now,
		primary:  primary,
		cooldown: cfg.Timeout,
	}
	if secondary != "" && secondary != primary {
		h.secondary = secondary
		h.breakers[secondary] = circuit.New(cfg)
	}
	return h
}

// Active reports the provider the next call will start with.
func (h *ProviderHealth) Active() string {
	if h.secondary != "" && h.coolingDown(h.primary) {
		return h.secondary
	}
	return h.primary
}

// Status returns a snapshot of every breaker.
func (h *ProviderHealth) Status() Status {
	st := Status{
		Active:    h.Active(),
		Primary:   h.primary,
		Secondary: h.secondary,
		Providers: make(map[string]circuit.Snapshot, len(h.breakers)),
	}
	for name, b := range h.breakers {
		st.Providers[name] = b.Snapshot()
	}
	return st
}

// coolingDown reports whether name is open and its cool-down has not elapsed.
// Unlike Allow it never moves the breaker to half-open.
func (h *ProviderHealth) coolingDown(name string) bool {
	b, ok := h.breakers[name]
	if !ok {
		return true
	}
	snap := b.Snapshot()
	return b.GetState() == circuit.Open && h.now().Sub(snap.OpenedAt) < h.cooldown
}

// allow admits a call to name; an expired Open breaker lets one trial call through.
func (h *ProviderHealth) allow(name string) bool {
	b, ok := h.breakers[name]
	return ok && b.Allow()
}

// release returns an admitted trial call that ended without an outcome.
func (h *ProviderHealth) release(name string) {
	if b, ok := h.breakers[name]; ok {
		b.Release()
	}
}

// record feeds the outcome of a provider's full retry budget into its breaker.
func (h *ProviderHealth) record(name string, success bool) {
	if b, ok := h.breakers[name]; ok {
		b.Record(success)
	}
}
