// Package metrics provides metrics recording for LLM calls, invoker outcomes and sessions.
package metrics

import (
	"time"
)

// Recorder defines the interface for recording engine metrics.
type Recorder interface {
	// ObserveRequest records one provider call.
	ObserveRequest(
		provider, model, purpose string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// ObserveResult records the outcome the invoker handed back to a generator.
	ObserveResult(purpose, kind, reason string)

	// IncFailover counts a switch from one provider to another.
	IncFailover(from, to string)

	// SessionStarted and SessionEnded track live sessions; reason is
	// "completed", "replaced", "disconnected" or "idle".
	SessionStarted()
	SessionEnded(reason string)

	// IncFinalized counts finalization outcomes ("saved" or an error kind).
	IncFinalized(status string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveRequest(_, _, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

func (n *NoopRecorder) ObserveResult(_, _, _ string) {}

func (n *NoopRecorder) IncFailover(_, _ string) {}

func (n *NoopRecorder) SessionStarted() {}

func (n *NoopRecorder) SessionEnded(_ string) {}

func (n *NoopRecorder) IncFinalized(_ string) {}
