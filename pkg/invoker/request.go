// Package invoker implements the resilient invocation layer between the interview
// generators and the LLM providers: retry with backoff, reply sanitization, and
// primary/secondary failover. Invoke never returns an error; failures come back as a
// Result of KindFailed.
package invoker

import (
	"encoding/json"
	"errors"
	"fmt"

	"interviewcoach/pkg/agent/middleware/resilience/retry"
)

// ShapeKind selects how a reply is unwrapped.
type ShapeKind int

const (
	// ShapeText returns the reply verbatim (trimmed).
	ShapeText ShapeKind = iota
	// ShapeStructured sanitizes the reply and parses a JSON object out of it.
	ShapeStructured
)

// ReplyShape is the output shape a generator expects.
type ReplyShape struct {
	Required []string // keys that must be present in a structured reply
	Kind     ShapeKind
}

// Text is the free-form reply shape.
func Text() ReplyShape {
	return ReplyShape{Kind: ShapeText}
}

// Structured is the JSON-object reply shape with the given required keys.
func Structured(required ...string) ReplyShape {
	return ReplyShape{Kind: ShapeStructured, Required: required}
}

// Request is one invocation. It is not modified by Invoke.
type Request struct {
	Policy  *retry.Config // overrides the invoker's retry budget when set
	Prompt  string
	System  string
	Purpose string // metrics label, e.g. "question", "critique", "report"
	Shape   ReplyShape
}

// Kind tags a Result.
type Kind string

// Result kinds.
const (
	KindText       Kind = "text"
	KindStructured Kind = "structured"
	KindFailed     Kind = "failed"
)

// Reason explains a failed Result.
type Reason string

// Failure reasons.
const (
	ReasonNone                Reason = ""
	ReasonProviderUnavailable Reason = "provider_unavailable"
	ReasonMalformedReply      Reason = "malformed_reply"
	ReasonExhaustedRetries    Reason = "exhausted_retries"
)

// ErrNotStructured is returned by Decode on a non-structured Result.
var ErrNotStructured = errors.New("result holds no structured value")

// Result is the outcome of an invocation.
type Result struct {
	Kind     Kind
	Text     string
	Data     json.RawMessage // sanitized JSON object span for KindStructured
	Reason   Reason
	Provider string // provider that produced the reply
	Attempts int    // provider calls made across all providers
}

// Failed builds a failed Result.
func Failed(reason Reason) Result {
	return Result{Kind: KindFailed, Reason: reason}
}

// Ok reports whether the invocation produced a usable reply.
func (r Result) Ok() bool {
	return r.Kind != KindFailed && r.Kind != ""
}

// Decode unmarshals a structured reply into v.
func (r Result) Decode(v any) error {
	if r.Kind != KindStructured {
		return ErrNotStructured
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode structured reply: %w", err)
	}
	return nil
}
