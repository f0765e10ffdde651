// Package timeout provides per-attempt timeout middleware for LLM clients.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interviewcoach/pkg/agent/llm"
	"interviewcoach/pkg/agent/llmerrors"
)

// Middleware bounds each Complete call by duration. Exceeding it surfaces as a
// transient llmerrors.Error so retry and failover treat it as a transport failure.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if duration <= 0 {
					return next.Complete(ctx, req)
				}
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()

				resp, err := next.Complete(timeoutCtx, req)
				if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
					return resp, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err,
						fmt.Sprintf("%s did not answer within %s", next.GetModelName(), duration))
				}
				return resp, err //nolint:wrapcheck // pass through unchanged
			},
			next.GetModelName,
		)
	}
}
