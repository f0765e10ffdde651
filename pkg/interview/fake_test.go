package interview

import (
	"context"
	"encoding/json"
	"sync"

	"interviewcoach/pkg/invoker"
)

// fakeInvoker answers each purpose with a fixed result and records requests.
type fakeInvoker struct {
	byPurpose map[string]invoker.Result
	requests  []invoker.Request
	mu        sync.Mutex
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{byPurpose: map[string]invoker.Result{}}
}

func (f *fakeInvoker) Invoke(_ context.Context, req invoker.Request) invoker.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	res, ok := f.byPurpose[req.Purpose]
	if !ok {
		return invoker.Failed(invoker.ReasonProviderUnavailable)
	}
	return res
}

func (f *fakeInvoker) text(purpose, text string) {
	f.byPurpose[purpose] = invoker.Result{Kind: invoker.KindText, Text: text, Provider: "fake"}
}

func (f *fakeInvoker) structured(purpose, body string) {
	f.byPurpose[purpose] = invoker.Result{Kind: invoker.KindStructured, Data: json.RawMessage(body), Provider: "fake"}
}

func (f *fakeInvoker) last() invoker.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}
