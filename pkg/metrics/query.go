// Package metrics provides services for querying and aggregating metrics data.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ProviderUsage represents aggregated LLM usage for one provider.
type ProviderUsage struct {
	Provider         string `json:"provider"`
	Requests         int64  `json:"requests"`
	Failures         int64  `json:"failures"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// SessionStats summarizes interview session outcomes.
type SessionStats struct {
	Active    int64 `json:"active"`
	Abandoned int64 `json:"abandoned"`
	Saved     int64 `json:"saved"`
	Failovers int64 `json:"failovers"`
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	queryAPI  v1.API
	now       func() time.Time
	namespace string
}

// NewQueryService creates a new metrics query service. namespace must match the one the
// recorder registered its metrics under.
func NewQueryService(prometheusURL, namespace string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		queryAPI:  v1.NewAPI(client),
		now:       time.Now,
		namespace: namespace,
	}, nil
}

// metric returns the fully qualified metric name.
func (q *QueryService) metric(name string) string {
	if q.namespace == "" {
		return name
	}
	return q.namespace + "_" + name
}

// GetProviderUsage returns request and token totals grouped by provider, sorted by provider name.
func (q *QueryService) GetProviderUsage(ctx context.Context) ([]*ProviderUsage, error) {
	byProvider := make(map[string]*ProviderUsage)
	get := func(provider string) *ProviderUsage {
		u, ok := byProvider[provider]
		if !ok {
			u = &ProviderUsage{Provider: provider}
			byProvider[provider] = u
		}
		return u
	}

	queries := []struct {
		query string
		apply func(u *ProviderUsage, v int64)
	}{
		{`sum by (provider) (` + q.metric("llm_requests_total") + `)`, func(u *ProviderUsage, v int64) { u.Requests = v }},
		{`sum by (provider) (` + q.metric("llm_requests_total") + `{status="error"})`, func(u *ProviderUsage, v int64) { u.Failures = v }},
		{`sum by (provider) (` + q.metric("llm_tokens_total") + `{type="prompt"})`, func(u *ProviderUsage, v int64) { u.PromptTokens = v }},
		{`sum by (provider) (` + q.metric("llm_tokens_total") + `{type="completion"})`, func(u *ProviderUsage, v int64) { u.CompletionTokens = v }},
	}

	for _, item := range queries {
		vector, err := q.vector(ctx, item.query)
		if err != nil {
			return nil, err
		}
		for _, sample := range vector {
			provider := string(sample.Metric["provider"])
			if provider == "" {
				continue
			}
			item.apply(get(provider), int64(sample.Value))
		}
	}

	result := make([]*ProviderUsage, 0, len(byProvider))
	for _, u := range byProvider {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, nil
}

// GetSessionStats returns live and lifetime session counters.
func (q *QueryService) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	stats := &SessionStats{}
	targets := []struct {
		query string
		dest  *int64
	}{
		{`sum(` + q.metric("interview_sessions_active") + `)`, &stats.Active},
		{`sum(` + q.metric("interview_sessions_abandoned_total") + `)`, &stats.Abandoned},
		{`sum(` + q.metric("interview_finalized_total") + `{status="saved"})`, &stats.Saved},
		{`sum(` + q.metric("invoker_failovers_total") + `)`, &stats.Failovers},
	}
	for _, target := range targets {
		value, err := q.scalar(ctx, target.query)
		if err != nil {
			return nil, err
		}
		*target.dest = value
	}
	return stats, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", query, err)
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, nil
	}
	return vector, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (int64, error) {
	vector, err := q.vector(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, nil
	}
	return int64(vector[0].Value), nil
}
