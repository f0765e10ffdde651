package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal     *prometheus.CounterVec
	tokensTotal       *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	resultsTotal      *prometheus.CounterVec
	failoversTotal    *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	sessionsEnded     *prometheus.CounterVec
	sessionsAbandoned prometheus.Counter
	finalizedTotal    *prometheus.CounterVec
}

// NewPrometheusRecorder registers the engine metrics on reg (prometheus.DefaultRegisterer in production).
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of LLM requests by provider, model, purpose and status",
			},
			[]string{"provider", "model", "purpose", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "model", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of LLM requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		resultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoker_results_total",
				Help:      "Invoker outcomes by purpose, kind and failure reason",
			},
			[]string{"purpose", "kind", "reason"},
		),
		failoversTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoker_failovers_total",
				Help:      "Number of times the invoker fell back to another provider",
			},
			[]string{"from", "to"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "interview_sessions_active",
				Help:      "Interview sessions currently in memory",
			},
		),
		sessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interview_sessions_ended_total",
				Help:      "Interview sessions removed from memory, by reason",
			},
			[]string{"reason"},
		),
		sessionsAbandoned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interview_sessions_abandoned_total",
				Help:      "In-progress sessions discarded without a report (disconnect or idle timeout)",
			},
		),
		finalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interview_finalized_total",
				Help:      "Finalization attempts by outcome",
			},
			[]string{"status"},
		),
	}
}

func (p *PrometheusRecorder) ObserveRequest(
	provider, model, purpose string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	p.requestsTotal.WithLabelValues(provider, model, purpose, status, errorType).Inc()
	if success {
		p.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveResult(purpose, kind, reason string) {
	p.resultsTotal.WithLabelValues(purpose, kind, reason).Inc()
}

func (p *PrometheusRecorder) IncFailover(from, to string) {
	p.failoversTotal.WithLabelValues(from, to).Inc()
}

func (p *PrometheusRecorder) SessionStarted() {
	p.sessionsActive.Inc()
}

func (p *PrometheusRecorder) SessionEnded(reason string) {
	p.sessionsActive.Dec()
	p.sessionsEnded.WithLabelValues(reason).Inc()
	if reason == "disconnected" || reason == "idle" {
		p.sessionsAbandoned.Inc()
	}
}

func (p *PrometheusRecorder) IncFinalized(status string) {
	p.finalizedTotal.WithLabelValues(status).Inc()
}
