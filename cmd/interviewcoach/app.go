package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"interviewcoach/pkg/agent"
	"interviewcoach/pkg/agent/middleware/metrics"
	"interviewcoach/pkg/agent/middleware/resilience/circuit"
	"interviewcoach/pkg/agent/middleware/resilience/retry"
	"interviewcoach/pkg/config"
	"interviewcoach/pkg/finalize"
	"interviewcoach/pkg/invoker"
	"interviewcoach/pkg/persistence"
	"interviewcoach/pkg/session"
	"interviewcoach/pkg/webui"
)

// app holds the wired engine.
type app struct {
	store     *persistence.Store
	health    *invoker.ProviderHealth
	invoker   *invoker.Invoker
	sessions  *session.Manager
	server    *webui.Server
	secondary *agent.Provider
}

// buildApp wires providers, invoker, persistence, sessions and the HTTP server.
// A nil registry uses the Prometheus default registry.
func buildApp(cfg config.Config, registry *prometheus.Registry) (*app, error) {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if registry != nil {
		registerer, gatherer = registry, registry
	}

	recorder := metrics.Nop()
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(registerer, cfg.Metrics.Namespace)
	}

	factory := agent.NewLLMClientFactory(cfg, recorder)
	primary, err := factory.CreatePrimary()
	if err != nil {
		return nil, fmt.Errorf("failed to create primary provider: %w", err)
	}
	var secondary *agent.Provider
	if p, ok := factory.CreateSecondary(); ok && p.Name != primary.Name {
		secondary = &p
	}

	secondaryName := ""
	if secondary != nil {
		secondaryName = secondary.Name
	}
	health := invoker.NewProviderHealth(primary.Name, secondaryName, circuit.Config{
		FailureThreshold: cfg.Resilience.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.Resilience.CircuitBreaker.SuccessThreshold,
		Timeout:          cfg.Resilience.CircuitBreaker.RecoveryAfter,
	})

	inv := invoker.New(invoker.Config{
		Retry: retry.Config{
			MaxRetries: cfg.Resilience.Retry.MaxRetries,
			BaseDelay:  cfg.Resilience.Retry.BaseBackoff,
			MaxJitter:  cfg.Resilience.Retry.MaxJitter,
		},
		MaxTokens:   cfg.Primary.MaxTokens,
		Temperature: cfg.Primary.Temperature,
	}, primary, secondary, health, invoker.WithRecorder(recorder))

	store, err := persistence.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	final := finalize.New(inv, store, store, recorder)
	sessions := session.NewManager(session.Config{
		IdleTimeout:      cfg.Session.IdleTimeout,
		TranscriptWindow: cfg.Session.TranscriptWindow,
	}, inv, store, final, recorder)

	return &app{
		store:     store,
		health:    health,
		invoker:   inv,
		sessions:  sessions,
		server:    webui.NewServer(sessions, store, health, gatherer, cfg.Server.AllowedOrigins),
		secondary: secondary,
	}, nil
}

func (a *app) secondaryName() string {
	if a.secondary == nil {
		return "disabled"
	}
	return a.secondary.Name
}

// Close releases the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Printf("failed to close database: %v\n", err)
	}
}
