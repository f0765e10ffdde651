// Package config provides configuration loading, validation, and credential lookup
// for the interview coach. Configuration is read once at process start.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"interviewcoach/pkg/logx"
)

// Provider names.
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Credential and host environment variables.
const (
	EnvGoogleAPIKey    = "GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// Override environment variables.
const (
	EnvPrimaryProvider  = "INTERVIEW_PRIMARY_PROVIDER"
	EnvPrimaryModel     = "INTERVIEW_PRIMARY_MODEL"
	EnvSecondaryEnabled = "INTERVIEW_SECONDARY_ENABLED"
	EnvSecondaryModel   = "INTERVIEW_SECONDARY_MODEL"
	EnvRetryCount       = "INTERVIEW_RETRY_COUNT"
	EnvRetryBase        = "INTERVIEW_RETRY_BASE"
	EnvAttemptTimeout   = "INTERVIEW_ATTEMPT_TIMEOUT"
	EnvRecoveryAfter    = "INTERVIEW_RECOVERY_AFTER"
	EnvIdleTimeout      = "INTERVIEW_IDLE_TIMEOUT"
	EnvDBDriver         = "INTERVIEW_DB_DRIVER"
	EnvDBDSN            = "INTERVIEW_DB_DSN"
	EnvListenAddr       = "INTERVIEW_LISTEN_ADDR"
	EnvPrometheusURL    = "INTERVIEW_PROMETHEUS_URL"
)

// Project config locations.
const (
	ProjectConfigDir      = ".interviewcoach"
	ProjectConfigFilename = "config.json"
	DotEnvFilename        = ".env"
)

// Defaults.
const (
	DefaultPrimaryModel     = "gemini-2.5-flash-lite"
	DefaultSecondaryModel   = "llama3.2"
	DefaultOllamaHost       = "http://localhost:11434"
	DefaultMaxRetries       = 3
	DefaultBaseBackoff      = time.Second
	DefaultMaxJitter        = time.Second
	DefaultAttemptTimeout   = 30 * time.Second
	DefaultRecoveryAfter    = 60 * time.Second
	DefaultIdleTimeout      = 30 * time.Minute
	DefaultTranscriptWindow = 3
	DefaultMaxTokens        = 2048
	DefaultTemperature      = 0.7
	DefaultListenAddr       = ":8080"
	DefaultDBDriver         = "sqlite"
	DefaultDBDSN            = "interviewcoach.db"
)

//nolint:gochecknoglobals // process-wide configuration singleton
var (
	config     *Config
	projectDir string
	logger     = logx.NewLogger("config")
	mu         sync.RWMutex
)

// ProviderPattern maps a model-name prefix to a provider.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns infers a provider from model names when none is configured.
//
//nolint:gochecknoglobals // static inference rules
var ProviderPatterns = []ProviderPattern{
	{"gemini", ProviderGoogle},
	{"gpt", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"claude", ProviderAnthropic},
	{"llama", ProviderOllama},
	{"phi", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// GetModelProvider returns the provider for a model name by prefix.
func GetModelProvider(modelName string) (string, error) {
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no provider pattern matches", modelName)
}

// ProviderConfig describes the primary (remote) model.
type ProviderConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// SecondaryConfig describes the local fallback model served by Ollama.
type SecondaryConfig struct {
	Model     string `json:"model"`
	Host      string `json:"host"`
	MaxTokens int    `json:"max_tokens"`
	Enabled   bool   `json:"enabled"`
}

// RetryConfig defines the per-provider retry budget.
type RetryConfig struct {
	MaxRetries  int           `json:"max_retries"`  // Retries after the first attempt
	BaseBackoff time.Duration `json:"base_backoff"` // base * 2^attempt
	MaxJitter   time.Duration `json:"max_jitter"`   // uniform(0, MaxJitter) added to each wait
}

// CircuitBreakerConfig defines when a provider is considered down and when it is tried again.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	RecoveryAfter    time.Duration `json:"recovery_after"`
}

// ResilienceConfig bundles invoker resilience settings.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry"`
	AttemptTimeout time.Duration        `json:"attempt_timeout"`
}

// SessionConfig defines interview session behavior.
type SessionConfig struct {
	IdleTimeout      time.Duration `json:"idle_timeout"`
	TranscriptWindow int           `json:"transcript_window"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	ListenAddr     string   `json:"listen_addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig selects the persistence driver ("sqlite" or "postgres").
type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// MetricsConfig defines metrics collection and the Prometheus server used for reports.
type MetricsConfig struct {
	Namespace     string `json:"namespace"`
	PrometheusURL string `json:"prometheus_url"`
	Enabled       bool   `json:"enabled"`
}

// Config is the complete process configuration.
type Config struct {
	Primary    ProviderConfig   `json:"primary"`
	Secondary  SecondaryConfig  `json:"secondary"`
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Metrics    MetricsConfig    `json:"metrics"`
	Resilience ResilienceConfig `json:"resilience"`
	Session    SessionConfig    `json:"session"`
}

// GetConfig returns the current global config BY VALUE.
// Must call LoadConfig first.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not initialized - call LoadConfig first")
	}
	return *config, nil
}

// GetProjectDir returns the directory passed to LoadConfig.
func GetProjectDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return projectDir
}

// SetConfigForTesting sets the global config. Pass nil to reset.
func SetConfigForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
	if cfg == nil {
		projectDir = ""
	}
}

// LoadConfig loads <projectDir>/.env, <projectDir>/.interviewcoach/config.json and
// environment overrides into the global singleton.
func LoadConfig(inputProjectDir string) error {
	cfg, err := Load(inputProjectDir)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	projectDir = inputProjectDir
	config = cfg
	logger.Info("Config loaded: primary=%s/%s secondary=%t", cfg.Primary.Provider, cfg.Primary.Model, cfg.Secondary.Enabled)
	return nil
}

// Load builds a validated Config without touching the global singleton.
// Precedence: defaults < config.json < environment (.env values do not override the real environment).
func Load(dir string) (*Config, error) {
	envPath := filepath.Join(dir, DotEnvFilename)
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	cfg := Default()

	configPath := filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename)
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("No config file at %s, using defaults", configPath)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns a config populated with defaults only.
func Default() *Config {
	cfg := &Config{
		Primary: ProviderConfig{
			Provider:    ProviderGoogle,
			Model:       DefaultPrimaryModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Secondary: SecondaryConfig{
			Enabled:   true,
			Model:     DefaultSecondaryModel,
			MaxTokens: DefaultMaxTokens,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 1,
				SuccessThreshold: 1,
				RecoveryAfter:    DefaultRecoveryAfter,
			},
			Retry: RetryConfig{
				MaxRetries:  DefaultMaxRetries,
				BaseBackoff: DefaultBaseBackoff,
				MaxJitter:   DefaultMaxJitter,
			},
			AttemptTimeout: DefaultAttemptTimeout,
		},
		Session: SessionConfig{
			IdleTimeout:      DefaultIdleTimeout,
			TranscriptWindow: DefaultTranscriptWindow,
		},
		Server:   ServerConfig{ListenAddr: DefaultListenAddr},
		Database: DatabaseConfig{Driver: DefaultDBDriver, DSN: DefaultDBDSN},
		Metrics:  MetricsConfig{Enabled: true, Namespace: "interviewcoach"},
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Primary.Provider == "" && cfg.Primary.Model != "" {
		if provider, err := GetModelProvider(cfg.Primary.Model); err == nil {
			cfg.Primary.Provider = provider
		}
	}
	if cfg.Primary.MaxTokens <= 0 {
		cfg.Primary.MaxTokens = DefaultMaxTokens
	}
	if cfg.Secondary.Model == "" {
		cfg.Secondary.Model = DefaultSecondaryModel
	}
	if cfg.Secondary.MaxTokens <= 0 {
		cfg.Secondary.MaxTokens = DefaultMaxTokens
	}
	if cfg.Secondary.Host == "" {
		cfg.Secondary.Host = os.Getenv(EnvOllamaHost)
		if cfg.Secondary.Host == "" {
			cfg.Secondary.Host = DefaultOllamaHost
		}
	}
	if cfg.Resilience.Retry.MaxRetries < 0 {
		cfg.Resilience.Retry.MaxRetries = 0
	}
	if cfg.Resilience.Retry.BaseBackoff <= 0 {
		cfg.Resilience.Retry.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.Resilience.Retry.MaxJitter < 0 {
		cfg.Resilience.Retry.MaxJitter = 0
	}
	if cfg.Resilience.AttemptTimeout <= 0 {
		cfg.Resilience.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 1
	}
	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}
	if cfg.Resilience.CircuitBreaker.RecoveryAfter <= 0 {
		cfg.Resilience.CircuitBreaker.RecoveryAfter = DefaultRecoveryAfter
	}
	if cfg.Session.IdleTimeout <= 0 {
		cfg.Session.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Session.TranscriptWindow <= 0 {
		cfg.Session.TranscriptWindow = DefaultTranscriptWindow
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDBDriver
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DefaultDBDriver {
		cfg.Database.DSN = DefaultDBDSN
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "interviewcoach"
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvPrimaryProvider); v != "" {
		cfg.Primary.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvPrimaryModel); v != "" {
		cfg.Primary.Model = v
	}
	if v := os.Getenv(EnvSecondaryEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSecondaryEnabled, err)
		}
		cfg.Secondary.Enabled = enabled
	}
	if v := os.Getenv(EnvSecondaryModel); v != "" {
		cfg.Secondary.Model = v
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		cfg.Secondary.Host = v
	}
	if v := os.Getenv(EnvRetryCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetryCount, err)
		}
		cfg.Resilience.Retry.MaxRetries = n
	}
	durations := []struct {
		env    string
		target *time.Duration
	}{
		{EnvRetryBase, &cfg.Resilience.Retry.BaseBackoff},
		{EnvAttemptTimeout, &cfg.Resilience.AttemptTimeout},
		{EnvRecoveryAfter, &cfg.Resilience.CircuitBreaker.RecoveryAfter},
		{EnvIdleTimeout, &cfg.Session.IdleTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.target = parsed
	}
	if v := os.Getenv(EnvDBDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv(EnvPrometheusURL); v != "" {
		cfg.Metrics.PrometheusURL = v
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Primary.Provider {
	case ProviderGoogle, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unknown primary provider %q", cfg.Primary.Provider)
	}
	if cfg.Primary.Model == "" {
		return fmt.Errorf("primary model cannot be empty")
	}
	if cfg.Primary.Temperature < 0 || cfg.Primary.Temperature > 2 {
		return fmt.Errorf("primary temperature must be between 0.0 and 2.0 (got %.2f)", cfg.Primary.Temperature)
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database driver must be 'sqlite' or 'postgres' (got %q)", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn cannot be empty for driver %s", cfg.Database.Driver)
	}
	return nil
}

// GetAPIKey returns the API key for a provider from the secrets file or the environment.
// For Ollama it returns the host URL.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOllama:
		host := os.Getenv(EnvOllamaHost)
		if host == "" {
			host = DefaultOllamaHost
		}
		return host, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("API key not found: %s not found in secrets file or environment variables", envVar)
}
