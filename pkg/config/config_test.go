package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjectConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ProjectConfigDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename), []byte(body), 0644))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvOllamaHost, "")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ProviderGoogle, cfg.Primary.Provider)
	assert.Equal(t, DefaultPrimaryModel, cfg.Primary.Model)
	assert.True(t, cfg.Secondary.Enabled)
	assert.Equal(t, DefaultOllamaHost, cfg.Secondary.Host)
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Resilience.Retry.BaseBackoff)
	assert.Equal(t, 30*time.Second, cfg.Resilience.AttemptTimeout)
	assert.Equal(t, 60*time.Second, cfg.Resilience.CircuitBreaker.RecoveryAfter)
	assert.Equal(t, 3, cfg.Session.TranscriptWindow)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, `{
		"primary": {"provider": "", "model": "claude-sonnet-4-5"},
		"secondary": {"enabled": false},
		"database": {"driver": "postgres", "dsn": "postgres://localhost/interviews"}
	}`)

	t.Setenv(EnvRetryCount, "5")
	t.Setenv(EnvAttemptTimeout, "10s")
	t.Setenv(EnvSecondaryEnabled, "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Primary.Provider, "provider inferred from model prefix")
	assert.Equal(t, "claude-sonnet-4-5", cfg.Primary.Model)
	assert.True(t, cfg.Secondary.Enabled, "env overrides file")
	assert.Equal(t, 5, cfg.Resilience.Retry.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Resilience.AttemptTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFilename), []byte("INTERVIEW_LISTEN_ADDR=:9191\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv(EnvListenAddr) })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Server.ListenAddr)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		env    map[string]string
	}{
		{name: "unparseable file", config: `{not json`},
		{name: "unknown provider", config: `{"primary": {"provider": "watson", "model": "x"}}`},
		{name: "bad driver", config: `{"database": {"driver": "mysql", "dsn": "x"}}`},
		{name: "bad temperature", config: `{"primary": {"temperature": 3.5}}`},
		{name: "bad retry count", env: map[string]string{EnvRetryCount: "three"}},
		{name: "bad duration", env: map[string]string{EnvIdleTimeout: "forever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.config != "" {
				writeProjectConfig(t, dir, tt.config)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestGlobalConfig(t *testing.T) {
	t.Cleanup(func() { SetConfigForTesting(nil) })

	SetConfigForTesting(nil)
	_, err := GetConfig()
	require.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, LoadConfig(dir))
	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, dir, GetProjectDir())

	cfg.Primary.Model = "mutated"
	again, err := GetConfig()
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Primary.Model, "GetConfig returns a copy")
}

func TestGetModelProvider(t *testing.T) {
	tests := map[string]string{
		"gemini-2.5-flash-lite": ProviderGoogle,
		"gpt-4o":                ProviderOpenAI,
		"claude-sonnet-4-5":     ProviderAnthropic,
		"llama3.2":              ProviderOllama,
	}
	for model, want := range tests {
		got, err := GetModelProvider(model)
		require.NoError(t, err)
		assert.Equal(t, want, got, model)
	}

	_, err := GetModelProvider("unknown-model")
	assert.Error(t, err)
}

func TestGetAPIKey(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	t.Setenv(EnvGoogleAPIKey, "env-key")
	key, err := GetAPIKey(ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)

	SetDecryptedSecrets(map[string]string{EnvGoogleAPIKey: "file-key"})
	key, err = GetAPIKey(ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "file-key", key, "secrets file takes precedence")

	t.Setenv(EnvOpenAIAPIKey, "")
	_, err = GetAPIKey(ProviderOpenAI)
	assert.Error(t, err)

	t.Setenv(EnvOllamaHost, "")
	host, err := GetAPIKey(ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaHost, host)

	_, err = GetAPIKey("watson")
	assert.Error(t, err)
}
