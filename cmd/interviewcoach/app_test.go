package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewcoach/pkg/config"
)

func testConfig() config.Config {
	cfg := *config.Default()
	cfg.Database.DSN = ":memory:"
	return cfg
}

func TestBuildAppWithFallback(t *testing.T) {
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })
	config.SetDecryptedSecrets(map[string]string{config.EnvGoogleAPIKey: "g-key"})

	a, err := buildApp(testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	status := a.health.Status()
	assert.Equal(t, config.ProviderGoogle, status.Primary)
	assert.Equal(t, config.ProviderOllama, status.Secondary)
	assert.Equal(t, config.ProviderGoogle, status.Active)
	assert.Equal(t, config.ProviderOllama, a.secondaryName())

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildAppLocalOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Primary.Provider = config.ProviderOllama
	cfg.Primary.Model = config.DefaultSecondaryModel

	a, err := buildApp(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, "disabled", a.secondaryName(), "secondary equal to primary is dropped")
	assert.Empty(t, a.health.Status().Secondary)
}

func TestBuildAppMissingKey(t *testing.T) {
	config.SetDecryptedSecrets(nil)
	t.Setenv(config.EnvGoogleAPIKey, "")

	_, err := buildApp(testConfig(), prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestBuildAppBadDatabase(t *testing.T) {
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })
	config.SetDecryptedSecrets(map[string]string{config.EnvGoogleAPIKey: "g-key"})

	cfg := testConfig()
	cfg.Database.Driver = "mysql"
	_, err := buildApp(cfg, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })
	dir := t.TempDir()
	require.NoError(t, loadSecrets(dir), "no secrets file is fine")

	require.NoError(t, config.EncryptSecretsFile(dir, "pw", map[string]string{config.EnvOpenAIAPIKey: "sk"}))
	t.Setenv(config.EnvSecretsPassword, "pw")
	require.NoError(t, loadSecrets(dir))

	key, err := config.GetAPIKey(config.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk", key)
}
