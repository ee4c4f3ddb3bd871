package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.DBMinPoolSize)
	assert.Equal(t, 10, cfg.DBMaxPoolSize)
	assert.Equal(t, time.Hour, cfg.CrawlInterval)
	assert.Equal(t, 20*time.Second, cfg.ValidateInterval)
	assert.Equal(t, 25*time.Second, cfg.ValidatorTimeout)
	assert.Equal(t, 3, cfg.MaxFailCount)
	assert.Equal(t, 300, cfg.ValidateBatchLimit)
	assert.Equal(t, 7, cfg.StaleDays)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, 1, cfg.AppWorker)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VALIDATE_INTERVAL", "45")
	t.Setenv("MAX_CONCURRENT_VALIDATORS", "8")
	t.Setenv("VALIDATOR_TEST_URL", "http://example.com/generate_204")
	t.Setenv("LOG_JSON", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.ValidateInterval)
	assert.Equal(t, 8, cfg.MaxConcurrentValidators)
	assert.Equal(t, "http://example.com/generate_204", cfg.ValidatorTestURL)
	assert.True(t, cfg.LogJSON)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	t.Setenv("WEIGHT_SUCCESS_RATE", "0.5")
	t.Setenv("WEIGHT_SPEED", "0.5")
	t.Setenv("WEIGHT_STABILITY", "0.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestLoadRejectsBadPoolSizes(t *testing.T) {
	t.Setenv("DB_MIN_POOL_SIZE", "10")
	t.Setenv("DB_MAX_POOL_SIZE", "2")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.AppPort)
}
