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

	assert.Equal(t, ":8082", cfg.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.OCPITimeout)
	assert.Equal(t, 50, cfg.TokenPageSize)
	assert.Equal(t, 2*time.Minute, cfg.AuthCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.JobLockTTL)
	assert.Equal(t, "@every 15m", cfg.SendStatusesCron)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("OCPI_LISTEN_ADDR", ":9999")
	t.Setenv("OCPI_TOKEN_PAGE_SIZE", "100")
	t.Setenv("OCPI_AUTH_CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 100, cfg.TokenPageSize)
	assert.Equal(t, 30*time.Second, cfg.AuthCacheTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("OCPI_TOKEN_PAGE_SIZE", "5000")

	_, err := Load()
	assert.Error(t, err)
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("OCPI_TOKEN_PAGE_SIZE", "not-a-number")
	t.Setenv("OCPI_REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.TokenPageSize)
	assert.Equal(t, 15*time.Second, cfg.OCPITimeout)
}
