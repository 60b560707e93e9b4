package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SECRET_KEY", "s3cret")
	for _, key := range []string{"DATABASE_URL", "ACCESS_TOKEN_EXPIRE_MINUTES", "SALES_TARGET", "CORS_ORIGINS", "PORT", "IMPORT_SCHEDULE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "painel.sqlite", cfg.Database.URL)
	assert.Equal(t, 300*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "8000", cfg.HTTP.Port)
	assert.Empty(t, cfg.HTTP.CORSOrigins)
	assert.Zero(t, cfg.KPI.SalesTarget)
	assert.Empty(t, cfg.Import.Schedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("SALES_TARGET", "250000.5")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://bi.example.com,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 250000.5, cfg.KPI.SalesTarget)
	assert.Equal(t, []string{"http://localhost:3000", "https://bi.example.com"}, cfg.HTTP.CORSOrigins)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("SECRET_KEY", "")
	_, err := Load()
	assert.ErrorContains(t, err, "SECRET_KEY")

	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "ACCESS_TOKEN_EXPIRE_MINUTES")

	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("SALES_TARGET", "-1")
	_, err = Load()
	assert.ErrorContains(t, err, "SALES_TARGET")
}
