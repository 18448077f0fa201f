package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("MAX_TOOL_ROUNDS", "")
	t.Setenv("ACCESS_TOKEN_EXPIRE", "")
	t.Setenv("MODE", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := FromEnv()
	assert.Equal(t, ModeDev, cfg.Mode)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 8, cfg.MaxToolRounds)
	assert.Equal(t, "text", cfg.LogFormat)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRE", "15")
	t.Setenv("REFRESH_TOKEN_EXPIRE", "48h")
	t.Setenv("FRONTEND_URL", "http://a.test, http://b.test ,")
	t.Setenv("WIKI_ENABLED", "no")
	t.Setenv("MAX_TOOL_ROUNDS", "3")

	cfg := FromEnv()
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.False(t, cfg.WikiEnabled)
	assert.Equal(t, 3, cfg.MaxToolRounds)
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()

	bad := cfg
	bad.DBDriver = "mysql"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Mode = ModeProd
	bad.JWTSecret = "change-me-in-production"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxToolRounds = 0
	assert.Error(t, bad.Validate())
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_MODEL=gpt-test\n"), 0o600))
	t.Setenv("OPENAI_MODEL", "")
	os.Unsetenv("OPENAI_MODEL")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.OpenAIModel)
	os.Unsetenv("OPENAI_MODEL")

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}
