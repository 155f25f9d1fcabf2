package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "WOA_DOWNLOAD_DIR", "WOA_BASE_URL", "WOA_OFFLINE", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "woa.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "9000"
download_dir = "/data/woa"
offline = true
log_level = "debug"
cors_allowed_origins = ["https://a.example"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/data/woa", cfg.DownloadDir)
	assert.True(t, cfg.Offline)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORSAllowedOrigins)

	t.Setenv("PORT", "3000")
	t.Setenv("WOA_OFFLINE", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.False(t, cfg.Offline)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte(`prot = "1"`), 0o644))
	_, err = Load(unknown)
	assert.ErrorContains(t, err, "unknown config keys")

	t.Setenv("WOA_OFFLINE", "maybe")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("WOA_OFFLINE", "")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load("")
	assert.ErrorContains(t, err, "log level")
}

func TestRead_DefersValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := Read("")
	require.NoError(t, err)
	assert.Equal(t, "loud", cfg.LogLevel)
	assert.Error(t, cfg.Validate())

	cfg.LogLevel = "debug"
	assert.NoError(t, cfg.Validate())
}
