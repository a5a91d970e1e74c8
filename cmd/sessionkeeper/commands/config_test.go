package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/sessionkeeper/internal/app"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoadConfig_Precedence(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "tokens.json")
	configPath := writeFile(t, "config.toml", `
log_level = "debug"

[dashboard]
base_url = "https://dash.example.com"
username = "ops@example.com"
password = "from-file"

[refresh]
interval_minutes = 30

[cache]
file = "`+filepath.ToSlash(cachePath)+`"
`)

	cfg, err := loadConfig(configPath, nil, environ(
		"SESSIONKEEPER_REFRESH__INTERVAL_MINUTES=45",
		"SESSIONKEEPER_DASHBOARD__PASSWORD=from-env",
		"UNRELATED=1",
	))
	require.NoError(t, err)

	assert.Equal(t, "https://dash.example.com", cfg.Dashboard.BaseURL)
	assert.Equal(t, "ops@example.com", cfg.Dashboard.Username)
	assert.Equal(t, "from-env", cfg.Dashboard.Password)
	assert.Equal(t, 45, cfg.Refresh.IntervalMinutes)
	assert.Equal(t, filepath.ToSlash(cachePath), cfg.Cache.File)
	assert.Equal(t, "DEBUG", cfg.LogLevel.String())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", nil, environ(
		"SESSIONKEEPER_CACHE__FILE="+filepath.Join(t.TempDir(), "tokens.json"),
	))
	require.NoError(t, err)

	assert.Equal(t, app.DefaultConfigDashboardBaseURL, cfg.Dashboard.BaseURL)
	assert.Equal(t, app.DefaultConfigRefreshInterval, cfg.Refresh.IntervalMinutes)
	require.NotNil(t, cfg.Refresh.KeepaliveMinutes)
	assert.Equal(t, app.DefaultConfigKeepaliveInterval, *cfg.Refresh.KeepaliveMinutes)
	assert.Equal(t, app.CacheStorageTypeFile, cfg.Cache.Storage)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
	assert.Equal(t, app.DefaultConfigSeedXSRFEnv, cfg.Seed.XSRFEnv)
}

func TestLoadConfig_KeepaliveDisabledFromEnv(t *testing.T) {
	cfg, err := loadConfig("", nil, environ(
		"SESSIONKEEPER_CACHE__FILE="+filepath.Join(t.TempDir(), "tokens.json"),
		"SESSIONKEEPER_REFRESH__KEEPALIVE_MINUTES=0",
	))
	require.NoError(t, err)

	require.NotNil(t, cfg.Refresh.KeepaliveMinutes)
	assert.Equal(t, 0, *cfg.Refresh.KeepaliveMinutes)
	assert.Zero(t, cfg.SessionConfig().KeepaliveInterval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  []string
	}{
		{"username without password", []string{"SESSIONKEEPER_DASHBOARD__USERNAME=ops@example.com"}},
		{"bad base url", []string{"SESSIONKEEPER_DASHBOARD__BASE_URL=not a url"}},
		{"unknown storage", []string{"SESSIONKEEPER_CACHE__STORAGE=s3"}},
		{"bad log format", []string{"SESSIONKEEPER_LOG_FORMAT=xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := append([]string{"SESSIONKEEPER_CACHE__FILE=" + filepath.Join(t.TempDir(), "tokens.json")}, tt.env...)
			_, err := loadConfig("", nil, environ(env...))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), nil, environ())
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("empty path is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(""))
	})

	t.Run("existing variables win", func(t *testing.T) {
		t.Setenv("SK_TEST_PRESET", "from-process")
		t.Cleanup(func() { _ = os.Unsetenv("SK_TEST_FRESH") })

		path := writeFile(t, ".env", "SK_TEST_PRESET=from-file\nSK_TEST_FRESH=loaded\n")
		require.NoError(t, loadEnvFile(path))

		assert.Equal(t, "from-process", os.Getenv("SK_TEST_PRESET"))
		assert.Equal(t, "loaded", os.Getenv("SK_TEST_FRESH"))
	})
}
