package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/sessionkeeper/internal/observability"
	"github.com/florianilch/sessionkeeper/internal/session"
	"github.com/florianilch/sessionkeeper/internal/tokensource"
	"github.com/florianilch/sessionkeeper/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CacheStorageType represents the storage backends supported for the session cache.
type CacheStorageType string

const (
	CacheStorageTypeFile    CacheStorageType = "file"
	CacheStorageTypeKeyring CacheStorageType = "keyring"
)

// keyringService names the keyring entry holding the cached bundle.
const keyringService = "sessionkeeper-session"

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigLogExport         = observability.ExportNone
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4100
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigDashboardBaseURL  = "https://dashboard.nationalpid.com"
	DefaultConfigRefreshInterval   = 90 // minutes
	DefaultConfigKeepaliveInterval = 20 // minutes
	DefaultConfigCacheStorage      = CacheStorageTypeFile
	DefaultConfigSeedXSRFEnv       = "DASHBOARD_XSRF_TOKEN"
	DefaultConfigSeedSessionEnv    = "DASHBOARD_SESSION"
	DefaultConfigSeedFormEnv       = "DASHBOARD_FORM_TOKEN"
)

// ServerConfig holds local proxy server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// DashboardConfig describes the dashboard and the account used to log in.
type DashboardConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`

	// Username and Password are optional; without them the session is static
	Username string `json:"username"`
	Password string `json:"password"`

	UsernameField     string `json:"username_field"`
	LoginPath         string `json:"login_path" validate:"omitempty,startswith=/"`
	RefererPath       string `json:"referer_path" validate:"omitempty,startswith=/"`
	XSRFCookieName    string `json:"xsrf_cookie"`
	SessionCookieName string `json:"session_cookie"`
}

// Credentials returns the configured login account.
func (d DashboardConfig) Credentials() tokensource.Credentials {
	return tokensource.Credentials{Username: d.Username, Password: d.Password}
}

// RefreshConfig holds the refresh and keepalive cadence, in minutes.
type RefreshConfig struct {
	IntervalMinutes int `json:"interval_minutes" validate:"gte=0"`

	// KeepaliveMinutes <= 0 disables keepalive; nil means the default
	KeepaliveMinutes *int   `json:"keepalive_minutes"`
	KeepalivePath    string `json:"keepalive_path" validate:"omitempty,startswith=/"`
}

// CacheConfig describes where refreshed bundles are persisted.
type CacheConfig struct {
	Storage CacheStorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	// File must be mode 0600; any other mode is ignored and forces a fresh login
	File        string `json:"file,omitempty"`         // For file storage: path to JSON cache
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewStore creates the cache Store from the configuration.
func (c *CacheConfig) NewStore() (tokenstore.Store, error) {
	switch c.Storage {
	case CacheStorageTypeFile:
		return tokenstore.NewFileStore(c.File)
	case CacheStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// SeedConfig names the environment variables holding a pre-supplied token
// triple, used when nothing is cached.
type SeedConfig struct {
	XSRFEnv    string `json:"xsrf_env"`
	SessionEnv string `json:"session_env"`
	FormEnv    string `json:"form_env"`
}

// NewStore creates the read-only seed Store.
func (s *SeedConfig) NewStore() (tokenstore.Store, error) {
	return tokenstore.NewEnvStore(s.XSRFEnv, s.SessionEnv, s.FormEnv)
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level           `json:"log_level"`
	LogFormat LogFormat            `json:"log_format" validate:"oneof=text json"`
	LogExport observability.Export `json:"log_export" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Server    ServerConfig         `json:"server"`
	Shutdown  ShutdownConfig       `json:"shutdown"`
	Dashboard DashboardConfig      `json:"dashboard"`
	Refresh   RefreshConfig        `json:"refresh"`
	Cache     CacheConfig          `json:"cache"`
	Seed      SeedConfig           `json:"seed"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExport == "" {
		c.LogExport = DefaultConfigLogExport
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Dashboard.BaseURL == "" {
		c.Dashboard.BaseURL = DefaultConfigDashboardBaseURL
	}
	if c.Dashboard.UsernameField == "" {
		c.Dashboard.UsernameField = tokensource.DefaultUsernameField
	}
	if c.Dashboard.LoginPath == "" {
		c.Dashboard.LoginPath = tokensource.DefaultLoginPath
	}
	if c.Dashboard.RefererPath == "" {
		c.Dashboard.RefererPath = session.DefaultRefererPath
	}
	if c.Dashboard.XSRFCookieName == "" {
		c.Dashboard.XSRFCookieName = tokensource.DefaultXSRFCookieName
	}
	if c.Dashboard.SessionCookieName == "" {
		c.Dashboard.SessionCookieName = tokensource.DefaultSessionCookieName
	}
	if c.Refresh.IntervalMinutes == 0 {
		c.Refresh.IntervalMinutes = DefaultConfigRefreshInterval
	}
	if c.Refresh.KeepaliveMinutes == nil {
		keepalive := DefaultConfigKeepaliveInterval
		c.Refresh.KeepaliveMinutes = &keepalive
	}
	if c.Refresh.KeepalivePath == "" {
		c.Refresh.KeepalivePath = tokensource.DefaultKeepalivePath
	}
	if c.Cache.Storage == "" {
		c.Cache.Storage = DefaultConfigCacheStorage
	}
	if c.Seed.XSRFEnv == "" {
		c.Seed.XSRFEnv = DefaultConfigSeedXSRFEnv
	}
	if c.Seed.SessionEnv == "" {
		c.Seed.SessionEnv = DefaultConfigSeedSessionEnv
	}
	if c.Seed.FormEnv == "" {
		c.Seed.FormEnv = DefaultConfigSeedFormEnv
	}

	// Dynamic defaults based on storage type
	switch c.Cache.Storage {
	case CacheStorageTypeFile:
		if c.Cache.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("cache.file required (auto-detect failed: %w)", err)
			}
			c.Cache.File = filepath.Join(configDir, "sessionkeeper", "tokens.json")
		}
	case CacheStorageTypeKeyring:
		if c.Cache.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("cache.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Cache.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// A half-configured account would silently disable refresh
	if (c.Dashboard.Username == "") != (c.Dashboard.Password == "") {
		return errors.New("dashboard.username and dashboard.password must be set together")
	}

	switch c.Cache.Storage {
	case CacheStorageTypeFile:
		if c.Cache.File == "" {
			return errors.New("file path required for file storage")
		}
	case CacheStorageTypeKeyring:
		if c.Cache.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// SessionConfig translates the configuration into a session.Config.
func (c *Config) SessionConfig() session.Config {
	keepalive := 0
	if c.Refresh.KeepaliveMinutes != nil {
		keepalive = *c.Refresh.KeepaliveMinutes
	}
	return session.Config{
		BaseURL:           c.Dashboard.BaseURL,
		Credentials:       c.Dashboard.Credentials(),
		RefreshInterval:   time.Duration(c.Refresh.IntervalMinutes) * time.Minute,
		KeepaliveInterval: time.Duration(keepalive) * time.Minute,
		LoginPath:         c.Dashboard.LoginPath,
		KeepalivePath:     c.Refresh.KeepalivePath,
		UsernameField:     c.Dashboard.UsernameField,
		RefererPath:       c.Dashboard.RefererPath,
		XSRFCookieName:    c.Dashboard.XSRFCookieName,
		SessionCookieName: c.Dashboard.SessionCookieName,
	}
}
