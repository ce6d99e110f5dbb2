// Package config loads the TOML configuration file and supplies defaults
// for everything the daemon and CLI need: the storage backend, the KDF
// profile, retry policy, session timeouts, and provider endpoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jmcleod/gatekey/internal/util"
)

// Backend names accepted by [StorageConfig].
const (
	BackendMemory   = "memory"
	BackendBbolt    = "bbolt"
	BackendPostgres = "postgres"
)

// Config is the complete gatekey configuration.
type Config struct {
	// DeviceID is the logical id the local authenticator and vault are
	// keyed by. Defaults to the hostname.
	DeviceID string `toml:"device_id"`

	Storage   StorageConfig   `toml:"storage"`
	KDF       KDFConfig       `toml:"kdf"`
	Policy    PolicyConfig    `toml:"policy"`
	Timeouts  TimeoutConfig   `toml:"timeouts"`
	Providers ProvidersConfig `toml:"providers"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	// Backend is one of "memory", "bbolt", "postgres".
	Backend string `toml:"backend"`
	// Path is the bbolt database file. Ignored by other backends.
	Path string `toml:"path"`
	// DSN is the postgres connection string. Ignored by other backends.
	DSN string `toml:"dsn"`
}

// KDFConfig selects the Argon2id cost profile for PIN derivation.
type KDFConfig struct {
	// Profile is one of "interactive", "moderate", "sensitive".
	Profile string `toml:"profile"`
}

// PolicyConfig mirrors localauth.Policy.
type PolicyConfig struct {
	MaxAttempts     int  `toml:"max_attempts"`
	ResetOnLockout  bool `toml:"reset_on_lockout"`
	ResetOnSuccess  bool `toml:"reset_on_success"`
	ReauthAfterSecs int  `toml:"reauth_after_secs"`
	OfflineMaxRetry int  `toml:"offline_max_retries"`
}

// TimeoutConfig carries the default session timing for new sessions.
type TimeoutConfig struct {
	SessionTimeoutSecs int `toml:"session_timeout_secs"`
	IdleTimeoutSecs    int `toml:"idle_timeout_secs"`
	AdvanceNoticeSecs  int `toml:"advance_notice_secs"`
}

// ProvidersConfig holds per-provider endpoints. A provider with an empty
// primary URL is not registered.
type ProvidersConfig struct {
	Basic     BasicConfig     `toml:"basic"`
	Federated FederatedConfig `toml:"federated"`
	OAuth     OAuthConfig     `toml:"oauth"`
}

// BasicConfig configures the HTTP basic-auth provider.
type BasicConfig struct {
	LoginURL        string   `toml:"login_url"`
	LogoutURL       string   `toml:"logout_url"`
	RequiredCookies []string `toml:"required_cookies"`
}

// FederatedConfig configures the federated token-relay provider.
type FederatedConfig struct {
	LoginURL      string `toml:"login_url"`
	LogoutURL     string `toml:"logout_url"`
	TokenRelayURL string `toml:"token_relay_url"`
	CSRFTokenURL  string `toml:"csrf_token_url"`
}

// OAuthConfig configures the OAuth password-grant provider.
type OAuthConfig struct {
	TokenURL       string   `toml:"token_url"`
	ClientID       string   `toml:"client_id"`
	Scopes         []string `toml:"scopes"`
	RefreshExpired bool     `toml:"refresh_expired"`
}

// ServerConfig configures the embedded HTTP server.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "gatekey"
	}
	return &Config{
		DeviceID: hostname,
		Storage: StorageConfig{
			Backend: BackendBbolt,
			Path:    defaultDBPath(),
		},
		KDF: KDFConfig{
			Profile: util.KDFProfileInteractive,
		},
		Policy: PolicyConfig{
			MaxAttempts:     3,
			ResetOnLockout:  true,
			ResetOnSuccess:  true,
			OfflineMaxRetry: 3,
		},
		Timeouts: TimeoutConfig{
			SessionTimeoutSecs: 3600,
			IdleTimeoutSecs:    900,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8419",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gatekey.db"
	}
	return filepath.Join(home, ".gatekey", "gatekey.db")
}

// Load reads a TOML file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration key %q in %s", undecoded[0], path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBbolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", BackendBbolt)
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if _, err := util.Argon2idProfile(c.KDF.Profile); err != nil {
		return err
	}
	if c.Policy.MaxAttempts < 1 {
		return fmt.Errorf("policy.max_attempts must be at least 1, got %d", c.Policy.MaxAttempts)
	}
	if c.Timeouts.SessionTimeoutSecs < 0 || c.Timeouts.IdleTimeoutSecs < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Timeouts.IdleTimeoutSecs > 0 && c.Timeouts.SessionTimeoutSecs > 0 &&
		c.Timeouts.IdleTimeoutSecs > c.Timeouts.SessionTimeoutSecs {
		return fmt.Errorf("timeouts.idle_timeout_secs must not exceed timeouts.session_timeout_secs")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// SessionTimeout returns the absolute session lifetime as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Timeouts.SessionTimeoutSecs) * time.Second
}

// IdleTimeout returns the idle window as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.IdleTimeoutSecs) * time.Second
}

// ReauthAfter returns the re-authentication bound as a duration.
func (c *Config) ReauthAfter() time.Duration {
	return time.Duration(c.Policy.ReauthAfterSecs) * time.Second
}
