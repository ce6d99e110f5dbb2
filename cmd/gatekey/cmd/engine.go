package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmcleod/gatekey/auth"
	"github.com/jmcleod/gatekey/config"
	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/localauth"
	"github.com/jmcleod/gatekey/prefs"
	"github.com/jmcleod/gatekey/storage"
	bboltstorage "github.com/jmcleod/gatekey/storage/bbolt"
	"github.com/jmcleod/gatekey/storage/memory"
	"github.com/jmcleod/gatekey/storage/postgres"
	"github.com/jmcleod/gatekey/vault"
)

// engine wires the configured storage backend, the local authenticator,
// the vault, preferences, and the session manager for one CLI invocation.
type engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	authn   *localauth.Authenticator
	vault   *vault.Vault
	prefs   *prefs.Prefs
	manager *auth.Manager
	close   func()
}

func openEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	kdfParams, err := util.Argon2idProfile(cfg.KDF.Profile)
	if err != nil {
		closeRepo()
		return nil, err
	}
	policy := localauth.Policy{
		MaxAttempts:    cfg.Policy.MaxAttempts,
		ResetOnLockout: cfg.Policy.ResetOnLockout,
		ResetOnSuccess: cfg.Policy.ResetOnSuccess,
		ReauthAfter:    cfg.ReauthAfter(),
	}
	authn := localauth.New(cfg.DeviceID, repo, newTerminalPresenter(),
		localauth.WithPolicy(policy),
		localauth.WithKDFParams(kdfParams),
		localauth.WithLogger(logger))

	v := vault.New(cfg.DeviceID, repo, authn, vault.WithLogger(logger))
	p := prefs.New(repo, prefs.WithVault(v))

	manager, err := newManager(cfg, v, logger)
	if err != nil {
		closeRepo()
		return nil, err
	}

	return &engine{
		cfg:     cfg,
		logger:  logger,
		authn:   authn,
		vault:   v,
		prefs:   p,
		manager: manager,
		close:   closeRepo,
	}, nil
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewRepository(), func() {}, nil
	case config.BackendBbolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		store, err := bboltstorage.NewRepositoryFromFile(cfg.Storage.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", cfg.Storage.Path, err)
		}
		return store, func() { store.Close() }, nil
	case config.BackendPostgres:
		store, err := postgres.NewRepositoryFromDSN(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newManager registers every provider with a configured endpoint. The
// offline provider is always available since it only needs the vault.
func newManager(cfg *config.Config, v *vault.Vault, logger *slog.Logger) (*auth.Manager, error) {
	transport, err := auth.NewHTTPTransport(30 * time.Second)
	if err != nil {
		return nil, err
	}

	var providers []auth.Provider
	if cfg.Providers.Basic.LoginURL != "" {
		providers = append(providers, auth.NewBasicProvider(auth.BasicConfig{
			LoginURL:        cfg.Providers.Basic.LoginURL,
			LogoutURL:       cfg.Providers.Basic.LogoutURL,
			RequiredCookies: cfg.Providers.Basic.RequiredCookies,
		}, transport))
	}
	if cfg.Providers.Federated.LoginURL != "" {
		providers = append(providers, auth.NewFederatedProvider(auth.FederatedConfig{
			LoginURL:      cfg.Providers.Federated.LoginURL,
			LogoutURL:     cfg.Providers.Federated.LogoutURL,
			TokenRelayURL: cfg.Providers.Federated.TokenRelayURL,
			CSRFTokenURL:  cfg.Providers.Federated.CSRFTokenURL,
		}, transport))
	}
	if cfg.Providers.OAuth.TokenURL != "" {
		providers = append(providers, auth.NewOAuthProvider(auth.OAuthConfig{
			TokenURL:       cfg.Providers.OAuth.TokenURL,
			ClientID:       cfg.Providers.OAuth.ClientID,
			Scopes:         cfg.Providers.OAuth.Scopes,
			RefreshExpired: cfg.Providers.OAuth.RefreshExpired,
		}, transport))
	}
	providers = append(providers, auth.NewOfflineProvider(auth.OfflineConfig{
		MaxRetries: cfg.Policy.OfflineMaxRetry,
	}, v))

	return auth.NewManager(providers,
		auth.WithPersistence(v, cfg.DeviceID),
		auth.WithLogger(logger)), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
