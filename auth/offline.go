package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmcleod/gatekey/vault"
)

// OfflineConfig configures the offline provider.
type OfflineConfig struct {
	// MaxRetries bounds consecutive failed offline logins; reaching it
	// purges the stored credentials.
	MaxRetries int
}

// OfflineProvider authenticates against credentials cached in the vault,
// maintaining a persisted retry counter alongside them.
type OfflineProvider struct {
	cfg      OfflineConfig
	vault    *vault.Vault
	canceled atomic.Bool
}

var _ Provider = (*OfflineProvider)(nil)

// NewOfflineProvider creates the offline provider over the given vault.
func NewOfflineProvider(cfg OfflineConfig, v *vault.Vault) *OfflineProvider {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &OfflineProvider{cfg: cfg, vault: v}
}

func (p *OfflineProvider) Type() ProviderType {
	return ProviderOffline
}

func (p *OfflineProvider) InputRequired(s *Session) bool {
	return s.Password == nil
}

func (p *OfflineProvider) Cancel() {
	p.canceled.Store(true)
}

// credentialKey resolves the vault key for this session's cached
// credentials.
func credentialKey(s *Session) string {
	if s.OfflineCredentialKey != "" {
		return s.OfflineCredentialKey
	}
	return s.StorageKey
}

func (p *OfflineProvider) Authenticate(ctx context.Context, req *Request, s *Session) (*Delta, error) {
	p.canceled.Store(false)
	key := credentialKey(s)
	if key == "" {
		return nil, fmt.Errorf("offline provider requires a credential key")
	}

	stored, err := p.vault.GetCredential(key)
	if errors.Is(err, vault.ErrNotFound) {
		return p.rememberCredentials(key, s)
	}
	if err != nil {
		return nil, fmt.Errorf("loading offline credentials: %w", err)
	}
	defer stored.Wipe()

	if s.Password == nil {
		return &Delta{Status: statusOf(StatusAwaitingOfflineCreds)},
			fmt.Errorf("%w: password", ErrInputRequired)
	}
	if p.canceled.Load() {
		return &Delta{Status: statusOf(StatusCanceled)}, nil
	}

	usernameOK := s.Input[InputUsername] == "" || s.Input[InputUsername] == stored.Username
	var passwordOK bool
	if err := s.Password.Use(func(pw []byte) error {
		passwordOK = subtle.ConstantTimeCompare(stored.Password, pw) == 1
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if usernameOK && passwordOK {
		if err := p.vault.SetRetryCount(key, 0); err != nil {
			return nil, fmt.Errorf("resetting retry count: %w", err)
		}
		return &Delta{
			Status:               statusOf(StatusSuccess),
			Username:             stored.Username,
			IdentityDomain:       stored.TenantID,
			OfflineCredentialKey: key,
		}, nil
	}
	return p.recordFailure(key)
}

// rememberCredentials stores the supplied credentials as the new cached
// set. This is the remembered-credentials path for the first offline login
// after an online one.
func (p *OfflineProvider) rememberCredentials(key string, s *Session) (*Delta, error) {
	if s.Input[InputUsername] == "" || s.Password == nil {
		return &Delta{Status: statusOf(StatusAwaitingOfflineCreds)},
			fmt.Errorf("%w: no cached credentials for %q", ErrInputRequired, key)
	}
	pw, err := s.Password.Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	cred := &vault.Credential{
		Username: s.Input[InputUsername],
		Password: pw,
		TenantID: s.Input[InputIdentityDomain],
	}
	defer cred.Wipe()
	if err := p.vault.PutCredential(key, cred); err != nil {
		return nil, fmt.Errorf("storing offline credentials: %w", err)
	}
	if err := p.vault.SetRetryCount(key, 0); err != nil {
		return nil, fmt.Errorf("resetting retry count: %w", err)
	}
	return &Delta{
		Status:               statusOf(StatusSuccess),
		Username:             cred.Username,
		IdentityDomain:       cred.TenantID,
		OfflineCredentialKey: key,
	}, nil
}

// recordFailure advances the persisted retry counter and purges the
// credentials when the budget is exhausted.
func (p *OfflineProvider) recordFailure(key string) (*Delta, error) {
	n, err := p.vault.RetryCount(key)
	if err != nil {
		return nil, fmt.Errorf("loading retry count: %w", err)
	}
	n++
	if n >= p.cfg.MaxRetries {
		if err := p.purge(key); err != nil {
			return nil, err
		}
		err := fmt.Errorf("%w after %d attempts", ErrRetryLimitExceeded, n)
		return &Delta{Status: statusOf(StatusFailure), Err: err}, err
	}
	if err := p.vault.SetRetryCount(key, n); err != nil {
		return nil, fmt.Errorf("persisting retry count: %w", err)
	}
	err = fmt.Errorf("%w: offline credential mismatch (attempt %d of %d)", ErrAuthenticationFailed, n, p.cfg.MaxRetries)
	return &Delta{Status: statusOf(StatusFailure), Err: err}, err
}

func (p *OfflineProvider) purge(key string) error {
	if err := p.vault.Delete(key, vault.KindCredential); err != nil && !errors.Is(err, vault.ErrNotFound) {
		return fmt.Errorf("purging offline credentials: %w", err)
	}
	if err := p.vault.Delete(key, vault.KindRetryCount); err != nil && !errors.Is(err, vault.ErrNotFound) {
		return fmt.Errorf("purging retry count: %w", err)
	}
	return nil
}

func (p *OfflineProvider) IsValid(ctx context.Context, s *Session, online bool) bool {
	if !s.Authenticated() {
		return false
	}
	now := time.Now()
	if s.SessionExpired(now) || s.IdleTimedOut(now) {
		return false
	}
	key := credentialKey(s)
	if key == "" {
		return false
	}
	stored, err := p.vault.GetCredential(key)
	if err != nil {
		return false
	}
	stored.Wipe()
	return true
}

func (p *OfflineProvider) Logout(ctx context.Context, s *Session, flags LogoutFlags) (*Delta, error) {
	if flags.DeleteCredentials {
		if err := p.purge(credentialKey(s)); err != nil {
			return &Delta{Err: err}, nil
		}
	}
	return &Delta{
		DeleteCookies: flags.DeleteCookies,
		DeleteTokens:  flags.DeleteTokens,
	}, nil
}
