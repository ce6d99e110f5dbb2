package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmcleod/gatekey/secret"
	"github.com/jmcleod/gatekey/vault"
)

// Manager composes providers into an ordered chain and orchestrates
// session validity, logout, and persistence. All session transitions run
// under the manager's lock; timer callbacks only flip advisory flags and
// destructive cleanup happens exclusively in the IsValid/Logout path here.
type Manager struct {
	mu sync.Mutex

	providers []Provider
	byType    map[ProviderType]Provider
	// logoutNext maps a provider to the one processed after it during a
	// logout walk, i.e. the chain in reverse registration order, keyed by
	// the last processed provider.
	logoutNext map[ProviderType]Provider

	vault      *vault.Vault
	defaultKey string
	logger     *slog.Logger
	timeoutCB  TimeoutCallbacks

	timeouts map[string]*TimeoutManager
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithPersistence enables auth-context persistence through the vault.
// defaultKey namespaces sessions that carry no storage key of their own.
func WithPersistence(v *vault.Vault, defaultKey string) ManagerOption {
	return func(m *Manager) {
		m.vault = v
		m.defaultKey = defaultKey
	}
}

// WithTimeoutCallbacks sets the advisory callbacks wired into every
// session's timeout manager.
func WithTimeoutCallbacks(cb TimeoutCallbacks) ManagerOption {
	return func(m *Manager) {
		m.timeoutCB = cb
	}
}

// NewManager creates a Manager with the given providers in registration
// order.
func NewManager(providers []Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		byType:     make(map[ProviderType]Provider),
		logoutNext: make(map[ProviderType]Provider),
		timeouts:   make(map[string]*TimeoutManager),
	}
	for _, p := range providers {
		m.register(p)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return m
}

func (m *Manager) register(p Provider) {
	if prev := len(m.providers); prev > 0 {
		m.logoutNext[p.Type()] = m.providers[prev-1]
	}
	m.providers = append(m.providers, p)
	m.byType[p.Type()] = p
}

// CreateSession builds an in-progress session seeded from the request.
func (m *Manager) CreateSession(req *Request) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byType[req.Provider]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, req.Provider)
	}
	return m.createSessionLocked(req), nil
}

func (m *Manager) createSessionLocked(req *Request) *Session {
	s := NewSession(req.Provider, req.Mode, req.Mechanism)
	s.Password = req.Password
	for k, v := range req.Input {
		if k == InputPassword {
			// Boundary callers may still supply the password through the
			// bag; it moves into the owned buffer and never rests as a
			// session string.
			if s.Password == nil && v != "" {
				s.Password = secret.FromString(v)
			}
			continue
		}
		s.Input[k] = v
	}
	s.StorageKey = req.StorageKey
	return s
}

// Login runs the full authentication flow: cached-session shortcut unless
// the request forces authentication, then the provider exchange with its
// delta applied atomically, expiry stamping, persistence, and timeout
// scheduling. The transient input bag is cleared whether the exchange
// succeeds or fails.
func (m *Manager) Login(ctx context.Context, req *Request) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byType[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, req.Provider)
	}

	if !req.ForceAuthentication && m.vault != nil {
		if cached := m.loadCachedLocked(ctx, p, req); cached != nil {
			req.Password.Destroy()
			m.logger.Info("reusing cached session", "provider", p.Type(), "username", cached.Username)
			m.startTimeoutsLocked(cached, req)
			return cached, nil
		}
	}

	s := m.createSessionLocked(req)
	delta, err := p.Authenticate(ctx, req, s)
	delta.apply(s)
	s.ClearFields()
	if err != nil {
		m.logger.Warn("authentication failed", "provider", p.Type(), "error", err)
		return s, fmt.Errorf("provider %s: %w", p.Type(), err)
	}
	if s.Status != StatusSuccess {
		return s, nil
	}

	m.stampExpiries(s, req)
	if m.vault != nil {
		if err := m.persistLocked(s); err != nil {
			return s, err
		}
	}
	m.startTimeoutsLocked(s, req)
	m.logger.Info("session established", "provider", p.Type(), "username", s.Username, "session", s.ID)
	return s, nil
}

func (m *Manager) stampExpiries(s *Session, req *Request) {
	now := time.Now()
	if req.SessionTimeout > 0 {
		s.SessionExpiry = now.Add(req.SessionTimeout)
		s.SessionExpInSecs = int64(req.SessionTimeout / time.Second)
	}
	if req.IdleTimeout > 0 {
		s.IdleTimeExpiry = now.Add(req.IdleTimeout)
		s.IdleTimeExpInSecs = int64(req.IdleTimeout / time.Second)
	}
	if req.LogoutTimeout > 0 {
		s.LogoutTimeout = int64(req.LogoutTimeout / time.Second)
	}
}

// loadCachedLocked returns the persisted session for the request's storage
// key if it exists and is still valid for the requested provider.
func (m *Manager) loadCachedLocked(ctx context.Context, p Provider, req *Request) *Session {
	key := req.StorageKey
	if key == "" {
		key = m.defaultKey
	}
	data, err := m.vault.Get(key, vault.KindAuthContext)
	if err != nil {
		return nil
	}
	cached, err := UnmarshalSession(data)
	if err != nil {
		// Malformed persisted state fails closed.
		m.logger.Warn("discarding malformed auth context", "key", key, "error", err)
		return nil
	}
	cached.StorageKey = req.StorageKey
	if cached.Provider != p.Type() || !p.IsValid(ctx, cached, false) {
		return nil
	}
	return cached
}

func (m *Manager) persistLocked(s *Session) error {
	data, err := MarshalSession(s)
	if err != nil {
		return fmt.Errorf("encoding auth context: %w", err)
	}
	key := s.StorageKeyOr(m.defaultKey)
	if err := m.vault.Put(key, vault.KindAuthContext, data); err != nil {
		return fmt.Errorf("persisting auth context: %w", err)
	}
	return nil
}

func (m *Manager) startTimeoutsLocked(s *Session, req *Request) {
	if req.IdleTimeout <= 0 && req.SessionTimeout <= 0 {
		return
	}
	if tm, ok := m.timeouts[s.ID]; ok {
		tm.Stop()
	}
	cb := m.timeoutCB
	userIdle := cb.OnIdleExpired
	cb.OnIdleExpired = func() {
		// Advisory only: flag the session under the manager lock; cleanup
		// waits for the next IsValid call.
		m.mu.Lock()
		s.IdleExpired = true
		m.mu.Unlock()
		if userIdle != nil {
			userIdle()
		}
	}
	tm := NewTimeoutManager(TimeoutConfig{
		SessionTimeout: req.SessionTimeout,
		IdleTimeout:    req.IdleTimeout,
		Valid: func() bool {
			return s.Authenticated() && !s.SessionExpired(time.Now())
		},
	}, cb)
	tm.Start()
	m.timeouts[s.ID] = tm
}

// ResetTimer records proven activity: it advances the session's idle
// expiry and re-arms the idle countdown. It fails when the session is no
// longer valid and never extends the absolute expiry.
func (m *Manager) ResetTimer(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tm, ok := m.timeouts[s.ID]
	if !ok {
		return ErrSessionInvalid
	}
	if err := tm.ResetTimer(); err != nil {
		return err
	}
	if s.IdleTimeExpInSecs > 0 {
		s.AdvanceIdleExpiry(time.Now().Add(time.Duration(s.IdleTimeExpInSecs) * time.Second))
	}
	return nil
}

// IsValid walks the active chain in registration order; the first
// provider reporting invalid short-circuits, triggers the deletion policy,
// and tears the session down. A successful check counts as proven
// activity and refreshes the idle expiry.
func (m *Manager) IsValid(ctx context.Context, s *Session, online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s == nil || s.AuthContextDeleted {
		return false
	}

	var failed Provider
	for _, p := range m.providers {
		if !m.consults(p, s) {
			continue
		}
		if !p.IsValid(ctx, s, online) {
			failed = p
			break
		}
	}
	if failed == nil {
		if s.IdleTimeExpInSecs > 0 {
			s.AdvanceIdleExpiry(time.Now().Add(time.Duration(s.IdleTimeExpInSecs) * time.Second))
			if tm, ok := m.timeouts[s.ID]; ok {
				_ = tm.ResetTimer()
			}
		}
		return true
	}

	flags := m.deletionFlags(failed, s)
	if err := m.logoutLocked(ctx, s, flags); err != nil {
		m.logger.Error("cleanup after validity failure", "session", s.ID, "error", err)
	}
	return false
}

// consults reports whether p participates in the validity walk for s:
// the session's own provider always does, and the offline provider joins
// once the session has credentials cached for it.
func (m *Manager) consults(p Provider, s *Session) bool {
	if p.Type() == s.Provider {
		return true
	}
	return p.Type() == ProviderOffline && s.OfflineCredentialKey != ""
}

// deletionFlags derives what a validity-failure logout should remove. A
// password-provider session timeout purges stored credentials entirely; an
// idle timeout with cached credentials keeps tokens and cookies so a
// silent re-authentication can reuse them.
func (m *Manager) deletionFlags(failed Provider, s *Session) LogoutFlags {
	now := time.Now()
	if failed.Type() == ProviderBasic && (s.SessionExpired(now) || s.TimedOut) {
		return LogoutFlags{DeleteCredentials: true, DeleteCookies: true, DeleteTokens: true}
	}
	if s.IdleTimedOut(now) && m.hasCachedCredentials(s) {
		return LogoutFlags{}
	}
	return LogoutFlags{DeleteCookies: true, DeleteTokens: true}
}

// credentialKeyFor resolves where this session's cached credentials live.
func (m *Manager) credentialKeyFor(s *Session) string {
	if s.OfflineCredentialKey != "" {
		return s.OfflineCredentialKey
	}
	return s.StorageKeyOr(m.defaultKey)
}

func (m *Manager) hasCachedCredentials(s *Session) bool {
	if m.vault == nil {
		return false
	}
	stored, err := m.vault.GetCredential(m.credentialKeyFor(s))
	if err != nil {
		return false
	}
	stored.Wipe()
	return true
}

// Logout tears the session down: provider logouts in reverse registration
// order starting from the session's provider, then the vault auth-context
// record is deleted or rewritten per the deletion flags. Calling it twice
// is safe.
func (m *Manager) Logout(ctx context.Context, s *Session, flags LogoutFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutLocked(ctx, s, flags)
}

func (m *Manager) logoutLocked(ctx context.Context, s *Session, flags LogoutFlags) error {
	if s == nil || s.AuthContextDeleted {
		return nil
	}

	if tm, ok := m.timeouts[s.ID]; ok {
		tm.Stop()
		delete(m.timeouts, s.ID)
	}

	for p := m.byType[s.Provider]; p != nil; p = m.logoutNext[p.Type()] {
		delta, err := p.Logout(ctx, s, flags)
		if err != nil {
			s.Err = fmt.Errorf("provider %s logout: %w", p.Type(), err)
			m.logger.Error("provider logout", "provider", p.Type(), "error", err)
		}
		delta.apply(s)
		if delta != nil && delta.Err != nil {
			m.logger.Warn("provider logout", "provider", p.Type(), "error", delta.Err)
		}
	}

	if m.vault != nil {
		key := s.StorageKeyOr(m.defaultKey)
		if flags.DeleteCredentials {
			// The deletion policy owns the credential purge; a basic-only
			// logout walk never reaches the offline provider.
			credKey := m.credentialKeyFor(s)
			for _, kind := range []vault.Kind{vault.KindCredential, vault.KindRetryCount} {
				if err := m.vault.Delete(credKey, kind); err != nil && !errors.Is(err, vault.ErrNotFound) {
					m.logger.Error("purging credentials", "key", credKey, "error", err)
				}
			}
		}
		if flags.DeleteCredentials || flags.Explicit {
			err := m.vault.Delete(key, vault.KindAuthContext)
			if err != nil && !errors.Is(err, vault.ErrNotFound) {
				return fmt.Errorf("deleting auth context: %w", err)
			}
		} else {
			if err := m.persistLocked(s); err != nil {
				return err
			}
		}
	}

	s.AuthContextDeleted = true
	s.ClearFields()
	m.logger.Info("session ended", "session", s.ID, "explicit", flags.Explicit)
	return nil
}
