package auth

import (
	"time"

	"github.com/jmcleod/gatekey/internal/uuid"
	"github.com/jmcleod/gatekey/secret"
)

// Status is the central session state. Which statuses are reachable
// depends on the active provider; storage is centralized here.
type Status string

const (
	StatusInProgress            Status = "in-progress"
	StatusSuccess               Status = "success"
	StatusFailure               Status = "failure"
	StatusCanceled              Status = "canceled"
	StatusAwaitingOfflineCreds  Status = "awaiting-offline-credentials"
	StatusInitialValidationDone Status = "initial-validation-done"
	StatusDynRegInProgress      Status = "dynamic-registration-in-progress"
	StatusDynRegDone            Status = "dynamic-registration-done"
)

// ProviderType identifies a provider variant in the chain.
type ProviderType string

const (
	ProviderBasic     ProviderType = "password"
	ProviderFederated ProviderType = "federated"
	ProviderOAuth     ProviderType = "oauth"
	ProviderOffline   ProviderType = "offline"
)

// Mode is the session's connectivity mode.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Mechanism is a provider-specific sub-kind, e.g. form-based versus
// HTTP-challenge federated authentication.
type Mechanism string

const (
	MechanismForm          Mechanism = "form"
	MechanismHTTPChallenge Mechanism = "http-challenge"
)

// Well-known transient input bag keys. The password key is accepted at
// the request boundary only; the manager lifts it into the session's
// Password buffer so the bag never holds secret material as a string.
const (
	InputUsername       = "username"
	InputPassword       = "password"
	InputIdentityDomain = "identityDomain"
)

// Session is one logical sign-in: provider results, tokens, cookies,
// timing, and persistence decisions. All mutation goes through the
// Manager, which serializes access; Session itself carries no lock.
type Session struct {
	ID        string
	Status    Status
	Provider  ProviderType
	Mode      Mode
	Mechanism Mechanism

	Username             string
	IdentityDomain       string
	OfflineCredentialKey string

	// SessionExpInSecs 0 means no absolute expiry; IdleTimeExpInSecs 0
	// means idle tracking is disabled.
	SessionExpiry     time.Time
	SessionExpInSecs  int64
	IdleTimeExpiry    time.Time
	IdleTimeExpInSecs int64
	LogoutTimeout     int64

	Tokens      map[string]Token
	OAuthTokens []OAuthToken
	Cookies     []Cookie
	// VisitedURLs records the URLs visited during the authentication
	// exchange, used to validate that required cookies were actually issued
	// and to break ties between same-named cookies.
	VisitedURLs []string
	// RelayTokens re-injects externally supplied credential material, e.g.
	// reverse-proxy-issued tokens.
	RelayTokens map[string]Token

	// Input is the transient caller/UI supplied bag. Cleared once
	// authentication completes or fails; never persisted.
	Input map[string]string
	// Password is the credential supplied for this attempt, held in a
	// zero-on-drop buffer. Destroyed by ClearFields; never persisted.
	Password *secret.Secret

	// StorageKey namespaces this session's vault records. Empty means the
	// application-level default key.
	StorageKey string

	// IdleExpired is the advisory flag flipped by the timeout manager.
	// Destructive cleanup happens only in the IsValid/Logout path.
	IdleExpired bool
	// TimedOut records that the basic provider observed a session (not
	// idle) timeout; the orchestrator's deletion policy reads it.
	TimedOut bool
	// AuthContextDeleted guards against processing a logout twice.
	AuthContextDeleted bool

	// Err is the last provider protocol error attached to this session.
	Err error
}

// NewSession creates an in-progress session for the given provider.
func NewSession(provider ProviderType, mode Mode, mechanism Mechanism) *Session {
	return &Session{
		ID:          uuid.New(),
		Status:      StatusInProgress,
		Provider:    provider,
		Mode:        mode,
		Mechanism:   mechanism,
		Tokens:      make(map[string]Token),
		RelayTokens: make(map[string]Token),
		Input:       make(map[string]string),
	}
}

// StorageKeyOr returns the session's storage key, or def if unset.
func (s *Session) StorageKeyOr(def string) string {
	if s.StorageKey != "" {
		return s.StorageKey
	}
	return def
}

// Authenticated reports whether tokens and cookies may be trusted.
func (s *Session) Authenticated() bool {
	return s.Status == StatusSuccess
}

// SessionExpired reports whether the absolute expiry has elapsed.
func (s *Session) SessionExpired(now time.Time) bool {
	return s.SessionExpInSecs > 0 && now.After(s.SessionExpiry)
}

// IdleTimedOut reports whether the idle expiry has elapsed. The absolute
// expiry takes precedence when both have elapsed.
func (s *Session) IdleTimedOut(now time.Time) bool {
	if s.SessionExpired(now) {
		return false
	}
	if s.IdleTimeExpInSecs > 0 && now.After(s.IdleTimeExpiry) {
		return true
	}
	return s.IdleExpired
}

// AdvanceIdleExpiry moves the idle expiry forward to t. Timestamps never
// rewind; an earlier t is ignored.
func (s *Session) AdvanceIdleExpiry(t time.Time) {
	if t.After(s.IdleTimeExpiry) {
		s.IdleTimeExpiry = t
		s.IdleExpired = false
	}
}

// ClearFields drops the transient input bag and wipes the password
// buffer, first promoting the username and identity domain into the
// session identity if they were only supplied as input.
func (s *Session) ClearFields() {
	if s.Username == "" {
		s.Username = s.Input[InputUsername]
	}
	if s.IdentityDomain == "" {
		s.IdentityDomain = s.Input[InputIdentityDomain]
	}
	s.Input = make(map[string]string)
	s.Password.Destroy()
	s.Password = nil
}

// cookieFor returns the cookie matching name. When several visited URLs
// issued a cookie with the same name, the one from the most recently
// visited URL wins; within one URL the last issued cookie wins.
func (s *Session) cookieFor(name string) (Cookie, bool) {
	for i := len(s.Cookies) - 1; i >= 0; i-- {
		if s.Cookies[i].Name == name {
			return s.Cookies[i], true
		}
	}
	return Cookie{}, false
}
