package auth

import (
	"time"

	"github.com/jmcleod/gatekey/secret"
)

// Request describes one authentication attempt.
type Request struct {
	Provider  ProviderType
	Mode      Mode
	Mechanism Mechanism

	// Input seeds the session's transient input bag (username, identity
	// domain, flags). Secret material belongs in Password, not here.
	Input map[string]string
	// Password is the credential for the attempt. The manager takes
	// ownership and destroys it once the attempt settles.
	Password *secret.Secret

	// StorageKey namespaces the session's vault records; empty selects the
	// application default.
	StorageKey string

	// ForceAuthentication skips any cached session and runs the full
	// provider exchange.
	ForceAuthentication bool

	// Zero durations disable the respective countdown.
	SessionTimeout time.Duration
	IdleTimeout    time.Duration
	LogoutTimeout  time.Duration
}

// LogoutFlags carries the deletion decisions for a logout walk.
type LogoutFlags struct {
	DeleteCredentials bool
	DeleteCookies     bool
	DeleteTokens      bool
	// Explicit distinguishes a user-initiated logout from one triggered by
	// a validity failure.
	Explicit bool
}
