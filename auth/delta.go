package auth

// Delta is a provider's result, applied to the session atomically by the
// manager. Providers never mutate the session directly and never touch
// another provider's status.
type Delta struct {
	Status *Status

	Username             string
	IdentityDomain       string
	OfflineCredentialKey string

	// Tokens and RelayTokens merge into the session maps by name.
	Tokens      []Token
	RelayTokens []Token
	OAuthTokens []OAuthToken

	// Cookies append in issue order. DeleteCookies drops the existing set
	// first.
	Cookies       []Cookie
	DeleteCookies bool
	DeleteTokens  bool

	VisitedURLs []string

	// TimedOut marks that the exchange failed on a session timeout, which
	// the orchestrator's deletion policy distinguishes from other failures.
	TimedOut bool

	Err error
}

// apply folds the delta into the session as one unit.
func (d *Delta) apply(s *Session) {
	if d == nil {
		return
	}
	if d.DeleteTokens {
		s.Tokens = make(map[string]Token)
		s.OAuthTokens = nil
	}
	if d.DeleteCookies {
		s.Cookies = nil
	}
	if d.Status != nil {
		s.Status = *d.Status
	}
	if d.Username != "" {
		s.Username = d.Username
	}
	if d.IdentityDomain != "" {
		s.IdentityDomain = d.IdentityDomain
	}
	if d.OfflineCredentialKey != "" {
		s.OfflineCredentialKey = d.OfflineCredentialKey
	}
	for _, t := range d.Tokens {
		s.Tokens[t.Name] = t
	}
	for _, t := range d.RelayTokens {
		s.RelayTokens[t.Name] = t
	}
	s.OAuthTokens = append(s.OAuthTokens, d.OAuthTokens...)
	s.Cookies = append(s.Cookies, d.Cookies...)
	s.VisitedURLs = append(s.VisitedURLs, d.VisitedURLs...)
	if d.TimedOut {
		s.TimedOut = true
	}
	if d.Err != nil {
		s.Err = d.Err
	}
}

func statusOf(s Status) *Status {
	return &s
}
