package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatekey/secret"
)

func TestSessionRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	s := NewSession(ProviderOAuth, ModeOnline, MechanismForm)
	s.Status = StatusSuccess
	s.Username = "alice"
	s.IdentityDomain = "acme"
	s.OfflineCredentialKey = "https://idp.example.com/alice"
	s.Tokens["api"] = Token{Name: "api", Value: "tok-1", Expiry: now.Add(time.Hour)}
	s.RelayTokens["relay_token"] = Token{Name: "relay_token", Value: "tok-2"}
	s.OAuthTokens = []OAuthToken{{
		Token:        Token{Name: "access_token", Value: "tok-3", Expiry: now.Add(30 * time.Minute)},
		Scopes:       []string{"read", "write"},
		RefreshToken: "refresh-1",
	}}
	s.Cookies = []Cookie{{Name: "JSESSIONID", Value: "abc", Domain: "idp.example.com", HTTPOnly: true}}
	s.SessionExpiry = now.Add(8 * time.Hour)
	s.SessionExpInSecs = 8 * 3600
	s.IdleTimeExpiry = now.Add(15 * time.Minute)
	s.IdleTimeExpInSecs = 15 * 60
	s.LogoutTimeout = 30
	s.Input[InputUsername] = "never-persisted"
	s.Password = secret.FromString("never-persisted")

	data, err := MarshalSession(s)
	require.NoError(t, err)

	// The persisted layout uses the fixed field names and never carries
	// transient input.
	raw := string(data)
	for _, field := range []string{
		`"sessionId"`,
		`"username"`, `"identityDomain"`, `"authenticatedMode"`,
		`"authenticationProvider"`, `"authenticationMechanism"`,
		`"offlineCredentialKey"`, `"tokens"`, `"oauthTokenSet"`,
		`"relayTokens"`, `"sessionExpiry"`, `"sessionExpInSecs"`,
		`"idleTimeExpiry"`, `"idleTimeExpInSecs"`, `"logoutTimeoutValue"`,
	} {
		assert.Contains(t, raw, field)
	}
	assert.NotContains(t, raw, "never-persisted")

	got, err := UnmarshalSession(data)
	require.NoError(t, err)

	assert.Equal(t, s.ID, got.ID, "a reloaded session keeps its identity")
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, ProviderOAuth, got.Provider)
	assert.Equal(t, ModeOnline, got.Mode)
	assert.Equal(t, MechanismForm, got.Mechanism)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "acme", got.IdentityDomain)
	assert.Equal(t, s.OfflineCredentialKey, got.OfflineCredentialKey)
	assert.Equal(t, s.Tokens, got.Tokens)
	assert.Equal(t, s.RelayTokens, got.RelayTokens)
	assert.Equal(t, s.OAuthTokens, got.OAuthTokens)
	assert.Equal(t, s.Cookies, got.Cookies)
	assert.True(t, s.SessionExpiry.Equal(got.SessionExpiry))
	assert.Equal(t, s.SessionExpInSecs, got.SessionExpInSecs)
	assert.True(t, s.IdleTimeExpiry.Equal(got.IdleTimeExpiry))
	assert.Equal(t, s.IdleTimeExpInSecs, got.IdleTimeExpInSecs)
	assert.Equal(t, s.LogoutTimeout, got.LogoutTimeout)
	assert.Empty(t, got.Input)
}

func TestUnmarshalSessionFailsClosed(t *testing.T) {
	_, err := UnmarshalSession([]byte("{not json"))
	require.Error(t, err)
}

func TestClearFieldsPromotesIdentity(t *testing.T) {
	s := NewSession(ProviderBasic, ModeOnline, MechanismForm)
	s.Input[InputUsername] = "alice"
	s.Input[InputIdentityDomain] = "acme"
	s.Password = secret.FromString("hunter2")

	s.ClearFields()

	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "acme", s.IdentityDomain)
	assert.Empty(t, s.Input)
	assert.Nil(t, s.Password, "the password buffer is wiped with the bag")

	// An identity already on the session is not overwritten.
	s.Input[InputUsername] = "mallory"
	s.ClearFields()
	assert.Equal(t, "alice", s.Username)
}

func TestAdvanceIdleExpiryNeverRewinds(t *testing.T) {
	s := NewSession(ProviderBasic, ModeOnline, MechanismForm)
	later := time.Now().Add(time.Hour)
	s.AdvanceIdleExpiry(later)
	s.AdvanceIdleExpiry(later.Add(-30 * time.Minute))
	assert.True(t, s.IdleTimeExpiry.Equal(later))
}

func TestIdlePrecedence(t *testing.T) {
	now := time.Now()
	s := NewSession(ProviderBasic, ModeOnline, MechanismForm)
	s.SessionExpInSecs = 60
	s.SessionExpiry = now.Add(-time.Minute)
	s.IdleTimeExpInSecs = 30
	s.IdleTimeExpiry = now.Add(-time.Minute)

	// When both have elapsed, the absolute expiry wins.
	assert.True(t, s.SessionExpired(now))
	assert.False(t, s.IdleTimedOut(now))
}
