package auth

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatekey/secret"
)

const tokenURL = "https://idp.example.com/oauth/token"

func oauthProvider(tr Transport, refresh bool) *OAuthProvider {
	return NewOAuthProvider(OAuthConfig{
		TokenURL:       tokenURL,
		ClientID:       "gatekey",
		Scopes:         []string{"read", "write"},
		RefreshExpired: refresh,
	}, tr)
}

func oauthSession(username, password string) *Session {
	s := NewSession(ProviderOAuth, ModeOnline, MechanismForm)
	s.Input[InputUsername] = username
	s.Password = secret.FromString(password)
	return s
}

func TestOAuthAuthenticate(t *testing.T) {
	tr := newFakeTransport()
	tr.respond(tokenURL, &Response{
		StatusCode: http.StatusOK,
		Body:       `{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"scope":"read write"}`,
	})
	p := oauthProvider(tr, false)

	s := oauthSession("alice", "hunter2")
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)

	assert.Equal(t, StatusSuccess, s.Status)
	require.Len(t, s.OAuthTokens, 1)
	tok := s.OAuthTokens[0]
	assert.Equal(t, "at-1", tok.Value)
	assert.Equal(t, "rt-1", tok.RefreshToken)
	assert.Equal(t, []string{"read", "write"}, tok.Scopes)

	form, err := url.ParseQuery(tr.calls[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "alice", form.Get("username"))
	assert.Equal(t, "hunter2", form.Get("password"))
	assert.Equal(t, "gatekey", form.Get("client_id"))
}

func TestOAuthValidityPerScope(t *testing.T) {
	p := oauthProvider(newFakeTransport(), false)
	s := NewSession(ProviderOAuth, ModeOnline, MechanismForm)
	s.Status = StatusSuccess

	// Token covering only a subset of the requested scopes is not enough.
	s.OAuthTokens = []OAuthToken{{
		Token:  Token{Name: "access_token", Value: "at", Expiry: time.Now().Add(time.Hour)},
		Scopes: []string{"read"},
	}}
	assert.False(t, p.IsValid(t.Context(), s, false))

	s.OAuthTokens[0].Scopes = []string{"read", "write", "admin"}
	assert.True(t, p.IsValid(t.Context(), s, false))

	s.OAuthTokens[0].Expiry = time.Now().Add(-time.Minute)
	assert.False(t, p.IsValid(t.Context(), s, false))
}

func TestOAuthRefreshTokens(t *testing.T) {
	tr := newFakeTransport()
	tr.respond(tokenURL, &Response{
		StatusCode: http.StatusOK,
		Body:       `{"access_token":"at-2","refresh_token":"rt-2","expires_in":3600,"scope":"read write"}`,
	})
	p := oauthProvider(tr, true)

	s := NewSession(ProviderOAuth, ModeOnline, MechanismForm)
	s.Status = StatusSuccess
	s.OAuthTokens = []OAuthToken{{
		Token:        Token{Name: "access_token", Value: "at-1", Expiry: time.Now().Add(-time.Minute)},
		Scopes:       []string{"read", "write"},
		RefreshToken: "rt-1",
	}}

	delta, err := p.RefreshTokens(t.Context(), s)
	require.NoError(t, err)
	delta.apply(s)

	require.Len(t, s.OAuthTokens, 1)
	assert.Equal(t, "at-2", s.OAuthTokens[0].Value)
	assert.True(t, p.IsValid(t.Context(), s, false))

	form, err := url.ParseQuery(tr.calls[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "rt-1", form.Get("refresh_token"))
}

func TestOAuthRefreshDisabled(t *testing.T) {
	p := oauthProvider(newFakeTransport(), false)
	s := NewSession(ProviderOAuth, ModeOnline, MechanismForm)
	_, err := p.RefreshTokens(t.Context(), s)
	require.Error(t, err)
}

func TestOAuthAuthenticateFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.respond(tokenURL, &Response{StatusCode: http.StatusBadRequest, Body: `{"error":"invalid_grant"}`})
	p := oauthProvider(tr, false)

	s := oauthSession("alice", "wrong")
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	delta.apply(s)
	assert.Equal(t, StatusFailure, s.Status)
}
