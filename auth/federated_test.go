package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	relayURL = "https://proxy.example.com/relay"
	csrfURL  = "https://proxy.example.com/csrf"
)

func federatedProvider(tr Transport) *FederatedProvider {
	return NewFederatedProvider(FederatedConfig{
		LoginURL:      "https://fed.example.com/login",
		TokenRelayURL: relayURL,
		CSRFTokenURL:  csrfURL,
	}, tr)
}

func TestFederatedRelayTokenFirstTry(t *testing.T) {
	tr := newFakeTransport()
	tr.respond(relayURL, &Response{
		StatusCode: http.StatusOK,
		Body:       `{"access_token":"tok-1","expires_in":3600}`,
	})
	p := federatedProvider(tr)

	s := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)

	assert.Equal(t, StatusSuccess, s.Status)
	relay := s.RelayTokens[relayTokenKey]
	assert.Equal(t, "tok-1", relay.Value)
	assert.False(t, relay.Expiry.IsZero())
}

func TestFederatedCSRFRetry(t *testing.T) {
	tr := newFakeTransport()
	// First relay fetch returns an HTML error page the parser rejects; the
	// side endpoint is consulted and the retry carries its token.
	tr.respond(relayURL,
		&Response{StatusCode: http.StatusOK, Body: `<html>blocked</html>`},
		&Response{StatusCode: http.StatusOK, Body: `{"access_token":"tok-2"}`},
	)
	tr.respond(csrfURL, &Response{StatusCode: http.StatusOK, Body: `{"xsrftoken":"csrf-1"}`})
	p := federatedProvider(tr)

	s := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)

	assert.Equal(t, "tok-2", s.RelayTokens[relayTokenKey].Value)

	require.Len(t, tr.calls, 3)
	assert.Equal(t, relayURL, tr.calls[0].URL)
	assert.Equal(t, csrfURL, tr.calls[1].URL)
	assert.Equal(t, relayURL, tr.calls[2].URL)
	assert.Equal(t, "csrf-1", tr.calls[2].Headers.Get(csrfHeader))
}

func TestFederatedSecondParseFailureIsTerminal(t *testing.T) {
	tr := newFakeTransport()
	tr.respond(relayURL,
		&Response{StatusCode: http.StatusOK, Body: `<html>blocked</html>`},
		&Response{StatusCode: http.StatusOK, Body: `still not json`},
	)
	tr.respond(csrfURL, &Response{StatusCode: http.StatusOK, Body: `{"xsrftoken":"csrf-1"}`})
	p := federatedProvider(tr)

	s := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.ErrorIs(t, err, ErrRelayTokenParse)
	delta.apply(s)
	assert.Equal(t, StatusFailure, s.Status)

	// Exactly one retry: relay, csrf, relay, and nothing more.
	assert.Len(t, tr.calls, 3)
}

func TestFederatedInputRequired(t *testing.T) {
	p := federatedProvider(newFakeTransport())
	s := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)

	// No usable material yet.
	assert.True(t, p.InputRequired(s))

	s.Cookies = []Cookie{{Name: "FEDSESSION", Value: "x"}}
	assert.False(t, p.InputRequired(s))

	s.Cookies = nil
	s.Tokens["t"] = Token{Name: "t", Value: "v"}
	assert.False(t, p.InputRequired(s))
}

func TestFederatedIsValidChecksRelayExpiry(t *testing.T) {
	p := federatedProvider(newFakeTransport())
	s := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)
	s.Status = StatusSuccess
	s.RelayTokens[relayTokenKey] = Token{
		Name:   relayTokenKey,
		Value:  "tok",
		Expiry: time.Now().Add(time.Hour),
	}
	assert.True(t, p.IsValid(t.Context(), s, false))

	s.RelayTokens[relayTokenKey] = Token{
		Name:   relayTokenKey,
		Value:  "tok",
		Expiry: time.Now().Add(-time.Minute),
	}
	assert.False(t, p.IsValid(t.Context(), s, false))
}

func TestFederatedWithoutRelayEndpoint(t *testing.T) {
	p := NewFederatedProvider(FederatedConfig{LoginURL: "https://fed.example.com/login"}, newFakeTransport())

	// The external web exchange produced cookies; nothing left to fetch.
	s := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)
	s.Cookies = []Cookie{{Name: "FEDSESSION", Value: "x"}}
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)
	assert.Equal(t, StatusSuccess, s.Status)

	// Without cookies or tokens there is nothing to trust.
	empty := NewSession(ProviderFederated, ModeOnline, MechanismHTTPChallenge)
	_, err = p.Authenticate(t.Context(), &Request{}, empty)
	require.ErrorIs(t, err, ErrInputRequired)
}
