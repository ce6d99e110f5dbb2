// Package auth implements the session and credential-lifecycle engine:
// the authenticated-session entity, the provider family (basic, federated,
// oauth, offline) composed into an ordered chain, the idle/absolute
// timeout manager, and session persistence through the vault.
package auth

import (
	"slices"
	"time"
)

// Token is an opaque named credential with an expiry. Immutable once issued.
type Token struct {
	Name   string    `json:"name"`
	Value  string    `json:"value"`
	Expiry time.Time `json:"expiry,omitzero"`
}

// Expired reports whether the token has an expiry in the past.
func (t Token) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && now.After(t.Expiry)
}

// OAuthToken carries scopes and an optional refresh token on top of the
// base token. IdentityClaims is populated for OpenID-style tokens.
type OAuthToken struct {
	Token
	Scopes         []string          `json:"scopes,omitempty"`
	RefreshToken   string            `json:"refreshToken,omitempty"`
	IdentityClaims map[string]string `json:"identityClaims,omitempty"`
}

// Covers reports whether the token grants every requested scope.
func (t OAuthToken) Covers(scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(t.Scopes, s) {
			return false
		}
	}
	return true
}

// Cookie is an immutable record of a cookie issued during authentication.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expiry   time.Time `json:"expiry,omitzero"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
}

// Expired reports whether the cookie has an expiry in the past.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}
