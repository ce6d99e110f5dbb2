package auth

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

func sortedKeys(m map[string]Token) []string {
	return slices.Sorted(maps.Keys(m))
}

// sessionRecord is the persisted form of a Session. Field names are part
// of the stored format and must not change; transient input and secret
// material are never part of it.
type sessionRecord struct {
	SessionID            string           `json:"sessionId,omitempty"`
	Username             string           `json:"username,omitempty"`
	IdentityDomain       string           `json:"identityDomain,omitempty"`
	AuthenticatedMode    Mode             `json:"authenticatedMode,omitempty"`
	Provider             ProviderType     `json:"authenticationProvider,omitempty"`
	Mechanism            Mechanism        `json:"authenticationMechanism,omitempty"`
	OfflineCredentialKey string           `json:"offlineCredentialKey,omitempty"`
	Tokens               []Token          `json:"tokens,omitempty"`
	OAuthTokenSet        []OAuthToken     `json:"oauthTokenSet,omitempty"`
	RelayTokens          []Token          `json:"relayTokens,omitempty"`
	Cookies              []Cookie         `json:"cookies,omitempty"`
	SessionExpiry        time.Time        `json:"sessionExpiry,omitzero"`
	SessionExpInSecs     int64            `json:"sessionExpInSecs,omitempty"`
	IdleTimeExpiry       time.Time        `json:"idleTimeExpiry,omitzero"`
	IdleTimeExpInSecs    int64            `json:"idleTimeExpInSecs,omitempty"`
	LogoutTimeoutValue   int64            `json:"logoutTimeoutValue,omitempty"`
}

// MarshalSession serializes a session for vault persistence.
func MarshalSession(s *Session) ([]byte, error) {
	rec := sessionRecord{
		SessionID:            s.ID,
		Username:             s.Username,
		IdentityDomain:       s.IdentityDomain,
		AuthenticatedMode:    s.Mode,
		Provider:             s.Provider,
		Mechanism:            s.Mechanism,
		OfflineCredentialKey: s.OfflineCredentialKey,
		OAuthTokenSet:        s.OAuthTokens,
		Cookies:              s.Cookies,
		SessionExpiry:        s.SessionExpiry,
		SessionExpInSecs:     s.SessionExpInSecs,
		IdleTimeExpiry:       s.IdleTimeExpiry,
		IdleTimeExpInSecs:    s.IdleTimeExpInSecs,
		LogoutTimeoutValue:   s.LogoutTimeout,
	}
	for _, name := range sortedKeys(s.Tokens) {
		rec.Tokens = append(rec.Tokens, s.Tokens[name])
	}
	for _, name := range sortedKeys(s.RelayTokens) {
		rec.RelayTokens = append(rec.RelayTokens, s.RelayTokens[name])
	}
	return json.Marshal(rec)
}

// UnmarshalSession reconstructs a session from its persisted form. The
// session comes back with status success: only successfully authenticated
// sessions are ever persisted. Malformed data is an error so the caller
// can fail closed.
func UnmarshalSession(data []byte) (*Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	s := NewSession(rec.Provider, rec.AuthenticatedMode, rec.Mechanism)
	// Keeping the persisted id means every reload of the same logical
	// session lands on the same timeout-manager slot. Records written
	// before the id was stored keep the fresh one.
	if rec.SessionID != "" {
		s.ID = rec.SessionID
	}
	s.Status = StatusSuccess
	s.Username = rec.Username
	s.IdentityDomain = rec.IdentityDomain
	s.OfflineCredentialKey = rec.OfflineCredentialKey
	s.OAuthTokens = rec.OAuthTokenSet
	s.Cookies = rec.Cookies
	s.SessionExpiry = rec.SessionExpiry
	s.SessionExpInSecs = rec.SessionExpInSecs
	s.IdleTimeExpiry = rec.IdleTimeExpiry
	s.IdleTimeExpInSecs = rec.IdleTimeExpInSecs
	s.LogoutTimeout = rec.LogoutTimeoutValue
	for _, t := range rec.Tokens {
		s.Tokens[t.Name] = t
	}
	for _, t := range rec.RelayTokens {
		s.RelayTokens[t.Name] = t
	}
	return s, nil
}
