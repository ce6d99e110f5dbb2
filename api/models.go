package api

import "time"

// ErrorResponse is the JSON body for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AuthenticatedResponse is returned from GET /authenticated.
type AuthenticatedResponse struct {
	Authenticated bool `json:"authenticated"`
}

// FactorsResponse is returned from GET /factors.
type FactorsResponse struct {
	Factors []string `json:"factors"`
}

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Factor string `json:"factor"`
}

// LogoutRequest is the JSON body for POST /logout.
type LogoutRequest struct {
	ForgetDevice bool `json:"forgetDevice"`
}

// SetPreferenceRequest is the JSON body for PUT /prefs/{key}. A null
// value deletes the preference.
type SetPreferenceRequest struct {
	Value  *string `json:"value"`
	Secure bool    `json:"secure"`
}

// PreferenceResponse is returned from GET /prefs/{key}.
type PreferenceResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SessionLoginRequest is the JSON body for POST /sessions/login.
type SessionLoginRequest struct {
	Provider            string            `json:"provider"`
	Mode                string            `json:"mode,omitempty"`
	Mechanism           string            `json:"mechanism,omitempty"`
	Input               map[string]string `json:"input,omitempty"`
	StorageKey          string            `json:"storageKey,omitempty"`
	ForceAuthentication bool              `json:"forceAuthentication,omitempty"`
	SessionTimeoutSecs  int64             `json:"sessionTimeoutSecs,omitempty"`
	IdleTimeoutSecs     int64             `json:"idleTimeoutSecs,omitempty"`
}

// SessionResponse is returned from the session endpoints.
type SessionResponse struct {
	SessionID      string    `json:"sessionId"`
	Status         string    `json:"status"`
	Username       string    `json:"username,omitempty"`
	IdentityDomain string    `json:"identityDomain,omitempty"`
	SessionExpiry  time.Time `json:"sessionExpiry,omitzero"`
	IdleTimeExpiry time.Time `json:"idleTimeExpiry,omitzero"`
}

// SessionLogoutRequest is the JSON body for POST /sessions/logout.
type SessionLogoutRequest struct {
	SessionID         string `json:"sessionId"`
	DeleteCredentials bool   `json:"deleteCredentials,omitempty"`
	DeleteCookies     bool   `json:"deleteCookies,omitempty"`
	DeleteTokens      bool   `json:"deleteTokens,omitempty"`
}
