package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/gatekey/auth"
	"github.com/jmcleod/gatekey/localauth"
	"github.com/jmcleod/gatekey/secret"
)

// Authenticated reports whether the local authenticator is unlocked.
func (a *API) Authenticated(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AuthenticatedResponse{
		Authenticated: a.authn.IsAuthenticated(),
	})
}

// ListFactors returns the factors currently enabled.
func (a *API) ListFactors(w http.ResponseWriter, r *http.Request) {
	factors, err := a.authn.EnabledFactors()
	if err != nil {
		mapError(w, err)
		return
	}
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		names = append(names, string(f))
	}
	writeJSON(w, http.StatusOK, FactorsResponse{Factors: names})
}

// EnableFactor enables the factor named in the path. The secret is
// collected through the authenticator's presenter, never the HTTP body.
func (a *API) EnableFactor(w http.ResponseWriter, r *http.Request) {
	factor, err := localauth.ParseFactorType(chi.URLParam(r, "factor"))
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.authn.Enable(r.Context(), factor); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditFactorEnabled, r, slog.String("factor", string(factor)))
	w.WriteHeader(http.StatusNoContent)
}

// DisableFactor disables the factor named in the path after re-proving
// the current secret.
func (a *API) DisableFactor(w http.ResponseWriter, r *http.Request) {
	factor, err := localauth.ParseFactorType(chi.URLParam(r, "factor"))
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.authn.Disable(r.Context(), factor); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditFactorDisabled, r, slog.String("factor", string(factor)))
	w.WriteHeader(http.StatusNoContent)
}

// Login drives a challenge-backed login for the requested factor.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	factor, err := localauth.ParseFactorType(req.Factor)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.authn.Login(r.Context(), factor); err != nil {
		event := AuditLoginFailure
		if errors.Is(err, localauth.ErrLockout) {
			event = AuditLoginLockout
		}
		a.audit.log(event, r, slog.String("factor", string(factor)))
		mapError(w, err)
		return
	}
	a.audit.log(AuditLoginSuccess, r, slog.String("factor", string(factor)))
	w.WriteHeader(http.StatusNoContent)
}

// Logout drops the unlocked state; forgetDevice additionally removes the
// biometric enrollment.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := a.authn.Logout(req.ForgetDevice); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditLogout, r, slog.Bool("forget_device", req.ForgetDevice))
	w.WriteHeader(http.StatusNoContent)
}

// ChangePin rotates the PIN. Both the re-proof and the new secret are
// collected through the presenter.
func (a *API) ChangePin(w http.ResponseWriter, r *http.Request) {
	if err := a.authn.ChangePin(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditPinChanged, r)
	w.WriteHeader(http.StatusNoContent)
}

// SetPreference stores a preference, routed to the vault when secure.
// A null value deletes the preference from both tiers.
func (a *API) SetPreference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req SetPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == nil {
		if err := a.prefs.Remove(key); err != nil {
			mapError(w, err)
			return
		}
		a.audit.log(AuditPreferenceSet, r, slog.String("key", key), slog.Bool("removed", true))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := a.prefs.Set(key, *req.Value, req.Secure); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditPreferenceSet, r, slog.String("key", key), slog.Bool("secure", req.Secure))
	w.WriteHeader(http.StatusNoContent)
}

// GetPreference returns a preference value.
func (a *API) GetPreference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := a.prefs.Get(key)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PreferenceResponse{Key: key, Value: value})
}

// RemovePreference deletes a preference from both tiers.
func (a *API) RemovePreference(w http.ResponseWriter, r *http.Request) {
	if err := a.prefs.Remove(chi.URLParam(r, "key")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionLogin runs a provider login through the session manager.
func (a *API) SessionLogin(w http.ResponseWriter, r *http.Request) {
	var req SessionLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := auth.ModeOnline
	if req.Mode != "" {
		mode = auth.Mode(req.Mode)
	}
	mechanism := auth.MechanismForm
	if req.Mechanism != "" {
		mechanism = auth.Mechanism(req.Mechanism)
	}

	// The password leaves the decoded body here and travels as an owned
	// buffer from this point on.
	input := make(map[string]string, len(req.Input))
	var password *secret.Secret
	for k, v := range req.Input {
		if k == auth.InputPassword {
			password = secret.FromString(v)
			continue
		}
		input[k] = v
	}

	s, err := a.sessions.Login(r.Context(), &auth.Request{
		Provider:            auth.ProviderType(req.Provider),
		Mode:                mode,
		Mechanism:           mechanism,
		Input:               input,
		Password:            password,
		StorageKey:          req.StorageKey,
		ForceAuthentication: req.ForceAuthentication,
		SessionTimeout:      time.Duration(req.SessionTimeoutSecs) * time.Second,
		IdleTimeout:         time.Duration(req.IdleTimeoutSecs) * time.Second,
	})
	if err != nil {
		a.audit.log(AuditLoginFailure, r, slog.String("provider", req.Provider))
		mapError(w, err)
		return
	}

	a.live.put(s)

	a.audit.log(AuditSessionLogin, r,
		slog.String("provider", req.Provider),
		slog.String("session_id", s.ID))
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// SessionLogout ends a session created through SessionLogin.
func (a *API) SessionLogout(w http.ResponseWriter, r *http.Request) {
	var req SessionLogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, ok := a.live.take(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	err := a.sessions.Logout(r.Context(), s, auth.LogoutFlags{
		DeleteCredentials: req.DeleteCredentials,
		DeleteCookies:     req.DeleteCookies,
		DeleteTokens:      req.DeleteTokens,
		Explicit:          true,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditSessionLogout, r, slog.String("session_id", req.SessionID))
	w.WriteHeader(http.StatusNoContent)
}

func sessionResponse(s *auth.Session) SessionResponse {
	return SessionResponse{
		SessionID:      s.ID,
		Status:         string(s.Status),
		Username:       s.Username,
		IdentityDomain: s.IdentityDomain,
		SessionExpiry:  s.SessionExpiry,
		IdleTimeExpiry: s.IdleTimeExpiry,
	}
}
