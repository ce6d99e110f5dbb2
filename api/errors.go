package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/gatekey/auth"
	"github.com/jmcleod/gatekey/keystore"
	"github.com/jmcleod/gatekey/localauth"
	"github.com/jmcleod/gatekey/prefs"
	"github.com/jmcleod/gatekey/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, localauth.ErrInvalidFactor):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, localauth.ErrNotEnabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, localauth.ErrPinRequired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, localauth.ErrDependentFactor):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, localauth.ErrLockout):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, localauth.ErrMismatch):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, localauth.ErrCanceled):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, localauth.ErrFactorChanged):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, localauth.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, keystore.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrRetryLimitExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, auth.ErrInputRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNoProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrSessionInvalid):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, prefs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
