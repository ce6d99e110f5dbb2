// Package api exposes the credential engine over HTTP for local
// embedders. The surface mirrors the Go API: factor lifecycle and login
// on the local authenticator, session login/logout on the manager, and
// the preference store. Challenge collection still goes through the
// authenticator's configured presenter; the HTTP layer only triggers it.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/gatekey/auth"
	"github.com/jmcleod/gatekey/localauth"
	"github.com/jmcleod/gatekey/prefs"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	authn    *localauth.Authenticator
	prefs    *prefs.Prefs
	sessions *auth.Manager
	live     *sessionStore
	audit    *auditLogger
}

// sessionStore tracks sessions created over HTTP so a later logout call
// can reach them. The manager serializes the actual state transitions.
type sessionStore struct {
	mu   sync.Mutex
	data map[string]*auth.Session
}

func (st *sessionStore) put(s *auth.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.data[s.ID] = s
}

func (st *sessionStore) take(id string) (*auth.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.data[id]
	if ok {
		delete(st.data, id)
	}
	return s, ok
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionManager mounts the remote-session routes. Without it the
// /sessions endpoints respond 404.
func WithSessionManager(m *auth.Manager) Option {
	return func(a *API) {
		a.sessions = m
	}
}

// New creates a new API instance.
func New(authn *localauth.Authenticator, p *prefs.Prefs, opts ...Option) *API {
	a := &API{
		authn: authn,
		prefs: p,
		live:  &sessionStore{data: make(map[string]*auth.Session)},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", a.Health)
	r.Get("/authenticated", a.Authenticated)
	r.Get("/factors", a.ListFactors)
	r.Post("/factors/{factor}/enable", a.EnableFactor)
	r.Post("/factors/{factor}/disable", a.DisableFactor)
	r.Post("/login", a.Login)
	r.Post("/logout", a.Logout)
	r.Post("/changepin", a.ChangePin)

	r.Put("/prefs/{key}", a.SetPreference)
	r.Get("/prefs/{key}", a.GetPreference)
	r.Delete("/prefs/{key}", a.RemovePreference)

	if a.sessions != nil {
		r.Post("/sessions/login", a.SessionLogin)
		r.Post("/sessions/logout", a.SessionLogout)
	}

	return r
}

// Health reports liveness.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
