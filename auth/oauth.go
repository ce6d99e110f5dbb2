package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// OAuthConfig configures the oauth provider.
type OAuthConfig struct {
	TokenURL string
	ClientID string
	// Scopes is the scope set requested at login and checked per token at
	// validity time.
	Scopes []string
	// RefreshExpired allows IsValid(online) callers to refresh expired
	// tokens via RefreshTokens. The refresh itself is network I/O and must
	// run off the session-critical path.
	RefreshExpired bool
}

// OAuthProvider obtains scoped tokens from a token endpoint and validates
// per-scope expiry.
type OAuthProvider struct {
	cfg       OAuthConfig
	transport Transport
	canceled  atomic.Bool
}

var _ Provider = (*OAuthProvider)(nil)

// NewOAuthProvider creates the oauth provider.
func NewOAuthProvider(cfg OAuthConfig, transport Transport) *OAuthProvider {
	return &OAuthProvider{cfg: cfg, transport: transport}
}

func (p *OAuthProvider) Type() ProviderType {
	return ProviderOAuth
}

func (p *OAuthProvider) InputRequired(s *Session) bool {
	return s.Input[InputUsername] == "" || s.Password == nil
}

func (p *OAuthProvider) Cancel() {
	p.canceled.Store(true)
}

func (p *OAuthProvider) Authenticate(ctx context.Context, req *Request, s *Session) (*Delta, error) {
	p.canceled.Store(false)
	if p.InputRequired(s) {
		return nil, fmt.Errorf("%w: username and password", ErrInputRequired)
	}

	// The encoded form is the wire boundary; the password never rests
	// anywhere else as a string.
	var body string
	err := s.Password.Use(func(pw []byte) error {
		form := url.Values{
			"grant_type": {"password"},
			"username":   {s.Input[InputUsername]},
			"password":   {string(pw)},
			"scope":      {strings.Join(p.cfg.Scopes, " ")},
		}
		if p.cfg.ClientID != "" {
			form.Set("client_id", p.cfg.ClientID)
		}
		body = form.Encode()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	token, err := p.requestToken(ctx, body)
	if err != nil {
		return &Delta{Status: statusOf(StatusFailure), Err: err}, err
	}
	if p.canceled.Load() {
		return &Delta{Status: statusOf(StatusCanceled)}, nil
	}
	return &Delta{
		Status:      statusOf(StatusSuccess),
		Username:    s.Input[InputUsername],
		OAuthTokens: []OAuthToken{token},
	}, nil
}

// RefreshTokens exchanges refresh tokens for fresh access tokens. The
// returned delta replaces the expired token set; callers apply it through
// the manager off any UI-blocking path.
func (p *OAuthProvider) RefreshTokens(ctx context.Context, s *Session) (*Delta, error) {
	if !p.cfg.RefreshExpired {
		return nil, fmt.Errorf("token refresh not enabled")
	}
	now := time.Now()
	var refreshed []OAuthToken
	for _, t := range s.OAuthTokens {
		if !t.Expired(now) {
			refreshed = append(refreshed, t)
			continue
		}
		if t.RefreshToken == "" {
			continue
		}
		form := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {t.RefreshToken},
		}
		if p.cfg.ClientID != "" {
			form.Set("client_id", p.cfg.ClientID)
		}
		nt, err := p.requestToken(ctx, form.Encode())
		if err != nil {
			return nil, fmt.Errorf("refreshing token %q: %w", t.Name, err)
		}
		refreshed = append(refreshed, nt)
	}
	return &Delta{DeleteTokens: true, OAuthTokens: refreshed}, nil
}

func (p *OAuthProvider) requestToken(ctx context.Context, body string) (OAuthToken, error) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.transport.Post(ctx, p.cfg.TokenURL, body, headers)
	if err != nil {
		return OAuthToken{}, fmt.Errorf("token endpoint: %w", err)
	}
	if !resp.Success() {
		return OAuthToken{}, fmt.Errorf("%w: token endpoint returned status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &tr); err != nil {
		return OAuthToken{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return OAuthToken{}, fmt.Errorf("%w: token response carried no access_token", ErrAuthenticationFailed)
	}

	scopes := p.cfg.Scopes
	if tr.Scope != "" {
		scopes = strings.Fields(tr.Scope)
	}
	t := OAuthToken{
		Token:        Token{Name: "access_token", Value: tr.AccessToken},
		Scopes:       scopes,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		t.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return t, nil
}

// IsValid checks that some token covers the requested scope set and is
// unexpired. It never refreshes inline; see RefreshTokens.
func (p *OAuthProvider) IsValid(ctx context.Context, s *Session, online bool) bool {
	if !s.Authenticated() {
		return false
	}
	now := time.Now()
	if s.SessionExpired(now) || s.IdleTimedOut(now) {
		return false
	}
	for _, t := range s.OAuthTokens {
		if t.Covers(p.cfg.Scopes) && !t.Expired(now) {
			return true
		}
	}
	return false
}

func (p *OAuthProvider) Logout(ctx context.Context, s *Session, flags LogoutFlags) (*Delta, error) {
	return &Delta{
		DeleteCookies: flags.DeleteCookies,
		DeleteTokens:  flags.DeleteTokens,
	}, nil
}
