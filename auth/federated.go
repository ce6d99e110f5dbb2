package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// FederatedConfig configures the federated/web provider.
type FederatedConfig struct {
	LoginURL  string
	LogoutURL string
	// TokenRelayURL, when set, is fetched after the web exchange to pick up
	// a relay token issued by the fronting proxy.
	TokenRelayURL string
	// CSRFTokenURL is the side endpoint consulted when the first relay
	// fetch does not parse; its token is re-sent as the X-XSRF-TOKEN header.
	CSRFTokenURL string
}

// relay token header and side-endpoint field names.
const (
	csrfHeader    = "X-XSRF-TOKEN"
	csrfTokenName = "xsrftoken"
	relayTokenKey = "relay_token"
)

// FederatedProvider completes an externally driven web authentication: the
// UI collaborator runs the actual federated exchange, and this provider
// verifies the outcome and converts relay material into session tokens.
type FederatedProvider struct {
	cfg       FederatedConfig
	transport Transport
	canceled  atomic.Bool
}

var _ Provider = (*FederatedProvider)(nil)

// NewFederatedProvider creates the federated provider.
func NewFederatedProvider(cfg FederatedConfig, transport Transport) *FederatedProvider {
	return &FederatedProvider{cfg: cfg, transport: transport}
}

func (p *FederatedProvider) Type() ProviderType {
	return ProviderFederated
}

// InputRequired for federated authentication means the exchange has not
// produced usable material yet: no tokens and no cookies.
func (p *FederatedProvider) InputRequired(s *Session) bool {
	return len(s.Tokens) == 0 && len(s.RelayTokens) == 0 && len(s.Cookies) == 0
}

func (p *FederatedProvider) Cancel() {
	p.canceled.Store(true)
}

func (p *FederatedProvider) Authenticate(ctx context.Context, req *Request, s *Session) (*Delta, error) {
	p.canceled.Store(false)
	if p.cfg.TokenRelayURL == "" {
		if p.InputRequired(s) {
			return nil, fmt.Errorf("%w: federated exchange produced no tokens or cookies", ErrInputRequired)
		}
		return &Delta{Status: statusOf(StatusSuccess)}, nil
	}

	token, err := p.fetchRelayToken(ctx)
	if err != nil {
		return &Delta{Status: statusOf(StatusFailure), Err: err}, err
	}
	if p.canceled.Load() {
		return &Delta{Status: statusOf(StatusCanceled)}, nil
	}
	return &Delta{
		Status:      statusOf(StatusSuccess),
		RelayTokens: []Token{token},
	}, nil
}

// fetchRelayToken fetches and parses the relay token. A first parse
// failure triggers exactly one retry with a CSRF token attached; a second
// failure is terminal.
func (p *FederatedProvider) fetchRelayToken(ctx context.Context) (Token, error) {
	resp, err := p.transport.Get(ctx, p.cfg.TokenRelayURL, nil)
	if err != nil {
		return Token{}, fmt.Errorf("fetching relay token: %w", err)
	}
	token, parseErr := parseRelayToken(resp.Body)
	if parseErr == nil {
		return token, nil
	}
	if p.cfg.CSRFTokenURL == "" {
		return Token{}, fmt.Errorf("%w: %v", ErrRelayTokenParse, parseErr)
	}

	csrf, err := p.fetchCSRFToken(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrRelayTokenParse, err)
	}
	headers := http.Header{}
	headers.Set(csrfHeader, csrf)
	resp, err = p.transport.Get(ctx, p.cfg.TokenRelayURL, headers)
	if err != nil {
		return Token{}, fmt.Errorf("refetching relay token: %w", err)
	}
	token, parseErr = parseRelayToken(resp.Body)
	if parseErr != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrRelayTokenParse, parseErr)
	}
	return token, nil
}

func (p *FederatedProvider) fetchCSRFToken(ctx context.Context) (string, error) {
	resp, err := p.transport.Get(ctx, p.cfg.CSRFTokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetching csrf token: %w", err)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return "", fmt.Errorf("decoding csrf response: %w", err)
	}
	token := body[csrfTokenName]
	if token == "" {
		return "", fmt.Errorf("csrf response carried no %s field", csrfTokenName)
	}
	return token, nil
}

// parseRelayToken accepts a standard OAuth-style token response body.
func parseRelayToken(body string) (Token, error) {
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		return Token{}, fmt.Errorf("decoding relay token: %w", err)
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		return Token{}, fmt.Errorf("relay response carried no access_token")
	}
	t := Token{Name: relayTokenKey, Value: tr.AccessToken}
	if tr.ExpiresIn > 0 {
		t.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return t, nil
}

func (p *FederatedProvider) IsValid(ctx context.Context, s *Session, online bool) bool {
	if !s.Authenticated() {
		return false
	}
	now := time.Now()
	if s.SessionExpired(now) || s.IdleTimedOut(now) {
		return false
	}
	// Any parsed relay token must still be live.
	for _, t := range s.RelayTokens {
		if t.Expired(now) {
			return false
		}
	}
	if online {
		resp, err := p.transport.Get(ctx, p.cfg.LoginURL, nil)
		if err != nil || !resp.Success() {
			return false
		}
	}
	return true
}

func (p *FederatedProvider) Logout(ctx context.Context, s *Session, flags LogoutFlags) (*Delta, error) {
	if p.cfg.LogoutURL != "" && flags.Explicit {
		if _, err := p.transport.Get(ctx, p.cfg.LogoutURL, nil); err != nil {
			return &Delta{
				DeleteCookies: flags.DeleteCookies,
				DeleteTokens:  flags.DeleteTokens,
				Err:           fmt.Errorf("federated provider logout: %w", err),
			}, nil
		}
	}
	return &Delta{
		DeleteCookies: flags.DeleteCookies,
		DeleteTokens:  flags.DeleteTokens,
	}, nil
}
