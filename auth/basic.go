package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jmcleod/gatekey/internal/util"
)

// BasicConfig configures the password provider.
type BasicConfig struct {
	LoginURL  string
	LogoutURL string
	// RequiredCookies must all be issued during the exchange for the
	// authentication to count as successful.
	RequiredCookies []string
}

// BasicProvider authenticates with a username/password HTTP exchange and
// validates that every required cookie was actually issued.
type BasicProvider struct {
	cfg       BasicConfig
	transport Transport
	canceled  atomic.Bool
}

var _ Provider = (*BasicProvider)(nil)

// NewBasicProvider creates the password provider.
func NewBasicProvider(cfg BasicConfig, transport Transport) *BasicProvider {
	return &BasicProvider{cfg: cfg, transport: transport}
}

func (p *BasicProvider) Type() ProviderType {
	return ProviderBasic
}

func (p *BasicProvider) InputRequired(s *Session) bool {
	return s.Input[InputUsername] == "" || s.Password == nil
}

func (p *BasicProvider) Cancel() {
	p.canceled.Store(true)
}

func (p *BasicProvider) Authenticate(ctx context.Context, req *Request, s *Session) (*Delta, error) {
	p.canceled.Store(false)
	if p.InputRequired(s) {
		return nil, fmt.Errorf("%w: username and password", ErrInputRequired)
	}

	p.transport.StartURLTracking()
	defer p.transport.StopURLTracking()

	headers := http.Header{}
	user := s.Input[InputUsername]
	var authz string
	err := s.Password.Use(func(pw []byte) error {
		cred := make([]byte, 0, len(user)+1+len(pw))
		cred = append(cred, user...)
		cred = append(cred, ':')
		cred = append(cred, pw...)
		authz = "Basic " + base64.StdEncoding.EncodeToString(cred)
		util.WipeBytes(cred)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	headers.Set("Authorization", authz)

	resp, err := p.transport.Post(ctx, p.cfg.LoginURL, "", headers)
	if err != nil {
		return &Delta{Status: statusOf(StatusFailure), Err: err},
			fmt.Errorf("basic provider exchange: %w", err)
	}
	if p.canceled.Load() {
		return &Delta{Status: statusOf(StatusCanceled)}, nil
	}
	if !resp.Success() {
		err := fmt.Errorf("%w: basic provider got status %d", ErrAuthenticationFailed, resp.StatusCode)
		p.clearVisitedCookies()
		return &Delta{
			Status:        statusOf(StatusFailure),
			DeleteCookies: true,
			TimedOut:      resp.StatusCode == http.StatusRequestTimeout,
			Err:           err,
		}, err
	}

	visited := p.transport.VisitedURLs()
	cookies := p.collectCookies(visited)
	if missing := p.missingRequired(cookies); len(missing) != 0 {
		err := fmt.Errorf("%w: required cookies not issued: %v", ErrAuthenticationFailed, missing)
		p.clearVisitedCookies()
		return &Delta{
			Status:        statusOf(StatusFailure),
			DeleteCookies: true,
			Err:           err,
		}, err
	}

	return &Delta{
		Status:      statusOf(StatusSuccess),
		Username:    s.Input[InputUsername],
		Cookies:     cookies,
		VisitedURLs: visited,
	}, nil
}

// collectCookies gathers cookies per visited URL in visit order, so a
// later URL's cookie shadows an earlier one with the same name.
func (p *BasicProvider) collectCookies(visited []string) []Cookie {
	var out []Cookie
	for _, u := range visited {
		out = append(out, p.transport.Cookies(u)...)
	}
	return out
}

func (p *BasicProvider) missingRequired(cookies []Cookie) []string {
	var missing []string
	for _, name := range p.cfg.RequiredCookies {
		found := false
		for _, c := range cookies {
			if c.Name == name {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	return missing
}

func (p *BasicProvider) clearVisitedCookies() {
	for _, u := range p.transport.VisitedURLs() {
		p.transport.ClearCookies(u)
	}
}

func (p *BasicProvider) IsValid(ctx context.Context, s *Session, online bool) bool {
	if !s.Authenticated() {
		return false
	}
	now := time.Now()
	if s.SessionExpired(now) || s.IdleTimedOut(now) {
		return false
	}
	for _, name := range p.cfg.RequiredCookies {
		c, ok := s.cookieFor(name)
		if !ok || c.Expired(now) {
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

func (p *BasicProvider) Logout(ctx context.Context, s *Session, flags LogoutFlags) (*Delta, error) {
	if p.cfg.LogoutURL != "" && flags.Explicit {
		// Best effort: the server-side logout failing must not block local
		// cleanup.
		resp, err := p.transport.Get(ctx, p.cfg.LogoutURL, nil)
		if err == nil && !resp.Success() {
			err = fmt.Errorf("logout endpoint returned status %d", resp.StatusCode)
		}
		if err != nil {
			return &Delta{
				DeleteCookies: flags.DeleteCookies,
				DeleteTokens:  flags.DeleteTokens,
				Err:           fmt.Errorf("basic provider logout: %w", err),
			}, nil
		}
	}
	return &Delta{
		DeleteCookies: flags.DeleteCookies,
		DeleteTokens:  flags.DeleteTokens,
	}, nil
}
