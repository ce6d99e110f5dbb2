package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Response is the transport-level result of one HTTP exchange.
type Response struct {
	StatusCode int
	Body       string
	Headers    http.Header
}

// Success reports whether the exchange returned a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport is the HTTP collaborator used by network-bound providers. URL
// tracking brackets an authentication exchange so the provider can verify
// which URLs actually issued cookies.
type Transport interface {
	Get(ctx context.Context, rawURL string, headers http.Header) (*Response, error)
	Post(ctx context.Context, rawURL string, body string, headers http.Header) (*Response, error)

	StartURLTracking()
	StopURLTracking()
	VisitedURLs() []string

	// Cookies returns the cookies currently set for the URL.
	Cookies(rawURL string) []Cookie
	// ClearCookies drops every cookie for the URL.
	ClearCookies(rawURL string)
}

// HTTPTransport is the default Transport over net/http with a cookie jar.
type HTTPTransport struct {
	client *http.Client
	jar    *cookiejar.Jar

	mu       sync.Mutex
	tracking bool
	visited  []string
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport with a fresh cookie jar.
func NewHTTPTransport(timeout time.Duration) (*HTTPTransport, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &HTTPTransport{
		client: &http.Client{Jar: jar, Timeout: timeout},
		jar:    jar,
	}, nil
}

func (t *HTTPTransport) Get(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	return t.do(ctx, http.MethodGet, rawURL, "", headers)
}

func (t *HTTPTransport) Post(ctx context.Context, rawURL string, body string, headers http.Header) (*Response, error) {
	return t.do(ctx, http.MethodPost, rawURL, body, headers)
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL, body string, headers http.Header) (*Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, rawURL, err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	t.recordVisit(rawURL)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		Headers:    resp.Header,
	}, nil
}

func (t *HTTPTransport) recordVisit(rawURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tracking {
		t.visited = append(t.visited, rawURL)
	}
}

func (t *HTTPTransport) StartURLTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracking = true
	t.visited = nil
}

func (t *HTTPTransport) StopURLTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracking = false
}

func (t *HTTPTransport) VisitedURLs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.visited))
	copy(out, t.visited)
	return out
}

func (t *HTTPTransport) Cookies(rawURL string) []Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var out []Cookie
	for _, c := range t.jar.Cookies(u) {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expiry:   c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}
	return out
}

func (t *HTTPTransport) ClearCookies(rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	// The jar drops cookies whose expiry is in the past.
	var expired []*http.Cookie
	for _, c := range t.jar.Cookies(u) {
		expired = append(expired, &http.Cookie{
			Name:    c.Name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
	t.jar.SetCookies(u, expired)
}
