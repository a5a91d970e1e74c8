package tokensource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ProbeError reports a keepalive response with status >= 400.
type ProbeError struct {
	StatusCode int
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("keepalive returned HTTP %d", e.StatusCode)
}

// Prober issues lightweight authenticated requests that keep a session alive.
type Prober struct {
	baseURL  *url.URL
	endpoint *url.URL
	cfg      *config
}

// NewProber creates a Prober hitting path under baseURL.
func NewProber(baseURL, path string, opts ...Option) (*Prober, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultKeepalivePath
	}
	return &Prober{
		baseURL:  u,
		endpoint: u.JoinPath(path),
		cfg:      newConfig(probeTimeout, opts),
	}, nil
}

// Probe sends GET endpoint?_token=<form token> with the session cookies attached.
// Returns the response status code, or *ProbeError for statuses >= 400.
func (p *Prober) Probe(ctx context.Context, s Session) (int, error) {
	client, jar, err := p.cfg.newClient()
	if err != nil {
		return 0, err
	}
	jar.SetCookies(p.baseURL, []*http.Cookie{
		{Name: p.cfg.xsrfCookieName, Value: s.XSRFToken, Path: "/"},
		{Name: p.cfg.sessionCookieName, Value: s.SessionCookie, Path: "/"},
	})

	target := *p.endpoint
	query := target.Query()
	query.Set(formTokenField, s.FormToken)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating keepalive request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("keepalive request: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageSize))
	_ = resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, &ProbeError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}
