package tokensource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	loginTimeout = 20 * time.Second
	probeTimeout = 15 * time.Second

	// maxPageSize bounds how much of the login page is read for token extraction.
	maxPageSize = 2 << 20
)

// ErrSessionIncomplete is returned when the login form was accepted but the
// server did not set both the XSRF and the session cookie.
var ErrSessionIncomplete = errors.New("login succeeded but session cookies are missing")

// LoginRejectedError reports a non-2xx response during the login handshake.
type LoginRejectedError struct {
	Step       string // "login page" or "login submit"
	StatusCode int
}

func (e *LoginRejectedError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Step, e.StatusCode)
}

// Credentials are the dashboard account used for the login form.
type Credentials struct {
	Username string
	Password string
}

// Configured reports whether both username and password are set.
func (c Credentials) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// Session holds the tokens produced by a successful login.
type Session struct {
	XSRFToken     string
	SessionCookie string
	FormToken     string
}

// Option configures an Authenticator or Prober.
type Option func(*config)

// config holds settings shared by Authenticator and Prober.
type config struct {
	baseTransport     http.RoundTripper
	timeout           time.Duration
	loginPath         string
	usernameField     string
	xsrfCookieName    string
	sessionCookieName string
}

// WithTransport sets a custom base transport for dashboard requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.baseTransport = transport
	}
}

// WithTimeout overrides the per-request client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(c *config) {
		c.loginPath = path
	}
}

// WithUsernameField sets the form field the username is submitted in
// (DefaultUsernameField unless overridden).
func WithUsernameField(field string) Option {
	return func(c *config) {
		c.usernameField = field
	}
}

// WithCookieNames overrides the XSRF and session cookie names.
func WithCookieNames(xsrf, session string) Option {
	return func(c *config) {
		c.xsrfCookieName = xsrf
		c.sessionCookieName = session
	}
}

func newConfig(timeout time.Duration, opts []Option) *config {
	cfg := &config{
		baseTransport:     http.DefaultTransport,
		timeout:           timeout,
		loginPath:         DefaultLoginPath,
		usernameField:     DefaultUsernameField,
		xsrfCookieName:    DefaultXSRFCookieName,
		sessionCookieName: DefaultSessionCookieName,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// newClient returns a client with a fresh cookie jar so each login or probe
// starts from a clean slate.
func (c *config) newClient() (*http.Client, http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &http.Client{
		Timeout:   c.timeout,
		Transport: c.baseTransport,
		Jar:       jar,
	}, jar, nil
}

// Authenticator performs the dashboard login handshake.
type Authenticator struct {
	baseURL *url.URL
	cfg     *config
}

// NewAuthenticator creates an Authenticator for the dashboard at baseURL.
func NewAuthenticator(baseURL string, opts ...Option) (*Authenticator, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		baseURL: u,
		cfg:     newConfig(loginTimeout, opts),
	}, nil
}

// Login fetches the login page, extracts the form token, submits the
// credentials and returns the resulting session tokens.
//
// Errors: ErrFormTokenNotFound when the page has no token, *LoginRejectedError
// on a non-2xx response, ErrSessionIncomplete when cookies are missing.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) (Session, error) {
	client, jar, err := a.cfg.newClient()
	if err != nil {
		return Session{}, err
	}
	loginURL := a.baseURL.JoinPath(a.cfg.loginPath)

	formToken, err := a.fetchFormToken(ctx, client, loginURL)
	if err != nil {
		return Session{}, err
	}

	form := url.Values{}
	form.Set(a.cfg.usernameField, creds.Username)
	form.Set("password", creds.Password)
	form.Set(formTokenField, formToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Origin", originOf(a.baseURL))
	req.Header.Set("Referer", loginURL.String())

	// Redirects after a successful submit are followed; cookies land in the jar
	resp, err := client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("submitting login form: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageSize))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, &LoginRejectedError{Step: "login submit", StatusCode: resp.StatusCode}
	}

	// Cookies may be path-scoped to the login route or the post-login redirect target
	scopes := []*url.URL{a.baseURL, loginURL, resp.Request.URL}
	xsrf := cookieValue(jar, scopes, a.cfg.xsrfCookieName)
	session := cookieValue(jar, scopes, a.cfg.sessionCookieName)
	if xsrf == "" || session == "" {
		return Session{}, fmt.Errorf("%w (%s present: %t, %s present: %t)", ErrSessionIncomplete,
			a.cfg.xsrfCookieName, xsrf != "", a.cfg.sessionCookieName, session != "")
	}

	return Session{
		XSRFToken:     xsrf,
		SessionCookie: session,
		FormToken:     formToken,
	}, nil
}

// fetchFormToken loads the login page and scrapes its form token.
func (a *Authenticator) fetchFormToken(ctx context.Context, client *http.Client, loginURL *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating login page request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching login page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &LoginRejectedError{Step: "login page", StatusCode: resp.StatusCode}
	}

	return ExtractFormToken(io.LimitReader(resp.Body, maxPageSize))
}

// parseBaseURL validates a dashboard base URL and strips any trailing slash.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", raw)
	}
	return u, nil
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// cookieValue returns the first non-empty cookie named name visible at any of the URLs.
func cookieValue(jar http.CookieJar, urls []*url.URL, name string) string {
	for _, u := range urls {
		for _, c := range jar.Cookies(u) {
			if c.Name == name && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}
