package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/sessionkeeper/internal/tokensource"
	"github.com/florianilch/sessionkeeper/internal/tokenstore"
)

const (
	// DefaultRefreshInterval applies when Config.RefreshInterval is unset.
	DefaultRefreshInterval = 90 * time.Minute

	// minRefreshDelay keeps the refresh loop from spinning when the held bundle
	// is already past its expiry or clocks are skewed.
	minRefreshDelay = 10 * time.Second
)

// Authenticator performs a login and returns fresh session tokens.
type Authenticator interface {
	Login(ctx context.Context, creds tokensource.Credentials) (tokensource.Session, error)
}

// Prober issues a keepalive request for a session.
type Prober interface {
	Probe(ctx context.Context, s tokensource.Session) (int, error)
}

// Config describes the dashboard and the refresh cadence.
type Config struct {
	BaseURL     string
	Credentials tokensource.Credentials

	// RefreshInterval is both the lifetime stamped on fresh bundles and the
	// fallback delay for bundles without an expiry.
	RefreshInterval time.Duration
	// KeepaliveInterval <= 0 disables the keepalive loop.
	KeepaliveInterval time.Duration

	LoginPath         string
	KeepalivePath     string
	UsernameField     string
	RefererPath       string
	XSRFCookieName    string
	SessionCookieName string
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache sets the store bundles are hydrated from and persisted to.
func WithCache(store tokenstore.Store) Option {
	return func(m *Manager) {
		m.cache = store
	}
}

// WithSeed sets a read-only store consulted when the cache is empty.
func WithSeed(store tokenstore.Store) Option {
	return func(m *Manager) {
		m.seed = store
	}
}

// WithAuthenticator replaces the default form-login Authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(m *Manager) {
		m.auth = a
	}
}

// WithProber replaces the default keepalive Prober.
func WithProber(p Prober) Option {
	return func(m *Manager) {
		m.prober = p
	}
}

// WithClock replaces time.Now, e.g. for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithoutInitialLogin skips the login New would otherwise attempt when neither
// the cache nor the seed yields a bundle.
func WithoutInitialLogin() Option {
	return func(m *Manager) {
		m.skipInitialLogin = true
	}
}

// WithRegisterer registers the manager's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = reg
	}
}

// Manager acquires, caches, refreshes and serves the dashboard session bundle.
type Manager struct {
	cfg        Config
	cache      tokenstore.Store
	seed       tokenstore.Store
	auth       Authenticator
	prober     Prober
	now        func() time.Time
	registerer prometheus.Registerer
	metrics    *metrics
	headers    http.Header
	minDelay   time.Duration

	skipInitialLogin bool

	refreshGroup singleflight.Group

	// mu guards current, the cache write, and the loop lifecycle fields below.
	mu      sync.Mutex
	current *tokenstore.Bundle
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Manager and establishes its initial bundle: hydrated from the
// cache, else seeded from the environment, else obtained by one login attempt.
// A failed initial login is logged, not returned; the Manager then starts
// without a bundle. Background loops are not started until Start.
func New(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.XSRFCookieName == "" {
		cfg.XSRFCookieName = tokensource.DefaultXSRFCookieName
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = tokensource.DefaultSessionCookieName
	}

	m := &Manager{
		cfg:      cfg,
		now:      time.Now,
		minDelay: minRefreshDelay,
	}
	for _, opt := range opts {
		opt(m)
	}

	headers, err := browserHeaders(cfg.BaseURL, cfg.RefererPath)
	if err != nil {
		return nil, err
	}
	m.headers = headers

	sourceOpts := []tokensource.Option{
		tokensource.WithCookieNames(cfg.XSRFCookieName, cfg.SessionCookieName),
	}
	if cfg.LoginPath != "" {
		sourceOpts = append(sourceOpts, tokensource.WithLoginPath(cfg.LoginPath))
	}
	if cfg.UsernameField != "" {
		sourceOpts = append(sourceOpts, tokensource.WithUsernameField(cfg.UsernameField))
	}
	if m.auth == nil {
		auth, err := tokensource.NewAuthenticator(cfg.BaseURL, sourceOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating authenticator: %w", err)
		}
		m.auth = auth
	}
	if m.prober == nil {
		prober, err := tokensource.NewProber(cfg.BaseURL, cfg.KeepalivePath, sourceOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating keepalive prober: %w", err)
		}
		m.prober = prober
	}
	m.metrics = newMetrics(m.registerer)

	m.initialize(ctx)
	return m, nil
}

// initialize runs hydrate → seed → login, stopping at the first source that
// yields a bundle.
func (m *Manager) initialize(ctx context.Context) {
	if b, ok := m.readStore(ctx, m.cache, "cache"); ok {
		m.install(b)
		slog.InfoContext(ctx, "loaded cached dashboard session", "refreshed_at", b.RefreshedAt, "expires_at", b.ExpiresAt)
		return
	}

	if b, ok := m.readStore(ctx, m.seed, "environment"); ok {
		m.install(b)
		slog.InfoContext(ctx, "loaded dashboard session from environment")
		return
	}

	if !m.cfg.Credentials.Configured() {
		slog.WarnContext(ctx, "dashboard credentials not configured; session refresh disabled")
		return
	}

	if m.skipInitialLogin {
		return
	}
	if _, err := m.Refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "unable to obtain initial dashboard session", "error", err)
	}
}

// readStore reads a bundle from store, treating every failure as a miss.
func (m *Manager) readStore(ctx context.Context, store tokenstore.Store, name string) (tokenstore.Bundle, bool) {
	if store == nil {
		return tokenstore.Bundle{}, false
	}
	b, err := store.Read(ctx)
	switch {
	case err == nil:
		return b, true
	case errors.Is(err, tokenstore.ErrNotFound):
		slog.DebugContext(ctx, "no stored dashboard session", "source", name)
	default:
		slog.WarnContext(ctx, "failed to load stored dashboard session", "source", name, "error", err)
	}
	return tokenstore.Bundle{}, false
}

// install makes b the current bundle without persisting it.
func (m *Manager) install(b tokenstore.Bundle) {
	m.mu.Lock()
	m.current = &b
	m.mu.Unlock()
	m.metrics.observeBundle(b)
}

// Refresh logs in and replaces the current bundle with the result. Concurrent
// calls share one login. On failure the previous bundle stays current.
//
// The shared login is detached from any single caller's cancellation and is
// bounded by the authenticator's own timeout. A caller whose ctx ends first
// gets ctx.Err() while the login carries on for the others.
func (m *Manager) Refresh(ctx context.Context) (tokenstore.Bundle, error) {
	if !m.cfg.Credentials.Configured() {
		m.metrics.refreshes.WithLabelValues(refreshResult(ErrCredentialsNotConfigured)).Inc()
		return tokenstore.Bundle{}, ErrCredentialsNotConfigured
	}

	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return tokenstore.Bundle{}, res.Err
		}
		return res.Val.(tokenstore.Bundle), nil
	case <-ctx.Done():
		return tokenstore.Bundle{}, ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (tokenstore.Bundle, error) {
	start := time.Now()
	// Network I/O stays outside the lock so readers keep the old bundle meanwhile
	sess, err := m.auth.Login(ctx, m.cfg.Credentials)
	m.metrics.refreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.refreshes.WithLabelValues(refreshResult(err)).Inc()
		return tokenstore.Bundle{}, fmt.Errorf("refreshing dashboard session: %w", err)
	}

	refreshedAt := m.now().UTC()
	expiresAt := refreshedAt.Add(m.cfg.RefreshInterval)
	b := tokenstore.Bundle{
		XSRFToken:     sess.XSRFToken,
		SessionCookie: sess.SessionCookie,
		FormToken:     sess.FormToken,
		RefreshedAt:   refreshedAt,
		ExpiresAt:     &expiresAt,
	}
	err = b.Validate()
	if err == nil && b.FormToken == "" {
		err = fmt.Errorf("%w: missing form_token", tokenstore.ErrIncompleteBundle)
	}
	if err != nil {
		m.metrics.refreshes.WithLabelValues(refreshResult(err)).Inc()
		return tokenstore.Bundle{}, fmt.Errorf("refreshing dashboard session: %w", err)
	}

	m.mu.Lock()
	m.current = &b
	var persistErr error
	if m.cache != nil {
		persistErr = m.cache.Write(ctx, b)
	}
	m.mu.Unlock()

	m.metrics.refreshes.WithLabelValues(refreshResult(nil)).Inc()
	m.metrics.observeBundle(b)
	if persistErr != nil {
		slog.ErrorContext(ctx, "failed to persist dashboard session", "error", persistErr)
	}

	slog.InfoContext(ctx, "obtained fresh dashboard session", "next_refresh_due", expiresAt)
	return b, nil
}

// snapshot returns a copy of the current bundle.
func (m *Manager) snapshot() (tokenstore.Bundle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return tokenstore.Bundle{}, false
	}
	return *m.current, true
}

// Bundle returns the current bundle, if any.
func (m *Manager) Bundle() (tokenstore.Bundle, bool) {
	return m.snapshot()
}

// HeadersAndCookies returns the request headers (browser identity plus
// X-XSRF-TOKEN) and cookies for an authenticated dashboard request. Both are
// drawn from the same bundle. Returns ErrNotAuthenticated when no bundle is held.
func (m *Manager) HeadersAndCookies() (http.Header, map[string]string, error) {
	b, ok := m.snapshot()
	if !ok {
		return nil, nil, ErrNotAuthenticated
	}

	headers := m.headers.Clone()
	headers.Set(xsrfHeader, b.XSRFToken)
	cookies := map[string]string{
		m.cfg.XSRFCookieName:    b.XSRFToken,
		m.cfg.SessionCookieName: b.SessionCookie,
	}
	return headers, cookies, nil
}

// FormToken returns the form token required on state-changing submissions.
// Returns ErrNotAuthenticated when no bundle is held.
func (m *Manager) FormToken() (string, error) {
	b, ok := m.snapshot()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return b.FormToken, nil
}

// Status summarizes the manager state for operators.
type Status struct {
	Authenticated bool       `json:"authenticated"`
	RefreshedAt   *time.Time `json:"refreshed_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Expired       bool       `json:"expired"`
	NextRefresh   *time.Time `json:"next_refresh,omitempty"`
	Scheduling    bool       `json:"scheduling"`
	Keepalive     bool       `json:"keepalive"`
}

// Status returns a point-in-time summary of the held bundle and the loops.
func (m *Manager) Status() Status {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	running := m.cancel != nil && !m.stopped
	st := Status{
		Scheduling: running,
		Keepalive:  running && m.cfg.KeepaliveInterval > 0,
	}
	if m.current != nil {
		refreshedAt := m.current.RefreshedAt
		st.Authenticated = true
		st.RefreshedAt = &refreshedAt
		st.ExpiresAt = m.current.ExpiresAt
		st.Expired = m.current.Expired(now)
	}
	if running {
		due := m.nextRefreshDueLocked(now)
		st.NextRefresh = &due
	}
	return st
}
