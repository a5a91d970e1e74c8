package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/florianilch/sessionkeeper/internal/session"
)

// Session is what the proxy needs from the session manager.
type Session interface {
	session.CredentialSource
	Status() session.Status
}

// Option configures a Proxy.
type Option func(*config)

type config struct {
	baseURL   string
	transport http.RoundTripper
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// WithBaseURL sets the dashboard URL requests are forwarded to.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the base transport below the session transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.transport = transport
	}
}

// WithGatherer exposes the gatherer's metrics on /-/metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// WithLogger sets the request logger (slog.Default() otherwise).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Proxy is a local reverse proxy that forwards requests to the dashboard with
// the current session attached.
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a Proxy forwarding to the configured base URL.
func New(sess Session, opts ...Option) (*Proxy, error) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	upstream, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host required", cfg.baseURL)
	}

	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
		},
		// Flush as soon as the dashboard flushes
		FlushInterval: -1,
		Transport:     &session.Transport{Source: sess, Base: cfg.transport},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, session.ErrNotAuthenticated) {
				writeJSONError(r.Context(), w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			slog.ErrorContext(r.Context(), "upstream request failed", "error", err)
			writeJSONError(r.Context(), w, "upstream request failed", http.StatusBadGateway)
		},
	}

	middlewares := []func(http.Handler) http.Handler{
		Logging(cfg.logger),
		RequestID,
		Recovery,
	}

	mux := http.NewServeMux()

	mux.Handle("/", applyMiddlewares(reverseProxyHandler, middlewares...))
	mux.Handle("GET /-/status", applyMiddlewares(statusHandler(sess), middlewares...))
	if cfg.gatherer != nil {
		mux.Handle("GET /-/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	return &Proxy{mux: mux}, nil
}

// statusHandler reports the session state; 503 while unauthenticated.
func statusHandler(sess Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := sess.Status()
		code := http.StatusOK
		if !st.Authenticated {
			code = http.StatusServiceUnavailable
		}
		writeJSON(r.Context(), w, st, code)
	})
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
