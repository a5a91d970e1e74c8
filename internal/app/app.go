package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/sessionkeeper/internal/proxy"
	"github.com/florianilch/sessionkeeper/internal/session"
	"github.com/florianilch/sessionkeeper/internal/tokenstore"
)

// App orchestrates the lifecycle of the session manager and the local proxy.
type App struct {
	cfg     *Config
	session *session.Manager
	proxy   *proxy.Proxy
}

// New creates a new App instance. Establishing the initial session (cache,
// environment seed or login) happens here; background loops start in Start.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager, err := NewSessionManager(ctx, cfg, session.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	proxyServer, err := proxy.New(manager,
		proxy.WithBaseURL(cfg.Dashboard.BaseURL),
		proxy.WithGatherer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:     cfg,
		session: manager,
		proxy:   proxyServer,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	a.session.Start(gCtx)
	shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
		a.session.Stop()
		return nil
	})

	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		a.session.Stop()
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address, "authenticated", a.session.Status().Authenticated)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// NewSessionManager creates a session.Manager from application configuration,
// wiring the cache and environment seed stores.
func NewSessionManager(ctx context.Context, cfg *Config, opts ...session.Option) (*session.Manager, error) {
	cache, err := cfg.Cache.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}
	seed, err := cfg.Seed.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create seed store: %w", err)
	}

	opts = append([]session.Option{session.WithCache(cache), session.WithSeed(seed)}, opts...)
	manager, err := session.New(ctx, cfg.SessionConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	return manager, nil
}

// Refresh performs one login and persists the result to the cache.
func Refresh(ctx context.Context, cfg *Config) (tokenstore.Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return tokenstore.Bundle{}, fmt.Errorf("invalid configuration: %w", err)
	}

	cache, err := cfg.Cache.NewStore()
	if err != nil {
		return tokenstore.Bundle{}, fmt.Errorf("failed to create cache store: %w", err)
	}
	manager, err := session.New(ctx, cfg.SessionConfig(), session.WithCache(cache), session.WithoutInitialLogin())
	if err != nil {
		return tokenstore.Bundle{}, fmt.Errorf("failed to create session manager: %w", err)
	}
	return manager.Refresh(ctx)
}

// CacheStatus describes the bundle currently held by the cache store.
type CacheStatus struct {
	Storage     CacheStorageType `json:"storage"`
	Present     bool             `json:"present"`
	Error       string           `json:"error,omitempty"`
	RefreshedAt *time.Time       `json:"refreshed_at,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	Expired     bool             `json:"expired"`
}

// InspectCache reads the cache store without logging in. A missing or
// unreadable cache is reported in the status, not as an error.
func InspectCache(ctx context.Context, cfg *Config, now time.Time) (CacheStatus, error) {
	cache, err := cfg.Cache.NewStore()
	if err != nil {
		return CacheStatus{}, fmt.Errorf("failed to create cache store: %w", err)
	}

	st := CacheStatus{Storage: cfg.Cache.Storage}
	b, err := cache.Read(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		return st, nil
	case err != nil:
		st.Error = err.Error()
		return st, nil
	}

	st.Present = true
	st.RefreshedAt = &b.RefreshedAt
	st.ExpiresAt = b.ExpiresAt
	st.Expired = b.Expired(now)
	return st, nil
}
