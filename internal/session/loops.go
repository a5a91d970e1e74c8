package session

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/sessionkeeper/internal/tokensource"
)

// Start launches the refresh loop and, if KeepaliveInterval > 0, the keepalive
// loop. It returns immediately. Without credentials nothing is started and the
// manager keeps serving its cached or seeded bundle. Start is a no-op after
// Stop or when the loops are already running.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Credentials.Configured() {
		slog.InfoContext(ctx, "background session refresh disabled: no credentials")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		m.refreshLoop(loopCtx)
		return nil
	})
	if m.cfg.KeepaliveInterval > 0 {
		g.Go(func() error {
			m.keepaliveLoop(loopCtx)
			return nil
		})
	} else {
		slog.InfoContext(ctx, "session keepalive disabled")
	}

	done := m.done
	go func() {
		_ = g.Wait()
		close(done)
	}()

	slog.InfoContext(ctx, "background session refresh started",
		"refresh_interval", m.cfg.RefreshInterval, "keepalive_interval", m.cfg.KeepaliveInterval)
}

// Stop signals both loops to exit and waits until they have. It may be called
// any number of times, including before Start. The held bundle is kept.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// refreshLoop sleeps until the current bundle is due, then refreshes it.
// Failures are logged; the next attempt is scheduled from whatever bundle is current.
func (m *Manager) refreshLoop(ctx context.Context) {
	for {
		if !sleepContext(ctx, m.nextRefreshDelay()) {
			return
		}

		slog.InfoContext(ctx, "refreshing dashboard session via scheduled task")
		if _, err := m.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "scheduled session refresh failed", "error", err)
		}
	}
}

// keepaliveLoop probes the keepalive endpoint at a fixed interval.
func (m *Manager) keepaliveLoop(ctx context.Context) {
	for {
		if !sleepContext(ctx, m.cfg.KeepaliveInterval) {
			return
		}
		m.keepalive(ctx)
	}
}

// keepalive sends one probe with the current bundle. Failures are warnings only.
func (m *Manager) keepalive(ctx context.Context) {
	b, ok := m.snapshot()
	if !ok {
		m.metrics.keepalives.WithLabelValues("skipped").Inc()
		slog.DebugContext(ctx, "skipping keepalive: no session")
		return
	}

	status, err := m.prober.Probe(ctx, tokensource.Session{
		XSRFToken:     b.XSRFToken,
		SessionCookie: b.SessionCookie,
		FormToken:     b.FormToken,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.keepalives.WithLabelValues("failure").Inc()
		slog.WarnContext(ctx, "keepalive ping failed", "error", err)
		return
	}
	m.metrics.keepalives.WithLabelValues("success").Inc()
	slog.DebugContext(ctx, "keepalive successful", "status", status)
}

// nextRefreshDue returns the bundle's expiry, or now + RefreshInterval when
// there is no bundle or it carries no expiry.
func (m *Manager) nextRefreshDue() time.Time {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextRefreshDueLocked(now)
}

func (m *Manager) nextRefreshDueLocked(now time.Time) time.Time {
	if m.current != nil && m.current.ExpiresAt != nil {
		return *m.current.ExpiresAt
	}
	return now.Add(m.cfg.RefreshInterval)
}

// nextRefreshDelay is the time until nextRefreshDue, floored at the minimum delay.
func (m *Manager) nextRefreshDelay() time.Duration {
	return max(m.minDelay, m.nextRefreshDue().Sub(m.now()))
}

// sleepContext waits for d or until ctx is done. Reports whether the full
// duration elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
