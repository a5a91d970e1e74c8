package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/sessionkeeper/internal/session"
)

// stubSession serves a fixed bundle, or ErrNotAuthenticated when xsrf is empty.
type stubSession struct {
	xsrf    string
	session string
}

func (s *stubSession) HeadersAndCookies() (http.Header, map[string]string, error) {
	if s.xsrf == "" {
		return nil, nil, session.ErrNotAuthenticated
	}
	h := http.Header{}
	h.Set("X-XSRF-TOKEN", s.xsrf)
	h.Set("Accept", "application/json")
	return h, map[string]string{"XSRF-TOKEN": s.xsrf, "myapp_session": s.session}, nil
}

func (s *stubSession) Status() session.Status {
	if s.xsrf == "" {
		return session.Status{}
	}
	refreshed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return session.Status{Authenticated: true, RefreshedAt: &refreshed, Scheduling: true}
}

func newUpstream(t *testing.T) (*httptest.Server, *http.Request) {
	t.Helper()
	seen := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = *r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"threads": []}`))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestProxyForwardsWithSession(t *testing.T) {
	upstream, seen := newUpstream(t)

	p, err := New(&stubSession{xsrf: "xsrf-1", session: "sess-1"}, WithBaseURL(upstream.URL))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/videoteammsg/inbox?limit=50", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threads": []}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, "/videoteammsg/inbox", seen.URL.Path)
	assert.Equal(t, "50", seen.URL.Query().Get("limit"))
	assert.Equal(t, "xsrf-1", seen.Header.Get("X-XSRF-TOKEN"))

	cookie, err := seen.Cookie("myapp_session")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cookie.Value)
}

func TestProxyUnauthenticated(t *testing.T) {
	upstream, _ := newUpstream(t)

	p, err := New(&stubSession{}, WithBaseURL(upstream.URL))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videoteammsg/inbox", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, session.ErrNotAuthenticated.Error(), body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestProxyStatus(t *testing.T) {
	tests := []struct {
		name     string
		sess     *stubSession
		wantCode int
		wantAuth bool
	}{
		{name: "authenticated", sess: &stubSession{xsrf: "x", session: "s"}, wantCode: http.StatusOK, wantAuth: true},
		{name: "unauthenticated", sess: &stubSession{}, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.sess, WithBaseURL("https://dashboard.example.com"))
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/status", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var st session.Status
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
			assert.Equal(t, tt.wantAuth, st.Authenticated)
		})
	}
}

func TestProxyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sessionkeeper_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	p, err := New(&stubSession{}, WithBaseURL("https://dashboard.example.com"), WithGatherer(reg))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sessionkeeper_test_total 1")
}

func TestNewInvalidBaseURL(t *testing.T) {
	_, err := New(&stubSession{}, WithBaseURL("/relative"))
	assert.Error(t, err)
}
