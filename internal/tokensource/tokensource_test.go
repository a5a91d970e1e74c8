package tokensource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFormToken(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		wantErr error
	}{
		{
			name: "hidden input",
			html: `<html><body><form><input type="hidden" name="_token" value="form-abc"></form></body></html>`,
			want: "form-abc",
		},
		{
			name: "meta fallback",
			html: `<html><head><meta name="csrf-token" content="meta-xyz"></head><body></body></html>`,
			want: "meta-xyz",
		},
		{
			name: "input wins over earlier meta",
			html: `<html><head><meta name="csrf-token" content="meta-xyz"></head>` +
				`<body><input name="_token" value="form-abc"></body></html>`,
			want: "form-abc",
		},
		{
			name: "empty input value falls back to meta",
			html: `<html><head><meta name="csrf-token" content="meta-xyz"></head>` +
				`<body><input name="_token" value=""></body></html>`,
			want: "meta-xyz",
		},
		{
			name:    "neither present",
			html:    `<html><body><form><input name="email"></form></body></html>`,
			wantErr: ErrFormTokenNotFound,
		},
		{
			name:    "meta without content",
			html:    `<html><head><meta name="csrf-token"></head></html>`,
			wantErr: ErrFormTokenNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFormToken(strings.NewReader(tt.html))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeDashboard mimics the login flow: GET renders the form, POST validates
// the submission, sets cookies and redirects.
type fakeDashboard struct {
	page          string
	submitStatus  int
	setXSRF       bool
	setSession    bool
	gotForm       map[string]string
	keepaliveCode int
	keepaliveSeen http.Header
	keepaliveTok  string
}

func (d *fakeDashboard) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(d.page))
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d.gotForm = map[string]string{}
		for k := range r.PostForm {
			d.gotForm[k] = r.PostForm.Get(k)
		}
		if d.submitStatus != 0 {
			w.WriteHeader(d.submitStatus)
			return
		}
		if d.setXSRF {
			http.SetCookie(w, &http.Cookie{Name: DefaultXSRFCookieName, Value: "xsrf-new", Path: "/"})
		}
		if d.setSession {
			http.SetCookie(w, &http.Cookie{Name: DefaultSessionCookieName, Value: "sess-new", Path: "/", HttpOnly: true})
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>welcome</html>"))
	})
	mux.HandleFunc("GET /external/logincheck", func(w http.ResponseWriter, r *http.Request) {
		d.keepaliveSeen = r.Header.Clone()
		d.keepaliveTok = r.URL.Query().Get("_token")
		if d.keepaliveCode != 0 {
			w.WriteHeader(d.keepaliveCode)
		}
	})
	return mux
}

const loginPage = `<html><head><meta name="csrf-token" content="meta-token"></head>
<body><form method="post"><input type="hidden" name="_token" value="form-token"></form></body></html>`

func TestAuthenticatorLogin(t *testing.T) {
	dash := &fakeDashboard{page: loginPage, setXSRF: true, setSession: true}
	srv := httptest.NewServer(dash.handler())
	defer srv.Close()

	auth, err := NewAuthenticator(srv.URL + "/")
	require.NoError(t, err)

	sess, err := auth.Login(context.Background(), Credentials{Username: "coach@example.com", Password: "hunter2"})
	require.NoError(t, err)

	assert.Equal(t, Session{XSRFToken: "xsrf-new", SessionCookie: "sess-new", FormToken: "form-token"}, sess)
	assert.Equal(t, map[string]string{
		"email":    "coach@example.com",
		"password": "hunter2",
		"_token":   "form-token",
	}, dash.gotForm)
}

func TestAuthenticatorUsernameField(t *testing.T) {
	dash := &fakeDashboard{page: loginPage, setXSRF: true, setSession: true}
	srv := httptest.NewServer(dash.handler())
	defer srv.Close()

	auth, err := NewAuthenticator(srv.URL, WithUsernameField("username"))
	require.NoError(t, err)

	_, err = auth.Login(context.Background(), Credentials{Username: "coach", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "coach", dash.gotForm["username"])
	assert.NotContains(t, dash.gotForm, "email")
}

func TestAuthenticatorLoginFailures(t *testing.T) {
	tests := []struct {
		name   string
		dash   *fakeDashboard
		assert func(t *testing.T, err error)
	}{
		{
			name: "no token on page",
			dash: &fakeDashboard{page: "<html><body>maintenance</body></html>"},
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrFormTokenNotFound)
			},
		},
		{
			name: "rejected submit",
			dash: &fakeDashboard{page: loginPage, submitStatus: 419},
			assert: func(t *testing.T, err error) {
				var rejected *LoginRejectedError
				require.True(t, errors.As(err, &rejected))
				assert.Equal(t, 419, rejected.StatusCode)
				assert.Equal(t, "login submit", rejected.Step)
			},
		},
		{
			name: "session cookie missing",
			dash: &fakeDashboard{page: loginPage, setXSRF: true},
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSessionIncomplete)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.dash.handler())
			defer srv.Close()

			auth, err := NewAuthenticator(srv.URL)
			require.NoError(t, err)

			_, err = auth.Login(context.Background(), Credentials{Username: "u", Password: "p"})
			require.Error(t, err)
			tt.assert(t, err)
		})
	}
}

func TestNewAuthenticatorInvalidURL(t *testing.T) {
	_, err := NewAuthenticator("dashboard.example.com")
	assert.Error(t, err)
}

func TestProber(t *testing.T) {
	sess := Session{XSRFToken: "xsrf-1", SessionCookie: "sess-1", FormToken: "form-1"}

	t.Run("success", func(t *testing.T) {
		dash := &fakeDashboard{}
		srv := httptest.NewServer(dash.handler())
		defer srv.Close()

		probe, err := NewProber(srv.URL, "")
		require.NoError(t, err)

		status, err := probe.Probe(context.Background(), sess)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "form-1", dash.keepaliveTok)

		cookie := dash.keepaliveSeen.Get("Cookie")
		assert.Contains(t, cookie, "XSRF-TOKEN=xsrf-1")
		assert.Contains(t, cookie, "myapp_session=sess-1")
	})

	t.Run("soft failure", func(t *testing.T) {
		dash := &fakeDashboard{keepaliveCode: http.StatusUnauthorized}
		srv := httptest.NewServer(dash.handler())
		defer srv.Close()

		probe, err := NewProber(srv.URL, DefaultKeepalivePath)
		require.NoError(t, err)

		status, err := probe.Probe(context.Background(), sess)
		var probeErr *ProbeError
		require.True(t, errors.As(err, &probeErr))
		assert.Equal(t, http.StatusUnauthorized, probeErr.StatusCode)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}
