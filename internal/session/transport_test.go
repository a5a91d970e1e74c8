package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportInjectsSession(t *testing.T) {
	var seen *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
	}))
	defer upstream.Close()

	m, err := New(context.Background(), Config{BaseURL: testBaseURL, Credentials: testCreds},
		WithAuthenticator(&fakeAuthenticator{}), WithProber(&fakeProber{}))
	require.NoError(t, err)

	client := &http.Client{Transport: &Transport{Source: m}}
	req, err := http.NewRequest(http.MethodPost, upstream.URL+"/videoteammsg/inbox", strings.NewReader("a=b"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-XSRF-TOKEN", "stale")
	req.AddCookie(&http.Cookie{Name: "myapp_session", Value: "stale"})
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.NotNil(t, seen)
	assert.Equal(t, "application/x-www-form-urlencoded", seen.Header.Get("Content-Type"), "caller headers win")
	assert.Equal(t, "xsrf-1", seen.Header.Get("X-XSRF-TOKEN"), "xsrf header always follows the session")
	assert.Equal(t, testBaseURL, seen.Header.Get("Origin"))
	assert.Equal(t, testBaseURL+DefaultRefererPath, seen.Header.Get("Referer"))

	cookies := map[string]string{}
	for _, c := range seen.Cookies() {
		cookies[c.Name] = c.Value
	}
	assert.Equal(t, map[string]string{
		"theme":         "dark",
		"myapp_session": "sess-1",
		"XSRF-TOKEN":    "xsrf-1",
	}, cookies)
}

func TestTransportNotAuthenticated(t *testing.T) {
	m, err := New(context.Background(), Config{BaseURL: testBaseURL})
	require.NoError(t, err)

	client := &http.Client{Transport: &Transport{Source: m}}
	_, err = client.Get("http://127.0.0.1:1/never-dialed")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
