package session

import (
	"maps"
	"net/http"
	"slices"
)

// CredentialSource supplies headers and cookies for authenticated requests.
// *Manager implements it.
type CredentialSource interface {
	HeadersAndCookies() (http.Header, map[string]string, error)
}

// Compile-time check that Manager implements CredentialSource.
var _ CredentialSource = (*Manager)(nil)

// Transport is an http.RoundTripper that authenticates requests with the
// current dashboard session.
//
// Request headers set by the caller take precedence over the browser identity
// headers, except X-XSRF-TOKEN, which must match the session cookie. Session
// cookies replace any caller-supplied cookies of the same name.
type Transport struct {
	Source CredentialSource
	Base   http.RoundTripper
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements http.RoundTripper. Returns ErrNotAuthenticated when
// no session is held.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers, cookies, err := t.Source.HeadersAndCookies()
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	newReq := req.Clone(req.Context())
	for key, values := range headers {
		if key == http.CanonicalHeaderKey(xsrfHeader) || newReq.Header.Get(key) == "" {
			newReq.Header[key] = values
		}
	}

	existing := newReq.Cookies()
	newReq.Header.Del("Cookie")
	for _, c := range existing {
		if _, ours := cookies[c.Name]; !ours {
			newReq.AddCookie(c)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(cookies)) {
		newReq.AddCookie(&http.Cookie{Name: name, Value: cookies[name]})
	}

	return base.RoundTrip(newReq)
}
