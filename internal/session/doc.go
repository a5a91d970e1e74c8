// Package session owns the lifecycle of the authenticated dashboard session.
//
// A Manager is constructed once per process and handed to every consumer that
// needs credentials. Construction hydrates the session from the cache store,
// falls back to an environment seed, and finally attempts a live login.
// Start launches two background loops: one refreshes the session before it
// expires, the other probes a keepalive endpoint so the server-side session
// does not idle out between refreshes. Stop ends both.
//
// Readers call HeadersAndCookies or FormToken; both return values taken from a
// single bundle, even while a refresh is installing its successor. Transport
// wraps those accessors as an http.RoundTripper.
package session
