// Package tokensource acquires dashboard session tokens by driving the
// dashboard's HTML login form.
//
// The dashboard uses cookie sessions with two anti-forgery values:
//   - An XSRF cookie that clients echo back in the X-XSRF-TOKEN header
//   - A form token rendered into HTML forms, required on state-changing submissions
//
// Neither is available through an API, so a login is a scripted form submission:
// fetch the login page, scrape the form token, post the credentials, and read the
// session cookies the server sets.
//
// # Login
//
//	auth, err := tokensource.NewAuthenticator(baseURL)
//	sess, err := auth.Login(ctx, tokensource.Credentials{Username: u, Password: p})
//	// sess.XSRFToken, sess.SessionCookie, sess.FormToken
//
// # Keepalive
//
// Use Prober to keep a server-side session from idling out between logins:
//
//	probe, err := tokensource.NewProber(baseURL, tokensource.DefaultKeepalivePath)
//	err = probe.Probe(ctx, sess)
//
// # Custom Base Transport
//
// Configure a custom base transport for login and probe requests (e.g., for
// proxies or tests):
//
//	auth, err := tokensource.NewAuthenticator(baseURL, tokensource.WithTransport(customTransport))
package tokensource
