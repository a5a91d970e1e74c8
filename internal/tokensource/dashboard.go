package tokensource

// Default dashboard endpoints and cookie names.
const (
	DefaultLoginPath         = "/auth/login"
	DefaultKeepalivePath     = "/external/logincheck"
	DefaultUsernameField     = "email"
	DefaultXSRFCookieName    = "XSRF-TOKEN"
	DefaultSessionCookieName = "myapp_session"

	// formTokenField is the hidden input name and the form/query parameter
	// carrying the form token.
	formTokenField = "_token"
)

// browserUserAgent is sent on login so the dashboard treats us like the browser
// the session is later impersonating.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

// UserAgent returns the browser identity used for dashboard requests.
func UserAgent() string {
	return browserUserAgent
}
