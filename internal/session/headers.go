package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/florianilch/sessionkeeper/internal/tokensource"
)

const xsrfHeader = "X-XSRF-TOKEN"

// DefaultRefererPath is the dashboard page API calls claim to originate from.
const DefaultRefererPath = "/videoteammsg/videomailprogress"

// browserHeaders returns the fixed header set mirroring a desktop Chrome
// session on the dashboard. Only X-XSRF-TOKEN varies per bundle and is added later.
func browserHeaders(baseURL, refererPath string) (http.Header, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if refererPath == "" {
		refererPath = DefaultRefererPath
	}
	origin := u.Scheme + "://" + u.Host

	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Type", "application/json;charset=UTF-8")
	h.Set("DNT", "1")
	h.Set("Origin", origin)
	h.Set("Pragma", "no-cache")
	h.Set("Referer", u.JoinPath(refererPath).String())
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("User-Agent", tokensource.UserAgent())
	h.Set("Sec-Ch-Ua", `"Chromium";v="140", "Not=A?Brand";v="24", "Google Chrome";v="140"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"macOS"`)
	return h, nil
}
