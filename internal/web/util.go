package web

import (
	"net/url"
	"strings"
)

// safeRelayPath keeps post-login redirects on this site. RelayState is
// attacker-influenced (it round-trips through the browser), so anything
// that is not a plain local path falls back to the configured default.
func safeRelayPath(relay, fallback string) string {
	if relay == "" {
		return fallback
	}
	if !strings.HasPrefix(relay, "/") || strings.HasPrefix(relay, "//") {
		return fallback
	}
	if strings.Contains(relay, "\\") {
		return fallback
	}
	return relay
}

// appendQuery adds params to target, preserving any query it already has.
func appendQuery(target string, params url.Values) string {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
