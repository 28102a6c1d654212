package security

import (
	"net/url"
	"strings"

	"sportsdash/internal/config"
)

// Request carries the parts of an incoming request the guards look at.
type Request struct {
	Host    string
	Referer string
	Origin  string
	// ClientID identifies the caller for rate limiting, usually the client IP.
	ClientID string
}

// OriginGuard is a same-site check for state-mutating requests. It compares
// the declared Referer or Origin with the Host the request was sent to.
// It is a heuristic, not a CSRF token.
type OriginGuard struct {
	env config.Environment
}

// NewOriginGuard creates an OriginGuard for the given environment.
func NewOriginGuard(env config.Environment) *OriginGuard {
	return &OriginGuard{env: env}
}

// Verify reports whether the request appears to come from the same site.
// Without a usable header it fails open in development and closed otherwise.
func (g *OriginGuard) Verify(r Request) bool {
	host := strings.TrimSpace(r.Host)
	if host != "" {
		if matched, usable := sameHost(r.Referer, host); usable {
			return matched
		}
		if matched, usable := sameHost(r.Origin, host); usable {
			return matched
		}
	}
	return g.env == config.Development
}

// sameHost parses raw as a URL and compares its host with host. usable is
// false when raw is empty or cannot be parsed.
func sameHost(raw, host string) (matched, usable bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return false, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false, false
	}
	return u.Host == host, true
}
