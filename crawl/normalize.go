// Package crawl walks a competitor website breadth-first, within depth and
// page-count limits, and assembles the pages it finds into a site snapshot.
//
// URL handling is strict: every candidate link is reduced to a canonical form
// before it touches the frontier, so the visited set, the page cap, and the
// snapshot diff all key on the same string.
package crawl

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrBadScheme rejects URLs that are not http or https (mailto:, tel:,
	// javascript:, and friends).
	ErrBadScheme = errors.New("unsupported scheme")
	// ErrOffDomain rejects URLs outside the competitor's registered domain.
	ErrOffDomain = errors.New("off-domain url")
	// ErrSkipped rejects in-domain URLs the crawl has no use for: account
	// and checkout flows, and binary assets.
	ErrSkipped = errors.New("skipped url")
)

// skipSegments are path substrings that mark utility pages. Matching is
// case-insensitive on the path.
var skipSegments = []string{
	"/login",
	"/signin",
	"/signup",
	"/logout",
	"/register",
	"/cart",
	"/checkout",
}

// skipExts are file extensions that mark non-page assets.
var skipExts = map[string]bool{
	".pdf": true, ".zip": true, ".exe": true, ".dmg": true, ".tar": true,
	".gz": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".css": true, ".js": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".webm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// Scope confines a crawl to one competitor's domain. The zero value is not
// usable; construct with NewScope.
type Scope struct {
	host string
}

// NewScope derives the crawl scope from the competitor's site URL.
func NewScope(siteURL string) (*Scope, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrBadScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("site url %q has no host", siteURL)
	}
	return &Scope{host: canonicalHost(u.Hostname())}, nil
}

// Host returns the canonical domain this scope is confined to.
func (s *Scope) Host() string { return s.host }

// Normalize reduces a URL to its canonical crawl form: lowercased scheme and
// host, default port and trailing slash stripped, query and fragment dropped.
// Rejections come back as ErrBadScheme, ErrOffDomain, or ErrSkipped.
//
// Normalization is idempotent: feeding the output back in returns it
// unchanged.
func (s *Scope) Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrBadScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	if canonicalHost(host) != s.host {
		return "", fmt.Errorf("%w: %s", ErrOffDomain, host)
	}

	// Keep explicit non-default ports; drop the rest.
	port := u.Port()
	if port != "" && !isDefaultPort(scheme, port) {
		host = host + ":" + port
	}

	pathLower := strings.ToLower(u.Path)
	for _, seg := range skipSegments {
		if strings.Contains(pathLower, seg) {
			return "", fmt.Errorf("%w: %s", ErrSkipped, u.Path)
		}
	}
	if skipExts[path.Ext(pathLower)] {
		return "", fmt.Errorf("%w: %s", ErrSkipped, u.Path)
	}

	canonical := url.URL{
		Scheme: scheme,
		Host:   host,
		// Trailing slash carries no routing information on the sites we
		// watch; stripping it folds "/pricing/" and "/pricing" together.
		// The root folds to a bare origin with no path at all.
		Path: strings.TrimRight(u.Path, "/"),
	}
	return canonical.String(), nil
}

// canonicalHost lowercases a hostname and folds the www variant onto the
// bare domain, so links to www.acme.com stay in scope for acme.com.
func canonicalHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
