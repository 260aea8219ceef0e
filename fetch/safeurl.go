package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrScheme is returned for URLs that are not http or https.
	ErrScheme = errors.New("unsupported scheme")
	// ErrPrivateAddress is returned when a hostname resolves to a private,
	// loopback, or link-local address.
	ErrPrivateAddress = errors.New("private address")
)

// ValidateURL vets a URL before it is fetched: only http/https schemes, and
// the host must not resolve to a private or loopback address. Hosts that do
// not resolve pass through; the fetch itself will surface the DNS error.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("empty host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
		}
		return nil
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable now may be resolvable at fetch time.
		return nil
	}
	for _, ip := range addrs {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, host, ip)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
