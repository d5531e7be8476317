// Package netguard holds the network safety primitives of the ingestion
// gateway: URL scheme and private-address checks (SSRF prevention) and
// bounded reads.
package netguard

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("netguard: body exceeds size limit")

// ErrSSRF is returned when a URL targets a private/loopback address.
var ErrSSRF = errors.New("netguard: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("netguard: only http and https schemes are allowed")

// ErrNoHost is returned when a URL has no hostname.
var ErrNoHost = errors.New("netguard: URL has no host")

var privateNets = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"fc00::/7",
	"::1/128",
)

// CheckScheme parses rawURL and verifies it is an absolute http(s) URL with
// a host. It performs no network access.
func CheckScheme(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("netguard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return nil, ErrNoHost
	}
	return u, nil
}

// ValidateURL checks that rawURL uses http/https, has a hostname, and does
// not resolve to a private or loopback IP.
// DNS resolution is performed to catch internal hostnames.
func ValidateURL(rawURL string) error {
	u, err := CheckScheme(rawURL)
	if err != nil {
		return err
	}
	host := u.Hostname()

	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return ErrSSRF
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// Unresolvable hosts fail at connection time with a transport error.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && IsPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r. It returns ErrTooLarge as
// soon as more than maxBytes are available, having buffered at most
// maxBytes+1 bytes.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// IsPrivateIP reports whether ip is loopback, link-local, unspecified or in
// a private range.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}
