package domain

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

const (
	minDomainLen = 4
	maxDomainLen = 100
)

var hostnameRe = regexp.MustCompile(`^[a-z0-9][-a-z0-9.]*[a-z0-9]$`)

// Normalize turns a raw hostname-like string into its canonical form.
// The second return value is false when the input is not a usable domain.
func Normalize(raw string) (Domain, bool) {
	host := strings.ToLower(strings.TrimSpace(raw))
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")

	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", false
		}
		host = strings.ToLower(ascii)
	}

	if len(host) < minDomainLen || len(host) > maxDomainLen {
		return "", false
	}
	if !strings.Contains(host, ".") {
		return "", false
	}
	if !hostnameRe.MatchString(host) {
		return "", false
	}
	return Domain(host), true
}

// HostOf extracts the host component of a URL without normalizing it.
// Port and IPv6 brackets are dropped; an unparseable URL yields "".
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// StripWWW lowercases a host and removes a leading "www." and trailing dot.
func StripWWW(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// IsSameOrSubdomain reports whether host equals parent or ends with "."+parent.
func IsSameOrSubdomain(host, parent string) bool {
	if host == "" || parent == "" {
		return false
	}
	return host == parent || strings.HasSuffix(host, "."+parent)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
