// Package classifier decides whether a validated domain belongs on the blocklist.
package classifier

import (
	"strings"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

// Rules carries every input of a classification. The zero value rejects everything.
type Rules struct {
	Exclusions []string // apex domains; a domain equal to or under one is excluded
	TLDs       []string // suffixes including the leading dot, e.g. ".casino"
	Keywords   []string
	// Permissive accepts NO_MATCH domains that are not excluded.
	Permissive bool
}

// Classify applies the rules to an already-normalized domain.
// Exclusion is checked before any positive signal.
func Classify(d domain.Domain, r Rules) domain.Verdict {
	s := string(d)

	if IsExcluded(d, r.Exclusions) {
		return domain.Verdict{Accepted: false, Reason: domain.Excluded}
	}
	for _, tld := range r.TLDs {
		if tld != "" && strings.HasSuffix(s, tld) {
			return domain.Verdict{Accepted: true, Reason: domain.TLDMatch}
		}
	}
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(s, kw) {
			return domain.Verdict{Accepted: true, Reason: domain.KeywordMatch}
		}
	}
	return domain.Verdict{Accepted: r.Permissive, Reason: domain.NoMatch}
}

// ClassifyRaw normalizes raw first; unusable input is reported as MALFORMED.
func ClassifyRaw(raw string, r Rules) (domain.Domain, domain.Verdict) {
	d, ok := domain.Normalize(raw)
	if !ok {
		return "", domain.Verdict{Accepted: false, Reason: domain.Malformed}
	}
	return d, Classify(d, r)
}

// IsExcluded reports whether d equals or is a subdomain of any apex.
func IsExcluded(d domain.Domain, apexes []string) bool {
	for _, apex := range apexes {
		if domain.IsSameOrSubdomain(string(d), apex) {
			return true
		}
	}
	return false
}
