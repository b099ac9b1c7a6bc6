// Package domain
package domain

// Domain is a canonical hostname produced by Normalize. Two domains are
// equal iff their strings are equal.
type Domain string

func (d Domain) String() string { return string(d) }

type Reason string

const (
	TLDMatch     Reason = "TLD_MATCH"
	KeywordMatch Reason = "KEYWORD_MATCH"
	Excluded     Reason = "EXCLUDED"
	Malformed    Reason = "MALFORMED"
	NoMatch      Reason = "NO_MATCH"
)

type Verdict struct {
	Accepted bool
	Reason   Reason
}

type Provenance string

const (
	Manual   Provenance = "MANUAL"
	Direct   Provenance = "DIRECT"
	Redirect Provenance = "REDIRECT"
	Variant  Provenance = "VARIANT"
)

type ResolveState string

const (
	StateDirect            ResolveState = "DIRECT"
	StateSameOriginPlain   ResolveState = "SAME_ORIGIN_PLAIN"
	StateRedirectCandidate ResolveState = "REDIRECT_CANDIDATE"
	StateResolved          ResolveState = "RESOLVED"
	StateFailed            ResolveState = "FAILED"
)

// ResolveMethod records which step of the resolver produced the outcome.
type ResolveMethod string

const (
	MethodNone       ResolveMethod = "none"
	MethodLink       ResolveMethod = "link"
	MethodQueryParam ResolveMethod = "query_param"
	MethodPathToken  ResolveMethod = "path_token"
	MethodNavigation ResolveMethod = "navigation"
	MethodCapped     ResolveMethod = "capped"
)

// PageLink is a raw (href, visible text) pair as enumerated from a rendered page.
type PageLink struct {
	Href string
	Text string
}

// Page is what a browser hands back after loading an aggregator URL.
type Page struct {
	URL      string // final URL after redirects
	Title    string
	Language string // ISO 639-3, empty when undetected
	Links    []PageLink
}

type CandidateURL struct {
	RawHref          string
	VisibleText      string
	SourcePageDomain string
}

// Resolution is the tagged outcome of running one CandidateURL through the resolver.
// Destination is the raw destination host; it still has to be normalized and classified.
type Resolution struct {
	Candidate   CandidateURL
	State       ResolveState
	Method      ResolveMethod
	Destination string
	Err         error
}

// Provenance returns the registry provenance for an accepted destination.
func (r Resolution) Provenance() Provenance {
	if r.Method == MethodLink {
		return Direct
	}
	return Redirect
}

type RegistryEntry struct {
	Domain         Domain
	Provenance     Provenance
	FirstSeenOrder int64
}
