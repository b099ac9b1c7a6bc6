// Package resolver decides where each candidate link really points.
//
// A candidate is either a direct external link, a plain same-origin link that is
// ignored, or a same-origin affiliate redirect. Redirects are resolved from the
// query string, then from the path, and only as a last resort by navigating to
// them, which is bounded per page by a Budget.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dancharlton9/gambling-blocklist/packages/classifier"
	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

// Navigator follows a URL through its redirects in an isolated context and
// returns the final URL. Implementations enforce their own timeout.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) (string, error)
}

type Config struct {
	RedirectPatterns      []string // path fragments such as "/out/"
	CTAPhrases            []string // lower-case call-to-action phrases
	QueryParams           []string // in priority order
	MaxNavigationsPerPage int
}

var DefaultQueryParams = []string{"url", "redirect", "destination", "target", "goto", "link", "out", "u", "r", "d"}

type Resolver struct {
	cfg   Config
	rules classifier.Rules
	nav   Navigator
}

func New(cfg Config, rules classifier.Rules, nav Navigator) *Resolver {
	if len(cfg.QueryParams) == 0 {
		cfg.QueryParams = DefaultQueryParams
	}
	// Path tokens are ambiguous, so they always need a positive match.
	rules.Permissive = false
	return &Resolver{cfg: cfg, rules: rules, nav: nav}
}

// ResolvePage resolves every candidate of one page. Candidates that can be
// settled without the network are handled first, so navigation never delays them.
func (r *Resolver) ResolvePage(ctx context.Context, candidates []domain.CandidateURL) []domain.Resolution {
	out := make([]domain.Resolution, len(candidates))
	var pending []int
	for i, c := range candidates {
		out[i] = r.Inspect(c)
		if out[i].State == domain.StateRedirectCandidate {
			pending = append(pending, i)
		}
	}

	budget := NewBudget(r.cfg.MaxNavigationsPerPage)
	navigated := make(map[string]domain.Resolution, len(pending))
	for _, i := range pending {
		href := out[i].Candidate.RawHref
		if prev, ok := navigated[href]; ok {
			prev.Candidate = out[i].Candidate
			out[i] = prev
			continue
		}
		out[i] = r.navigate(ctx, out[i], budget)
		if out[i].Method != domain.MethodCapped {
			navigated[href] = out[i]
		}
	}
	return out
}

// Resolve runs the full state machine for a single candidate.
func (r *Resolver) Resolve(ctx context.Context, c domain.CandidateURL, budget *Budget) domain.Resolution {
	res := r.Inspect(c)
	if res.State != domain.StateRedirectCandidate {
		return res
	}
	return r.navigate(ctx, res, budget)
}

// Inspect applies every step that needs no network access. A result in state
// REDIRECT_CANDIDATE still needs active navigation.
func (r *Resolver) Inspect(c domain.CandidateURL) domain.Resolution {
	res := domain.Resolution{Candidate: c, State: domain.StateFailed, Method: domain.MethodNone}

	u, err := url.Parse(c.RawHref)
	if err != nil || u.Hostname() == "" {
		res.Err = fmt.Errorf("%w: unparseable href %q", domain.ErrValidation, c.RawHref)
		return res
	}
	linkDomain := strings.ToLower(u.Hostname())
	source := domain.StripWWW(c.SourcePageDomain)

	if !domain.IsSameOrSubdomain(domain.StripWWW(linkDomain), source) {
		res.State = domain.StateDirect
		res.Method = domain.MethodLink
		res.Destination = linkDomain
		return res
	}

	if !r.isRedirectPath(u.Path) && !r.isCallToAction(c.VisibleText) {
		res.State = domain.StateSameOriginPlain
		return res
	}

	res.State = domain.StateRedirectCandidate

	if host, ok := r.fromQuery(u, source); ok {
		res.State = domain.StateResolved
		res.Method = domain.MethodQueryParam
		res.Destination = host
		return res
	}
	if host, ok := r.fromPath(u, source); ok {
		res.State = domain.StateResolved
		res.Method = domain.MethodPathToken
		res.Destination = host
		return res
	}
	return res
}

func (r *Resolver) navigate(ctx context.Context, res domain.Resolution, budget *Budget) domain.Resolution {
	res.State = domain.StateFailed

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if !budget.Take() {
		res.Method = domain.MethodCapped
		return res
	}

	res.Method = domain.MethodNavigation
	final, err := r.nav.Navigate(ctx, res.Candidate.RawHref)
	if err != nil {
		res.Err = classifyNavError(err)
		slog.Debug("Resolver: navigation failed", "href", res.Candidate.RawHref, "error", res.Err)
		return res
	}

	host := domain.HostOf(final)
	if host == "" || domain.IsSameOrSubdomain(domain.StripWWW(host), domain.StripWWW(res.Candidate.SourcePageDomain)) {
		res.Err = fmt.Errorf("%w: navigation ended on %q", domain.ErrNavigation, final)
		return res
	}

	res.State = domain.StateResolved
	res.Destination = host
	return res
}

func (r *Resolver) isRedirectPath(path string) bool {
	p := strings.ToLower(path) + "/"
	for _, pattern := range r.cfg.RedirectPatterns {
		if pattern != "" && strings.Contains(p, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func (r *Resolver) isCallToAction(text string) bool {
	t := strings.ToLower(text)
	if t == "" {
		return false
	}
	for _, phrase := range r.cfg.CTAPhrases {
		if phrase != "" && strings.Contains(t, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// fromQuery scans the prioritized query parameters for an embedded destination.
func (r *Resolver) fromQuery(u *url.URL, source string) (string, bool) {
	q := u.Query()
	for _, name := range r.cfg.QueryParams {
		for _, v := range q[name] {
			if host, ok := destinationHost(v, source); ok {
				return host, true
			}
		}
	}
	return "", false
}

// fromPath looks for a path segment that is itself an acceptable domain.
func (r *Resolver) fromPath(u *url.URL, source string) (string, bool) {
	for _, seg := range strings.Split(u.EscapedPath(), "/") {
		if seg == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		d, ok := domain.Normalize(seg)
		if !ok || domain.IsSameOrSubdomain(string(d), source) {
			continue
		}
		if classifier.Classify(d, r.rules).Accepted {
			return seg, true
		}
	}
	return "", false
}

func destinationHost(value, source string) (string, bool) {
	v := strings.TrimSpace(value)
	if strings.Contains(v, "%") {
		if dec, err := url.QueryUnescape(v); err == nil {
			v = dec
		}
	}
	if v == "" {
		return "", false
	}
	if !strings.Contains(v, "://") {
		v = "https://" + strings.TrimPrefix(v, "//")
	}
	host := domain.HostOf(v)
	d, ok := domain.Normalize(host)
	if !ok || domain.IsSameOrSubdomain(string(d), source) {
		return "", false
	}
	return host, true
}

func classifyNavError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNavigationTimeout), errors.Is(err, domain.ErrNavigation):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrNavigationTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrNavigation, err)
	}
}
