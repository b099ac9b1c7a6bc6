// Package collector shapes the raw links of a rendered page into candidate URLs.
package collector

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

var skippedPrefixes = []string{"#", "mailto:", "javascript:", "tel:", "data:"}

// Collect resolves every link against currentPageURL and keeps the absolute
// http/https ones with a host. It does no domain validation.
func Collect(links []domain.PageLink, currentPageURL string) []domain.CandidateURL {
	base, err := url.Parse(currentPageURL)
	if err != nil || base.Host == "" {
		slog.Debug("Collector: unusable page URL", "url", currentPageURL, "error", err)
		return nil
	}
	source := domain.StripWWW(base.Hostname())

	type key struct{ href, text string }
	seen := make(map[key]struct{}, len(links))
	candidates := make([]domain.CandidateURL, 0, len(links))

	for _, link := range links {
		href := strings.TrimSpace(link.Href)
		if href == "" || hasSkippedPrefix(href) {
			continue
		}

		resolved, err := base.Parse(href)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") || resolved.Hostname() == "" {
			continue
		}
		resolved.Fragment = ""

		c := domain.CandidateURL{
			RawHref:          resolved.String(),
			VisibleText:      strings.Join(strings.Fields(link.Text), " "),
			SourcePageDomain: source,
		}
		k := key{c.RawHref, c.VisibleText}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		candidates = append(candidates, c)
	}

	slog.Debug("Collector: candidates built", "page", currentPageURL, "links", len(links), "candidates", len(candidates))
	return candidates
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
