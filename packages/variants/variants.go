// Package variants expands accepted domains into numbered sibling candidates.
package variants

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

// Generator produces label+N siblings for N in [Min, Max].
type Generator struct {
	Min int
	Max int
}

func New(lo, hi int) Generator {
	return Generator{Min: lo, Max: hi}
}

// Count is the number of siblings Expand yields for an expandable domain.
// Max <= 0 disables expansion.
func (g Generator) Count() int {
	if g.Max <= 0 || g.Max < g.Min {
		return 0
	}
	return g.Max - g.Min + 1
}

// Expand returns the numbered siblings of d, sorted. Domains whose first label
// already ends in a digit are never expanded, which keeps fan-out to one level.
// The results are candidates only: they must be validated and classified again.
func (g Generator) Expand(d domain.Domain) []domain.Domain {
	if g.Count() == 0 {
		return nil
	}
	label, suffix, ok := strings.Cut(string(d), ".")
	if !ok || label == "" || suffix == "" {
		return nil
	}
	if last := label[len(label)-1]; last >= '0' && last <= '9' {
		return nil
	}

	out := make([]domain.Domain, 0, g.Count())
	for i := g.Min; i <= g.Max; i++ {
		out = append(out, domain.Domain(label+strconv.Itoa(i)+"."+suffix))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
