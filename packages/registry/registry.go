// Package registry holds the deduplicated set of accepted domains.
package registry

import (
	"sort"
	"sync"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

// Registry is the single shared mutable resource of a run. All methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[domain.Domain]domain.RegistryEntry
	next    int64
}

func New() *Registry {
	return &Registry{entries: make(map[domain.Domain]domain.RegistryEntry)}
}

// InsertIfAbsent adds d with provenance p and reports whether it was new.
// An existing entry, and its provenance, is never overwritten.
func (r *Registry) InsertIfAbsent(d domain.Domain, p domain.Provenance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[d]; exists {
		return false
	}
	r.next++
	r.entries[d] = domain.RegistryEntry{Domain: d, Provenance: p, FirstSeenOrder: r.next}
	return true
}

func (r *Registry) Get(d domain.Domain) (domain.RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[d]
	return e, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns a copy of all entries sorted by domain.
func (r *Registry) Snapshot() []domain.RegistryEntry {
	r.mu.Lock()
	out := make([]domain.RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Domains returns the sorted domain strings of a snapshot.
func (r *Registry) Domains() []string {
	snap := r.Snapshot()
	out := make([]string, len(snap))
	for i, e := range snap {
		out[i] = string(e.Domain)
	}
	return out
}

func (r *Registry) CountByProvenance() map[domain.Provenance]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.Provenance]int, 4)
	for _, e := range r.entries {
		counts[e.Provenance]++
	}
	return counts
}
