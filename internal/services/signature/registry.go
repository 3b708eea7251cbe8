package signature

import (
	"sort"

	"SignalFuse/internal/domain/models"
)

// Registry holds the latest normalized signature per domain.
// It is not safe for concurrent use; the engine owns it.
type Registry struct {
	latest map[models.Domain]models.DomainSignature
}

func NewRegistry() *Registry {
	return &Registry{latest: make(map[models.Domain]models.DomainSignature)}
}

// Ingest normalizes sig and stores it as the latest value for its domain.
// Signatures without a domain are ignored.
func (r *Registry) Ingest(sig models.DomainSignature) (models.DomainSignature, bool) {
	if sig.Domain == "" {
		return models.DomainSignature{}, false
	}
	n := Normalize(sig)
	r.latest[n.Domain] = n
	return n, true
}

func (r *Registry) Latest(d models.Domain) (models.DomainSignature, bool) {
	s, ok := r.latest[d]
	return s, ok
}

// All returns a copy of the registry contents.
func (r *Registry) All() map[models.Domain]models.DomainSignature {
	out := make(map[models.Domain]models.DomainSignature, len(r.latest))
	for k, v := range r.latest {
		out[k] = v
	}
	return out
}

// Domains returns the registered domains in sorted order.
func (r *Registry) Domains() []models.Domain {
	return SortedDomains(r.latest)
}

func (r *Registry) Len() int { return len(r.latest) }

// SortedDomains returns the keys of m in ascending order.
func SortedDomains(m map[models.Domain]models.DomainSignature) []models.Domain {
	out := make([]models.Domain, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
