package usecase

import "github.com/petfooddb/catalog/internal/domain"

// AuthorityRanking orders record provenances by how much we trust the
// source. One ranking instance is shared by completeness tie-breaking
// and by sourced-field conflict resolution so the two can never
// disagree.
type AuthorityRanking struct {
	ranks map[domain.Provenance]int
}

// NewAuthorityRanking builds a ranking from most to least authoritative.
// Provenances absent from the order rank below every listed one.
func NewAuthorityRanking(order []domain.Provenance) *AuthorityRanking {
	ranks := make(map[domain.Provenance]int, len(order))
	for i, p := range order {
		ranks[p] = len(order) - i
	}
	return &AuthorityRanking{ranks: ranks}
}

// DefaultAuthorityRanking ranks manufacturer data above structured
// retailer feeds, above generic scrapes, above legacy imports.
func DefaultAuthorityRanking() *AuthorityRanking {
	return NewAuthorityRanking([]domain.Provenance{
		domain.ProvenanceManufacturer,
		domain.ProvenanceRetailerFeed,
		domain.ProvenanceScrape,
		domain.ProvenanceLegacy,
	})
}

// Rank returns the precedence of a provenance; higher is more trusted.
// Unknown provenances rank 0.
func (r *AuthorityRanking) Rank(p domain.Provenance) int {
	return r.ranks[p]
}

// SourcedValue is a field value together with the provenance it came
// from, for attributes resolved by authority rather than first-fill.
type SourcedValue struct {
	Value  string
	Source domain.Provenance
}

// Resolve picks between an existing and an incoming sourced value.
// Empty incoming values never displace data. Otherwise the higher
// authority wins; on equal authority the existing non-empty value is
// kept, so resolution order cannot flip results between runs.
func (r *AuthorityRanking) Resolve(existing, incoming SourcedValue) SourcedValue {
	if incoming.Value == "" {
		return existing
	}
	if existing.Value == "" {
		return incoming
	}
	if r.Rank(incoming.Source) > r.Rank(existing.Source) {
		return incoming
	}
	return existing
}
