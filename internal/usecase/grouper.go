package usecase

import (
	"log"
	"sort"

	"github.com/petfooddb/catalog/internal/domain"
)

// Fuzzy similarity weights: overall edit-distance ratio matters more
// than token overlap, which forgives word order but not vocabulary.
const (
	simWeightEdit   = 0.6
	simWeightTokens = 0.4

	defaultSimilarityThreshold = 0.85
)

// ReviewReasonEmptyKey flags records whose name normalized to nothing.
const ReviewReasonEmptyKey = "name normalized to empty string"

// GrouperConfig holds configuration for the candidate grouper.
type GrouperConfig struct {
	SimilarityThreshold float64
	EnableFuzzyMatching bool
	EnableDebugLogging  bool
}

// Grouper buckets raw records into candidate duplicate groups: an exact
// pass over normalized keys, then a fuzzy pass that lets singletons
// join same-brand groups. Grouping is order-independent; any
// permutation of the input yields the same partition.
type Grouper struct {
	normalizer          *Normalizer
	brands              *BrandResolver
	similarityThreshold float64
	enableFuzzyMatching bool
	enableDebugLogging  bool
}

// NewGrouper creates a grouper with the given configuration.
func NewGrouper(normalizer *Normalizer, brands *BrandResolver, config GrouperConfig) *Grouper {
	threshold := config.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSimilarityThreshold
	}

	return &Grouper{
		normalizer:          normalizer,
		brands:              brands,
		similarityThreshold: threshold,
		enableFuzzyMatching: config.EnableFuzzyMatching,
		enableDebugLogging:  config.EnableDebugLogging,
	}
}

// Group partitions records into duplicate groups. Records whose key is
// empty come back as flagged singleton groups for manual review; they
// are never merged.
func (g *Grouper) Group(records []domain.RawRecord) []*domain.DuplicateGroup {
	members := g.deriveMembers(records)

	var flagged []*domain.DuplicateGroup
	buckets := make(map[string]*domain.DuplicateGroup)
	var bucketOrder []string

	for _, m := range members {
		if m.Key.Empty() {
			flagged = append(flagged, &domain.DuplicateGroup{
				Key:          m.Key,
				Members:      []*domain.GroupMember{m},
				ReviewReason: ReviewReasonEmptyKey,
			})
			continue
		}

		ks := m.Key.String()
		if grp, ok := buckets[ks]; ok {
			grp.Members = append(grp.Members, m)
		} else {
			buckets[ks] = &domain.DuplicateGroup{Key: m.Key, Members: []*domain.GroupMember{m}}
			bucketOrder = append(bucketOrder, ks)
		}
	}

	if g.enableFuzzyMatching {
		g.fuzzyPass(buckets, bucketOrder)
	}

	groups := make([]*domain.DuplicateGroup, 0, len(bucketOrder)+len(flagged))
	for _, ks := range bucketOrder {
		if grp, ok := buckets[ks]; ok {
			groups = append(groups, grp)
		}
	}
	groups = append(groups, flagged...)

	if g.enableDebugLogging {
		log.Printf("[GROUP] %d records -> %d groups (%d flagged)", len(records), len(groups), len(flagged))
	}
	return groups
}

// deriveMembers resolves brand, variant and key for every record and
// returns the members sorted by source id. The sort is what makes the
// whole pass order-independent: bucket insertion order and the
// first-seen representative of every bucket depend only on the ids.
func (g *Grouper) deriveMembers(records []domain.RawRecord) []*domain.GroupMember {
	members := make([]*domain.GroupMember, 0, len(records))
	for i := range records {
		rec := records[i]
		res := g.brands.Resolve(rec.BrandRaw, rec.NameRaw)

		base := g.normalizer.NormalizeBase(res.Name)
		base = g.brands.DebrandName(base, res.Family, rec.BrandRaw)

		members = append(members, &domain.GroupMember{
			Record:  &rec,
			Variant: ExtractVariant(res.Name),
			Key: domain.NormalizedKey{
				BrandFamily: g.brands.KeyFamily(res.Family, rec.BrandRaw),
				BaseName:    base,
				Form:        g.normalizer.Normalize(rec.Attributes.Form),
			},
			BrandFamily:  res.Family,
			Series:       res.Series,
			AdjustedName: res.Name,
			Match:        domain.MatchExact,
		})
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Record.SourceID < members[j].Record.SourceID
	})
	return members
}

// fuzzyPass lets singleton buckets join other buckets of the same brand
// family and form when their base names are similar enough. Comparison
// is always against a bucket's first-seen representative, and buckets
// are visited in canonical order, so the outcome does not depend on
// input order. Records with an unresolved brand never take part.
func (g *Grouper) fuzzyPass(buckets map[string]*domain.DuplicateGroup, bucketOrder []string) {
	for _, ks := range bucketOrder {
		grp, ok := buckets[ks]
		if !ok || len(grp.Members) != 1 {
			continue
		}
		m := grp.Members[0]
		if m.BrandFamily == FamilyOther {
			continue
		}

		var best *domain.DuplicateGroup
		bestScore := 0.0
		for _, cks := range bucketOrder {
			if cks == ks {
				continue
			}
			cand, ok := buckets[cks]
			if !ok {
				continue
			}
			rep := cand.Members[0]
			if rep.BrandFamily != m.BrandFamily || rep.Key.Form != m.Key.Form {
				continue
			}
			score := similarity(m.Key.BaseName, rep.Key.BaseName)
			if score >= g.similarityThreshold && score > bestScore {
				best = cand
				bestScore = score
			}
		}

		if best != nil {
			if g.enableDebugLogging {
				log.Printf("[GROUP] fuzzy join %q -> %q (%.3f)", m.Key.BaseName, best.Key.BaseName, bestScore)
			}
			m.Match = domain.MatchFuzzy
			best.Members = append(best.Members, m)
			delete(buckets, ks)
		}
	}
}

// similarity combines a normalized edit-distance ratio with token-set
// Jaccard overlap. Both inputs are already normalized base names.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	editRatio := 1 - float64(levenshteinDistance(a, b))/float64(longest)

	tokensA, tokensB := Tokenize(a), Tokenize(b)
	jaccard := 0.0
	if union := findUnion(tokensA, tokensB); union > 0 {
		matched, _ := findIntersection(tokensA, tokensB)
		jaccard = float64(matched) / float64(union)
	}

	return simWeightEdit*editRatio + simWeightTokens*jaccard
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findIntersection returns the count of common tokens and the matched tokens
func findIntersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}

	return len(matched), matched
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
