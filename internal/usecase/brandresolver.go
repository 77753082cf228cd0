package usecase

import (
	"log"
	"sort"
	"strings"

	"github.com/petfooddb/catalog/internal/infrastructure/aliasmap"
)

// FamilyOther is the degraded family for records whose brand could not
// be resolved. Such records stay individually matchable but are never
// fuzzy-merged, and their grouping key carries the raw brand so two
// unknown brands with identical product names stay apart.
const FamilyOther = "other"

// BrandResolution is the outcome of resolving one record's brand.
// Name is the raw product name with any folded fragment prefix removed,
// and is what downstream key derivation and display should use.
type BrandResolution struct {
	Family string
	Series string
	Name   string
}

// BrandResolver maps raw brand strings to canonical (family, series)
// pairs using the alias document. Resolution is a pure function over
// the loaded document plus the input strings; the resolver holds no
// mutable state after construction.
type BrandResolver struct {
	doc                *aliasmap.Document
	normalizer         *Normalizer
	enableDebugLogging bool

	// aliasIndex maps normalized alias spellings to their family.
	aliasIndex map[string]string
	// brandTokens holds each family's normalized spellings, longest
	// first, for stripping brand words off the front of product names.
	brandTokens map[string][]string
}

// NewBrandResolver builds the reverse alias index from a validated
// document. The document is treated as read-only and may be shared by
// resolvers with different debug settings.
func NewBrandResolver(doc *aliasmap.Document, normalizer *Normalizer, enableDebugLogging bool) *BrandResolver {
	r := &BrandResolver{
		doc:                doc,
		normalizer:         normalizer,
		enableDebugLogging: enableDebugLogging,
		aliasIndex:         make(map[string]string),
		brandTokens:        make(map[string][]string),
	}

	for i := range doc.Brands {
		b := &doc.Brands[i]
		tokens := []string{strings.ReplaceAll(b.Family, "_", " ")}
		for _, alias := range b.Aliases {
			normalized := normalizer.Normalize(alias)
			if normalized == "" {
				continue
			}
			r.aliasIndex[normalized] = b.Family
			tokens = append(tokens, normalized)
		}
		sort.Slice(tokens, func(x, y int) bool {
			if len(tokens[x]) != len(tokens[y]) {
				return len(tokens[x]) > len(tokens[y])
			}
			return tokens[x] < tokens[y]
		})
		r.brandTokens[b.Family] = tokens
	}

	return r
}

// Resolve maps a raw brand (and, as fallback, the product name) to a
// canonical family and series. First match wins, in order: direct alias
// lookup, fragment folding, detection patterns, then FamilyOther.
func (r *BrandResolver) Resolve(brandRaw, nameRaw string) BrandResolution {
	normalizedBrand := r.normalizer.Normalize(brandRaw)

	if family, ok := r.aliasIndex[normalizedBrand]; ok {
		return r.withSeries(BrandResolution{Family: family, Name: nameRaw})
	}

	if res, ok := r.resolveFragment(normalizedBrand, nameRaw); ok {
		return r.withSeries(res)
	}

	haystack := r.normalizer.Normalize(brandRaw + " " + nameRaw)
	for i := range r.doc.Brands {
		b := &r.doc.Brands[i]
		for _, re := range b.DetectRegexps() {
			if re.MatchString(haystack) {
				if r.enableDebugLogging {
					log.Printf("[BRAND] %q resolved to %q via pattern %q", brandRaw, b.Family, re.String())
				}
				return r.withSeries(BrandResolution{Family: b.Family, Name: nameRaw})
			}
		}
	}

	if r.enableDebugLogging && brandRaw != "" {
		log.Printf("[BRAND] %q unresolved, degrading to %q", brandRaw, FamilyOther)
	}
	return BrandResolution{Family: FamilyOther, Name: nameRaw}
}

// resolveFragment handles brand strings that are split pieces of a
// longer brand, like raw brand "Royal" with a name starting "Canin".
// Both fold into the family and the shared prefix leaves the name.
func (r *BrandResolver) resolveFragment(normalizedBrand, nameRaw string) (BrandResolution, bool) {
	if normalizedBrand == "" {
		return BrandResolution{}, false
	}
	for i := range r.doc.Brands {
		b := &r.doc.Brands[i]
		for _, frag := range b.Fragments {
			if normalizedBrand != r.normalizer.Normalize(frag.BrandFragment) {
				continue
			}
			prefix := r.normalizer.Normalize(frag.NamePrefix)
			adjusted, ok := stripRawPrefix(nameRaw, prefix, r.normalizer)
			if !ok {
				continue
			}
			if r.enableDebugLogging {
				log.Printf("[BRAND] fragment %q + prefix %q folded into %q", normalizedBrand, prefix, b.Family)
			}
			return BrandResolution{Family: b.Family, Name: adjusted}, true
		}
	}
	return BrandResolution{}, false
}

// withSeries evaluates the resolved family's series rules against the
// normalized name, first matching rule wins.
func (r *BrandResolver) withSeries(res BrandResolution) BrandResolution {
	if res.Family == FamilyOther || res.Name == "" {
		return res
	}
	normalizedName := r.normalizer.Normalize(res.Name)
	for i := range r.doc.Brands {
		b := &r.doc.Brands[i]
		if b.Family != res.Family {
			continue
		}
		for j := range b.Series {
			rule := &b.Series[j]
			for _, re := range rule.Regexps() {
				if re.MatchString(normalizedName) {
					res.Series = rule.Slug
					return res
				}
			}
		}
		break
	}
	return res
}

// KeyFamily returns the family component of the grouping key. Resolved
// families key as themselves; unresolved records key per raw brand so
// distinct unknown brands never share a bucket.
func (r *BrandResolver) KeyFamily(family, brandRaw string) string {
	if family != FamilyOther {
		return family
	}
	return FamilyOther + ":" + r.normalizer.Normalize(brandRaw)
}

// BrandTokens returns the family's normalized spellings, longest first,
// plus nothing for unknown families.
func (r *BrandResolver) BrandTokens(family string) []string {
	return r.brandTokens[family]
}

// DebrandName strips a single leading brand spelling from a normalized
// base name, so "brit premium adult" keys as "premium adult". The
// record's own raw brand is tried first: it is what the scraper printed
// in front of the name, and it covers unresolved brands too. Family
// aliases are the fallback for names that embed a different spelling.
func (r *BrandResolver) DebrandName(base, family, brandRaw string) string {
	if normalizedBrand := r.normalizer.Normalize(brandRaw); normalizedBrand != "" {
		if stripped := StripLeadingTokens(base, normalizedBrand); stripped != base {
			return stripped
		}
	}
	for _, token := range r.brandTokens[family] {
		if stripped := StripLeadingTokens(base, token); stripped != base {
			return stripped
		}
	}
	return base
}

// stripRawPrefix removes prefix (normalized form) from the front of a
// raw, case-preserved name. Comparison happens on normalized tokens so
// "Canin Medium" loses "Canin" for prefix "canin".
func stripRawPrefix(nameRaw, prefix string, n *Normalizer) (string, bool) {
	if prefix == "" || nameRaw == "" {
		return nameRaw, false
	}
	prefixTokens := strings.Fields(prefix)
	rawFields := strings.Fields(nameRaw)
	if len(rawFields) < len(prefixTokens) {
		return nameRaw, false
	}
	for i, want := range prefixTokens {
		if n.Normalize(rawFields[i]) != want {
			return nameRaw, false
		}
	}
	return strings.Join(rawFields[len(prefixTokens):], " "), true
}
