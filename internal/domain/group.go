package domain

import "strings"

// NormalizedKey is the derived (brand family, base name, form) tuple used
// for exact-match grouping. Keys are recomputed from raw fields on every
// run and never persisted, so normalization rule changes take effect on
// the next batch.
type NormalizedKey struct {
	BrandFamily string `json:"brandFamily"`
	BaseName    string `json:"baseName"`
	Form        string `json:"form,omitempty"`
}

// Empty reports whether the name normalized to nothing. Records with
// empty keys are never grouped; they are flagged for manual review.
func (k NormalizedKey) Empty() bool {
	return k.BaseName == ""
}

// String renders the key in its canonical pipe-separated form.
func (k NormalizedKey) String() string {
	return k.BrandFamily + "|" + k.BaseName + "|" + k.Form
}

// ProductKey derives the stable persisted identifier for the canonical
// product this key describes.
func (k NormalizedKey) ProductKey() string {
	slug := func(s string) string {
		return strings.ReplaceAll(strings.TrimSpace(s), " ", "-")
	}
	parts := []string{slug(k.BrandFamily), slug(k.BaseName)}
	if k.Form != "" {
		parts = append(parts, slug(k.Form))
	}
	return strings.Join(parts, ":")
}

// MatchKind records how a member joined its group.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// GroupMember pairs a raw record with the derived facts the merge step
// needs: its key, variant classification, resolved brand and score.
// AdjustedName is the raw name after brand-fragment folding, the form
// display names are derived from.
type GroupMember struct {
	Record       *RawRecord    `json:"record"`
	Key          NormalizedKey `json:"key"`
	Variant      VariantInfo   `json:"variant"`
	BrandFamily  string        `json:"brandFamily"`
	Series       string        `json:"series,omitempty"`
	AdjustedName string        `json:"adjustedName,omitempty"`
	Match        MatchKind     `json:"match"`
	Score        int           `json:"score"`
}

// DuplicateGroup is a set of records believed to describe one physical
// product. After resolution exactly one member becomes the parent; the
// rest are archived as variants.
type DuplicateGroup struct {
	Key     NormalizedKey  `json:"key"`
	Members []*GroupMember `json:"members"`

	// ReviewReason is non-empty when the group was flagged for manual
	// review instead of being merged (e.g. the name normalized to "").
	ReviewReason string `json:"reviewReason,omitempty"`
}

// Flagged reports whether the group needs manual review.
func (g *DuplicateGroup) Flagged() bool {
	return g.ReviewReason != ""
}

// ReviewItem is a record routed to the manual review queue instead of
// being silently grouped.
type ReviewItem struct {
	SourceID string `json:"sourceId"`
	RawName  string `json:"rawName"`
	Reason   string `json:"reason"`
	BatchID  string `json:"batchId"`
}
