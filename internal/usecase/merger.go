package usecase

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/petfooddb/catalog/internal/domain"
)

// MergeOutcome is the result of resolving one duplicate group: the
// canonical product, the archived non-parent members, and the backfills
// applied to the parent's attribute set.
type MergeOutcome struct {
	Product   *domain.CanonicalProduct
	Variants  []domain.ArchivedVariant
	Backfills []domain.FieldChange
}

// MergeResolver turns a duplicate group into a canonical product. The
// highest-scoring non-variant member wins parenthood; losers backfill
// the parent's missing attributes and are archived, never deleted.
type MergeResolver struct {
	scorer             *CompletenessScorer
	authority          *AuthorityRanking
	enableDebugLogging bool
}

// NewMergeResolver creates a merge resolver.
func NewMergeResolver(scorer *CompletenessScorer, authority *AuthorityRanking, enableDebugLogging bool) *MergeResolver {
	return &MergeResolver{
		scorer:             scorer,
		authority:          authority,
		enableDebugLogging: enableDebugLogging,
	}
}

// Resolve merges a group into one canonical product plus archived
// variants. Flagged groups are not mergeable.
func (m *MergeResolver) Resolve(group *domain.DuplicateGroup) (*MergeOutcome, error) {
	if group == nil || len(group.Members) == 0 {
		return nil, fmt.Errorf("%w: empty group", domain.ErrInvalidRecord)
	}
	if group.Flagged() {
		return nil, fmt.Errorf("%w: group %q is flagged for review", domain.ErrInvalidRecord, group.Key.String())
	}

	ranked := m.rank(group.Members)
	parent := pickParent(ranked)

	if m.enableDebugLogging {
		log.Printf("[MERGE] group %q: parent %s (score %d) over %d members",
			group.Key.String(), parent.Record.SourceID, parent.Score, len(ranked))
	}

	product := &domain.CanonicalProduct{
		ProductKey:     group.Key.ProductKey(),
		BrandFamily:    parent.BrandFamily,
		Series:         parent.Series,
		DisplayName:    displayName(parent),
		Form:           group.Key.Form,
		Attributes:     parent.Record.Attributes,
		ParentSourceID: parent.Record.SourceID,
	}
	if product.Attributes.Description != "" {
		product.DescriptionSource = parent.Record.Provenance
	}

	var backfills []domain.FieldChange
	var variants []domain.ArchivedVariant

	for _, member := range ranked {
		if member == parent {
			continue
		}

		backfills = append(backfills, m.backfill(&product.Attributes, member)...)
		if change, ok := m.resolveDescription(product, member); ok {
			backfills = append(backfills, change)
		}
		if product.Series == "" && member.Series != "" {
			product.Series = member.Series
		}

		archived, err := archiveMember(product.ProductKey, member)
		if err != nil {
			return nil, err
		}
		variants = append(variants, archived)
		product.VariantRefs = append(product.VariantRefs, member.Record.SourceID)
	}

	return &MergeOutcome{Product: product, Variants: variants, Backfills: backfills}, nil
}

// rank orders members by completeness score descending, breaking ties
// by source authority and finally by source id so the order is total.
// Members are scored here; the originals are annotated in place so the
// scores surface in reports.
func (m *MergeResolver) rank(members []*domain.GroupMember) []*domain.GroupMember {
	ranked := make([]*domain.GroupMember, len(members))
	copy(ranked, members)
	for _, member := range ranked {
		member.Score = m.scorer.Score(member.Record)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ri := m.authority.Rank(ranked[i].Record.Provenance)
		rj := m.authority.Rank(ranked[j].Record.Provenance)
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Record.SourceID < ranked[j].Record.SourceID
	})
	return ranked
}

// pickParent prefers the highest-ranked non-variant member; when every
// member is a pack variant the highest-ranked one wins regardless.
func pickParent(ranked []*domain.GroupMember) *domain.GroupMember {
	for _, member := range ranked {
		if !member.Variant.IsVariant() {
			return member
		}
	}
	return ranked[0]
}

// displayName rewrites the parent's name without pack/size tokens, so
// the canonical name is size-agnostic even when the parent was scraped
// as a 3kg listing.
func displayName(parent *domain.GroupMember) string {
	name := StripVariantTokens(parent.AdjustedName)
	if name == "" {
		name = strings.TrimSpace(parent.AdjustedName)
	}
	return name
}

// backfill copies a member's values into attributes the parent left
// empty. Present values are never overwritten.
func (m *MergeResolver) backfill(dst *domain.Attributes, member *domain.GroupMember) []domain.FieldChange {
	var changes []domain.FieldChange
	src := member.Record.Attributes
	from := member.Record.SourceID

	fillString(&dst.IngredientsRaw, src.IngredientsRaw, "ingredients_raw", from, &changes)
	fillString(&dst.Form, src.Form, "form", from, &changes)
	fillString(&dst.LifeStage, src.LifeStage, "life_stage", from, &changes)
	fillString(&dst.ImageURL, src.ImageURL, "image_url", from, &changes)
	fillString(&dst.ProductURL, src.ProductURL, "product_url", from, &changes)
	fillFloat(&dst.ProteinPercent, src.ProteinPercent, "protein_percent", from, &changes)
	fillFloat(&dst.FatPercent, src.FatPercent, "fat_percent", from, &changes)
	fillFloat(&dst.FiberPercent, src.FiberPercent, "fiber_percent", from, &changes)
	fillFloat(&dst.AshPercent, src.AshPercent, "ash_percent", from, &changes)
	fillFloat(&dst.MoisturePercent, src.MoisturePercent, "moisture_percent", from, &changes)
	fillFloat(&dst.KcalPer100g, src.KcalPer100g, "kcal_per_100g", from, &changes)
	fillFloat(&dst.Price, src.Price, "price", from, &changes)

	return changes
}

// resolveDescription applies the authority table to the description,
// the one attribute where a more trusted source may replace an existing
// value. Ties keep what is already there.
func (m *MergeResolver) resolveDescription(product *domain.CanonicalProduct, member *domain.GroupMember) (domain.FieldChange, bool) {
	existing := SourcedValue{Value: product.Attributes.Description, Source: product.DescriptionSource}
	incoming := SourcedValue{Value: member.Record.Attributes.Description, Source: member.Record.Provenance}

	resolved := m.authority.Resolve(existing, incoming)
	if resolved == existing {
		return domain.FieldChange{}, false
	}

	change := domain.FieldChange{
		Field:        "description",
		Previous:     existing.Value,
		Value:        resolved.Value,
		FromSourceID: member.Record.SourceID,
	}
	product.Attributes.Description = resolved.Value
	product.DescriptionSource = resolved.Source
	return change, true
}

// archiveMember wraps a superseded member with its original payload so
// an external tool can rebuild it during rollback.
func archiveMember(parentKey string, member *domain.GroupMember) (domain.ArchivedVariant, error) {
	payload, err := json.Marshal(member.Record)
	if err != nil {
		return domain.ArchivedVariant{}, fmt.Errorf("archive %s: %w", member.Record.SourceID, err)
	}
	return domain.ArchivedVariant{
		ParentKey:  parentKey,
		SourceID:   member.Record.SourceID,
		Variant:    member.Variant,
		RawName:    member.Record.NameRaw,
		RawPayload: payload,
	}, nil
}

func fillString(dst *string, src, field, from string, changes *[]domain.FieldChange) {
	if *dst != "" || src == "" {
		return
	}
	*dst = src
	*changes = append(*changes, domain.FieldChange{Field: field, Value: src, FromSourceID: from})
}

func fillFloat(dst **float64, src *float64, field, from string, changes *[]domain.FieldChange) {
	if *dst != nil || src == nil {
		return
	}
	v := *src
	*dst = &v
	*changes = append(*changes, domain.FieldChange{Field: field, Value: fmtFloat(v), FromSourceID: from})
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
