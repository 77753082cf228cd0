package usecase

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/petfooddb/catalog/internal/domain"
)

func newTestMerger() *MergeResolver {
	return NewMergeResolver(NewCompletenessScorer(false), DefaultAuthorityRanking(), false)
}

func groupMember(id, name string, prov domain.Provenance, attrs domain.Attributes) *domain.GroupMember {
	rec := &domain.RawRecord{
		SourceID:   id,
		BrandRaw:   "Brit",
		NameRaw:    name,
		Provenance: prov,
		Attributes: attrs,
	}
	return &domain.GroupMember{
		Record:       rec,
		Variant:      ExtractVariant(name),
		BrandFamily:  "brit",
		AdjustedName: name,
		Match:        domain.MatchExact,
	}
}

func testGroup(members ...*domain.GroupMember) *domain.DuplicateGroup {
	return &domain.DuplicateGroup{
		Key:     domain.NormalizedKey{BrandFamily: "brit", BaseName: "premium adult", Form: "dry"},
		Members: members,
	}
}

func TestResolveBackfillsMissingFields(t *testing.T) {
	m := newTestMerger()

	// The parent outscores the ingredients-bearing member but is missing
	// ingredients itself; merging fills the gap without touching any of
	// the parent's present values.
	parent := groupMember("p1", "Brit Premium Adult", domain.ProvenanceRetailerFeed, domain.Attributes{
		ProteinPercent: fl(26),
		FatPercent:     fl(15),
		ProductURL:     "https://shop.example.com/p1",
		ImageURL:       "https://cdn.example.com/p1.jpg",
		Price:          fl(19.99),
	})
	donor := groupMember("p2", "Brit Premium Adult 3kg", domain.ProvenanceScrape, domain.Attributes{
		IngredientsRaw: "chicken meal, rice, chicken fat",
		ProteinPercent: fl(27),
		Price:          fl(24.50),
	})

	outcome, err := m.Resolve(testGroup(parent, donor))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	product := outcome.Product
	if product.ParentSourceID != "p1" {
		t.Fatalf("ParentSourceID = %q, want p1", product.ParentSourceID)
	}
	if product.Attributes.IngredientsRaw != "chicken meal, rice, chicken fat" {
		t.Errorf("IngredientsRaw = %q, want backfilled value", product.Attributes.IngredientsRaw)
	}
	if *product.Attributes.ProteinPercent != 26 {
		t.Errorf("ProteinPercent = %v, want parent's 26 untouched", *product.Attributes.ProteinPercent)
	}
	if *product.Attributes.Price != 19.99 {
		t.Errorf("Price = %v, want parent's 19.99 untouched", *product.Attributes.Price)
	}

	var filled []string
	for _, c := range outcome.Backfills {
		filled = append(filled, c.Field)
	}
	if len(filled) != 1 || filled[0] != "ingredients_raw" {
		t.Errorf("backfilled fields = %v, want [ingredients_raw]", filled)
	}
	if outcome.Backfills[0].FromSourceID != "p2" {
		t.Errorf("backfill source = %q, want p2", outcome.Backfills[0].FromSourceID)
	}
}

func TestResolvePrefersNonVariantParent(t *testing.T) {
	m := newTestMerger()

	// The pack variant carries far more data, but a non-variant member
	// is still the preferred parent.
	variant := groupMember("v1", "Brit Premium Adult 3kg", domain.ProvenanceScrape, domain.Attributes{
		IngredientsRaw: "chicken meal, rice",
		ProteinPercent: fl(26),
		FatPercent:     fl(15),
		ProductURL:     "https://shop.example.com/v1",
	})
	base := groupMember("b1", "Brit Premium Adult", domain.ProvenanceScrape, domain.Attributes{
		ProteinPercent: fl(26),
		FatPercent:     fl(15),
	})

	outcome, err := m.Resolve(testGroup(variant, base))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome.Product.ParentSourceID != "b1" {
		t.Errorf("ParentSourceID = %q, want the non-variant b1", outcome.Product.ParentSourceID)
	}
}

func TestResolveAllVariantsHighestScoreWins(t *testing.T) {
	m := newTestMerger()

	small := groupMember("v1", "Brit Premium Adult 800g", domain.ProvenanceScrape, domain.Attributes{
		ProteinPercent: fl(26),
		FatPercent:     fl(15),
	})
	large := groupMember("v2", "Brit Premium Adult 3kg", domain.ProvenanceScrape, domain.Attributes{
		IngredientsRaw: "chicken meal, rice",
		ProteinPercent: fl(26),
		FatPercent:     fl(15),
	})

	outcome, err := m.Resolve(testGroup(small, large))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome.Product.ParentSourceID != "v2" {
		t.Errorf("ParentSourceID = %q, want highest-scoring variant v2", outcome.Product.ParentSourceID)
	}
}

func TestResolveScoreTieBrokenByAuthority(t *testing.T) {
	m := newTestMerger()

	attrs := domain.Attributes{ProteinPercent: fl(26), FatPercent: fl(15)}
	scraped := groupMember("a1", "Brit Premium Adult", domain.ProvenanceScrape, attrs)
	official := groupMember("a2", "Brit Premium Adult", domain.ProvenanceManufacturer, attrs)

	outcome, err := m.Resolve(testGroup(scraped, official))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome.Product.ParentSourceID != "a2" {
		t.Errorf("ParentSourceID = %q, want manufacturer record a2", outcome.Product.ParentSourceID)
	}
}

func TestResolveDescriptionAuthority(t *testing.T) {
	m := newTestMerger()

	parent := groupMember("p1", "Brit Premium Adult", domain.ProvenanceScrape, domain.Attributes{
		Description:    "scraped description",
		IngredientsRaw: "chicken meal, rice",
		ProteinPercent: fl(26),
		FatPercent:     fl(15),
	})
	official := groupMember("p2", "Brit Premium Adult 3kg", domain.ProvenanceManufacturer, domain.Attributes{
		Description: "official description",
	})
	legacy := groupMember("p3", "Brit Premium Adult 800g", domain.ProvenanceLegacy, domain.Attributes{
		Description: "legacy description",
	})

	outcome, err := m.Resolve(testGroup(parent, official, legacy))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	product := outcome.Product
	if product.Attributes.Description != "official description" {
		t.Errorf("Description = %q, want the manufacturer's", product.Attributes.Description)
	}
	if product.DescriptionSource != domain.ProvenanceManufacturer {
		t.Errorf("DescriptionSource = %q, want manufacturer", product.DescriptionSource)
	}

	var descChange *domain.FieldChange
	for i := range outcome.Backfills {
		if outcome.Backfills[i].Field == "description" {
			descChange = &outcome.Backfills[i]
		}
	}
	if descChange == nil {
		t.Fatal("expected a description field change")
	}
	if descChange.Previous != "scraped description" {
		t.Errorf("Previous = %q, want the replaced value", descChange.Previous)
	}
}

func TestResolveFirstFillNeverOverwrites(t *testing.T) {
	m := newTestMerger()

	parent := groupMember("p1", "Brit Premium Adult", domain.ProvenanceScrape, domain.Attributes{
		IngredientsRaw:  "chicken meal, rice",
		LifeStage:       "adult",
		ProteinPercent:  fl(26),
		FatPercent:      fl(15),
		FiberPercent:    fl(2.5),
		AshPercent:      fl(6.1),
		MoisturePercent: fl(10),
		KcalPer100g:     fl(380),
		Price:           fl(19.99),
		ImageURL:        "https://cdn.example.com/p1.jpg",
		ProductURL:      "https://shop.example.com/p1",
	})
	rival := groupMember("p2", "Brit Premium Adult 3kg", domain.ProvenanceManufacturer, domain.Attributes{
		IngredientsRaw:  "different ingredients",
		LifeStage:       "senior",
		ProteinPercent:  fl(30),
		FatPercent:      fl(18),
		FiberPercent:    fl(3),
		AshPercent:      fl(7),
		MoisturePercent: fl(12),
		KcalPer100g:     fl(400),
		Price:           fl(29.99),
		ImageURL:        "https://cdn.example.com/p2.jpg",
		ProductURL:      "https://shop.example.com/p2",
	})

	outcome, err := m.Resolve(testGroup(parent, rival))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	got := outcome.Product.Attributes
	want := parent.Record.Attributes
	if got.IngredientsRaw != want.IngredientsRaw || got.LifeStage != want.LifeStage ||
		got.ImageURL != want.ImageURL || got.ProductURL != want.ProductURL {
		t.Error("merge overwrote a present string attribute on the parent")
	}
	if *got.ProteinPercent != 26 || *got.FatPercent != 15 || *got.Price != 19.99 ||
		*got.FiberPercent != 2.5 || *got.AshPercent != 6.1 || *got.MoisturePercent != 10 ||
		*got.KcalPer100g != 380 {
		t.Error("merge overwrote a present numeric attribute on the parent")
	}
	if len(outcome.Backfills) != 0 {
		t.Errorf("backfills = %v, want none", outcome.Backfills)
	}
}

func TestResolveArchivesVariantsRoundTrip(t *testing.T) {
	m := newTestMerger()

	parent := groupMember("p1", "Brit Premium Adult", domain.ProvenanceScrape, domain.Attributes{
		IngredientsRaw: "chicken meal, rice",
	})
	packed := groupMember("p2", "Brit Premium Adult 6 x 400g", domain.ProvenanceScrape, domain.Attributes{})

	outcome, err := m.Resolve(testGroup(parent, packed))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(outcome.Variants) != 1 {
		t.Fatalf("len(Variants) = %d, want 1", len(outcome.Variants))
	}
	archived := outcome.Variants[0]
	if archived.ParentKey != outcome.Product.ProductKey {
		t.Errorf("ParentKey = %q, want %q", archived.ParentKey, outcome.Product.ProductKey)
	}
	if archived.SourceID != "p2" {
		t.Errorf("SourceID = %q, want p2", archived.SourceID)
	}

	var restored domain.RawRecord
	if err := json.Unmarshal(archived.RawPayload, &restored); err != nil {
		t.Fatalf("unmarshal archived payload: %v", err)
	}
	rederived := ExtractVariant(restored.NameRaw)
	if rederived != archived.Variant {
		t.Errorf("re-derived variant = %+v, want %+v", rederived, archived.Variant)
	}
	if rederived.Type != domain.VariantMultiPack || rederived.PackCount != 6 {
		t.Errorf("re-derived variant = %+v, want 6 x 400g multi-pack", rederived)
	}

	if len(outcome.Product.VariantRefs) != 1 || outcome.Product.VariantRefs[0] != "p2" {
		t.Errorf("VariantRefs = %v, want [p2]", outcome.Product.VariantRefs)
	}
}

func TestResolveDisplayNameStripped(t *testing.T) {
	m := newTestMerger()

	only := groupMember("p1", "Brit Premium Adult 3kg", domain.ProvenanceScrape, domain.Attributes{})
	outcome, err := m.Resolve(testGroup(only))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if outcome.Product.DisplayName != "Brit Premium Adult" {
		t.Errorf("DisplayName = %q, want %q", outcome.Product.DisplayName, "Brit Premium Adult")
	}
}

func TestResolveRejectsBadGroups(t *testing.T) {
	m := newTestMerger()

	t.Run("empty group", func(t *testing.T) {
		_, err := m.Resolve(testGroup())
		if !errors.Is(err, domain.ErrInvalidRecord) {
			t.Errorf("error = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("flagged group", func(t *testing.T) {
		grp := testGroup(groupMember("p1", "???", domain.ProvenanceScrape, domain.Attributes{}))
		grp.ReviewReason = ReviewReasonEmptyKey
		_, err := m.Resolve(grp)
		if !errors.Is(err, domain.ErrInvalidRecord) {
			t.Errorf("error = %v, want ErrInvalidRecord", err)
		}
	})
}
