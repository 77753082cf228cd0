package domain

import "time"

// Provenance identifies which collaborator produced a raw record.
// The relative authority of provenances is policy owned by the
// usecase layer, not by this type.
type Provenance string

const (
	ProvenanceManufacturer Provenance = "manufacturer"
	ProvenanceRetailerFeed Provenance = "retailer_feed"
	ProvenanceScrape       Provenance = "scrape"
	ProvenanceLegacy       Provenance = "legacy"
)

// KnownProvenance reports whether p is one of the recognized sources.
func KnownProvenance(p Provenance) bool {
	switch p {
	case ProvenanceManufacturer, ProvenanceRetailerFeed, ProvenanceScrape, ProvenanceLegacy:
		return true
	}
	return false
}

// RawRecord is one scraped or imported observation of a product.
// Records are immutable once created; the engine derives from them
// but never mutates them in place.
type RawRecord struct {
	SourceID   string     `json:"sourceId"`
	BrandRaw   string     `json:"brandRaw"`
	NameRaw    string     `json:"nameRaw"`
	Provenance Provenance `json:"provenance"`
	ScrapedAt  time.Time  `json:"scrapedAt,omitempty"`
	Attributes Attributes `json:"attributes"`
}

// Attributes is the sparse attribute set carried by a record.
// String fields use "" for missing; numeric fields use nil pointers so a
// present zero stays distinguishable from an absent value.
type Attributes struct {
	IngredientsRaw  string   `json:"ingredientsRaw,omitempty"`
	Description     string   `json:"description,omitempty"`
	Form            string   `json:"form,omitempty"`
	LifeStage       string   `json:"lifeStage,omitempty"`
	ProteinPercent  *float64 `json:"proteinPercent,omitempty"`
	FatPercent      *float64 `json:"fatPercent,omitempty"`
	FiberPercent    *float64 `json:"fiberPercent,omitempty"`
	AshPercent      *float64 `json:"ashPercent,omitempty"`
	MoisturePercent *float64 `json:"moisturePercent,omitempty"`
	KcalPer100g     *float64 `json:"kcalPer100g,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	ProductURL      string   `json:"productUrl,omitempty"`
}

// HasMacroPair reports whether protein and fat are both present, the
// minimum for a usable macro profile.
func (a Attributes) HasMacroPair() bool {
	return a.ProteinPercent != nil && a.FatPercent != nil
}

// VariantType classifies the pack-size presentation detected in a name.
type VariantType string

const (
	VariantNone       VariantType = "none"
	VariantSinglePack VariantType = "single_pack"
	VariantMultiPack  VariantType = "multi_pack"
)

// VariantInfo describes the pack-size presentation of a record.
// SizeValue is normalized to grams or milliliters per unit pack.
type VariantInfo struct {
	Type      VariantType `json:"type"`
	SizeValue float64     `json:"sizeValue,omitempty"`
	SizeUnit  string      `json:"sizeUnit,omitempty"`
	PackCount int         `json:"packCount,omitempty"`
}

// IsVariant reports whether the record is a size or pack presentation
// rather than a size-agnostic base record.
func (v VariantInfo) IsVariant() bool {
	return v.Type != VariantNone && v.Type != ""
}
