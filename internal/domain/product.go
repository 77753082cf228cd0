package domain

import (
	"encoding/json"
	"time"
)

// CanonicalProduct is the persisted, deduplicated representation of one
// physical product. It is created when a duplicate group is first
// resolved and mutated only by later merge passes, never by a variant in
// isolation. Canonical rows are not physically deleted; superseded
// members are archived as variants so a batch can be rolled back.
type CanonicalProduct struct {
	ProductKey  string     `json:"productKey"`
	BrandFamily string     `json:"brandFamily"`
	Series      string     `json:"series,omitempty"`
	DisplayName string     `json:"displayName"`
	Form        string     `json:"form,omitempty"`
	Attributes  Attributes `json:"attributes"`

	// DescriptionSource is the provenance of the winning description
	// after authority resolution.
	DescriptionSource Provenance `json:"descriptionSource,omitempty"`

	// ParentSourceID identifies the record the canonical row was seeded
	// from; VariantRefs list the archived members linked to it.
	ParentSourceID string   `json:"parentSourceId"`
	VariantRefs    []string `json:"variantRefs,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ArchivedVariant retains a non-parent group member linked to its
// canonical product, with the original payload kept for audit and for
// re-deriving pack-size metadata.
type ArchivedVariant struct {
	ParentKey  string          `json:"parentKey"`
	SourceID   string          `json:"sourceId"`
	Variant    VariantInfo     `json:"variant"`
	RawName    string          `json:"rawName"`
	RawPayload json.RawMessage `json:"rawPayload,omitempty"`
}

// FieldChange records a single attribute write on a canonical product,
// with the source record the value came from.
type FieldChange struct {
	Field        string `json:"field"`
	Previous     string `json:"previous,omitempty"`
	Value        string `json:"value"`
	FromSourceID string `json:"fromSourceId,omitempty"`
}

// AuditEntry is the append-only trail written for one merge decision.
// Together with the archived variants it is sufficient for an external
// tool to reverse the batch.
type AuditEntry struct {
	ID             string        `json:"id"`
	BatchID        string        `json:"batchId"`
	GroupKey       string        `json:"groupKey"`
	ParentSourceID string        `json:"parentSourceId"`
	SupersededIDs  []string      `json:"supersededIds,omitempty"`
	FieldsChanged  []FieldChange `json:"fieldsChanged,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}
