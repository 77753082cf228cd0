package domain

import "context"

// RawRecordStore is the boundary to the raw observation snapshot the
// engine reads. Imports append; a batch run reads a full snapshot,
// optionally restricted to one brand partition.
type RawRecordStore interface {
	InsertRawRecords(ctx context.Context, records []RawRecord) (int, error)
	LoadRawSnapshot(ctx context.Context, brandFilter string) ([]RawRecord, error)
}

// ProductStore is the boundary to the canonical catalog. Writes are
// per-entity upserts keyed by product key so independent batches
// touching disjoint keys never conflict.
type ProductStore interface {
	GetProduct(ctx context.Context, productKey string) (*CanonicalProduct, error)
	ListProducts(ctx context.Context, limit, offset int) ([]CanonicalProduct, error)
	UpsertProduct(ctx context.Context, p *CanonicalProduct) error

	ListVariants(ctx context.Context, parentKey string) ([]ArchivedVariant, error)
	UpsertVariant(ctx context.Context, v *ArchivedVariant) error
}

// AuditLog is the append-only record of merge decisions plus the manual
// review queue for records the engine declined to group.
type AuditLog interface {
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, batchID string) ([]AuditEntry, error)
	AppendReview(ctx context.Context, item *ReviewItem) error
	ListReview(ctx context.Context, limit int) ([]ReviewItem, error)
}

// CatalogStore is the full persistence collaborator a batch run needs.
type CatalogStore interface {
	RawRecordStore
	ProductStore
	AuditLog
}
