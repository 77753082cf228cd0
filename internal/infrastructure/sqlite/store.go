// Package sqlite implements the catalog store on a local SQLite file.
// Products and variants are upserted by key so re-applying a batch is a
// no-op, and the audit log is append-only.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petfooddb/catalog/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_records (
	source_id   TEXT PRIMARY KEY,
	brand_raw   TEXT NOT NULL,
	name_raw    TEXT NOT NULL,
	provenance  TEXT NOT NULL,
	scraped_at  INTEGER,
	attributes  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	product_key        TEXT PRIMARY KEY,
	brand_family       TEXT NOT NULL,
	series             TEXT NOT NULL DEFAULT '',
	display_name       TEXT NOT NULL,
	form               TEXT NOT NULL DEFAULT '',
	attributes         TEXT NOT NULL,
	description_source TEXT NOT NULL DEFAULT '',
	parent_source_id   TEXT NOT NULL,
	variant_refs       TEXT NOT NULL DEFAULT '[]',
	updated_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS variants (
	parent_key  TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	variant_type TEXT NOT NULL,
	size_value  REAL NOT NULL DEFAULT 0,
	size_unit   TEXT NOT NULL DEFAULT '',
	pack_count  INTEGER NOT NULL DEFAULT 0,
	raw_name    TEXT NOT NULL,
	raw_payload TEXT,
	PRIMARY KEY (parent_key, source_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id               TEXT PRIMARY KEY,
	batch_id         TEXT NOT NULL,
	group_key        TEXT NOT NULL,
	parent_source_id TEXT NOT NULL,
	superseded_ids   TEXT NOT NULL DEFAULT '[]',
	fields_changed   TEXT NOT NULL DEFAULT '[]',
	created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS review_queue (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL,
	raw_name  TEXT NOT NULL,
	reason    TEXT NOT NULL,
	batch_id  TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_records_brand ON raw_records(brand_raw);
CREATE INDEX IF NOT EXISTS idx_products_family ON products(brand_family);
CREATE INDEX IF NOT EXISTS idx_audit_batch ON audit_log(batch_id);
`

// Store is the SQLite-backed catalog store. It satisfies
// domain.CatalogStore and is safe for the engine's per-entity access
// pattern: point upserts and key-scoped selects, no multi-key
// transactions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog store %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes; one connection avoids
	// SQLITE_BUSY under concurrent API reads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRawRecords upserts a batch of raw observations keyed by source
// id, so re-importing the same extract does not duplicate rows. It
// returns the number of rows written.
func (s *Store) InsertRawRecords(ctx context.Context, records []domain.RawRecord) (int, error) {
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO raw_records (source_id, brand_raw, name_raw, provenance, scraped_at, attributes)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(source_id) DO UPDATE SET
			brand_raw=excluded.brand_raw, name_raw=excluded.name_raw,
			provenance=excluded.provenance, scraped_at=excluded.scraped_at,
			attributes=excluded.attributes`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for i := range records {
		r := &records[i]
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return written, fmt.Errorf("%w: encode attributes for %s: %v", domain.ErrInvalidRecord, r.SourceID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.SourceID, r.BrandRaw, r.NameRaw,
			string(r.Provenance), timeToUnix(r.ScrapedAt), string(attrs)); err != nil {
			return written, fmt.Errorf("insert raw record %s: %w", r.SourceID, err)
		}
		written++
	}
	return written, nil
}

// LoadRawSnapshot returns the full raw snapshot, optionally restricted
// to rows whose raw brand matches brandFilter (case-insensitive).
func (s *Store) LoadRawSnapshot(ctx context.Context, brandFilter string) ([]domain.RawRecord, error) {
	query := `SELECT source_id, brand_raw, name_raw, provenance, scraped_at, attributes
		FROM raw_records`
	args := []any{}
	if brandFilter != "" {
		query += ` WHERE brand_raw = ? COLLATE NOCASE`
		args = append(args, brandFilter)
	}
	query += ` ORDER BY source_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.RawRecord
	for rows.Next() {
		var r domain.RawRecord
		var provenance, attrs string
		var scrapedAt sql.NullInt64
		if err := rows.Scan(&r.SourceID, &r.BrandRaw, &r.NameRaw, &provenance, &scrapedAt, &attrs); err != nil {
			return nil, err
		}
		r.Provenance = domain.Provenance(provenance)
		if scrapedAt.Valid && scrapedAt.Int64 != 0 {
			r.ScrapedAt = time.Unix(scrapedAt.Int64, 0).UTC()
		}
		if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
			return nil, fmt.Errorf("%w: decode attributes for %s: %v", domain.ErrInvalidRecord, r.SourceID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetProduct fetches one canonical product by key.
func (s *Store) GetProduct(ctx context.Context, productKey string) (*domain.CanonicalProduct, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT product_key, brand_family, series, display_name, form, attributes,
		       description_source, parent_source_id, variant_refs, updated_at
		FROM products WHERE product_key = ?`, productKey)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productKey)
	}
	return p, err
}

// ListProducts returns a page of canonical products in key order.
func (s *Store) ListProducts(ctx context.Context, limit, offset int) ([]domain.CanonicalProduct, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_key, brand_family, series, display_name, form, attributes,
		       description_source, parent_source_id, variant_refs, updated_at
		FROM products ORDER BY product_key LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.CanonicalProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpsertProduct writes one canonical product keyed by product key.
func (s *Store) UpsertProduct(ctx context.Context, p *domain.CanonicalProduct) error {
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes for %s: %w", p.ProductKey, err)
	}
	refs, err := json.Marshal(refsOrEmpty(p.VariantRefs))
	if err != nil {
		return fmt.Errorf("encode variant refs for %s: %w", p.ProductKey, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (product_key, brand_family, series, display_name, form,
		                      attributes, description_source, parent_source_id, variant_refs, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(product_key) DO UPDATE SET
			brand_family=excluded.brand_family, series=excluded.series,
			display_name=excluded.display_name, form=excluded.form,
			attributes=excluded.attributes, description_source=excluded.description_source,
			parent_source_id=excluded.parent_source_id, variant_refs=excluded.variant_refs,
			updated_at=excluded.updated_at`,
		p.ProductKey, p.BrandFamily, p.Series, p.DisplayName, p.Form,
		string(attrs), string(p.DescriptionSource), p.ParentSourceID, string(refs),
		timeToUnix(p.UpdatedAt))
	return err
}

// ListVariants returns the archived variants linked to a parent key.
func (s *Store) ListVariants(ctx context.Context, parentKey string) ([]domain.ArchivedVariant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parent_key, source_id, variant_type, size_value, size_unit, pack_count, raw_name, raw_payload
		FROM variants WHERE parent_key = ? ORDER BY source_id`, parentKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []domain.ArchivedVariant
	for rows.Next() {
		var v domain.ArchivedVariant
		var variantType string
		var payload sql.NullString
		if err := rows.Scan(&v.ParentKey, &v.SourceID, &variantType, &v.Variant.SizeValue,
			&v.Variant.SizeUnit, &v.Variant.PackCount, &v.RawName, &payload); err != nil {
			return nil, err
		}
		v.Variant.Type = domain.VariantType(variantType)
		if payload.Valid {
			v.RawPayload = json.RawMessage(payload.String)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// UpsertVariant writes one archived variant keyed by (parent, source).
func (s *Store) UpsertVariant(ctx context.Context, v *domain.ArchivedVariant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variants (parent_key, source_id, variant_type, size_value, size_unit, pack_count, raw_name, raw_payload)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(parent_key, source_id) DO UPDATE SET
			variant_type=excluded.variant_type, size_value=excluded.size_value,
			size_unit=excluded.size_unit, pack_count=excluded.pack_count,
			raw_name=excluded.raw_name, raw_payload=excluded.raw_payload`,
		v.ParentKey, v.SourceID, string(v.Variant.Type), v.Variant.SizeValue,
		v.Variant.SizeUnit, v.Variant.PackCount, v.RawName, nullableString(v.RawPayload))
	return err
}

// AppendAudit writes one audit entry. Entries are never updated.
func (s *Store) AppendAudit(ctx context.Context, e *domain.AuditEntry) error {
	superseded, err := json.Marshal(refsOrEmpty(e.SupersededIDs))
	if err != nil {
		return err
	}
	fields, err := json.Marshal(e.FieldsChanged)
	if err != nil {
		return err
	}
	if e.FieldsChanged == nil {
		fields = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, batch_id, group_key, parent_source_id, superseded_ids, fields_changed, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.BatchID, e.GroupKey, e.ParentSourceID, string(superseded), string(fields),
		timeToUnix(e.CreatedAt))
	return err
}

// ListAudit returns the audit trail for one batch in creation order.
func (s *Store) ListAudit(ctx context.Context, batchID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, group_key, parent_source_id, superseded_ids, fields_changed, created_at
		FROM audit_log WHERE batch_id = ? ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var superseded, fields string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.BatchID, &e.GroupKey, &e.ParentSourceID,
			&superseded, &fields, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(superseded), &e.SupersededIDs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &e.FieldsChanged); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, batchID)
	}
	return entries, nil
}

// AppendReview queues one record for manual review.
func (s *Store) AppendReview(ctx context.Context, item *domain.ReviewItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_queue (source_id, raw_name, reason, batch_id, created_at)
		VALUES (?,?,?,?,?)`,
		item.SourceID, item.RawName, item.Reason, item.BatchID, time.Now().Unix())
	return err
}

// ListReview returns the most recent review items.
func (s *Store) ListReview(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, raw_name, reason, batch_id
		FROM review_queue ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ReviewItem
	for rows.Next() {
		var item domain.ReviewItem
		if err := rows.Scan(&item.SourceID, &item.RawName, &item.Reason, &item.BatchID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.CanonicalProduct, error) {
	var p domain.CanonicalProduct
	var attrs, refs, source string
	var updatedAt int64
	if err := row.Scan(&p.ProductKey, &p.BrandFamily, &p.Series, &p.DisplayName, &p.Form,
		&attrs, &source, &p.ParentSourceID, &refs, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &p.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes for %s: %w", p.ProductKey, err)
	}
	if err := json.Unmarshal([]byte(refs), &p.VariantRefs); err != nil {
		return nil, fmt.Errorf("decode variant refs for %s: %w", p.ProductKey, err)
	}
	p.DescriptionSource = domain.Provenance(source)
	if updatedAt != 0 {
		p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	}
	return &p, nil
}

func refsOrEmpty(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
