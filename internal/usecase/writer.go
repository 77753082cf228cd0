package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/petfooddb/catalog/internal/domain"
)

// ApplyMode selects whether a batch mutates the store.
type ApplyMode string

const (
	// ModeDryRun computes the diff without touching the store. Every
	// destructive batch computes it before executing.
	ModeDryRun ApplyMode = "dry_run"
	// ModeExecute upserts products and variants and appends the audit
	// trail.
	ModeExecute ApplyMode = "execute"
)

// ProductDiff is the per-product outcome of an apply pass.
type ProductDiff struct {
	ProductKey    string               `json:"productKey"`
	Created       bool                 `json:"created"`
	Changes       []domain.FieldChange `json:"changes,omitempty"`
	VariantsAdded []string             `json:"variantsAdded,omitempty"`
}

// Changed reports whether applying this diff mutates anything.
func (d ProductDiff) Changed() bool {
	return d.Created || len(d.Changes) > 0 || len(d.VariantsAdded) > 0
}

// ApplyResult summarizes an apply pass over one batch.
type ApplyResult struct {
	Mode          ApplyMode     `json:"mode"`
	Diffs         []ProductDiff `json:"diffs"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Unchanged     int           `json:"unchanged"`
	WriteFailures int           `json:"writeFailures"`
	FailedKeys    []string      `json:"failedKeys,omitempty"`
}

// CatalogWriter materializes merge outcomes into the persistence
// collaborator. Writes are per-entity upserts; a failure on one product
// is logged, counted and skipped rather than aborting the batch.
type CatalogWriter struct {
	store              domain.CatalogStore
	authority          *AuthorityRanking
	enableDebugLogging bool
}

// NewCatalogWriter creates a writer over the given store.
func NewCatalogWriter(store domain.CatalogStore, authority *AuthorityRanking, enableDebugLogging bool) *CatalogWriter {
	return &CatalogWriter{
		store:              store,
		authority:          authority,
		enableDebugLogging: enableDebugLogging,
	}
}

// Apply reconciles merge outcomes against the store. In dry-run mode it
// only computes and returns the diff; in execute mode it performs the
// upserts and appends one audit entry per changed product. Applying the
// same outcomes twice leaves the store unchanged on the second run.
func (w *CatalogWriter) Apply(ctx context.Context, batchID string, outcomes []*MergeOutcome, mode ApplyMode) (*ApplyResult, error) {
	if mode != ModeDryRun && mode != ModeExecute {
		return nil, fmt.Errorf("%w: unknown apply mode %q", domain.ErrInvalidRequest, mode)
	}

	result := &ApplyResult{Mode: mode}

	for _, outcome := range outcomes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		diff, final, err := w.reconcile(ctx, outcome)
		if err != nil {
			w.fail(result, outcome.Product.ProductKey, err)
			continue
		}

		if mode == ModeExecute && diff.Changed() {
			if err := w.write(ctx, batchID, final, outcome, diff); err != nil {
				w.fail(result, outcome.Product.ProductKey, err)
				continue
			}
		}

		result.Diffs = append(result.Diffs, diff)
		switch {
		case diff.Created:
			result.Created++
		case diff.Changed():
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	if w.enableDebugLogging {
		log.Printf("[WRITE] %s batch %s: %d created, %d updated, %d unchanged, %d failed",
			mode, batchID, result.Created, result.Updated, result.Unchanged, result.WriteFailures)
	}
	return result, nil
}

// reconcile loads the existing canonical row (if any) and folds the
// incoming product over it: non-empty incoming values win, empty ones
// never erase stored data, and the description follows the authority
// table across batches just as it does within a group.
func (w *CatalogWriter) reconcile(ctx context.Context, outcome *MergeOutcome) (ProductDiff, *domain.CanonicalProduct, error) {
	incoming := outcome.Product
	diff := ProductDiff{ProductKey: incoming.ProductKey}

	existing, err := w.store.GetProduct(ctx, incoming.ProductKey)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		return diff, nil, err
	}

	if existing == nil {
		diff.Created = true
		final := *incoming
		diff.Changes = describeProduct(&final)
		diff.VariantsAdded = variantIDs(outcome.Variants)
		return diff, &final, nil
	}

	final := *existing
	changes := w.foldProduct(&final, incoming)
	diff.Changes = changes

	known, err := w.knownVariants(ctx, incoming.ProductKey)
	if err != nil {
		return diff, nil, err
	}
	for _, v := range outcome.Variants {
		if !known[v.SourceID] {
			diff.VariantsAdded = append(diff.VariantsAdded, v.SourceID)
		}
	}

	return diff, &final, nil
}

// write persists one reconciled product, its variants and the audit
// entry for the decision.
func (w *CatalogWriter) write(ctx context.Context, batchID string, final *domain.CanonicalProduct, outcome *MergeOutcome, diff ProductDiff) error {
	final.UpdatedAt = time.Now().UTC()
	if err := w.store.UpsertProduct(ctx, final); err != nil {
		return err
	}
	for i := range outcome.Variants {
		if err := w.store.UpsertVariant(ctx, &outcome.Variants[i]); err != nil {
			return err
		}
	}

	entry := &domain.AuditEntry{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		GroupKey:       final.ProductKey,
		ParentSourceID: final.ParentSourceID,
		SupersededIDs:  final.VariantRefs,
		FieldsChanged:  diff.Changes,
		CreatedAt:      time.Now().UTC(),
	}
	return w.store.AppendAudit(ctx, entry)
}

func (w *CatalogWriter) fail(result *ApplyResult, productKey string, err error) {
	log.Printf("[WRITE] %s: %v (skipped)", productKey, err)
	result.WriteFailures++
	result.FailedKeys = append(result.FailedKeys, productKey)
}

func (w *CatalogWriter) knownVariants(ctx context.Context, parentKey string) (map[string]bool, error) {
	variants, err := w.store.ListVariants(ctx, parentKey)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(variants))
	for _, v := range variants {
		known[v.SourceID] = true
	}
	return known, nil
}

// foldProduct applies the incoming product to an existing row in place
// and returns the field-level changes. Incoming empty values never
// erase stored data.
func (w *CatalogWriter) foldProduct(final, incoming *domain.CanonicalProduct) []domain.FieldChange {
	var changes []domain.FieldChange

	setString(&final.DisplayName, incoming.DisplayName, "display_name", &changes)
	setString(&final.Series, incoming.Series, "series", &changes)
	setString(&final.ParentSourceID, incoming.ParentSourceID, "parent_source_id", &changes)

	dst, src := &final.Attributes, incoming.Attributes
	setString(&dst.IngredientsRaw, src.IngredientsRaw, "ingredients_raw", &changes)
	setString(&dst.Form, src.Form, "form", &changes)
	setString(&dst.LifeStage, src.LifeStage, "life_stage", &changes)
	setString(&dst.ImageURL, src.ImageURL, "image_url", &changes)
	setString(&dst.ProductURL, src.ProductURL, "product_url", &changes)
	setFloat(&dst.ProteinPercent, src.ProteinPercent, "protein_percent", &changes)
	setFloat(&dst.FatPercent, src.FatPercent, "fat_percent", &changes)
	setFloat(&dst.FiberPercent, src.FiberPercent, "fiber_percent", &changes)
	setFloat(&dst.AshPercent, src.AshPercent, "ash_percent", &changes)
	setFloat(&dst.MoisturePercent, src.MoisturePercent, "moisture_percent", &changes)
	setFloat(&dst.KcalPer100g, src.KcalPer100g, "kcal_per_100g", &changes)
	setFloat(&dst.Price, src.Price, "price", &changes)

	resolved := w.authority.Resolve(
		SourcedValue{Value: final.Attributes.Description, Source: final.DescriptionSource},
		SourcedValue{Value: src.Description, Source: incoming.DescriptionSource},
	)
	if resolved.Value != final.Attributes.Description {
		changes = append(changes, domain.FieldChange{
			Field:    "description",
			Previous: final.Attributes.Description,
			Value:    resolved.Value,
		})
	}
	final.Attributes.Description = resolved.Value
	final.DescriptionSource = resolved.Source

	// New pack presentations extend the reference list even when no
	// attribute moved.
	final.VariantRefs = mergeRefs(final.VariantRefs, incoming.VariantRefs)

	return changes
}

// describeProduct renders every present field of a new product as a
// creation change, so created and updated rows report uniformly.
func describeProduct(p *domain.CanonicalProduct) []domain.FieldChange {
	var changes []domain.FieldChange
	add := func(field, value string) {
		if value != "" {
			changes = append(changes, domain.FieldChange{Field: field, Value: value, FromSourceID: p.ParentSourceID})
		}
	}

	add("display_name", p.DisplayName)
	add("series", p.Series)
	add("parent_source_id", p.ParentSourceID)
	a := p.Attributes
	add("ingredients_raw", a.IngredientsRaw)
	add("description", a.Description)
	add("form", a.Form)
	add("life_stage", a.LifeStage)
	add("image_url", a.ImageURL)
	add("product_url", a.ProductURL)
	addFloat := func(field string, v *float64) {
		if v != nil {
			changes = append(changes, domain.FieldChange{Field: field, Value: fmtFloat(*v), FromSourceID: p.ParentSourceID})
		}
	}
	addFloat("protein_percent", a.ProteinPercent)
	addFloat("fat_percent", a.FatPercent)
	addFloat("fiber_percent", a.FiberPercent)
	addFloat("ash_percent", a.AshPercent)
	addFloat("moisture_percent", a.MoisturePercent)
	addFloat("kcal_per_100g", a.KcalPer100g)
	addFloat("price", a.Price)

	return changes
}

func variantIDs(variants []domain.ArchivedVariant) []string {
	ids := make([]string, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.SourceID)
	}
	return ids
}

func mergeRefs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}

func setString(dst *string, src, field string, changes *[]domain.FieldChange) {
	if src == "" || *dst == src {
		return
	}
	*changes = append(*changes, domain.FieldChange{Field: field, Previous: *dst, Value: src})
	*dst = src
}

func setFloat(dst **float64, src *float64, field string, changes *[]domain.FieldChange) {
	if src == nil {
		return
	}
	if *dst != nil && **dst == *src {
		return
	}
	previous := ""
	if *dst != nil {
		previous = fmtFloat(**dst)
	}
	v := *src
	*changes = append(*changes, domain.FieldChange{Field: field, Previous: previous, Value: fmtFloat(v)})
	*dst = &v
}
