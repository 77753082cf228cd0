package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/petfooddb/catalog/internal/domain"
	"github.com/petfooddb/catalog/internal/infrastructure/aliasmap"
)

// ResolutionConfig holds the tunables for a resolution batch.
type ResolutionConfig struct {
	SimilarityThreshold float64
	EnableFuzzyMatching bool
	AuthorityOrder      []domain.Provenance
	EnableDebugLogging  bool
}

// BatchOptions narrow one run: an optional raw-brand filter so
// independent per-brand batches can run as separate processes, and the
// execute switch. Without it a run stops after the dry-run diff.
type BatchOptions struct {
	BrandFilter string
	Execute     bool
}

// BatchReport is the user-visible outcome of one batch pass. The
// dry-run diff is always present; failures surface as counts here, not
// as errors.
type BatchReport struct {
	BatchID       string       `json:"batchId"`
	BrandFilter   string       `json:"brandFilter,omitempty"`
	Mode          ApplyMode    `json:"mode"`
	StartedAt     time.Time    `json:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt"`
	RecordsIn     int          `json:"recordsIn"`
	Groups        int          `json:"groups"`
	MergedGroups  int          `json:"mergedGroups"`
	FuzzyMembers  int          `json:"fuzzyMembers"`
	ReviewFlagged int          `json:"reviewFlagged"`
	MergeFailures int          `json:"mergeFailures"`
	DryRun        *ApplyResult `json:"dryRun"`
	Execute       *ApplyResult `json:"execute,omitempty"`
}

// ResolutionService wires the full pipeline: snapshot load, grouping,
// merge resolution and the catalog writer. One service instance is safe
// for sequential batches; each Run gets its own batch id.
type ResolutionService struct {
	store              domain.CatalogStore
	grouper            *Grouper
	merger             *MergeResolver
	writer             *CatalogWriter
	enableDebugLogging bool
}

// NewResolutionService builds the pipeline from a validated alias
// document and a persistence store.
func NewResolutionService(store domain.CatalogStore, aliases *aliasmap.Document, config ResolutionConfig) *ResolutionService {
	normalizer := NewNormalizer(config.EnableDebugLogging)
	brands := NewBrandResolver(aliases, normalizer, config.EnableDebugLogging)

	authority := DefaultAuthorityRanking()
	if len(config.AuthorityOrder) > 0 {
		authority = NewAuthorityRanking(config.AuthorityOrder)
	}

	grouper := NewGrouper(normalizer, brands, GrouperConfig{
		SimilarityThreshold: config.SimilarityThreshold,
		EnableFuzzyMatching: config.EnableFuzzyMatching,
		EnableDebugLogging:  config.EnableDebugLogging,
	})
	scorer := NewCompletenessScorer(config.EnableDebugLogging)
	merger := NewMergeResolver(scorer, authority, config.EnableDebugLogging)
	writer := NewCatalogWriter(store, authority, config.EnableDebugLogging)

	return &ResolutionService{
		store:              store,
		grouper:            grouper,
		merger:             merger,
		writer:             writer,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Run executes one batch pass over the raw snapshot. The dry-run diff
// is always computed first; the store is only mutated when opts.Execute
// is set, and an aborted context before that point leaves it untouched.
func (s *ResolutionService) Run(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	report := &BatchReport{
		BatchID:     uuid.NewString(),
		BrandFilter: opts.BrandFilter,
		Mode:        ModeDryRun,
		StartedAt:   time.Now().UTC(),
	}

	records, err := s.store.LoadRawSnapshot(ctx, opts.BrandFilter)
	if err != nil {
		return nil, fmt.Errorf("load raw snapshot: %w", err)
	}
	report.RecordsIn = len(records)

	if s.enableDebugLogging {
		log.Printf("[BATCH] %s: %d records (filter %q)", report.BatchID, len(records), opts.BrandFilter)
	}

	groups := s.grouper.Group(records)
	report.Groups = len(groups)

	var outcomes []*MergeOutcome
	var flagged []*domain.DuplicateGroup
	for _, group := range groups {
		if group.Flagged() {
			flagged = append(flagged, group)
			report.ReviewFlagged += len(group.Members)
			continue
		}
		if len(group.Members) > 1 {
			report.MergedGroups++
		}
		for _, m := range group.Members {
			if m.Match == domain.MatchFuzzy {
				report.FuzzyMembers++
			}
		}

		outcome, err := s.merger.Resolve(group)
		if err != nil {
			log.Printf("[BATCH] %s: merge %q: %v (skipped)", report.BatchID, group.Key.String(), err)
			report.MergeFailures++
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	report.DryRun, err = s.writer.Apply(ctx, report.BatchID, outcomes, ModeDryRun)
	if err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}

	if opts.Execute {
		report.Mode = ModeExecute
		report.Execute, err = s.writer.Apply(ctx, report.BatchID, outcomes, ModeExecute)
		if err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		s.enqueueReviews(ctx, report.BatchID, flagged)
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// enqueueReviews routes flagged records to the manual review queue.
// Queue failures are logged and counted nowhere: the records are still
// visible in the report.
func (s *ResolutionService) enqueueReviews(ctx context.Context, batchID string, flagged []*domain.DuplicateGroup) {
	for _, group := range flagged {
		for _, m := range group.Members {
			item := &domain.ReviewItem{
				SourceID: m.Record.SourceID,
				RawName:  m.Record.NameRaw,
				Reason:   group.ReviewReason,
				BatchID:  batchID,
			}
			if err := s.store.AppendReview(ctx, item); err != nil {
				log.Printf("[BATCH] %s: review %s: %v", batchID, m.Record.SourceID, err)
			}
		}
	}
}
