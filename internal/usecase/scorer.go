package usecase

import (
	"log"

	"github.com/petfooddb/catalog/internal/domain"
)

// Completeness weights. Exact values are tunable policy; the relative
// ordering is a contract the merge step depends on:
// ingredients > macro pair > product URL > kcal ~ image > price.
// The secondaries approximate kcal/image only in aggregate: a full
// fiber/ash/moisture trio scores 9, a single one just 3.
const (
	weightIngredients = 40
	weightMacroPair   = 25
	weightProductURL  = 15
	weightKcal        = 8
	weightImageURL    = 8
	weightSecondary   = 3 // each of fiber, ash, moisture
	weightPrice       = 2
)

// CompletenessScorer estimates how much useful attribute data a record
// carries. Higher scores win parent selection during merge; ties are
// broken downstream by source authority.
type CompletenessScorer struct {
	enableDebugLogging bool
}

// NewCompletenessScorer creates a scorer.
func NewCompletenessScorer(enableDebugLogging bool) *CompletenessScorer {
	return &CompletenessScorer{enableDebugLogging: enableDebugLogging}
}

// Score computes the weighted completeness of a record's attributes.
// Protein and fat only count together: a lone protein value is not a
// usable macro profile.
func (s *CompletenessScorer) Score(rec *domain.RawRecord) int {
	a := rec.Attributes
	score := 0

	if a.IngredientsRaw != "" {
		score += weightIngredients
	}
	if a.HasMacroPair() {
		score += weightMacroPair
	}
	if a.ProductURL != "" {
		score += weightProductURL
	}
	if a.KcalPer100g != nil {
		score += weightKcal
	}
	if a.ImageURL != "" {
		score += weightImageURL
	}
	if a.FiberPercent != nil {
		score += weightSecondary
	}
	if a.AshPercent != nil {
		score += weightSecondary
	}
	if a.MoisturePercent != nil {
		score += weightSecondary
	}
	if a.Price != nil {
		score += weightPrice
	}

	if s.enableDebugLogging {
		log.Printf("[SCORE] %s: %d", rec.SourceID, score)
	}
	return score
}
