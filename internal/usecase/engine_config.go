package usecase

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// SortedWordScore is the score of an order-insensitive exact match.
// The overlap ceiling must stay below it.
const SortedWordScore = 95.0

// ScoringWeights tunes the overlap stage of the similarity scorer
type ScoringWeights struct {
	ExactBonusWeight float64 `validate:"gte=0,lte=1"`
	ExtraWordPenalty float64 `validate:"gte=0,lte=1"`
	OverlapScale     float64 `validate:"gt=0,lte=100"`
	OverlapCeiling   float64 `validate:"gt=0,lt=95"`
}

// DefaultScoringWeights returns the production weights
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ExactBonusWeight: 0.3,
		ExtraWordPenalty: 0.05,
		OverlapScale:     80,
		OverlapCeiling:   90,
	}
}

// Validate checks the weights keep overlap scores below the sorted-word tier
func (w ScoringWeights) Validate() error {
	if err := configValidator.Struct(w); err != nil {
		return fmt.Errorf("invalid scoring weights: %w", err)
	}
	return nil
}

// ComparisonConfig holds the knobs of the matching and comparison pipeline
type ComparisonConfig struct {
	MinSavingsPct          float64       `validate:"gte=0,lte=100"`
	StaleDays              int           `validate:"gt=0"`
	LowSimilarityThreshold float64       `validate:"gte=0,lte=100"`
	CandidateLimit         int           `validate:"gt=0"`
	BatchConcurrency       int           `validate:"gt=0,lte=64"`
	AITimeout              time.Duration `validate:"gt=0"`
	PersistenceTimeout     time.Duration `validate:"gt=0"`
	PersistenceRetries     int           `validate:"gte=0,lte=10"`
	StandardizedCacheTTL   time.Duration `validate:"gte=0"`
}

// DefaultComparisonConfig returns the production defaults
func DefaultComparisonConfig() ComparisonConfig {
	return ComparisonConfig{
		MinSavingsPct:          5,
		StaleDays:              30,
		LowSimilarityThreshold: 30,
		CandidateLimit:         50,
		BatchConcurrency:       3,
		AITimeout:              20 * time.Second,
		PersistenceTimeout:     5 * time.Second,
		PersistenceRetries:     2,
		StandardizedCacheTTL:   720 * time.Hour,
	}
}

// Validate checks every field is in range
func (c ComparisonConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid comparison config: %w", err)
	}
	return nil
}

// ComparisonOverrides are optional per-call replacements for ComparisonConfig fields
type ComparisonOverrides struct {
	MinSavingsPct *float64 `json:"minSavingsPct,omitempty"`
	StaleDays     *int     `json:"staleDays,omitempty"`
}

// Apply merges the overrides onto cfg and validates the result
func (o ComparisonOverrides) Apply(cfg ComparisonConfig) (ComparisonConfig, error) {
	if o.MinSavingsPct != nil {
		cfg.MinSavingsPct = *o.MinSavingsPct
	}
	if o.StaleDays != nil {
		cfg.StaleDays = *o.StaleDays
	}
	return cfg, cfg.Validate()
}

// ExtractionConfig holds the thresholds of the completeness controller
type ExtractionConfig struct {
	MinProductsForSuccess  int     `validate:"gte=1"`
	CompletenessThreshold  float64 `validate:"gte=0,lte=1"`
	MaxProductsForFallback int     `validate:"gtefield=MinProductsForSuccess"`
}

// DefaultExtractionConfig returns the production thresholds
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MinProductsForSuccess:  5,
		CompletenessThreshold:  0.8,
		MaxProductsForFallback: 100,
	}
}

// Validate checks the thresholds are consistent
func (c ExtractionConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid extraction config: %w", err)
	}
	return nil
}
