package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pricelens/backend/internal/domain"
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
}

// MatchingService picks the catalog product that best matches a query name
type MatchingService struct {
	scorer             *SimilarityScorer
	logger             zerolog.Logger
	enableDebugLogging bool
}

// NewMatchingService creates a new matching service with the given scorer
func NewMatchingService(scorer *SimilarityScorer, logger zerolog.Logger, config MatchConfig) *MatchingService {
	if scorer == nil {
		scorer = DefaultSimilarityScorer()
	}
	return &MatchingService{
		scorer:             scorer,
		logger:             logger,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Scorer returns the underlying similarity scorer
func (s *MatchingService) Scorer() *SimilarityScorer {
	return s.scorer
}

// FindBestMatch scores every candidate and returns the highest scoring one.
// Equal scores keep the earlier candidate. The result may carry a zero score
// when every candidate was rejected; callers decide what that means.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	query string,
	candidates []domain.Product,
) (*domain.SimilarityResult, error) {
	if s.scorer.Normalizer().Normalize(query) == "" {
		return nil, fmt.Errorf("%w: empty product name", domain.ErrInvalidInput)
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoCandidate
	}

	var best *domain.SimilarityResult
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result := s.scorer.ScoreProduct(query, candidate)

		if s.enableDebugLogging {
			s.logger.Debug().
				Str("query", query).
				Str("candidate", candidate.MatchName()).
				Float64("score", result.Score).
				Str("tier", string(result.Tier)).
				Str("reason", string(result.Reason)).
				Msg("[MATCH] scored candidate")
		}

		if best == nil || result.Score > best.Score {
			r := result
			best = &r
		}
	}

	if s.enableDebugLogging {
		s.logger.Debug().
			Str("query", query).
			Str("best", best.Product.MatchName()).
			Float64("score", best.Score).
			Msg("[MATCH] best match")
	}

	return best, nil
}
