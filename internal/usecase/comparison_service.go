package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pricelens/backend/internal/domain"
)

// ComparisonService matches scanned items against the catalog and compares their prices.
// Flow: normalize -> candidates -> best match -> escalate to AI if weak -> analyze prices
type ComparisonService struct {
	catalog      domain.CatalogRepository
	prices       domain.PriceRepository
	standardizer domain.Standardizer
	cache        domain.CacheRepository
	matcher      *MatchingService
	analyzer     *PriceAnalyzer
	config       ComparisonConfig
	logger       zerolog.Logger
	retryBackoff time.Duration
	now          func() time.Time
}

// NewComparisonService creates a comparison service. standardizer and cache may be nil,
// in which case weak matches are never escalated or never cached.
func NewComparisonService(
	catalog domain.CatalogRepository,
	prices domain.PriceRepository,
	standardizer domain.Standardizer,
	cache domain.CacheRepository,
	matcher *MatchingService,
	logger zerolog.Logger,
	config ComparisonConfig,
) (*ComparisonService, error) {
	if catalog == nil || prices == nil {
		return nil, errors.New("catalog and price repositories are required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if matcher == nil {
		matcher = NewMatchingService(nil, logger, MatchConfig{})
	}

	return &ComparisonService{
		catalog:      catalog,
		prices:       prices,
		standardizer: standardizer,
		cache:        cache,
		matcher:      matcher,
		analyzer:     NewPriceAnalyzer(logger),
		config:       config,
		logger:       logger,
		retryBackoff: defaultRetryBackoff,
		now:          time.Now,
	}, nil
}

// Config returns the startup configuration, the base for per-call overrides
func (s *ComparisonService) Config() ComparisonConfig {
	return s.config
}

// Score exposes the similarity scorer for diagnostics
func (s *ComparisonService) Score(query, candidate string) domain.SimilarityResult {
	return s.matcher.Scorer().Score(query, candidate)
}

// CompareItem matches one item and analyzes its price.
// Unmatchable input produces an unmatched result, not an error; only an
// invalid cfg or cancellation of ctx is returned as an error.
func (s *ComparisonService) CompareItem(
	ctx context.Context,
	query domain.ComparisonQuery,
	excludeSupplierID string,
	cfg ComparisonConfig,
) (*domain.ComparisonResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCallConfig(cfg); err != nil {
		return nil, err
	}

	log := s.logger.With().Str("item", query.Name).Logger()

	normalized := s.matcher.Scorer().Normalizer().Normalize(query.Name)
	if normalized == "" {
		return unmatched(domain.Escalation{}, "empty product name"), nil
	}

	// Rule-based pass
	candidates, err := s.findCandidates(ctx, normalized, query.Category, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().Err(err).Msg("candidate lookup failed, treating item as unmatched")
		candidates = nil
	}

	best, err := s.bestMatch(ctx, query.Name, candidates)
	if err != nil {
		return nil, err
	}

	escalation := DecideEscalation(len(candidates), best, cfg.LowSimilarityThreshold)
	source := domain.SourceRule

	// AI pass
	if escalation.Escalated() && s.standardizer != nil {
		aiBest, err := s.escalate(ctx, query, normalized, escalation, candidates, cfg)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Warn().Err(err).Str("tier", escalation.Tier.String()).Msg("standardizer failed, keeping rule-based match")
		case aiBest != nil && (best == nil || aiBest.Score > best.Score):
			best = aiBest
			source = domain.SourceAI
		}
	}

	if best == nil || !best.Matched() {
		res := unmatched(escalation, "no comparable product in catalog")
		res.Similarity = best
		res.Source = source
		return res, nil
	}

	result := &domain.ComparisonResult{
		Matched:    true,
		Product:    best.Product,
		Similarity: best,
		Escalation: escalation,
		Source:     source,
	}

	analysis, reason, err := s.analyze(ctx, query, best.Product, excludeSupplierID, cfg)
	if err != nil {
		return nil, err
	}
	result.Analysis = analysis
	result.Reason = reason

	return result, nil
}

// CompareBatch compares items concurrently with a fixed concurrency limit.
// A failing item is reported in its BatchResult and never stops the others.
// Results arrive in completion order, tagged with the item ID.
func (s *ComparisonService) CompareBatch(
	ctx context.Context,
	items []domain.ComparisonQuery,
	excludeSupplierID string,
	cfg ComparisonConfig,
) ([]domain.BatchResult, error) {
	if err := validateCallConfig(cfg); err != nil {
		return nil, err
	}

	results := make([]domain.BatchResult, 0, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BatchConcurrency)

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}

		g.Go(func() error {
			res, err := s.CompareItem(gctx, item, excludeSupplierID, cfg)
			br := domain.BatchResult{ItemID: item.ID, Result: res}
			if err != nil {
				br.Error = err.Error()
				s.logger.Warn().Err(err).Str("item_id", item.ID).Msg("batch item failed")
			}

			mu.Lock()
			results = append(results, br)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// validateCallConfig rejects a per-call config before it can stall the batch
// limiter or expire every lookup immediately
func validateCallConfig(cfg ComparisonConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (s *ComparisonService) bestMatch(ctx context.Context, name string, candidates []domain.Product) (*domain.SimilarityResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	best, err := s.matcher.FindBestMatch(ctx, name, candidates)
	if err != nil {
		if errors.Is(err, domain.ErrNoCandidate) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, nil
		}
		return nil, err
	}
	return best, nil
}

// escalate asks the standardizer for a canonical name and re-scores with it.
// Tier1 has nothing to re-score, so the catalog is queried again with the new name.
func (s *ComparisonService) escalate(
	ctx context.Context,
	query domain.ComparisonQuery,
	normalized string,
	escalation domain.Escalation,
	candidates []domain.Product,
	cfg ComparisonConfig,
) (*domain.SimilarityResult, error) {
	std, err := s.standardize(ctx, query, normalized, escalation, cfg)
	if err != nil {
		return nil, err
	}

	stdNormalized := s.matcher.Scorer().Normalizer().Normalize(std.StandardizedName)
	if stdNormalized == "" {
		return nil, fmt.Errorf("%w: empty standardized name", domain.ErrStandardizerFailure)
	}

	pool := candidates
	if escalation.Tier == domain.EscalationTier1 || stdNormalized != normalized {
		more, err := s.findCandidates(ctx, stdNormalized, query.Category, cfg)
		if err != nil {
			return nil, err
		}
		pool = mergeCandidates(candidates, more)
	}

	return s.bestMatch(ctx, std.StandardizedName, pool)
}

// standardize returns a cached standardization or calls the AI under the AI timeout
func (s *ComparisonService) standardize(
	ctx context.Context,
	query domain.ComparisonQuery,
	normalized string,
	escalation domain.Escalation,
	cfg ComparisonConfig,
) (*domain.StandardizationResult, error) {
	key := standardizationCacheKey(normalized, query.Unit)

	if cached, err := s.getFromCache(ctx, key); err == nil {
		return cached, nil
	}

	aiCtx, cancel := context.WithTimeout(ctx, cfg.AITimeout)
	defer cancel()

	std, err := s.standardizer.Standardize(aiCtx, query.Name, query.Unit, escalation.Context)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Caller gave up; whatever came back is discarded
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStandardizerFailure, err)
	}
	if std == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrStandardizerFailure)
	}

	if err := s.setInCache(ctx, key, std, cfg.StandardizedCacheTTL); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("failed to cache standardization")
	}
	return std, nil
}

func (s *ComparisonService) findCandidates(ctx context.Context, normalized, category string, cfg ComparisonConfig) ([]domain.Product, error) {
	filter := domain.CandidateFilter{
		NormalizedName: normalized,
		Tokens:         strings.Fields(normalized),
		Category:       category,
		Limit:          cfg.CandidateLimit,
	}

	var products []domain.Product
	err := withRetry(ctx, cfg.PersistenceRetries, cfg.PersistenceTimeout, s.retryBackoff, func(ctx context.Context) error {
		var err error
		products, err = s.catalog.FindCandidateProducts(ctx, filter)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: find candidates: %v", domain.ErrPersistenceFailure, err)
	}
	return products, nil
}

// analyze loads active prices of the matched product and runs the price analysis.
// Failures degrade to a matched result without analysis and a reason.
func (s *ComparisonService) analyze(
	ctx context.Context,
	query domain.ComparisonQuery,
	product *domain.Product,
	excludeSupplierID string,
	cfg ComparisonConfig,
) (*domain.PriceAnalysis, string, error) {
	var active []domain.ActivePrice
	err := withRetry(ctx, cfg.PersistenceRetries, cfg.PersistenceTimeout, s.retryBackoff, func(ctx context.Context) error {
		var err error
		active, err = s.prices.FindActivePrices(ctx, product.ID)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		s.logger.Warn().Err(err).Str("product_id", product.ID).Msg("active price lookup failed")
		return nil, "price lookup failed", nil
	}

	scanned, offers, incomparable := ComparableOffers(query, active)
	analysis, err := s.analyzer.Analyze(scanned, offers, excludeSupplierID, s.now(), AnalysisConfig{
		MinSavingsPct: cfg.MinSavingsPct,
		StaleDays:     cfg.StaleDays,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, "no valid scanned price", nil
		}
		return nil, "", err
	}
	analysis.Incomparable = incomparable
	return &analysis, "", nil
}

// ComparableOffers converts active prices into offers on the same basis as the query.
// When the query has a pack size, everything is compared per canonical unit and offers in
// another unit or without a pack size are skipped. Otherwise raw amounts are compared, and
// only against offers for a single unit (quantity 1, or 0 for unknown).
func ComparableOffers(query domain.ComparisonQuery, active []domain.ActivePrice) (float64, []PriceOffer, int) {
	scanned := query.ScannedPrice
	queryUnit := CanonicalUnit(query.Unit)
	perUnit, ok := UnitPrice(query.ScannedPrice, query.Quantity, query.Unit)
	if ok {
		scanned = perUnit
	}

	offers := make([]PriceOffer, 0, len(active))
	incomparable := 0
	for _, a := range active {
		price := a.Amount
		if ok {
			if CanonicalUnit(a.Unit) != queryUnit {
				incomparable++
				continue
			}
			p, offerOK := UnitPrice(a.Amount, a.Quantity, a.Unit)
			if !offerOK {
				incomparable++
				continue
			}
			price = p
		} else {
			if a.Quantity != 0 && a.Quantity != 1 {
				incomparable++
				continue
			}
			if query.Unit != "" && a.Unit != "" && CanonicalUnit(a.Unit) != queryUnit {
				incomparable++
				continue
			}
		}
		if price <= 0 {
			incomparable++
			continue
		}

		offers = append(offers, PriceOffer{
			SupplierID:   a.SupplierID,
			SupplierName: a.SupplierName,
			Price:        price,
			ValidFrom:    a.ValidFrom,
			CreatedAt:    a.CreatedAt,
		})
	}
	return scanned, offers, incomparable
}

// getFromCache retrieves a standardization from cache
func (s *ComparisonService) getFromCache(ctx context.Context, key string) (*domain.StandardizationResult, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var std domain.StandardizationResult
	if err := json.Unmarshal(raw, &std); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &std, nil
}

// setInCache stores a standardization in cache
func (s *ComparisonService) setInCache(ctx context.Context, key string, std *domain.StandardizationResult, ttl time.Duration) error {
	if s.cache == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(std)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, raw, ttl)
}

// standardizationCacheKey format: "standardized:{normalized_name}:{canonical_unit}"
func standardizationCacheKey(normalized, unit string) string {
	return fmt.Sprintf("standardized:%s:%s", normalized, strings.ToLower(CanonicalUnit(unit)))
}

func mergeCandidates(a, b []domain.Product) []domain.Product {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]domain.Product, 0, len(a)+len(b))
	for _, list := range [][]domain.Product{a, b} {
		for _, p := range list {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func unmatched(escalation domain.Escalation, reason string) *domain.ComparisonResult {
	return &domain.ComparisonResult{
		Matched:    false,
		Escalation: escalation,
		Source:     domain.SourceRule,
		Reason:     reason,
	}
}
