package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/persistence"
	"github.com/pricelens/backend/internal/infrastructure/spreadsheet"
	"github.com/pricelens/backend/internal/infrastructure/standardizer"
	"github.com/pricelens/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("standardizer", cfg.Standardizer.Provider).
		Msg("Starting PriceLens Backend v1.0.0")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Initialize infrastructure dependencies
	db, err := persistence.Open(cfg.Database.DSN, cfg.Database.AutoMigrate, logger)
	if err != nil {
		return err
	}

	memoryCache := cache.NewMemoryCache()
	defer memoryCache.Close()
	logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("memory cache ready")

	std, closeStd, err := newStandardizer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStd()

	// Initialize usecase layer
	scorer, err := usecase.NewSimilarityScorer(
		usecase.DefaultNameNormalizer(),
		usecase.DefaultModifierDictionary(),
		usecase.ScoringWeights{
			ExactBonusWeight: cfg.Matching.ExactBonusWeight,
			ExtraWordPenalty: cfg.Matching.ExtraWordPenalty,
			OverlapScale:     cfg.Matching.OverlapScale,
			OverlapCeiling:   cfg.Matching.OverlapCeiling,
		},
	)
	if err != nil {
		return err
	}

	repo := persistence.NewRepository(db, scorer.Normalizer(), logger)
	matcher := usecase.NewMatchingService(scorer, logger, usecase.MatchConfig{
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})

	comparisonService, err := usecase.NewComparisonService(repo, repo, std, memoryCache, matcher, logger, usecase.ComparisonConfig{
		MinSavingsPct:          cfg.Comparison.MinSavingsPct,
		StaleDays:              cfg.Comparison.StaleDays,
		LowSimilarityThreshold: cfg.Comparison.LowSimilarityThreshold,
		CandidateLimit:         cfg.Comparison.CandidateLimit,
		BatchConcurrency:       cfg.Comparison.BatchConcurrency,
		AITimeout:              cfg.Comparison.AITimeout,
		PersistenceTimeout:     cfg.Comparison.PersistenceTimeout,
		PersistenceRetries:     cfg.Comparison.PersistenceRetries,
		StandardizedCacheTTL:   cfg.Cache.TTL,
	})
	if err != nil {
		return err
	}

	extractionService, err := usecase.NewExtractionService(spreadsheet.NewParser(logger), repo, logger, usecase.ExtractionConfig{
		MinProductsForSuccess:  cfg.Extraction.MinProductsForSuccess,
		CompletenessThreshold:  cfg.Extraction.CompletenessThreshold,
		MaxProductsForFallback: cfg.Extraction.MaxProductsForFallback,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Float64("min_savings_pct", cfg.Comparison.MinSavingsPct).
		Int("stale_days", cfg.Comparison.StaleDays).
		Float64("low_similarity", cfg.Comparison.LowSimilarityThreshold).
		Str("modifiers", usecase.DefaultModifierVersion).
		Msg("comparison engine configured")

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(comparisonService, extractionService, repo, logger, cfg.Server.MaxUploadMB)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newStandardizer builds the configured AI standardizer. A nil standardizer
// disables escalation.
func newStandardizer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (domain.Standardizer, func(), error) {
	sc := cfg.Standardizer
	clientCfg := standardizer.ClientConfig{
		APIKey:        sc.APIKey,
		BaseURL:       sc.BaseURL,
		Model:         sc.Model,
		Timeout:       sc.Timeout,
		MaxAttempts:   sc.MaxAttempts,
		RatePerSecond: sc.RatePerSecond,
		Burst:         sc.Burst,
	}
	switch sc.Provider {
	case "http":
		client := standardizer.NewClient(clientCfg, logger)
		if cfg.Server.Environment == "development" {
			client.SetDebug(true)
		}
		logger.Info().Str("base_url", sc.BaseURL).Msg("HTTP standardizer configured")
		return client, func() {}, nil
	case "gemini":
		g, err := standardizer.NewGeminiStandardizer(ctx, clientCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("model", sc.Model).Msg("Gemini standardizer configured")
		return g, func() { _ = g.Close() }, nil
	default:
		logger.Warn().Msg("no standardizer configured, weak matches will not be escalated")
		return nil, func() {}, nil
	}
}
