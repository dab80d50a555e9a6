package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

// Price status thresholds, relative to the market min, max and average.
// Decimal so that a price exactly on a boundary never crosses it.
var (
	suspiciouslyLowFactor = decimal.RequireFromString("0.70")
	overpricedFactor      = decimal.RequireFromString("1.15")
	aboveAverageFactor    = decimal.RequireFromString("1.05")
	belowAverageFactor    = decimal.RequireFromString("0.95")
	hundred               = decimal.NewFromInt(100)
)

// PriceOffer is one supplier's comparable price for the matched product
type PriceOffer struct {
	SupplierID   string
	SupplierName string
	Price        float64
	ValidFrom    time.Time
	CreatedAt    time.Time
}

// AnalysisConfig holds the per-call comparison thresholds
type AnalysisConfig struct {
	MinSavingsPct float64
	StaleDays     int
}

// PriceAnalyzer compares a scanned price against competing supplier offers
type PriceAnalyzer struct {
	logger zerolog.Logger
}

// NewPriceAnalyzer creates an analyzer that reports data inconsistencies to logger
func NewPriceAnalyzer(logger zerolog.Logger) *PriceAnalyzer {
	return &PriceAnalyzer{logger: logger}
}

// Analyze filters offers and computes min/max/avg, better deals and the price status.
// A non-positive scanned price is rejected with ErrInvalidInput.
func (a *PriceAnalyzer) Analyze(
	scannedPrice float64,
	offers []PriceOffer,
	excludeSupplierID string,
	asOf time.Time,
	cfg AnalysisConfig,
) (domain.PriceAnalysis, error) {
	if scannedPrice <= 0 {
		return domain.PriceAnalysis{}, fmt.Errorf("%w: scanned price must be positive, got %v", domain.ErrInvalidInput, scannedPrice)
	}

	analysis := domain.PriceAnalysis{
		ScannedPrice: scannedPrice,
		BetterDeals:  []domain.BetterDeal{},
		Status:       domain.StatusNoComparison,
	}

	// Step 1: never recommend the scanning supplier to itself
	remaining := make([]PriceOffer, 0, len(offers))
	for _, o := range offers {
		if excludeSupplierID != "" && o.SupplierID == excludeSupplierID {
			analysis.ExcludedSupplier++
			continue
		}
		remaining = append(remaining, o)
	}

	// Step 2: one offer per supplier
	remaining = a.latestPerSupplier(remaining)

	// Step 3: drop suppliers that have not updated within the staleness window
	if cfg.StaleDays > 0 {
		cutoff := asOf.AddDate(0, 0, -cfg.StaleDays)
		fresh := remaining[:0]
		for _, o := range remaining {
			if o.ValidFrom.Before(cutoff) {
				analysis.ExcludedStale++
				continue
			}
			fresh = append(fresh, o)
		}
		remaining = fresh
	}

	if len(remaining) == 0 {
		return analysis, nil
	}

	// Step 4: min, max and average
	minPrice, maxPrice, sum := remaining[0].Price, remaining[0].Price, 0.0
	for _, o := range remaining {
		minPrice = min(minPrice, o.Price)
		maxPrice = max(maxPrice, o.Price)
		sum += o.Price
	}
	avg := sum / float64(len(remaining))

	analysis.MinPrice = minPrice
	analysis.MaxPrice = maxPrice
	analysis.AvgPrice = roundTo(avg, 2)
	analysis.OfferCount = len(remaining)

	// Step 5: better deals and best-price flag
	analysis.BetterDeals = FindBetterDeals(scannedPrice, remaining, cfg.MinSavingsPct)
	analysis.IsBestPrice = scannedPrice <= minPrice
	analysis.Status, analysis.Deviation = ClassifyPrice(scannedPrice, minPrice, maxPrice, avg)

	return analysis, nil
}

// latestPerSupplier keeps the most recently created offer of each supplier
// and warns when a supplier has several active prices
func (a *PriceAnalyzer) latestPerSupplier(offers []PriceOffer) []PriceOffer {
	latest := make(map[string]PriceOffer, len(offers))
	counts := make(map[string]int, len(offers))
	order := make([]string, 0, len(offers))

	for _, o := range offers {
		counts[o.SupplierID]++
		cur, seen := latest[o.SupplierID]
		if !seen {
			order = append(order, o.SupplierID)
			latest[o.SupplierID] = o
			continue
		}
		if o.CreatedAt.After(cur.CreatedAt) {
			latest[o.SupplierID] = o
		}
	}

	out := make([]PriceOffer, 0, len(order))
	for _, id := range order {
		if counts[id] > 1 {
			a.logger.Warn().
				Err(domain.ErrDataInconsistency).
				Str("supplier_id", id).
				Int("active_prices", counts[id]).
				Msg("several active prices for one supplier, keeping the most recent")
		}
		out = append(out, latest[id])
	}
	return out
}

// FindBetterDeals returns offers saving at least minSavingsPct percent,
// cheapest first, ties broken by supplier name
func FindBetterDeals(scannedPrice float64, offers []PriceOffer, minSavingsPct float64) []domain.BetterDeal {
	deals := []domain.BetterDeal{}
	if scannedPrice <= 0 {
		return deals
	}

	scanned := decimal.NewFromFloat(scannedPrice)
	threshold := decimal.NewFromFloat(minSavingsPct).Mul(scanned)
	for _, o := range offers {
		diff := scanned.Sub(decimal.NewFromFloat(o.Price))
		// savings*100 >= minSavingsPct*scanned, kept free of division
		if !diff.IsPositive() || diff.Mul(hundred).LessThan(threshold) {
			continue
		}
		savings := scannedPrice - o.Price
		pct := savings / scannedPrice * 100
		deals = append(deals, domain.BetterDeal{
			SupplierID:   o.SupplierID,
			SupplierName: o.SupplierName,
			Price:        o.Price,
			Savings:      roundTo(savings, 2),
			SavingsPct:   roundTo(pct, 1),
		})
	}

	sort.SliceStable(deals, func(i, j int) bool {
		if deals[i].Price != deals[j].Price {
			return deals[i].Price < deals[j].Price
		}
		if deals[i].SupplierName != deals[j].SupplierName {
			return deals[i].SupplierName < deals[j].SupplierName
		}
		return deals[i].SupplierID < deals[j].SupplierID
	})
	return deals
}

// ClassifyPrice labels a scanned price against the market and returns the signed
// percentage distance from the reference price of the chosen label.
// Checks run in order and the first match wins.
func ClassifyPrice(scanned, minPrice, maxPrice, avg float64) (domain.PriceStatus, float64) {
	s := decimal.NewFromFloat(scanned)
	switch {
	case s.LessThan(scaled(minPrice, suspiciouslyLowFactor)):
		return domain.StatusSuspiciouslyLow, deviation(scanned, minPrice)
	case s.GreaterThan(scaled(maxPrice, overpricedFactor)):
		return domain.StatusOverpriced, deviation(scanned, maxPrice)
	case s.GreaterThan(scaled(avg, aboveAverageFactor)):
		return domain.StatusAboveAverage, deviation(scanned, avg)
	case s.LessThan(scaled(avg, belowAverageFactor)):
		return domain.StatusBelowAverage, deviation(scanned, avg)
	default:
		return domain.StatusNormal, deviation(scanned, avg)
	}
}

func scaled(price float64, factor decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(factor)
}

func deviation(scanned, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return roundTo((scanned-reference)/reference*100, 1)
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
