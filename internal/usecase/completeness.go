package usecase

import (
	"fmt"

	"github.com/pricelens/backend/internal/domain"
)

// EvaluateExtraction decides whether a rule-based extraction can be kept or
// should be escalated to (or replaced by) an AI-vision re-extraction.
// Rules are checked in order and the first match wins.
func EvaluateExtraction(report domain.ExtractionReport, cfg ExtractionConfig) domain.ExtractionDecision {
	ratio := completenessRatio(report)

	switch {
	case report.ProductCount == 0:
		return domain.ExtractionDecision{
			Decision: domain.OutcomeEscalateAI,
			Reason:   "no products found",
		}
	case report.ProductCount < cfg.MinProductsForSuccess:
		return domain.ExtractionDecision{
			Decision:      domain.OutcomeReplaceWithAI,
			Reason:        fmt.Sprintf("only %d products extracted (minimum %d)", report.ProductCount, cfg.MinProductsForSuccess),
			ShouldReplace: true,
		}
	case ratio < cfg.CompletenessThreshold:
		return domain.ExtractionDecision{
			Decision:      domain.OutcomeReplaceWithAI,
			Reason:        fmt.Sprintf("completeness %.0f%% below %.0f%%", ratio*100, cfg.CompletenessThreshold*100),
			ShouldReplace: true,
		}
	case report.ProductCount >= cfg.MaxProductsForFallback:
		return domain.ExtractionDecision{
			Decision: domain.OutcomeAccepted,
			Reason:   fmt.Sprintf("large extraction (%d products), fallback skipped", report.ProductCount),
		}
	default:
		return domain.ExtractionDecision{
			Decision: domain.OutcomeAccepted,
			Reason:   fmt.Sprintf("%d products, completeness %.0f%%", report.ProductCount, ratio*100),
		}
	}
}

// completenessRatio uses the reported ratio when set, zero included,
// otherwise derives it from row counts
func completenessRatio(report domain.ExtractionReport) float64 {
	if report.CompletenessRatio != nil {
		return *report.CompletenessRatio
	}
	if report.TotalRowsDetected <= 0 {
		if report.ProductCount > 0 {
			return 1
		}
		return 0
	}
	return float64(report.TotalRowsProcessed) / float64(report.TotalRowsDetected)
}

// NewExtractionReport builds a report from row counts
func NewExtractionReport(detected, processed, products int) domain.ExtractionReport {
	report := domain.ExtractionReport{
		TotalRowsDetected:  detected,
		TotalRowsProcessed: processed,
		ProductCount:       products,
	}
	ratio := completenessRatio(report)
	report.CompletenessRatio = &ratio
	return report
}

// SelectExtraction picks between the rule-based result and an AI re-extraction.
// The AI result only wins when the decision escalated and it found more products.
func SelectExtraction(ruleBased, ai *domain.Extraction, decision domain.ExtractionDecision) *domain.Extraction {
	if ai == nil || !decision.Escalated() {
		return ruleBased
	}
	if ruleBased == nil || len(ai.Rows) > len(ruleBased.Rows) {
		return ai
	}
	return ruleBased
}
