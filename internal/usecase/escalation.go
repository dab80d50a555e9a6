package usecase

import "github.com/pricelens/backend/internal/domain"

// Escalation context hints passed to the standardizer
const (
	contextNoMatch       = "No match found"
	contextIncompatible  = "Incompatible match"
	contextLowSimilarity = "Low similarity"
)

// DecideEscalation picks the most severe applicable tier:
// Tier1 no candidates, Tier2 best score is zero, Tier3 best score below threshold.
func DecideEscalation(candidateCount int, best *domain.SimilarityResult, lowSimilarityThreshold float64) domain.Escalation {
	if candidateCount == 0 || best == nil {
		return domain.Escalation{Tier: domain.EscalationTier1, Context: contextNoMatch}
	}
	if best.Score == 0 {
		return domain.Escalation{Tier: domain.EscalationTier2, Context: contextIncompatible}
	}
	if best.Score < lowSimilarityThreshold {
		return domain.Escalation{Tier: domain.EscalationTier3, Context: contextLowSimilarity}
	}
	return domain.Escalation{Tier: domain.EscalationNone}
}
