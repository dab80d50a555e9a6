package standardizer

import (
	"fmt"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// standardizeResponse is the JSON both providers return
type standardizeResponse struct {
	StandardizedName string  `json:"standardized_name"`
	StandardizedUnit string  `json:"standardized_unit,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// MapToStandardization converts a provider response to the domain model.
// Confidence is clamped to 0..1; percentages are scaled down.
func MapToStandardization(resp standardizeResponse) (*domain.StandardizationResult, error) {
	name := strings.Join(strings.Fields(resp.StandardizedName), " ")
	if name == "" {
		return nil, fmt.Errorf("%w: empty standardized name", domain.ErrStandardizerFailure)
	}

	confidence := resp.Confidence
	if confidence > 1 {
		confidence /= 100
	}
	confidence = min(max(confidence, 0), 1)

	return &domain.StandardizationResult{
		StandardizedName: strings.ToLower(name),
		StandardizedUnit: strings.ToLower(strings.TrimSpace(resp.StandardizedUnit)),
		Confidence:       confidence,
	}, nil
}
