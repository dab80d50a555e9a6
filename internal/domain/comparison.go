package domain

import "fmt"

// MatchTier identifies which scoring stage produced a similarity score
type MatchTier string

const (
	TierExact      MatchTier = "exact"
	TierSortedWord MatchTier = "sorted-word"
	TierOverlap    MatchTier = "overlap"
	TierRejected   MatchTier = "rejected"
)

// RejectReason explains a zero score
type RejectReason string

const (
	ReasonNone             RejectReason = ""
	ReasonModifierConflict RejectReason = "modifier-conflict"
	ReasonCoreWordMismatch RejectReason = "core-word-mismatch"
	ReasonEmptyInput       RejectReason = "empty-input"
)

// ComparisonQuery is a scanned or extracted item to compare against the catalog
type ComparisonQuery struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name" binding:"required"`
	Unit         string  `json:"unit,omitempty"`
	Quantity     float64 `json:"quantity,omitempty"`
	ScannedPrice float64 `json:"scannedPrice"`
	Category     string  `json:"category,omitempty"`
}

// SimilarityResult is the outcome of scoring one query against one candidate
type SimilarityResult struct {
	Score   float64      `json:"score"` // 0-100
	Product *Product     `json:"product,omitempty"`
	Tier    MatchTier    `json:"tier"`
	Reason  RejectReason `json:"reason,omitempty"`
}

// Matched reports whether the result points at a usable product
func (r SimilarityResult) Matched() bool {
	return r.Product != nil && r.Score > 0
}

// PriceStatus classifies a scanned price against the market
type PriceStatus string

const (
	StatusSuspiciouslyLow PriceStatus = "suspiciously_low"
	StatusOverpriced      PriceStatus = "overpriced"
	StatusAboveAverage    PriceStatus = "above_average"
	StatusBelowAverage    PriceStatus = "below_average"
	StatusNormal          PriceStatus = "normal"
	StatusNoComparison    PriceStatus = "no_comparison"
)

// BetterDeal is a competing offer cheaper than the scanned price
type BetterDeal struct {
	SupplierID   string  `json:"supplierId"`
	SupplierName string  `json:"supplierName"`
	Price        float64 `json:"price"`
	Savings      float64 `json:"savings"`
	SavingsPct   float64 `json:"savingsPct"`
}

// PriceAnalysis summarizes how a scanned price compares with active offers
type PriceAnalysis struct {
	ScannedPrice     float64      `json:"scannedPrice"`
	MinPrice         float64      `json:"minPrice"`
	MaxPrice         float64      `json:"maxPrice"`
	AvgPrice         float64      `json:"avgPrice"`
	OfferCount       int          `json:"offerCount"`
	BetterDeals      []BetterDeal `json:"betterDeals"`
	IsBestPrice      bool         `json:"isBestPrice"`
	Status           PriceStatus  `json:"status"`
	Deviation        float64      `json:"deviation"` // Signed percent from the crossed boundary
	ExcludedStale    int          `json:"excludedStale"`
	ExcludedSupplier int          `json:"excludedSupplier"`
	Incomparable     int          `json:"incomparable"`
}

// EscalationTier says why the rule-based match should be sent to the AI standardizer
type EscalationTier int

const (
	EscalationNone EscalationTier = iota
	EscalationTier1
	EscalationTier2
	EscalationTier3
)

func (t EscalationTier) String() string {
	switch t {
	case EscalationTier1:
		return "tier1"
	case EscalationTier2:
		return "tier2"
	case EscalationTier3:
		return "tier3"
	default:
		return "none"
	}
}

// MarshalText renders the tier as its name in JSON payloads
func (t EscalationTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name produced by MarshalText
func (t *EscalationTier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*t = EscalationNone
	case "tier1":
		*t = EscalationTier1
	case "tier2":
		*t = EscalationTier2
	case "tier3":
		*t = EscalationTier3
	default:
		return fmt.Errorf("unknown escalation tier %q", text)
	}
	return nil
}

// Escalation is the decision of the escalation controller
type Escalation struct {
	Tier    EscalationTier `json:"tier"`
	Context string         `json:"context,omitempty"` // Hint passed to the standardizer
}

// Escalated reports whether an AI call is warranted
func (e Escalation) Escalated() bool {
	return e.Tier != EscalationNone
}

// MatchSource records which path produced the final match
type MatchSource string

const (
	SourceRule MatchSource = "rule"
	SourceAI   MatchSource = "ai"
)

// StandardizationResult is what an AI standardizer returns for a raw product name
type StandardizationResult struct {
	StandardizedName string  `json:"standardizedName"`
	StandardizedUnit string  `json:"standardizedUnit,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// ComparisonResult is the full outcome of comparing one item
type ComparisonResult struct {
	Matched    bool              `json:"matched"`
	Product    *Product          `json:"product,omitempty"`
	Analysis   *PriceAnalysis    `json:"analysis,omitempty"`
	Similarity *SimilarityResult `json:"similarity,omitempty"`
	Escalation Escalation        `json:"escalation"`
	Source     MatchSource       `json:"source"`
	Reason     string            `json:"reason,omitempty"`
}

// BatchResult tags a comparison result with the item it belongs to
type BatchResult struct {
	ItemID string            `json:"itemId"`
	Result *ComparisonResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}
