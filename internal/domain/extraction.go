package domain

// ExtractionReport describes how much of a document a rule-based pass recovered
type ExtractionReport struct {
	TotalRowsDetected  int      `json:"totalRowsDetected"`
	TotalRowsProcessed int      `json:"totalRowsProcessed"`
	CompletenessRatio  *float64 `json:"completenessRatio,omitempty"` // nil: derive from row counts
	ProductCount       int      `json:"productCount"`
}

// ExtractionOutcome is the verdict on an extraction
type ExtractionOutcome string

const (
	OutcomeAccepted      ExtractionOutcome = "ACCEPTED"
	OutcomeEscalateAI    ExtractionOutcome = "ESCALATE_AI"
	OutcomeReplaceWithAI ExtractionOutcome = "REPLACE_WITH_AI"
)

// ExtractionDecision is returned by the completeness controller
type ExtractionDecision struct {
	Decision      ExtractionOutcome `json:"decision"`
	Reason        string            `json:"reason"`
	ShouldReplace bool              `json:"shouldReplace"`
}

// Escalated reports whether an AI re-extraction should run
func (d ExtractionDecision) Escalated() bool {
	return d.Decision != OutcomeAccepted
}

// ExtractedRow is one product row recovered from a price list
type ExtractedRow struct {
	Line     int     `json:"line"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Unit     string  `json:"unit,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
}

// Extraction is a set of rows together with its completeness report
type Extraction struct {
	Source string           `json:"source"` // "rule" or "ai"
	Rows   []ExtractedRow   `json:"rows"`
	Report ExtractionReport `json:"report"`
}
