package domain

import "time"

// Product represents a catalog product known from previous price lists
type Product struct {
	ID               string `json:"id"`
	RawName          string `json:"rawName"`          // Name exactly as first extracted, never rewritten
	Name             string `json:"name"`             // Cleaned display name
	StandardizedName string `json:"standardizedName"` // Rule- or AI-normalized name used for matching
	Category         string `json:"category,omitempty"`
	Unit             string `json:"unit"`
	StandardizedUnit string `json:"standardizedUnit"` // Always CanonicalUnit(Unit)
}

// MatchName returns the name the scorer should compare against
func (p Product) MatchName() string {
	if p.StandardizedName != "" {
		return p.StandardizedName
	}
	if p.Name != "" {
		return p.Name
	}
	return p.RawName
}

// Price is one supplier's price for a product over a half-open validity interval.
// ValidTo == nil means the price is active.
type Price struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"productId"`
	SupplierID string     `json:"supplierId"`
	UploadID   string     `json:"uploadId,omitempty"`
	Amount     float64    `json:"amount"`
	Quantity   float64    `json:"quantity"` // Pack size, 1 when unknown
	Unit       string     `json:"unit"`
	UnitPrice  *float64   `json:"unitPrice,omitempty"`
	ValidFrom  time.Time  `json:"validFrom"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IsActive reports whether the price has not been superseded
func (p Price) IsActive() bool {
	return p.ValidTo == nil
}

// ActivePrice is the read model returned by the price store for comparison
type ActivePrice struct {
	SupplierID   string    `json:"supplierId"`
	SupplierName string    `json:"supplierName"`
	Amount       float64   `json:"amount"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	ValidFrom    time.Time `json:"validFrom"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CandidateFilter narrows the catalog lookup before scoring
type CandidateFilter struct {
	NormalizedName string
	Tokens         []string
	Category       string
	Limit          int
}

// PriceInput is a new supplier price to record. When ProductID is empty a
// product is created from ProductName; when SupplierID is empty the supplier
// is looked up or created by SupplierName.
type PriceInput struct {
	ProductID    string    `json:"productId,omitempty"`
	ProductName  string    `json:"productName,omitempty"`
	Category     string    `json:"category,omitempty"`
	SupplierID   string    `json:"supplierId,omitempty"`
	SupplierName string    `json:"supplierName,omitempty"`
	UploadID     string    `json:"uploadId,omitempty"`
	Amount       float64   `json:"amount" binding:"required,gt=0"`
	Quantity     float64   `json:"quantity,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	ValidFrom    time.Time `json:"validFrom,omitempty"`
}
