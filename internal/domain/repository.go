package domain

import (
	"context"
	"io"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogRepository looks up catalog products that may match a query
type CatalogRepository interface {
	FindCandidateProducts(ctx context.Context, filter CandidateFilter) ([]Product, error)
}

// PriceRepository returns the currently active supplier prices of a product
type PriceRepository interface {
	FindActivePrices(ctx context.Context, productID string) ([]ActivePrice, error)
}

// Standardizer maps a noisy product name to a canonical one using an AI model.
// hint carries the escalation context ("No match found", "Low similarity", ...).
type Standardizer interface {
	Standardize(ctx context.Context, name, unit, hint string) (*StandardizationResult, error)
}

// PriceListParser extracts product rows from an uploaded price list file
type PriceListParser interface {
	Parse(r io.Reader, filename string) (*Extraction, error)
}

// CatalogWriter records uploads and prices and corrects catalog names
type CatalogWriter interface {
	RecordUpload(ctx context.Context, supplierName, fileName, source string) (uploadID, supplierID string, err error)
	RecordPrice(ctx context.Context, input PriceInput) (*Price, error)
	UpdateStandardizedName(ctx context.Context, productID, name string) (*Product, error)
}
