package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// defaultCandidateLimit caps catalog lookups when the filter has no limit
const defaultCandidateLimit = 50

// recordAttempts bounds RecordPrice retries after losing a race on a unique index
const recordAttempts = 3

// Repository is the Postgres catalog and price store
type Repository struct {
	db         *gorm.DB
	normalizer *usecase.NameNormalizer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRepository creates a repository over an open gorm connection
func NewRepository(db *gorm.DB, normalizer *usecase.NameNormalizer, logger zerolog.Logger) *Repository {
	if normalizer == nil {
		normalizer = usecase.DefaultNameNormalizer()
	}
	return &Repository{
		db:         db,
		normalizer: normalizer,
		logger:     logger,
		now:        time.Now,
	}
}

// FindCandidateProducts returns products sharing at least one token with the query
func (r *Repository) FindCandidateProducts(ctx context.Context, filter domain.CandidateFilter) ([]domain.Product, error) {
	tokens := filter.Tokens
	if len(tokens) == 0 {
		tokens = strings.Fields(filter.NormalizedName)
	}
	where, args := candidateCondition(likePatterns(tokens))
	if where == "" {
		return nil, nil
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	q := r.db.WithContext(ctx).Model(&ProductModel{}).Where(where, args...)
	if filter.Category != "" {
		q = q.Where("category = ? OR category = ''", filter.Category)
	}

	var models []ProductModel
	if err := q.Order("standardized_name").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	products := make([]domain.Product, 0, len(models))
	for _, m := range models {
		products = append(products, toDomainProduct(m))
	}
	return products, nil
}

// candidateCondition ORs one ILIKE pair per pattern over both name columns
func candidateCondition(patterns []string) (string, []interface{}) {
	if len(patterns) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(patterns))
	args := make([]interface{}, 0, len(patterns)*2)
	for _, p := range patterns {
		parts = append(parts, "standardized_name ILIKE ? OR name ILIKE ?")
		args = append(args, p, p)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// FindActivePrices returns all open prices of a product with their supplier names
func (r *Repository) FindActivePrices(ctx context.Context, productID string) ([]domain.ActivePrice, error) {
	id, err := parseID("product", productID)
	if err != nil {
		return nil, err
	}

	var models []PriceModel
	err = r.db.WithContext(ctx).
		Preload("Supplier").
		Where("product_id = ? AND valid_to IS NULL", id).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	out := make([]domain.ActivePrice, 0, len(models))
	for _, m := range models {
		out = append(out, toActivePrice(m))
	}
	return out, nil
}

// RecordPrice stores a new supplier price and closes the previous active one
// in the same transaction, keeping at most one active price per product and supplier.
func (r *Repository) RecordPrice(ctx context.Context, input domain.PriceInput) (*domain.Price, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	validFrom := input.ValidFrom
	if validFrom.IsZero() {
		validFrom = r.now()
	}

	var recorded PriceModel
	err := retryOnConflict(recordAttempts, func() error {
		var err error
		recorded, err = r.recordPrice(ctx, input, quantity, validFrom)
		return err
	}, func(attempt int, err error) {
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("concurrent price recording, retrying")
	})
	if err != nil {
		return nil, recordError("record price", err)
	}

	price := toDomainPrice(recorded)
	return &price, nil
}

// recordPrice runs one transaction: lock and close the active price, insert the new one.
// A concurrent first insert for the same pair fails on idx_prices_one_active.
func (r *Repository) recordPrice(ctx context.Context, input domain.PriceInput, quantity float64, validFrom time.Time) (PriceModel, error) {
	var recorded PriceModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productID, err := r.resolveProduct(tx, input)
		if err != nil {
			return err
		}
		supplierID, err := r.resolveSupplier(tx, input)
		if err != nil {
			return err
		}

		var active []PriceModel
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND supplier_id = ? AND valid_to IS NULL", productID, supplierID).
			Find(&active).Error
		if err != nil {
			return err
		}

		if len(active) > 1 {
			r.logger.Warn().
				Err(domain.ErrDataInconsistency).
				Str("product_id", productID.String()).
				Str("supplier_id", supplierID.String()).
				Int("active_prices", len(active)).
				Msg("closing several active prices")
		}

		ids := make([]uuid.UUID, 0, len(active))
		for _, p := range active {
			if validFrom.Before(p.ValidFrom) {
				return fmt.Errorf("%w: price valid from %s is older than the active price (%s)",
					domain.ErrInvalidInput, validFrom.Format(time.RFC3339), p.ValidFrom.Format(time.RFC3339))
			}
			ids = append(ids, p.ID)
		}
		if len(ids) > 0 {
			if err := tx.Model(&PriceModel{}).Where("id IN ?", ids).Update("valid_to", validFrom).Error; err != nil {
				return err
			}
		}

		unitPrice, ok := usecase.UnitPrice(input.Amount, quantity, input.Unit)
		recorded = PriceModel{
			ID:         uuid.New(),
			ProductID:  productID,
			SupplierID: supplierID,
			Amount:     decimal.NewFromFloat(input.Amount),
			Quantity:   decimal.NewFromFloat(quantity),
			Unit:       input.Unit,
			UnitPrice:  decimalPtr(unitPrice, ok),
			ValidFrom:  validFrom,
		}
		if input.UploadID != "" {
			uploadID, err := parseID("upload", input.UploadID)
			if err != nil {
				return err
			}
			recorded.UploadID = &uploadID
		}
		return tx.Omit(clause.Associations).Create(&recorded).Error
	})
	return recorded, err
}

// retryOnConflict reruns fn while it fails with a unique violation, at most attempts times
func retryOnConflict(attempts int, fn func() error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return err
}

// recordError maps write errors to domain errors. A unique violation that
// survived the retries means the invariant could not be kept.
func recordError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s: %v", domain.ErrDataInconsistency, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrPersistenceFailure, op, err)
	}
}

func (r *Repository) resolveProduct(tx *gorm.DB, input domain.PriceInput) (uuid.UUID, error) {
	if input.ProductID != "" {
		id, err := parseID("product", input.ProductID)
		if err != nil {
			return uuid.Nil, err
		}
		var count int64
		if err := tx.Model(&ProductModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return uuid.Nil, err
		}
		if count == 0 {
			return uuid.Nil, fmt.Errorf("%w: product %s does not exist", domain.ErrInvalidInput, id)
		}
		return id, nil
	}

	product, err := r.newProduct(input.ProductName, input.Category, input.Unit)
	if err != nil {
		return uuid.Nil, err
	}

	// Insert unless a product with the same standardized name and unit exists.
	// ON CONFLICT waits for a concurrent insert instead of aborting the transaction.
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "standardized_name"}, {Name: "standardized_unit"}},
		DoNothing: true,
	}).Create(&product)
	if res.Error != nil {
		return uuid.Nil, res.Error
	}
	if res.RowsAffected == 1 {
		return product.ID, nil
	}

	var existing ProductModel
	err = tx.Where("standardized_name = ? AND standardized_unit = ?", product.StandardizedName, product.StandardizedUnit).
		First(&existing).Error
	if err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

// newProduct builds a catalog row; the standardized unit is always derived from the unit
func (r *Repository) newProduct(rawName, category, unit string) (ProductModel, error) {
	name := strings.Join(strings.Fields(rawName), " ")
	if name == "" {
		return ProductModel{}, fmt.Errorf("%w: product id or name is required", domain.ErrInvalidInput)
	}
	return ProductModel{
		ID:               uuid.New(),
		RawName:          rawName,
		Name:             name,
		StandardizedName: r.normalizer.Normalize(name),
		Category:         category,
		Unit:             unit,
		StandardizedUnit: usecase.CanonicalUnit(unit),
	}, nil
}

func (r *Repository) resolveSupplier(tx *gorm.DB, input domain.PriceInput) (uuid.UUID, error) {
	if input.SupplierID != "" {
		return parseID("supplier", input.SupplierID)
	}
	name := strings.TrimSpace(input.SupplierName)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: supplier id or name is required", domain.ErrInvalidInput)
	}

	var supplier SupplierModel
	err := tx.Where("name = ?", name).
		Attrs(SupplierModel{ID: uuid.New()}).
		FirstOrCreate(&supplier).Error
	if err != nil {
		return uuid.Nil, err
	}
	return supplier.ID, nil
}

// UpdateStandardizedName rewrites the matching name of a product. The raw name is kept.
func (r *Repository) UpdateStandardizedName(ctx context.Context, productID, name string) (*domain.Product, error) {
	id, err := parseID("product", productID)
	if err != nil {
		return nil, err
	}
	normalized := r.normalizer.Normalize(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: standardized name is empty", domain.ErrInvalidInput)
	}

	var product ProductModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
			return err
		}
		product.StandardizedName = normalized
		return tx.Model(&product).Update("standardized_name", normalized).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s does not exist", domain.ErrInvalidInput, id)
		}
		return nil, recordError("update standardized name", err)
	}

	p := toDomainProduct(product)
	return &p, nil
}

// RecordUpload registers a price list upload for a supplier, creating the supplier if needed
func (r *Repository) RecordUpload(ctx context.Context, supplierName, fileName, source string) (string, string, error) {
	var upload UploadModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		supplierID, err := r.resolveSupplier(tx, domain.PriceInput{SupplierName: supplierName})
		if err != nil {
			return err
		}
		upload = UploadModel{
			ID:         uuid.New(),
			SupplierID: supplierID,
			FileName:   fileName,
			Source:     source,
		}
		return tx.Create(&upload).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return "", "", err
		}
		return "", "", fmt.Errorf("%w: record upload: %v", domain.ErrPersistenceFailure, err)
	}
	return upload.ID.String(), upload.SupplierID.String(), nil
}
