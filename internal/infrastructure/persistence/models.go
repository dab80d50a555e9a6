package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the catalog table
type ProductModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	RawName          string    `gorm:"not null"`
	Name             string    `gorm:"not null"`
	StandardizedName string    `gorm:"not null;index"`
	Category         string    `gorm:"index"`
	Unit             string
	StandardizedUnit string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ProductModel) TableName() string { return "products" }

// SupplierModel is a price list sender
type SupplierModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (SupplierModel) TableName() string { return "suppliers" }

// UploadModel records where a batch of prices came from
type UploadModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SupplierID uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName   string
	Source     string // "rule" or "ai"
	CreatedAt  time.Time
}

func (UploadModel) TableName() string { return "uploads" }

// PriceModel is one supplier price over [ValidFrom, ValidTo). ValidTo NULL means active.
type PriceModel struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ProductID  uuid.UUID        `gorm:"type:uuid;not null;index:idx_prices_active,priority:1"`
	SupplierID uuid.UUID        `gorm:"type:uuid;not null;index:idx_prices_active,priority:2"`
	UploadID   *uuid.UUID       `gorm:"type:uuid"`
	Amount     decimal.Decimal  `gorm:"type:decimal(14,2);not null"`
	Quantity   decimal.Decimal  `gorm:"type:decimal(12,3);not null;default:1"`
	Unit       string           `gorm:"size:32"`
	UnitPrice  *decimal.Decimal `gorm:"type:decimal(14,4)"`
	ValidFrom  time.Time        `gorm:"not null"`
	ValidTo    *time.Time       `gorm:"index:idx_prices_active,priority:3"`
	CreatedAt  time.Time

	Supplier SupplierModel `gorm:"foreignKey:SupplierID"`
	Product  ProductModel  `gorm:"foreignKey:ProductID"`
}

func (PriceModel) TableName() string { return "prices" }

// AllModels lists every table for migration
func AllModels() []interface{} {
	return []interface{}{&ProductModel{}, &SupplierModel{}, &UploadModel{}, &PriceModel{}}
}
