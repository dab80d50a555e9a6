package persistence

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// zerologWriter adapts zerolog to gorm's logger.Writer
type zerologWriter struct {
	logger zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...interface{}) {
	w.logger.Debug().Msgf(format, args...)
}

// Open connects to Postgres and, when autoMigrate is set, migrates the schema
func Open(dsn string, autoMigrate bool, logger zerolog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger: gormlogger.New(zerologWriter{logger: logger.With().Str("component", "gorm").Logger()}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if !autoMigrate {
		return db, nil
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// uniqueIndexes back the invariants the repository relies on under concurrent writes:
// one active price per product and supplier, one product per standardized name and unit
var uniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prices_one_active ON prices (product_id, supplier_id) WHERE valid_to IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_standardized ON products (standardized_name, standardized_unit)`,
}

// Migrate creates or updates every table and its unique indexes
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, stmt := range uniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
