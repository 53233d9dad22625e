package models

import (
	"time"

	"gorm.io/gorm"
)

// PricePoint is one observation of a coin's USD price. Rows are
// append-only: a fetch cycle writes one point per symbol, all sharing
// the cycle's start timestamp, and nothing updates them afterwards.
type PricePoint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"index:idx_symbol_observed" json:"symbol"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `gorm:"index:idx_symbol_observed" json:"observed_at"`
}

// MigratePriceModels runs database migrations for price-related models
func MigratePriceModels(db *gorm.DB) error {
	return db.AutoMigrate(&PricePoint{})
}
