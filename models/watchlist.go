package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WatchlistItem is a coin a user follows. CRUD lives in the external
// API layer; the fetch cycle only reads the distinct set of non-empty
// coin IDs to know what to price.
type WatchlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	CoinID    string    `gorm:"index" json:"coin_id"`
	Symbol    string    `gorm:"index" json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
}

// CostBasis records what a user paid for a position, used by the
// portfolio valuation endpoint
type CostBasis struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index" json:"user_id"`
	Symbol    string          `gorm:"index" json:"symbol"`
	CostPrice decimal.Decimal `gorm:"type:decimal(20,8)" json:"cost_price"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

// MigrateWatchlistModels runs database migrations for watchlist-related models
func MigrateWatchlistModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&WatchlistItem{},
		&CostBasis{},
	)
}
