package models

import (
	"time"

	"gorm.io/gorm"
)

// Coin maps a CoinGecko coin identifier to its display ticker.
// Symbols are stored upper-cased and are NOT unique across identifiers
// ("bitcoin" and "bitcoin-cash" style collisions are resolved by the
// registry's priority table at read time).
type Coin struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	CoinID string `gorm:"uniqueIndex;not null" json:"coin_id"`
	Symbol string `gorm:"index" json:"symbol"`
}

// TrendingCoin is one row of the hourly trending snapshot
type TrendingCoin struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CoinID        string    `gorm:"index" json:"coin_id"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	MarketCapRank int       `json:"market_cap_rank"`
	Thumb         string    `json:"thumb"`
	PriceBTC      float64   `json:"price_btc"`
	Rank          int       `json:"rank"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TopGainerLoser is one row of the hourly gainers/losers snapshot
type TopGainerLoser struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	CoinID                   string    `gorm:"index" json:"coin_id"`
	Symbol                   string    `json:"symbol"`
	Name                     string    `json:"name"`
	Image                    string    `json:"image"`
	MarketCapRank            int       `json:"market_cap_rank"`
	CurrentPrice             float64   `json:"current_price"`
	PriceChangePercentage24h float64   `gorm:"column:price_change_pct_24h" json:"price_change_percentage_24h"`
	IsGainer                 bool      `json:"is_gainer"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// MigrateCoinModels runs database migrations for coin-related models
func MigrateCoinModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Coin{},
		&TrendingCoin{},
		&TopGainerLoser{},
	)
}
