package market

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"cryptotracker/models"
	"cryptotracker/services/coingecko"

	"gorm.io/gorm"
)

const (
	trendingLimit     = 15
	gainersLosersEach = 10
	marketsPageSize   = 250
)

// Source is the slice of the CoinGecko client the snapshots need
type Source interface {
	SearchTrending(ctx context.Context) ([]coingecko.TrendingCoin, error)
	CoinsMarkets(ctx context.Context, perPage, page int) ([]coingecko.MarketCoin, error)
}

// Service maintains the hourly trending and gainers/losers snapshots
// and serves reads from them
type Service struct {
	db     *gorm.DB
	source Source
}

// NewService creates a new market snapshot service
func NewService(db *gorm.DB, source Source) *Service {
	return &Service{db: db, source: source}
}

// RefreshTrending replaces the trending snapshot with the current top
// trending coins
func (s *Service) RefreshTrending(ctx context.Context) error {
	coins, err := s.source.SearchTrending(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch trending coins: %w", err)
	}
	if len(coins) > trendingLimit {
		coins = coins[:trendingLimit]
	}

	now := time.Now().UTC()
	rows := make([]models.TrendingCoin, 0, len(coins))
	for idx, coin := range coins {
		rows = append(rows, models.TrendingCoin{
			CoinID:        coin.ID,
			Name:          coin.Name,
			Symbol:        strings.ToUpper(coin.Symbol),
			MarketCapRank: coin.MarketCapRank,
			Thumb:         coin.Thumb,
			PriceBTC:      coin.PriceBTC,
			Rank:          idx + 1,
			UpdatedAt:     now,
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.TrendingCoin{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace trending snapshot: %w", err)
	}

	log.Printf("Trending snapshot updated: %d coins", len(rows))
	return nil
}

// RefreshGainersLosers replaces the gainers/losers snapshot from the
// top market-cap page. Coins without 24h change data are dropped with
// a warning rather than treated as 0% movers.
func (s *Service) RefreshGainersLosers(ctx context.Context) error {
	coins, err := s.source.CoinsMarkets(ctx, marketsPageSize, 1)
	if err != nil {
		return fmt.Errorf("failed to fetch market data: %w", err)
	}

	withChange := make([]coingecko.MarketCoin, 0, len(coins))
	for _, coin := range coins {
		if coin.PriceChangePercentage24h == nil {
			log.Printf("No 24h change for %s, skipping", coin.ID)
			continue
		}
		withChange = append(withChange, coin)
	}
	if len(withChange) == 0 {
		return fmt.Errorf("no coins with 24h price change data")
	}

	sort.Slice(withChange, func(i, j int) bool {
		return *withChange[i].PriceChangePercentage24h > *withChange[j].PriceChangePercentage24h
	})

	gainers := withChange
	if len(gainers) > gainersLosersEach {
		gainers = gainers[:gainersLosersEach]
	}
	losers := withChange
	if len(losers) > gainersLosersEach {
		losers = losers[len(losers)-gainersLosersEach:]
	}

	now := time.Now().UTC()
	rows := make([]models.TopGainerLoser, 0, len(gainers)+len(losers))
	for _, coin := range gainers {
		rows = append(rows, snapshotRow(coin, true, now))
	}
	for _, coin := range losers {
		rows = append(rows, snapshotRow(coin, false, now))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.TopGainerLoser{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace gainers/losers snapshot: %w", err)
	}

	log.Printf("Gainers/losers snapshot updated: %d gainers, %d losers", len(gainers), len(losers))
	return nil
}

func snapshotRow(coin coingecko.MarketCoin, isGainer bool, now time.Time) models.TopGainerLoser {
	return models.TopGainerLoser{
		CoinID:                   coin.ID,
		Symbol:                   strings.ToUpper(coin.Symbol),
		Name:                     coin.Name,
		Image:                    coin.Image,
		MarketCapRank:            coin.MarketCapRank,
		CurrentPrice:             coin.CurrentPrice,
		PriceChangePercentage24h: *coin.PriceChangePercentage24h,
		IsGainer:                 isGainer,
		UpdatedAt:                now,
	}
}

// Trending returns the current trending snapshot, best rank first
func (s *Service) Trending() ([]models.TrendingCoin, error) {
	var coins []models.TrendingCoin
	err := s.db.Order("rank ASC").Limit(trendingLimit).Find(&coins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load trending coins: %w", err)
	}
	return coins, nil
}

// TopGainers returns the current gainers, biggest 24h change first
func (s *Service) TopGainers() ([]models.TopGainerLoser, error) {
	return s.gainersLosers(true)
}

// TopLosers returns the current losers, biggest 24h drop first
func (s *Service) TopLosers() ([]models.TopGainerLoser, error) {
	return s.gainersLosers(false)
}

func (s *Service) gainersLosers(gainers bool) ([]models.TopGainerLoser, error) {
	order := "price_change_pct_24h DESC"
	if !gainers {
		order = "price_change_pct_24h ASC"
	}
	var coins []models.TopGainerLoser
	err := s.db.Where("is_gainer = ?", gainers).
		Order(order).
		Limit(gainersLosersEach).
		Find(&coins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load gainers/losers: %w", err)
	}
	return coins, nil
}
