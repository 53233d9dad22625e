package portfolio

import (
	"fmt"
	"strings"

	"cryptotracker/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LatestPriceSource provides the freshest price per symbol
type LatestPriceSource interface {
	LatestPerSymbol(symbols []string) (map[string]models.PricePoint, error)
}

// Position is one cost-basis entry valued at the latest price
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CostValue    decimal.Decimal `json:"cost_value"`
	MarketValue  decimal.Decimal `json:"market_value"`
	Gain         decimal.Decimal `json:"gain"`
	Priced       bool            `json:"priced"`
}

// Valuation is a user's whole portfolio valued at latest prices
type Valuation struct {
	Positions  []Position      `json:"positions"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	TotalValue decimal.Decimal `json:"total_value"`
	TotalGain  decimal.Decimal `json:"total_gain"`
}

// Service values cost-basis records against the price store
type Service struct {
	db     *gorm.DB
	prices LatestPriceSource
}

// NewService creates a new portfolio valuation service
func NewService(db *gorm.DB, prices LatestPriceSource) *Service {
	return &Service{db: db, prices: prices}
}

// Value computes the valuation of a user's cost-basis positions.
// Positions whose symbol has no stored price yet are included with
// Priced=false and a zero market value.
func (s *Service) Value(userID uint) (*Valuation, error) {
	var entries []models.CostBasis
	if err := s.db.Where("user_id = ?", userID).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load cost basis: %w", err)
	}

	valuation := &Valuation{Positions: []Position{}}
	if len(entries) == 0 {
		return valuation, nil
	}

	symbols := make([]string, 0, len(entries))
	for _, entry := range entries {
		symbols = append(symbols, strings.ToUpper(entry.Symbol))
	}
	latest, err := s.prices.LatestPerSymbol(symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest prices: %w", err)
	}

	for _, entry := range entries {
		symbol := strings.ToUpper(entry.Symbol)
		position := Position{
			Symbol:    symbol,
			Quantity:  entry.Quantity,
			CostPrice: entry.CostPrice,
			CostValue: entry.CostPrice.Mul(entry.Quantity),
		}
		if point, ok := latest[symbol]; ok {
			position.Priced = true
			position.CurrentPrice = decimal.NewFromFloat(point.Price)
			position.MarketValue = position.CurrentPrice.Mul(entry.Quantity)
			position.Gain = position.MarketValue.Sub(position.CostValue)
		}
		valuation.TotalCost = valuation.TotalCost.Add(position.CostValue)
		valuation.TotalValue = valuation.TotalValue.Add(position.MarketValue)
		valuation.Positions = append(valuation.Positions, position)
	}
	valuation.TotalGain = valuation.TotalValue.Sub(valuation.TotalCost)
	return valuation, nil
}
