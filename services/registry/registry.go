package registry

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cryptotracker/models"
	"cryptotracker/services/coingecko"

	"gorm.io/gorm"
)

// symbolPriority names the canonical coin id for tickers that several
// CoinGecko ids abbreviate to. Without an entry here, a collision is
// resolved by whichever identity the registry enumerates first, which
// is not deterministic.
var symbolPriority = map[string]string{
	"BTC":    "bitcoin",
	"ETH":    "ethereum",
	"USDT":   "tether",
	"BNB":    "binancecoin",
	"XRP":    "ripple",
	"SOL":    "solana",
	"USDC":   "usd-coin",
	"ADA":    "cardano",
	"DOGE":   "dogecoin",
	"TRX":    "tron",
	"LINK":   "chainlink",
	"XLM":    "stellar",
	"BCH":    "bitcoin-cash",
	"AVAX":   "avalanche-2",
	"LTC":    "litecoin",
	"DOT":    "polkadot",
	"UNI":    "uniswap",
	"NEAR":   "near",
	"ETC":    "ethereum-classic",
	"XMR":    "monero",
	"RENDER": "render-token",
	"ONDO":   "ondo-finance",
	"APT":    "aptos",
	"OP":     "optimism",
	"INJ":    "injective-protocol",
	"STX":    "stacks",
}

// CoinLister is the slice of the CoinGecko client Sync needs
type CoinLister interface {
	ListCoins(ctx context.Context) ([]coingecko.CoinListEntry, error)
}

// Registry resolves coin identifiers to display symbols from the
// coins table snapshot. All reads are pure over the snapshot; only
// Sync touches the network.
type Registry struct {
	db    *gorm.DB
	coins CoinLister
}

// NewRegistry creates a new registry backed by the coins table
func NewRegistry(db *gorm.DB, coins CoinLister) *Registry {
	return &Registry{db: db, coins: coins}
}

// ResolveSymbol returns the upper-cased display symbol for a coin id
func (r *Registry) ResolveSymbol(coinID string) (string, bool) {
	var coin models.Coin
	if err := r.db.Where("coin_id = ?", coinID).First(&coin).Error; err != nil {
		return "", false
	}
	return strings.ToUpper(coin.Symbol), true
}

// ResolveSymbols maps each known coin id to its upper-cased display
// symbol in a single query. Unknown ids are absent from the result.
func (r *Registry) ResolveSymbols(coinIDs []string) (map[string]string, error) {
	if len(coinIDs) == 0 {
		return map[string]string{}, nil
	}

	var coins []models.Coin
	if err := r.db.Where("coin_id IN ?", coinIDs).Find(&coins).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve symbols: %w", err)
	}

	symbols := make(map[string]string, len(coins))
	for _, coin := range coins {
		symbols[coin.CoinID] = strings.ToUpper(coin.Symbol)
	}
	return symbols, nil
}

// AvailableCoins lists known identities with symbol collisions
// resolved: identities are grouped by upper-cased symbol, and for each
// colliding group the priority table picks the canonical id when it
// names one that is present
func (r *Registry) AvailableCoins() ([]models.Coin, error) {
	var coins []models.Coin
	if err := r.db.Order("symbol ASC, coin_id ASC").Find(&coins).Error; err != nil {
		return nil, fmt.Errorf("failed to load coins: %w", err)
	}

	grouped := make(map[string][]models.Coin)
	var order []string
	for _, coin := range coins {
		symbol := strings.ToUpper(coin.Symbol)
		if _, seen := grouped[symbol]; !seen {
			order = append(order, symbol)
		}
		grouped[symbol] = append(grouped[symbol], coin)
	}

	deduped := make([]models.Coin, 0, len(order))
	for _, symbol := range order {
		group := grouped[symbol]
		selected := group[0]
		if preferred, ok := symbolPriority[symbol]; ok && len(group) > 1 {
			for _, coin := range group {
				if coin.CoinID == preferred {
					selected = coin
					break
				}
			}
		}
		selected.Symbol = symbol
		deduped = append(deduped, selected)
	}
	return deduped, nil
}

// AllCanonicalSymbols returns the deduplicated set of display symbols
func (r *Registry) AllCanonicalSymbols() ([]string, error) {
	coins, err := r.AvailableCoins()
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(coins))
	for _, coin := range coins {
		symbols = append(symbols, coin.Symbol)
	}
	return symbols, nil
}

// Sync bulk-replaces the coins table from the CoinGecko catalogue.
// The replace runs in one transaction so readers never observe a
// half-populated table.
func (r *Registry) Sync(ctx context.Context) error {
	list, err := r.coins.ListCoins(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch coin list: %w", err)
	}
	if len(list) == 0 {
		return fmt.Errorf("coin list sync returned no coins")
	}

	coins := make([]models.Coin, 0, len(list))
	for _, entry := range list {
		if entry.ID == "" {
			continue
		}
		coins = append(coins, models.Coin{
			CoinID: entry.ID,
			Symbol: strings.ToUpper(entry.Symbol),
		})
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Coin{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(coins, 500).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace coins table: %w", err)
	}

	log.Printf("Coin registry synced: %d coins", len(coins))
	return nil
}
