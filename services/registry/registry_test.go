package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cryptotracker/models"
	"cryptotracker/services/coingecko"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCoinLister struct {
	coins []coingecko.CoinListEntry
	err   error
}

func (f *fakeCoinLister) ListCoins(ctx context.Context) ([]coingecko.CoinListEntry, error) {
	return f.coins, f.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateCoinModels(db))
	return db
}

func seedCoins(t *testing.T, db *gorm.DB, coins ...models.Coin) {
	t.Helper()
	require.NoError(t, db.Create(&coins).Error)
}

func TestResolveSymbols(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db,
		models.Coin{CoinID: "bitcoin", Symbol: "BTC"},
		models.Coin{CoinID: "ethereum", Symbol: "eth"},
	)
	reg := NewRegistry(db, nil)

	symbols, err := reg.ResolveSymbols([]string{"bitcoin", "ethereum", "unknown-coin"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"bitcoin":  "BTC",
		"ethereum": "ETH",
	}, symbols, "symbols come back upper-cased, unknown ids are absent")
}

func TestResolveSymbol(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db, models.Coin{CoinID: "solana", Symbol: "sol"})
	reg := NewRegistry(db, nil)

	symbol, ok := reg.ResolveSymbol("solana")
	require.True(t, ok)
	assert.Equal(t, "SOL", symbol)

	_, ok = reg.ResolveSymbol("nope")
	assert.False(t, ok)
}

func TestAvailableCoinsNoCollision(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db,
		models.Coin{CoinID: "ethereum", Symbol: "ETH"},
		models.Coin{CoinID: "ethereum-classic", Symbol: "ETC"},
	)
	reg := NewRegistry(db, nil)

	coins, err := reg.AvailableCoins()
	require.NoError(t, err)
	require.Len(t, coins, 2)
}

func TestAvailableCoinsPriorityDedup(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db,
		models.Coin{CoinID: "bitcoin-cash", Symbol: "BTC"},
		models.Coin{CoinID: "bitcoin", Symbol: "BTC"},
	)
	reg := NewRegistry(db, nil)

	coins, err := reg.AvailableCoins()
	require.NoError(t, err)
	require.Len(t, coins, 1, "colliding BTC identities collapse to one entry")
	assert.Equal(t, "bitcoin", coins[0].CoinID, "priority table prefers bitcoin for BTC")
	assert.Equal(t, "BTC", coins[0].Symbol)
}

func TestAvailableCoinsCollisionWithoutPriorityKeepsFirst(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db,
		models.Coin{CoinID: "aaa-token", Symbol: "ZZZQ"},
		models.Coin{CoinID: "bbb-token", Symbol: "zzzq"},
	)
	reg := NewRegistry(db, nil)

	coins, err := reg.AvailableCoins()
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "ZZZQ", coins[0].Symbol)
}

func TestAllCanonicalSymbols(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db,
		models.Coin{CoinID: "bitcoin", Symbol: "BTC"},
		models.Coin{CoinID: "bitcoin-cash", Symbol: "BTC"},
		models.Coin{CoinID: "ethereum", Symbol: "ETH"},
	)
	reg := NewRegistry(db, nil)

	symbols, err := reg.AllCanonicalSymbols()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, symbols)
}

func TestSyncReplacesTable(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db, models.Coin{CoinID: "stale-coin", Symbol: "OLD"})

	lister := &fakeCoinLister{coins: []coingecko.CoinListEntry{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum"},
		{ID: "", Symbol: "ghost"},
	}}
	reg := NewRegistry(db, lister)

	require.NoError(t, reg.Sync(context.Background()))

	var coins []models.Coin
	require.NoError(t, db.Order("coin_id ASC").Find(&coins).Error)
	require.Len(t, coins, 2, "stale rows replaced, empty ids dropped")
	assert.Equal(t, "bitcoin", coins[0].CoinID)
	assert.Equal(t, "BTC", coins[0].Symbol, "symbols stored upper-cased")
	assert.Equal(t, "ethereum", coins[1].CoinID)
}

func TestSyncKeepsTableOnUpstreamFailure(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db, models.Coin{CoinID: "bitcoin", Symbol: "BTC"})

	reg := NewRegistry(db, &fakeCoinLister{err: errors.New("upstream down")})
	require.Error(t, reg.Sync(context.Background()))

	var count int64
	db.Model(&models.Coin{}).Count(&count)
	assert.EqualValues(t, 1, count, "existing snapshot survives a failed sync")
}

func TestSyncRejectsEmptyCatalogue(t *testing.T) {
	db := newTestDB(t)
	seedCoins(t, db, models.Coin{CoinID: "bitcoin", Symbol: "BTC"})

	reg := NewRegistry(db, &fakeCoinLister{})
	require.Error(t, reg.Sync(context.Background()))

	var count int64
	db.Model(&models.Coin{}).Count(&count)
	assert.EqualValues(t, 1, count)
}
