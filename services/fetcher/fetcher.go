package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"cryptotracker/models"

	"gorm.io/gorm"
)

// ErrCycleInProgress is returned when a cycle is requested while the
// previous one is still running
var ErrCycleInProgress = errors.New("fetch cycle already in progress")

// Cycle outcome statuses
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// CycleResult summarizes one fetch-and-persist cycle
type CycleResult struct {
	Status           string    `json:"status"`
	IdentifiersTotal int       `json:"identifiers_total"`
	PricesFetched    int       `json:"prices_fetched"`
	PointsStored     int       `json:"points_stored"`
	StartedAt        time.Time `json:"started_at"`
	Message          string    `json:"message,omitempty"`
}

// PriceSource fetches current prices for a set of coin ids
type PriceSource interface {
	FetchPrices(ctx context.Context, ids []string) (map[string]float64, error)
}

// SymbolResolver maps coin ids to display symbols
type SymbolResolver interface {
	ResolveSymbols(coinIDs []string) (map[string]string, error)
}

// PriceRecorder persists one cycle's snapshot transactionally
type PriceRecorder interface {
	Record(points []models.PricePoint) error
}

// Fetcher runs the periodic fetch-and-persist cycle: distinct
// watchlist coin ids in, one PricePoint per priced symbol out, all
// sharing the cycle's start timestamp.
type Fetcher struct {
	db       *gorm.DB
	source   PriceSource
	registry SymbolResolver
	store    PriceRecorder
	running  atomic.Bool
}

// NewFetcher creates a new fetcher
func NewFetcher(db *gorm.DB, source PriceSource, registry SymbolResolver, store PriceRecorder) *Fetcher {
	return &Fetcher{
		db:       db,
		source:   source,
		registry: registry,
		store:    store,
	}
}

// IsRunning reports whether a cycle is currently executing
func (f *Fetcher) IsRunning() bool {
	return f.running.Load()
}

// RunCycle executes one fetch cycle. A second call while a cycle is
// running returns ErrCycleInProgress instead of overlapping writes.
// Failures never leave a partial snapshot: either the whole cycle's
// points commit or none do, and the next scheduled run retries from
// scratch.
func (f *Fetcher) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !f.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer f.running.Store(false)

	startedAt := time.Now().UTC()
	result := &CycleResult{Status: StatusFailed, StartedAt: startedAt}

	coinIDs, err := f.distinctWatchlistCoinIDs()
	if err != nil {
		result.Message = err.Error()
		return result, err
	}
	result.IdentifiersTotal = len(coinIDs)

	if len(coinIDs) == 0 {
		result.Status = StatusSuccess
		result.Message = "no coins in watchlist"
		log.Println("Fetch cycle: no coins in watchlist, nothing to do")
		return result, nil
	}

	prices, err := f.source.FetchPrices(ctx, coinIDs)
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("fetch cycle aborted: %w", err)
	}
	result.PricesFetched = len(prices)

	symbols, err := f.registry.ResolveSymbols(coinIDs)
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("fetch cycle aborted: %w", err)
	}

	// All points from one cycle share the start timestamp so they
	// compare equal on recency
	points := make([]models.PricePoint, 0, len(prices))
	for _, coinID := range coinIDs {
		price, ok := prices[coinID]
		if !ok {
			continue
		}
		symbol, ok := symbols[coinID]
		if !ok {
			symbol = strings.ToUpper(coinID)
		}
		points = append(points, models.PricePoint{
			Symbol:     symbol,
			Price:      price,
			ObservedAt: startedAt,
		})
	}

	if err := f.store.Record(points); err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("fetch cycle aborted: %w", err)
	}
	result.PointsStored = len(points)

	if len(points) < len(coinIDs) {
		result.Status = StatusPartial
		result.Message = fmt.Sprintf("priced %d of %d coins", len(points), len(coinIDs))
	} else {
		result.Status = StatusSuccess
	}
	log.Printf("Fetch cycle %s: %d/%d coins priced at %s",
		result.Status, result.PointsStored, result.IdentifiersTotal, startedAt.Format(time.RFC3339))
	return result, nil
}

// distinctWatchlistCoinIDs returns the distinct non-empty coin ids
// across all watchlist entries
func (f *Fetcher) distinctWatchlistCoinIDs() ([]string, error) {
	var coinIDs []string
	err := f.db.Model(&models.WatchlistItem{}).
		Where("coin_id IS NOT NULL AND coin_id <> ''").
		Distinct().
		Order("coin_id ASC").
		Pluck("coin_id", &coinIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist coin ids: %w", err)
	}
	return coinIDs, nil
}
