package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"cryptotracker/config"
	"cryptotracker/services/alerts"
	"cryptotracker/services/fetcher"
	"cryptotracker/services/market"
	"cryptotracker/services/pricestore"
	"cryptotracker/services/registry"

	"github.com/go-co-op/gocron"
)

// Per-job hard deadlines. A stuck upstream call must not wedge a
// scheduler worker forever.
const (
	fetchCycleTimeout = 30 * time.Minute
	alertCheckTimeout = 10 * time.Minute
	syncTimeout       = 10 * time.Minute
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	cfg       *config.Config
	fetcher   *fetcher.Fetcher
	evaluator *alerts.Evaluator
	registry  *registry.Registry
	market    *market.Service
	store     *pricestore.Store
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	cfg *config.Config,
	priceFetcher *fetcher.Fetcher,
	evaluator *alerts.Evaluator,
	coinRegistry *registry.Registry,
	marketService *market.Service,
	store *pricestore.Store,
) *Scheduler {
	return &Scheduler{
		cron:      gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		fetcher:   priceFetcher,
		evaluator: evaluator,
		registry:  coinRegistry,
		market:    marketService,
		store:     store,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Fetch watchlist prices; a successful cycle chains an alert pass
	s.cron.Every(s.cfg.FetchIntervalMinutes).Minutes().SingletonMode().Do(func() {
		s.runFetchCycle()
	})

	// Independent alert timer as a fallback for the chained pass
	s.cron.Every(s.cfg.AlertCheckIntervalMinutes).Minutes().SingletonMode().Do(func() {
		s.runAlertCheck()
	})

	// Refresh the coin registry daily at 02:00
	s.cron.Every(1).Day().At("02:00").SingletonMode().Do(func() {
		s.syncCoinRegistry()
	})

	// Refresh trending and gainers/losers snapshots hourly
	s.cron.Every(1).Hour().SingletonMode().Do(func() {
		s.refreshMarketSnapshots()
	})

	// Cleanup old price points weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").SingletonMode().Do(func() {
		s.cleanupOldPrices()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runFetchCycle runs one fetch cycle and chains an alert pass when the
// cycle persisted a snapshot
func (s *Scheduler) runFetchCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchCycleTimeout)
	defer cancel()

	result, err := s.fetcher.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, fetcher.ErrCycleInProgress) {
			log.Println("Fetch cycle still running, skipping this tick")
			return
		}
		log.Printf("Fetch cycle failed: %v", err)
		return
	}

	if result.Status != fetcher.StatusFailed && result.PointsStored > 0 {
		s.runAlertCheck()
	}
}

// runAlertCheck runs one alert evaluation pass
func (s *Scheduler) runAlertCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), alertCheckTimeout)
	defer cancel()

	if _, err := s.evaluator.Run(ctx); err != nil {
		if errors.Is(err, alerts.ErrCheckInProgress) {
			log.Println("Alert check still running, skipping this tick")
			return
		}
		log.Printf("Alert check failed: %v", err)
	}
}

// syncCoinRegistry refreshes the coin id to symbol mapping
func (s *Scheduler) syncCoinRegistry() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := s.registry.Sync(ctx); err != nil {
		log.Printf("Coin registry sync failed: %v", err)
	}
}

// refreshMarketSnapshots updates the trending and gainers/losers tables
func (s *Scheduler) refreshMarketSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := s.market.RefreshTrending(ctx); err != nil {
		log.Printf("Trending refresh failed: %v", err)
	}
	if err := s.market.RefreshGainersLosers(ctx); err != nil {
		log.Printf("Gainers/losers refresh failed: %v", err)
	}
}

// cleanupOldPrices removes price points past the retention window
func (s *Scheduler) cleanupOldPrices() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.PriceRetentionDays)
	deleted, err := s.store.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("Price cleanup failed: %v", err)
		return
	}
	log.Printf("Price cleanup completed: %d points removed", deleted)
}
