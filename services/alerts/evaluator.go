package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"cryptotracker/models"

	"gorm.io/gorm"
)

// ErrCheckInProgress is returned when an evaluation pass is requested
// while the previous one is still running
var ErrCheckInProgress = errors.New("alert check already in progress")

// EvalResult summarizes one evaluation pass
type EvalResult struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
	Sent      int `json:"sent"`
	Deleted   int `json:"deleted"`
}

// Notifier dispatches a price alert notification. An error return
// means the alert must stay alive for the next pass.
type Notifier interface {
	Send(recipient, symbol string, currentPrice, targetPrice float64) error
}

// LatestPriceSource provides the freshest price per symbol
type LatestPriceSource interface {
	LatestPerSymbol(symbols []string) (map[string]models.PricePoint, error)
}

// Evaluator joins active alerts against latest prices, dispatches
// notifications for triggered ones and deletes an alert only after a
// confirmed successful dispatch.
type Evaluator struct {
	db       *gorm.DB
	prices   LatestPriceSource
	notifier Notifier
	running  atomic.Bool
}

// NewEvaluator creates a new alert evaluator
func NewEvaluator(db *gorm.DB, prices LatestPriceSource, notifier Notifier) *Evaluator {
	return &Evaluator{
		db:       db,
		prices:   prices,
		notifier: notifier,
	}
}

// Run executes one evaluation pass. Runs never overlap; a second call
// while a pass is active returns ErrCheckInProgress.
//
// Per-alert failures (missing price, unreachable user, failed send)
// are logged and skipped, never aborting the pass. Deletions of
// successfully notified alerts are committed together at the end.
func (e *Evaluator) Run(ctx context.Context) (*EvalResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrCheckInProgress
	}
	defer e.running.Store(false)

	result := &EvalResult{}

	var alerts []models.PriceAlert
	if err := e.db.WithContext(ctx).Find(&alerts).Error; err != nil {
		return result, fmt.Errorf("failed to load alerts: %w", err)
	}
	if len(alerts) == 0 {
		return result, nil
	}

	latest, err := e.prices.LatestPerSymbol(distinctSymbols(alerts))
	if err != nil {
		return result, fmt.Errorf("failed to load latest prices: %w", err)
	}

	var deleteIDs []uint
	for _, alert := range alerts {
		result.Checked++

		symbol := strings.ToUpper(alert.Symbol)
		point, ok := latest[symbol]
		if !ok {
			log.Printf("No price found for %s, skipping alert %d", symbol, alert.ID)
			continue
		}

		// Inclusive threshold: reaching the target exactly triggers
		if point.Price < alert.TargetPrice {
			continue
		}
		result.Triggered++

		var user models.User
		if err := e.db.First(&user, alert.UserID).Error; err != nil {
			log.Printf("User %d not found for alert %d, keeping alert: %v", alert.UserID, alert.ID, err)
			continue
		}
		if !user.IsActive {
			// Keep the alert so it can fire once the user is reactivated
			log.Printf("User %d inactive, keeping alert %d", user.ID, alert.ID)
			continue
		}

		if err := e.notifier.Send(user.Email, symbol, point.Price, alert.TargetPrice); err != nil {
			log.Printf("Failed to send alert %d to %s: %v", alert.ID, user.Email, err)
			continue
		}
		result.Sent++
		log.Printf("Alert sent to %s for %s: %.2f >= %.2f", user.Email, symbol, point.Price, alert.TargetPrice)

		// Deletion strictly after a confirmed dispatch
		deleteIDs = append(deleteIDs, alert.ID)
	}

	if len(deleteIDs) > 0 {
		deleted := e.db.Delete(&models.PriceAlert{}, deleteIDs)
		if deleted.Error != nil {
			return result, fmt.Errorf("failed to delete triggered alerts: %w", deleted.Error)
		}
		result.Deleted = int(deleted.RowsAffected)
	}

	log.Printf("Alert check completed: checked=%d triggered=%d sent=%d deleted=%d",
		result.Checked, result.Triggered, result.Sent, result.Deleted)
	return result, nil
}

// distinctSymbols returns the distinct upper-cased symbols across alerts
func distinctSymbols(alerts []models.PriceAlert) []string {
	seen := make(map[string]struct{}, len(alerts))
	var symbols []string
	for _, alert := range alerts {
		symbol := strings.ToUpper(alert.Symbol)
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	return symbols
}
