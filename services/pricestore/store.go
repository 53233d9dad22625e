package pricestore

import (
	"fmt"
	"strings"
	"time"

	"cryptotracker/models"

	"gorm.io/gorm"
)

// Store is the append-only price time series
type Store struct {
	db *gorm.DB
}

// NewStore creates a new price store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// PriceBucket is one time-bucket average of a symbol's price history
type PriceBucket struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	BucketStart time.Time `json:"timestamp"`
}

// Record inserts all points in one transaction. Either the whole
// cycle's snapshot commits or none of it does.
func (s *Store) Record(points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&points).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record %d price points: %w", len(points), err)
	}
	return nil
}

// LatestPerSymbol returns, for each requested symbol with at least one
// point, the point with the maximum observation timestamp. One
// group-and-max query, never a lookup per symbol. Symbols are matched
// upper-cased; with nil symbols every stored symbol is returned.
func (s *Store) LatestPerSymbol(symbols []string) (map[string]models.PricePoint, error) {
	sub := s.db.Model(&models.PricePoint{}).
		Select("symbol, MAX(observed_at) AS max_observed_at").
		Group("symbol")
	if symbols != nil {
		upper := make([]string, 0, len(symbols))
		for _, symbol := range symbols {
			upper = append(upper, strings.ToUpper(symbol))
		}
		sub = sub.Where("symbol IN ?", upper)
	}

	var points []models.PricePoint
	err := s.db.Model(&models.PricePoint{}).
		Joins("JOIN (?) AS latest ON latest.symbol = price_points.symbol AND latest.max_observed_at = price_points.observed_at", sub).
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}

	latest := make(map[string]models.PricePoint, len(points))
	for _, point := range points {
		symbol := strings.ToUpper(point.Symbol)
		// Timestamp ties are broken by row id
		if existing, ok := latest[symbol]; ok && existing.ID > point.ID {
			continue
		}
		latest[symbol] = point
	}
	return latest, nil
}

// History returns up to limit points for a symbol, newest first
func (s *Store) History(symbol string, limit int) ([]models.PricePoint, error) {
	var points []models.PricePoint
	err := s.db.Where("symbol = ?", strings.ToUpper(symbol)).
		Order("observed_at DESC, id DESC").
		Limit(limit).
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", symbol, err)
	}
	return points, nil
}

// HistoryBucketed returns average prices per hour or day bucket,
// newest bucket first
func (s *Store) HistoryBucketed(symbol, bucket string, limit int) ([]PriceBucket, error) {
	expr, err := s.bucketExpr(bucket)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Price  float64
		Bucket string
	}
	err = s.db.Model(&models.PricePoint{}).
		Select("AVG(price) AS price, "+expr+" AS bucket").
		Where("symbol = ?", strings.ToUpper(symbol)).
		Group("bucket").
		Order("bucket DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s buckets for %s: %w", bucket, symbol, err)
	}

	buckets := make([]PriceBucket, 0, len(rows))
	for _, row := range rows {
		start, err := time.Parse("2006-01-02 15:04:05", row.Bucket)
		if err != nil {
			return nil, fmt.Errorf("unexpected bucket timestamp %q: %w", row.Bucket, err)
		}
		buckets = append(buckets, PriceBucket{
			Symbol:      strings.ToUpper(symbol),
			Price:       row.Price,
			BucketStart: start.UTC(),
		})
	}
	return buckets, nil
}

// bucketExpr builds the truncation expression for the connected
// dialect. Both variants produce "2006-01-02 15:04:05" strings.
func (s *Store) bucketExpr(bucket string) (string, error) {
	postgres := s.db.Dialector.Name() == "postgres"
	switch bucket {
	case "hour":
		if postgres {
			return "to_char(date_trunc('hour', observed_at), 'YYYY-MM-DD HH24:00:00')", nil
		}
		return "strftime('%Y-%m-%d %H:00:00', observed_at)", nil
	case "day":
		if postgres {
			return "to_char(date_trunc('day', observed_at), 'YYYY-MM-DD 00:00:00')", nil
		}
		return "strftime('%Y-%m-%d 00:00:00', observed_at)", nil
	default:
		return "", fmt.Errorf("unsupported bucket %q", bucket)
	}
}

// DeleteOlderThan removes points observed before the cutoff and
// returns how many were deleted. Used by the retention job.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("observed_at < ?", cutoff).Delete(&models.PricePoint{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old price points: %w", result.Error)
	}
	return result.RowsAffected, nil
}
