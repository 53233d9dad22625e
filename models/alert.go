package models

import (
	"time"

	"gorm.io/gorm"
)

// PriceAlert asks for a one-shot notification once a symbol's latest
// price reaches the target. A user may hold several alerts for the
// same symbol. Triggering is terminal: a successfully notified alert
// is deleted by the evaluator, there is no "keep watching" state.
type PriceAlert struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index" json:"user_id"`
	Symbol      string    `gorm:"index" json:"symbol"`
	TargetPrice float64   `json:"target_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&PriceAlert{})
}
