package alerts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cryptotracker/models"
	"cryptotracker/services/pricestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sentMail struct {
	recipient    string
	symbol       string
	currentPrice float64
	targetPrice  float64
}

type fakeNotifier struct {
	sent    []sentMail
	failFor map[string]error // keyed by symbol
}

func (f *fakeNotifier) Send(recipient, symbol string, currentPrice, targetPrice float64) error {
	if err, ok := f.failFor[symbol]; ok {
		return err
	}
	f.sent = append(f.sent, sentMail{recipient, symbol, currentPrice, targetPrice})
	return nil
}

func newTestEvaluator(t *testing.T) (*Evaluator, *gorm.DB, *pricestore.Store, *fakeNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateUserModels(db))
	require.NoError(t, models.MigratePriceModels(db))
	require.NoError(t, models.MigrateAlertModels(db))

	store := pricestore.NewStore(db)
	notifier := &fakeNotifier{}
	return NewEvaluator(db, store, notifier), db, store, notifier
}

func seedUser(t *testing.T, db *gorm.DB, email string, active bool) uint {
	t.Helper()
	user := models.User{Email: email, IsActive: active}
	require.NoError(t, user.SetPassword("secret"))
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func seedPrices(t *testing.T, store *pricestore.Store, observed time.Time, prices map[string]float64) {
	t.Helper()
	points := make([]models.PricePoint, 0, len(prices))
	for symbol, price := range prices {
		points = append(points, models.PricePoint{Symbol: symbol, Price: price, ObservedAt: observed})
	}
	require.NoError(t, store.Record(points))
}

func alertCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.PriceAlert{}).Count(&count).Error)
	return count
}

func TestRunNoAlertsIsNoop(t *testing.T) {
	evaluator, _, _, notifier := newTestEvaluator(t)

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &EvalResult{}, result)
	assert.Empty(t, notifier.sent)
}

func TestRunTriggerBoundaryIsInclusive(t *testing.T) {
	evaluator, db, store, notifier := newTestEvaluator(t)
	userID := seedUser(t, db, "alice@example.com", true)
	require.NoError(t, db.Create(&models.PriceAlert{UserID: userID, Symbol: "BTC", TargetPrice: 100}).Error)

	observed := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	seedPrices(t, store, observed, map[string]float64{"BTC": 99.99})

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Triggered, "price below target must not trigger")
	assert.EqualValues(t, 1, alertCount(t, db))

	// A later point at exactly the target triggers
	seedPrices(t, store, observed.Add(5*time.Minute), map[string]float64{"BTC": 100.00})

	result, err = evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Deleted)
	assert.EqualValues(t, 0, alertCount(t, db))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "alice@example.com", notifier.sent[0].recipient)
	assert.Equal(t, 100.0, notifier.sent[0].currentPrice)
}

func TestRunKeepsAlertWhenSendFails(t *testing.T) {
	evaluator, db, store, notifier := newTestEvaluator(t)
	userID := seedUser(t, db, "bob@example.com", true)
	require.NoError(t, db.Create(&models.PriceAlert{UserID: userID, Symbol: "BTC", TargetPrice: 100}).Error)

	seedPrices(t, store, time.Now().UTC(), map[string]float64{"BTC": 150})
	notifier.failFor = map[string]error{"BTC": errors.New("smtp down")}

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 0, result.Deleted)
	assert.EqualValues(t, 1, alertCount(t, db), "a failed send never deletes the alert")

	// Once the notifier recovers, the surviving alert fires
	notifier.failFor = nil
	result, err = evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.EqualValues(t, 0, alertCount(t, db))
}

func TestRunKeepsAlertForInactiveUser(t *testing.T) {
	evaluator, db, store, notifier := newTestEvaluator(t)
	userID := seedUser(t, db, "carol@example.com", false)
	require.NoError(t, db.Create(&models.PriceAlert{UserID: userID, Symbol: "ETH", TargetPrice: 1000}).Error)

	seedPrices(t, store, time.Now().UTC(), map[string]float64{"ETH": 3000})

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, 0, result.Sent)
	assert.Empty(t, notifier.sent)
	assert.EqualValues(t, 1, alertCount(t, db), "inactive users keep their alerts")
}

func TestRunKeepsAlertForMissingUser(t *testing.T) {
	evaluator, db, store, _ := newTestEvaluator(t)
	require.NoError(t, db.Create(&models.PriceAlert{UserID: 999, Symbol: "ETH", TargetPrice: 1000}).Error)

	seedPrices(t, store, time.Now().UTC(), map[string]float64{"ETH": 3000})

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.EqualValues(t, 1, alertCount(t, db))
}

func TestRunSkipsAlertWithoutPrice(t *testing.T) {
	evaluator, db, _, notifier := newTestEvaluator(t)
	userID := seedUser(t, db, "dave@example.com", true)
	require.NoError(t, db.Create(&models.PriceAlert{UserID: userID, Symbol: "SOL", TargetPrice: 100}).Error)

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 0, result.Triggered)
	assert.Empty(t, notifier.sent)
	assert.EqualValues(t, 1, alertCount(t, db), "no price means no decision, alert survives")
}

func TestRunMixedAlerts(t *testing.T) {
	evaluator, db, store, notifier := newTestEvaluator(t)
	userID := seedUser(t, db, "erin@example.com", true)
	require.NoError(t, db.Create(&[]models.PriceAlert{
		{UserID: userID, Symbol: "btc", TargetPrice: 45000},
		{UserID: userID, Symbol: "ETH", TargetPrice: 4000},
	}).Error)

	observed := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	seedPrices(t, store, observed, map[string]float64{"BTC": 50000, "ETH": 3000})

	result, err := evaluator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Deleted)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "BTC", notifier.sent[0].symbol, "lower-cased alert symbols match upper-cased points")

	var remaining []models.PriceAlert
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "ETH", remaining[0].Symbol, "untriggered alert survives the pass")
}
