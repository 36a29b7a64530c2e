// internal/services/helpers_test.go
package services

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.ActivationKey{},
		&models.DownloadToken{},
		&models.AuditLog{},
	))

	return db
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Load("")
	require.NoError(t, err)
	return cat
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"guardian_basic.zip", "guardian_pro.zip", "guardian_enterprise.zip"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("payload"), 0o644))
	}

	return &config.Config{
		Environment: "test",
		PayPal: config.PayPalConfig{
			Mode:           "sandbox",
			WebhookID:      "WH-TEST",
			RequestTimeout: 5,
		},
		Download: config.DownloadConfig{
			MaxAttempts:    5,
			TokenTTLHours:  24,
			LocalDirectory: dir,
		},
		Email: config.EmailConfig{
			FromEmail: "noreply@test.local",
			FromName:  "Test",
		},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"},
	}
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mtx       sync.Mutex
	completed []OrderCompletedEvent
	failed    []OrderFailedEvent
	refunded  []OrderRefundedEvent
}

func (n *recordingNotifier) PublishOrderCompleted(order *models.Order, key *models.ActivationKey) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.completed = append(n.completed, OrderCompletedEvent{Order: *order, Key: *key})
}

func (n *recordingNotifier) PublishOrderFailed(order *models.Order, reason string) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.failed = append(n.failed, OrderFailedEvent{Order: *order, Reason: reason})
}

func (n *recordingNotifier) PublishOrderRefunded(order *models.Order) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.refunded = append(n.refunded, OrderRefundedEvent{Order: *order})
}

// createCompletedOrder walks an order through the full happy path so
// download and refund tests have something to work against.
func createCompletedOrder(t *testing.T, orders *OrderService, keys *ActivationService, productID, email string) *models.Order {
	t.Helper()

	order, err := orders.CreateOrder(productID, &CustomerInfo{
		Email: email,
		Name:  "Test Customer",
	})
	require.NoError(t, err)

	_, err = orders.Transition(order.ID, models.OrderStatusProcessing, nil)
	require.NoError(t, err)

	completed, err := orders.Transition(order.ID, models.OrderStatusCompleted, func(tx *gorm.DB, o *models.Order) error {
		o.TransactionID = "CAP-TEST"
		_, err := keys.IssueTx(tx, o)
		return err
	})
	require.NoError(t, err)

	return completed
}
