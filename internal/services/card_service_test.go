// internal/services/card_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
)

type fakeStripe struct {
	intentStatus stripe.PaymentIntentStatus
	createCalls  int
	refundCalls  int
}

func (f *fakeStripe) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.createCalls++
	return &stripe.PaymentIntent{
		ID:           "pi_test_001",
		ClientSecret: "pi_test_001_secret",
		Amount:       *params.Amount,
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func (f *fakeStripe) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{
		ID:           id,
		Status:       f.intentStatus,
		LatestCharge: &stripe.Charge{ID: "ch_test_001"},
	}, nil
}

func (f *fakeStripe) NewRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.refundCalls++
	return &stripe.Refund{ID: "re_test_001", Status: stripe.RefundStatusSucceeded}, nil
}

type CardServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	fake     *fakeStripe
	orders   *OrderService
	keys     *ActivationService
	notifier *recordingNotifier
	cards    *CardService
}

func (suite *CardServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.fake = &fakeStripe{intentStatus: stripe.PaymentIntentStatusSucceeded}
	suite.notifier = &recordingNotifier{}

	cfg := newTestConfig(suite.T())
	cfg.Stripe = config.StripeConfig{SecretKey: "sk_test", PublishableKey: "pk_test"}

	suite.orders = NewOrderService(suite.db, newTestCatalog(suite.T()))
	suite.keys = NewActivationService(suite.db)

	suite.cards = &CardService{
		api:      suite.fake,
		orders:   suite.orders,
		keys:     suite.keys,
		notifier: suite.notifier,
		config:   cfg,
	}
}

func (suite *CardServiceTestSuite) newPendingOrder() *models.Order {
	order, err := suite.orders.CreateOrder("guardian_pro", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)
	return order
}

func (suite *CardServiceTestSuite) TestBeginCardPayment() {
	order := suite.newPendingOrder()

	intent, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)
	suite.Equal("pi_test_001", intent.PaymentIntentID)
	suite.Equal("pi_test_001_secret", intent.ClientSecret)
	suite.Equal("pk_test", intent.PublishableKey)

	stored, err := suite.orders.getByID(order.ID)
	suite.Require().NoError(err)
	suite.Equal(models.PaymentProviderStripe, stored.Provider)
	suite.Equal("pi_test_001", stored.ProviderOrderID)
}

func (suite *CardServiceTestSuite) TestConfirmSucceededIssuesKey() {
	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)

	completed, err := suite.cards.ConfirmCardPayment("pi_test_001")
	suite.Require().NoError(err)
	suite.Equal(models.OrderStatusCompleted, completed.Status)
	suite.Equal("ch_test_001", completed.TransactionID)
	suite.NotNil(completed.ActivationKey)
	suite.Len(suite.notifier.completed, 1)
}

func (suite *CardServiceTestSuite) TestConfirmIsIdempotent() {
	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)

	_, err = suite.cards.ConfirmCardPayment("pi_test_001")
	suite.Require().NoError(err)
	_, err = suite.cards.ConfirmCardPayment("pi_test_001")
	suite.Require().NoError(err)

	var keyCount int64
	suite.Require().NoError(suite.db.Model(&models.ActivationKey{}).
		Where("order_id = ?", order.ID).Count(&keyCount).Error)
	suite.Equal(int64(1), keyCount)
	suite.Len(suite.notifier.completed, 1)
}

func (suite *CardServiceTestSuite) TestConfirmCanceledMarksFailed() {
	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)

	suite.fake.intentStatus = stripe.PaymentIntentStatusCanceled

	failed, err := suite.cards.ConfirmCardPayment("pi_test_001")
	suite.Require().NoError(err)
	suite.Equal(models.OrderStatusFailed, failed.Status)
	suite.Len(suite.notifier.failed, 1)
}

func (suite *CardServiceTestSuite) TestConfirmIncompleteIntentConflicts() {
	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)

	suite.fake.intentStatus = stripe.PaymentIntentStatusRequiresPaymentMethod

	_, err = suite.cards.ConfirmCardPayment("pi_test_001")
	suite.Require().Error(err)
	suite.Equal(apperrors.KindConflict, apperrors.KindOf(err))

	stored, gerr := suite.orders.getByID(order.ID)
	suite.Require().NoError(gerr)
	suite.Equal(models.OrderStatusPending, stored.Status)
}

func (suite *CardServiceTestSuite) TestRefundCardPayment() {
	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)
	_, err = suite.cards.ConfirmCardPayment("pi_test_001")
	suite.Require().NoError(err)

	refunded, err := suite.cards.RefundCardPayment(context.Background(), order.ID)
	suite.Require().NoError(err)
	suite.Equal(models.OrderStatusRefunded, refunded.Status)
	suite.Equal(1, suite.fake.refundCalls)

	key, err := suite.keys.GetByOrder(order.ID)
	suite.Require().NoError(err)
	suite.True(key.Revoked)
	suite.Len(suite.notifier.refunded, 1)
}

func (suite *CardServiceTestSuite) TestRefundCardPaymentRequiresCompleted() {
	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().NoError(err)

	_, err = suite.cards.RefundCardPayment(context.Background(), order.ID)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindInvalidTransition, apperrors.KindOf(err))
	suite.Zero(suite.fake.refundCalls)
}

func (suite *CardServiceTestSuite) TestDisabledWithoutSecretKey() {
	suite.cards.config.Stripe.SecretKey = ""

	order := suite.newPendingOrder()
	_, err := suite.cards.BeginCardPayment(order.ID)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindConflict, apperrors.KindOf(err))
	suite.Zero(suite.fake.createCalls)
}

func TestCardServiceSuite(t *testing.T) {
	suite.Run(t, new(CardServiceTestSuite))
}
