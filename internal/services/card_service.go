// internal/services/card_service.go
package services

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
)

// stripeAPI covers the Stripe calls the card flow needs, so tests can
// run against a fake instead of the Stripe backend.
type stripeAPI interface {
	NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	NewRefund(params *stripe.RefundParams) (*stripe.Refund, error)
}

type liveStripe struct{}

func (liveStripe) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (liveStripe) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

func (liveStripe) NewRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	return refund.New(params)
}

// CardService runs the direct card-form checkout through Stripe
// PaymentIntents. It drives the same order state machine as the PayPal
// flow, only the provider leg differs.
type CardService struct {
	api      stripeAPI
	orders   *OrderService
	keys     *ActivationService
	notifier Notifier
	config   *config.Config
}

// CardPaymentIntent is returned to the storefront so it can mount the
// card element against the client secret.
type CardPaymentIntent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	PublishableKey  string `json:"publishable_key"`
}

func NewCardService(cfg *config.Config, orders *OrderService, keys *ActivationService, notifier Notifier) *CardService {
	stripe.Key = cfg.Stripe.SecretKey

	return &CardService{
		api:      liveStripe{},
		orders:   orders,
		keys:     keys,
		notifier: notifier,
		config:   cfg,
	}
}

func (s *CardService) Enabled() bool {
	return s.config.Stripe.SecretKey != ""
}

// BeginCardPayment opens a PaymentIntent for a pending order. The intent
// carries our order id in metadata so confirmation can always be traced
// back even if the provider reference is lost.
func (s *CardService) BeginCardPayment(orderID uuid.UUID) (*CardPaymentIntent, error) {
	if !s.Enabled() {
		return nil, apperrors.New(apperrors.KindConflict, "card payments are not enabled")
	}

	order, err := s.orders.getByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition,
			"order is %s, payment can only start on a pending order", order.Status)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents(order.Amount)),
		Currency: stripe.String(order.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID.String())

	intent, err := s.api.NewPaymentIntent(params)
	if err != nil {
		return nil, cardGatewayError("failed to create payment intent", err)
	}

	err = s.orders.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"provider":          models.PaymentProviderStripe,
			"provider_order_id": intent.ID,
		}).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to store payment reference", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":          order.ID,
		"payment_intent_id": intent.ID,
	}).Info("Card payment intent created")

	return &CardPaymentIntent{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PublishableKey:  s.config.Stripe.PublishableKey,
	}, nil
}

// ConfirmCardPayment reads the intent back from Stripe and settles the
// order accordingly. Idempotent for succeeded intents.
func (s *CardService) ConfirmCardPayment(paymentIntentID string) (*models.Order, error) {
	if !s.Enabled() {
		return nil, apperrors.New(apperrors.KindConflict, "card payments are not enabled")
	}

	order, err := s.orders.GetByProviderOrderID(paymentIntentID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusCompleted {
		return order, nil
	}

	intent, err := s.api.GetPaymentIntent(paymentIntentID, nil)
	if err != nil {
		return nil, cardGatewayError("failed to read payment intent", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return s.settleSucceeded(order, intent)

	case stripe.PaymentIntentStatusProcessing:
		if order.Status == models.OrderStatusPending {
			return s.orders.Transition(order.ID, models.OrderStatusProcessing, nil)
		}
		return order, nil

	case stripe.PaymentIntentStatusCanceled:
		return s.settleFailed(order, "payment canceled")

	default:
		// requires_payment_method, requires_action and friends: the
		// customer has not finished paying yet.
		return nil, apperrors.Newf(apperrors.KindConflict,
			"payment is not complete (intent status %s)", intent.Status)
	}
}

func (s *CardService) settleSucceeded(order *models.Order, intent *stripe.PaymentIntent) (*models.Order, error) {
	if order.Status == models.OrderStatusPending {
		if _, err := s.orders.Transition(order.ID, models.OrderStatusProcessing, nil); err != nil {
			if !apperrors.Is(err, apperrors.KindInvalidTransition) {
				return nil, err
			}
			if fresh, ferr := s.orders.getByID(order.ID); ferr == nil && fresh.Status == models.OrderStatusCompleted {
				return fresh, nil
			}
		}
	}

	transactionID := intent.ID
	if intent.LatestCharge != nil {
		transactionID = intent.LatestCharge.ID
	}

	var key *models.ActivationKey
	completed, err := s.orders.Transition(order.ID, models.OrderStatusCompleted, func(tx *gorm.DB, o *models.Order) error {
		o.TransactionID = transactionID
		issued, err := s.keys.IssueTx(tx, o)
		if err != nil {
			return err
		}
		key = issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	completed.ActivationKey = key
	s.notifier.PublishOrderCompleted(completed, key)

	logrus.WithFields(logrus.Fields{
		"order_id":       completed.ID,
		"transaction_id": transactionID,
	}).Info("Card payment completed")

	return completed, nil
}

func (s *CardService) settleFailed(order *models.Order, reason string) (*models.Order, error) {
	if order.Status == models.OrderStatusPending {
		if _, err := s.orders.Transition(order.ID, models.OrderStatusProcessing, nil); err != nil {
			return nil, err
		}
	}

	failed, err := s.orders.Transition(order.ID, models.OrderStatusFailed, func(tx *gorm.DB, o *models.Order) error {
		o.FailureReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.PublishOrderFailed(failed, reason)
	return failed, nil
}

// RefundCardPayment refunds the intent behind a completed card order,
// moves the order to refunded and revokes its activation key.
func (s *CardService) RefundCardPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.getByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.Provider != models.PaymentProviderStripe {
		return nil, apperrors.New(apperrors.KindConflict, "order was not paid by card")
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition,
			"cannot refund an order in status %s", order.Status)
	}
	if order.ProviderOrderID == "" {
		return nil, apperrors.New(apperrors.KindConflict, "order has no payment intent to refund")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(order.ProviderOrderID),
	}
	params.Context = ctx

	res, err := s.api.NewRefund(params)
	if err != nil {
		return nil, cardGatewayError("failed to refund payment intent", err)
	}

	refunded, err := s.orders.Transition(order.ID, models.OrderStatusRefunded, func(tx *gorm.DB, o *models.Order) error {
		return s.keys.RevokeTx(tx, o.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.PublishOrderRefunded(refunded)

	logrus.WithFields(logrus.Fields{
		"order_id":  refunded.ID,
		"refund_id": res.ID,
	}).Info("Card payment refunded")

	return refunded, nil
}

// amountInCents converts a catalog price to Stripe's minor units.
func amountInCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// cardGatewayError classifies a Stripe client error the same way the
// PayPal path does: 5xx and rate limits are transient, card declines and
// other 4xx rejections are not.
func cardGatewayError(message string, err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		transient := stripeErr.HTTPStatusCode >= 500 ||
			stripeErr.HTTPStatusCode == 429
		return apperrors.Gateway(message, transient, err)
	}
	return apperrors.Gateway(message, true, err)
}
