// internal/services/payment_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
)

// paypalAPI is the slice of the PayPal client the service uses. Tests
// substitute a fake; production wires *paypal.Client.
type paypalAPI interface {
	GetAccessToken(ctx context.Context) (*paypal.TokenResponse, error)
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, paymentSource *paypal.PaymentSource, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, req paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	RefundCapture(ctx context.Context, captureID string, req paypal.RefundCaptureRequest) (*paypal.RefundResponse, error)
	VerifyWebhookSignature(ctx context.Context, httpReq *http.Request, webhookID string) (*paypal.VerifyWebhookResponse, error)
}

type PaymentService struct {
	client   paypalAPI
	orders   *OrderService
	keys     *ActivationService
	cards    *CardService
	notifier Notifier
	catalog  *catalog.Catalog
	config   *config.Config
}

func NewPaymentService(cfg *config.Config, cat *catalog.Catalog, orders *OrderService, keys *ActivationService, cards *CardService, notifier Notifier) (*PaymentService, error) {
	base := paypal.APIBaseSandBox
	if cfg.PayPal.Mode == "live" {
		base = paypal.APIBaseLive
	}

	clientID, secret := cfg.PayPal.ClientID, cfg.PayPal.ClientSecret
	if clientID == "" {
		// The client constructor rejects empty credentials. Placeholders
		// keep development bootable; real calls fail authentication.
		clientID, secret = "sandbox-client-id", "sandbox-client-secret"
	}

	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create PayPal client: %w", err)
	}

	return &PaymentService{
		client:   client,
		orders:   orders,
		keys:     keys,
		cards:    cards,
		notifier: notifier,
		catalog:  cat,
		config:   cfg,
	}, nil
}

// Initialize fetches the first access token so credential problems
// surface at startup instead of on the first checkout.
func (s *PaymentService) Initialize(ctx context.Context) error {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	if _, err := s.client.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with PayPal: %w", err)
	}

	logrus.WithField("mode", s.config.PayPal.Mode).Info("PayPal client initialized")
	return nil
}

// BeginPayment registers a pending order with PayPal and returns the
// approval URL the customer is redirected to. The provider order id is
// stored on our order so the capture callback and webhooks can find it.
func (s *PaymentService) BeginPayment(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.orders.getByID(orderID)
	if err != nil {
		return "", err
	}
	if order.Status != models.OrderStatusPending {
		return "", apperrors.Newf(apperrors.KindInvalidTransition,
			"order is %s, payment can only start on a pending order", order.Status)
	}

	description := order.ProductID
	if product, ok := s.catalog.Get(order.ProductID); ok {
		description = product.Name
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: order.ID.String(),
		CustomID:    order.ID.String(),
		Description: description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: order.Currency,
			Value:    fmt.Sprintf("%.2f", order.Amount),
		},
	}}

	appContext := &paypal.ApplicationContext{
		BrandName:          s.config.Email.FromName,
		ShippingPreference: paypal.ShippingPreferenceNoShipping,
		UserAction:         paypal.UserActionPayNow,
		ReturnURL:          s.config.Frontend.BaseURL + "/payment/return",
		CancelURL:          s.config.Frontend.BaseURL + "/payment/cancel",
	}

	ppOrder, err := s.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appContext)
	if err != nil {
		return "", s.gatewayError("failed to create PayPal order", err)
	}

	err = s.orders.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"provider":          models.PaymentProviderPayPal,
			"provider_order_id": ppOrder.ID,
		}).Error
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to store payment reference", err)
	}

	for _, link := range ppOrder.Links {
		if link.Rel == "approve" {
			logrus.WithFields(logrus.Fields{
				"order_id":          order.ID,
				"provider_order_id": ppOrder.ID,
			}).Info("PayPal order created")
			return link.Href, nil
		}
	}

	return "", apperrors.New(apperrors.KindGateway, "PayPal response missing approval link")
}

// ExecutePayment captures an approved PayPal order and completes ours.
// Safe to call more than once: a repeated call for a captured order
// returns the already-completed order without touching the key, and a
// retry after a transient capture failure re-enters the capture.
func (s *PaymentService) ExecutePayment(ctx context.Context, providerOrderID string) (*models.Order, error) {
	order, err := s.orders.GetByProviderOrderID(providerOrderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		return order, nil

	case models.OrderStatusPending:
		// Claim the order before talking to PayPal. A concurrent duplicate
		// callback fails this edge and gets an InvalidTransition instead of
		// racing the capture.
		if _, err := s.orders.Transition(order.ID, models.OrderStatusProcessing, nil); err != nil {
			if apperrors.Is(err, apperrors.KindInvalidTransition) {
				if fresh, ferr := s.orders.getByID(order.ID); ferr == nil && fresh.Status == models.OrderStatusCompleted {
					return fresh, nil
				}
			}
			return nil, err
		}

	case models.OrderStatusProcessing:
		// An earlier capture attempt ended in a transient failure and left
		// the order mid-flight. Re-enter the capture; PayPal resolves the
		// duplicate if the first attempt actually went through.

	default:
		return nil, apperrors.Newf(apperrors.KindInvalidTransition,
			"order is %s, capture is not possible", order.Status)
	}

	captureCtx, cancel := s.requestContext(ctx)
	defer cancel()

	captureID, err := s.capture(captureCtx, providerOrderID)
	if err != nil {
		if apperrors.IsTransient(err) {
			// The capture may still have succeeded on the provider side.
			// Leave the order in processing so a retry or the capture
			// webhook can finish it.
			logrus.WithFields(logrus.Fields{
				"order_id":          order.ID,
				"provider_order_id": providerOrderID,
			}).WithError(err).Warn("Capture attempt failed, order left in processing")
			return nil, err
		}

		reason := err.Error()
		failed, terr := s.orders.Transition(order.ID, models.OrderStatusFailed, func(tx *gorm.DB, o *models.Order) error {
			o.FailureReason = reason
			return nil
		})
		if terr != nil {
			logrus.WithField("order_id", order.ID).WithError(terr).Error("Failed to mark order failed")
		} else {
			s.notifier.PublishOrderFailed(failed, reason)
		}
		return nil, err
	}

	return s.completeOrder(order.ID, captureID)
}

// capture runs the capture call and resolves the duplicate-capture case:
// PayPal rejects a second capture with ORDER_ALREADY_CAPTURED, and the
// existing capture id is then read back from the order.
func (s *PaymentService) capture(ctx context.Context, providerOrderID string) (string, error) {
	resp, err := s.client.CaptureOrder(ctx, providerOrderID, paypal.CaptureOrderRequest{})
	if err == nil {
		for _, unit := range resp.PurchaseUnits {
			if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
				return unit.Payments.Captures[0].ID, nil
			}
		}
		return "", apperrors.New(apperrors.KindGateway, "capture response missing capture id")
	}

	if !isAlreadyCaptured(err) {
		return "", s.gatewayError("PayPal capture failed", err)
	}

	ppOrder, gerr := s.client.GetOrder(ctx, providerOrderID)
	if gerr != nil {
		return "", s.gatewayError("failed to read captured order", gerr)
	}
	for _, unit := range ppOrder.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			return unit.Payments.Captures[0].ID, nil
		}
	}
	return "", apperrors.New(apperrors.KindGateway, "captured order has no capture record")
}

// completeOrder moves a processing order to completed, records the
// transaction and issues the activation key in the same transaction.
func (s *PaymentService) completeOrder(orderID uuid.UUID, captureID string) (*models.Order, error) {
	var key *models.ActivationKey

	completed, err := s.orders.Transition(orderID, models.OrderStatusCompleted, func(tx *gorm.DB, o *models.Order) error {
		o.TransactionID = captureID
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
		"transaction_id": captureID,
	}).Info("Payment completed")

	return completed, nil
}

// RefundPayment refunds the payment behind a completed order, moves the
// order to refunded and revokes its activation key. Card orders are
// routed to the Stripe path; their transaction id is a charge, not a
// PayPal capture.
func (s *PaymentService) RefundPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.getByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.Provider == models.PaymentProviderStripe {
		if s.cards == nil || !s.cards.Enabled() {
			return nil, apperrors.New(apperrors.KindConflict, "card refunds are not available")
		}
		return s.cards.RefundCardPayment(ctx, orderID)
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition,
			"cannot refund an order in status %s", order.Status)
	}
	if order.TransactionID == "" {
		return nil, apperrors.New(apperrors.KindConflict, "order has no capture to refund")
	}

	refundCtx, cancel := s.requestContext(ctx)
	defer cancel()

	refund, err := s.client.RefundCapture(refundCtx, order.TransactionID, paypal.RefundCaptureRequest{})
	if err != nil {
		return nil, s.gatewayError("PayPal refund failed", err)
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
		"refund_id": refund.ID,
	}).Info("Payment refunded")

	return refunded, nil
}

// webhookEvent is the slice of a PayPal webhook payload the service acts on.
type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type captureResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CustomID          string `json:"custom_id"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// ProcessWebhook verifies and applies a PayPal webhook notification.
// Verification comes first: an event with a bad or missing signature is
// rejected before any payload field is even parsed.
func (s *PaymentService) ProcessWebhook(req *http.Request) error {
	if s.config.PayPal.WebhookID == "" {
		return apperrors.New(apperrors.KindSignature, "webhook verification is not configured")
	}

	verifyCtx, cancel := s.requestContext(req.Context())
	defer cancel()

	// VerifyWebhookSignature restores req.Body after reading it.
	verification, err := s.client.VerifyWebhookSignature(verifyCtx, req, s.config.PayPal.WebhookID)
	if err != nil {
		return s.gatewayError("webhook verification request failed", err)
	}
	if verification.VerificationStatus != "SUCCESS" {
		logrus.WithFields(logrus.Fields{
			"verification_status": verification.VerificationStatus,
			"remote_addr":         req.RemoteAddr,
		}).Warn("Rejected PayPal webhook with unverified signature")
		return apperrors.New(apperrors.KindSignature, "webhook signature verification failed")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidation, "failed to read webhook body", err)
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, "malformed webhook payload", err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.EventType,
	}).Info("PayPal webhook received")

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		return s.handleCaptureCompleted(event.Resource)
	case "PAYMENT.CAPTURE.DENIED":
		return s.handleCaptureDenied(event.Resource)
	case "PAYMENT.CAPTURE.REFUNDED":
		return s.handleCaptureRefunded(event.Resource)
	default:
		// Unsubscribed event types are acknowledged and dropped.
		return nil
	}
}

func (s *PaymentService) handleCaptureCompleted(resource json.RawMessage) error {
	order, capture, err := s.orderForCapture(resource)
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusCompleted {
		return nil
	}

	if order.Status == models.OrderStatusPending {
		if _, err := s.orders.Transition(order.ID, models.OrderStatusProcessing, nil); err != nil {
			if !apperrors.Is(err, apperrors.KindInvalidTransition) {
				return err
			}
		}
	}

	_, err = s.completeOrder(order.ID, capture.ID)
	return err
}

func (s *PaymentService) handleCaptureDenied(resource json.RawMessage) error {
	order, _, err := s.orderForCapture(resource)
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusFailed {
		return nil
	}

	if order.Status == models.OrderStatusPending {
		if _, err := s.orders.Transition(order.ID, models.OrderStatusProcessing, nil); err != nil {
			return err
		}
	}

	failed, err := s.orders.Transition(order.ID, models.OrderStatusFailed, func(tx *gorm.DB, o *models.Order) error {
		o.FailureReason = "capture denied by provider"
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.PublishOrderFailed(failed, failed.FailureReason)
	return nil
}

func (s *PaymentService) handleCaptureRefunded(resource json.RawMessage) error {
	order, _, err := s.orderForCapture(resource)
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusRefunded {
		return nil
	}

	refunded, err := s.orders.Transition(order.ID, models.OrderStatusRefunded, func(tx *gorm.DB, o *models.Order) error {
		return s.keys.RevokeTx(tx, o.ID)
	})
	if err != nil {
		return err
	}

	s.notifier.PublishOrderRefunded(refunded)
	return nil
}

// orderForCapture resolves a capture resource back to our order, by the
// custom id we put on the purchase unit first, then by the provider
// order id from the supplementary data.
func (s *PaymentService) orderForCapture(resource json.RawMessage) (*models.Order, *captureResource, error) {
	var capture captureResource
	if err := json.Unmarshal(resource, &capture); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindValidation, "malformed capture resource", err)
	}

	if capture.CustomID != "" {
		if orderID, err := uuid.Parse(capture.CustomID); err == nil {
			if order, err := s.orders.getByID(orderID); err == nil {
				return order, &capture, nil
			}
		}
	}

	if capture.SupplementaryData.RelatedIDs.OrderID != "" {
		order, err := s.orders.GetByProviderOrderID(capture.SupplementaryData.RelatedIDs.OrderID)
		if err != nil {
			return nil, nil, err
		}
		return order, &capture, nil
	}

	return nil, nil, apperrors.New(apperrors.KindNotFound, "capture resource references no known order")
}

func (s *PaymentService) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, time.Duration(s.config.PayPal.RequestTimeout)*time.Second)
}

// gatewayError classifies a PayPal client error. Transport failures and
// 5xx responses are transient; 4xx rejections are not.
func (s *PaymentService) gatewayError(message string, err error) error {
	var ppErr *paypal.ErrorResponse
	if errors.As(err, &ppErr) && ppErr.Response != nil {
		transient := ppErr.Response.StatusCode >= http.StatusInternalServerError ||
			ppErr.Response.StatusCode == http.StatusTooManyRequests
		return apperrors.Gateway(message, transient, err)
	}
	// No HTTP response at all means the request never completed.
	return apperrors.Gateway(message, true, err)
}

func isAlreadyCaptured(err error) bool {
	var ppErr *paypal.ErrorResponse
	if !errors.As(err, &ppErr) {
		return false
	}
	for _, detail := range ppErr.Details {
		if detail.Issue == "ORDER_ALREADY_CAPTURED" {
			return true
		}
	}
	return false
}
