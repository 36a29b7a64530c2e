// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gotchaguardian/payment-server/internal/services"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	cardService    *services.CardService
	orderService   *services.OrderService
}

func NewPaymentHandler(paymentService *services.PaymentService, cardService *services.CardService, orderService *services.OrderService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		cardService:    cardService,
		orderService:   orderService,
	}
}

type BeginPaymentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

type ExecutePaymentRequest struct {
	ProviderOrderID string `json:"provider_order_id" validate:"required"`
}

type ConfirmCardRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// POST /payments/paypal
func (h *PaymentHandler) BeginPayPalPayment(c *gin.Context) {
	var req BeginPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	approvalURL, err := h.paymentService.BeginPayment(c.Request.Context(), orderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"approval_url": approvalURL})
}

// POST /payments/paypal/execute
func (h *PaymentHandler) ExecutePayPalPayment(c *gin.Context) {
	var req ExecutePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	order, err := h.paymentService.ExecutePayment(c.Request.Context(), req.ProviderOrderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /payments/paypal/cancel
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	var req BeginPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	order, err := h.orderService.Cancel(orderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /payments/card
func (h *PaymentHandler) BeginCardPayment(c *gin.Context) {
	var req BeginPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	intent, err := h.cardService.BeginCardPayment(orderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, intent)
}

// POST /payments/card/confirm
func (h *PaymentHandler) ConfirmCardPayment(c *gin.Context) {
	var req ConfirmCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	order, err := h.cardService.ConfirmCardPayment(req.PaymentIntentID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /webhooks/paypal
func (h *PaymentHandler) PayPalWebhook(c *gin.Context) {
	if err := h.paymentService.ProcessWebhook(c.Request); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"received": true})
}
