// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
	"github.com/gotchaguardian/payment-server/internal/services"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type AdminHandler struct {
	config         *config.Config
	orderService   *services.OrderService
	paymentService *services.PaymentService
}

func NewAdminHandler(cfg *config.Config, orderService *services.OrderService, paymentService *services.PaymentService) *AdminHandler {
	return &AdminHandler{
		config:         cfg,
		orderService:   orderService,
		paymentService: paymentService,
	}
}

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if req.Username != h.config.Admin.Username || h.config.Admin.PasswordHash == "" {
		utils.UnauthorizedResponse(c, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.config.Admin.PasswordHash), []byte(req.Password)); err != nil {
		logrus.WithField("username", req.Username).Warn("Admin login rejected")
		utils.UnauthorizedResponse(c, "Invalid credentials")
		return
	}

	token, err := utils.GenerateAdminJWT(req.Username, h.config.Admin.TokenTTL)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"token": token})
}

// adminOrderView shadows the customer email with its masked form; the
// listing never exposes full addresses.
type adminOrderView struct {
	models.Order
	CustomerEmail string `json:"customer_email"`
}

// GET /admin/orders
func (h *AdminHandler) ListOrders(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	orders, total, err := h.orderService.ListOrders(params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	views := make([]adminOrderView, 0, len(orders))
	for i := range orders {
		views = append(views, adminOrderView{
			Order:         orders[i],
			CustomerEmail: orders[i].MaskedEmail(),
		})
	}

	result := utils.CreatePaginationResult(views, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.orderService.Stats()
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// POST /admin/orders/:id/refund
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	order, err := h.paymentService.RefundPayment(c.Request.Context(), orderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /admin/orders/:id/cancel
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
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
