// internal/handlers/contact.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gotchaguardian/payment-server/internal/services"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type ContactHandler struct {
	notifications *services.NotificationService
}

func NewContactHandler(notifications *services.NotificationService) *ContactHandler {
	return &ContactHandler{
		notifications: notifications,
	}
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,min=1,max=5000"`
}

// POST /contact
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.notifications.SendContactEmail(req.Name, req.Email, req.Message); err != nil {
		utils.InternalErrorResponse(c, "Failed to deliver message")
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Message sent"})
}
