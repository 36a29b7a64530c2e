// internal/handlers/download.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gotchaguardian/payment-server/internal/services"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type DownloadHandler struct {
	downloadService *services.DownloadService
}

func NewDownloadHandler(downloadService *services.DownloadService) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
	}
}

type RequestTokenRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
	Email   string `json:"email" validate:"required,email"`
}

// POST /downloads/token
func (h *DownloadHandler) RequestToken(c *gin.Context) {
	var req RequestTokenRequest
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

	token, err := h.downloadService.RequestToken(orderID, req.Email)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"token":      token.Token,
		"expires_at": token.ExpiresAt,
	})
}

// GET /downloads/:token
//
// A redeemed S3-backed file is a redirect to the presigned URL; a local
// file is streamed as an attachment. Either way the token is spent.
func (h *DownloadHandler) Download(c *gin.Context) {
	descriptor, err := h.downloadService.RedeemToken(c.Param("token"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	if descriptor.URL != "" {
		c.Redirect(http.StatusFound, descriptor.URL)
		return
	}

	c.FileAttachment(descriptor.LocalPath, descriptor.FileName)
}
