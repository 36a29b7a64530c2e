// internal/services/download_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/database"
	"github.com/gotchaguardian/payment-server/internal/models"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type DownloadService struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	storage *StorageService
	config  *config.Config
}

func NewDownloadService(db *gorm.DB, cat *catalog.Catalog, storage *StorageService, cfg *config.Config) *DownloadService {
	return &DownloadService{
		db:      db,
		catalog: cat,
		storage: storage,
		config:  cfg,
	}
}

// RequestToken mints a short-lived download token against a completed
// order. Each token spends one unit of the order's download budget at
// mint time; the budget check and spend happen under the order row lock
// so concurrent requests cannot overdraw it.
func (s *DownloadService) RequestToken(orderID uuid.UUID, email string) (*models.DownloadToken, error) {
	var token *models.DownloadToken

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.KindNotFound, "order not found")
			}
			return apperrors.Wrap(apperrors.KindInternal, "failed to lock order", err)
		}

		if order.Status != models.OrderStatusCompleted {
			return apperrors.New(apperrors.KindForbidden, "order is not completed")
		}
		if !strings.EqualFold(order.CustomerEmail, strings.TrimSpace(email)) {
			return apperrors.New(apperrors.KindForbidden, "email does not match order")
		}

		limit := s.downloadLimit(order.ProductID)
		if limit > 0 && order.TokensIssued >= limit {
			return apperrors.Newf(apperrors.KindRateLimited,
				"download limit of %d reached for this order", limit)
		}

		tokenString, err := utils.GenerateDownloadToken()
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to generate token", err)
		}

		token = &models.DownloadToken{
			Token:             tokenString,
			OrderID:           order.ID,
			ExpiresAt:         time.Now().Add(time.Duration(s.config.Download.TokenTTLHours) * time.Hour),
			RemainingAttempts: 1,
		}

		if err := tx.Create(token).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to store token", err)
		}

		order.TokensIssued++
		if err := tx.Save(&order).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to update order", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	logrus.WithField("order_id", orderID).Info("Download token issued")
	return token, nil
}

// RedeemToken exchanges a token for the product file descriptor. The
// attempt decrement and the order download counter update are atomic
// with the validity checks, so a token cannot be redeemed twice even
// under concurrent requests.
func (s *DownloadService) RedeemToken(tokenString string) (*FileDescriptor, error) {
	var productID string

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var token models.DownloadToken
		if err := lockForUpdate(tx).First(&token, "token = ?", tokenString).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.KindNotFound, "unknown download token")
			}
			return apperrors.Wrap(apperrors.KindInternal, "failed to lock token", err)
		}

		if token.Expired(time.Now()) {
			return apperrors.New(apperrors.KindExpired, "download token has expired")
		}
		if token.RemainingAttempts <= 0 {
			return apperrors.New(apperrors.KindExhausted, "download token attempts exhausted")
		}

		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", token.OrderID).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to lock order", err)
		}
		if order.Status != models.OrderStatusCompleted {
			return apperrors.New(apperrors.KindForbidden, "order is not completed")
		}

		token.RemainingAttempts--
		if err := tx.Save(&token).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to update token", err)
		}

		now := time.Now()
		order.DownloadCount++
		order.LastDownloadAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to update order", err)
		}

		productID = order.ProductID
		return nil
	})

	if err != nil {
		return nil, err
	}

	product, ok := s.catalog.Get(productID)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInternal, "product %q missing from catalog", productID)
	}

	descriptor, err := s.storage.ResolveDownload(product)
	if err != nil {
		return nil, err
	}

	logrus.WithField("product_id", productID).Info("Download token redeemed")
	return descriptor, nil
}

// downloadLimit falls back to the configured default when the catalog
// entry does not set one. A non-positive catalog limit means unlimited.
func (s *DownloadService) downloadLimit(productID string) int {
	product, ok := s.catalog.Get(productID)
	if !ok {
		return s.config.Download.MaxAttempts
	}
	return product.DownloadLimit
}
