// internal/services/activation_service.go
package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/models"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type ActivationService struct {
	db *gorm.DB
}

func NewActivationService(db *gorm.DB) *ActivationService {
	return &ActivationService{db: db}
}

// IssueTx mints the activation key for an order inside the caller's
// completing transaction. Idempotent: a second call for the same order
// returns the existing key, so duplicate capture callbacks can never
// issue two keys.
func (s *ActivationService) IssueTx(tx *gorm.DB, order *models.Order) (*models.ActivationKey, error) {
	var existing models.ActivationKey
	err := tx.First(&existing, "order_id = ?", order.ID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to check existing key", err)
	}

	keyString, err := s.generateUnique(tx)
	if err != nil {
		return nil, err
	}

	key := &models.ActivationKey{
		Key:       keyString,
		ProductID: order.ProductID,
		OrderID:   order.ID,
	}

	if err := tx.Create(key).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to store activation key", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"product_id": order.ProductID,
	}).Info("Activation key issued")

	return key, nil
}

// GetByOrder returns the key for an order, if one has been issued.
func (s *ActivationService) GetByOrder(orderID uuid.UUID) (*models.ActivationKey, error) {
	var key models.ActivationKey
	if err := s.db.First(&key, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no activation key for order")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load activation key", err)
	}
	return &key, nil
}

// RevokeTx flags the order's key as revoked. Keys are never deleted or
// reused, even after a refund.
func (s *ActivationService) RevokeTx(tx *gorm.DB, orderID uuid.UUID) error {
	now := time.Now()
	result := tx.Model(&models.ActivationKey{}).
		Where("order_id = ? AND revoked = ?", orderID, false).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": now})

	if result.Error != nil {
		return apperrors.Wrap(apperrors.KindInternal, "failed to revoke activation key", result.Error)
	}
	return nil
}

// generateUnique draws keys until one misses the store. Collisions are
// vanishingly unlikely at this entropy; the check is a correctness
// invariant, not an optimization.
func (s *ActivationService) generateUnique(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		keyString, err := utils.GenerateActivationKey()
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindInternal, "failed to generate key", err)
		}

		var count int64
		if err := tx.Model(&models.ActivationKey{}).Where("key = ?", keyString).Count(&count).Error; err != nil {
			return "", apperrors.Wrap(apperrors.KindInternal, "failed to check key uniqueness", err)
		}
		if count == 0 {
			return keyString, nil
		}
	}
	return "", apperrors.New(apperrors.KindInternal, "could not generate unique activation key")
}
