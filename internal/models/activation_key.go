// internal/models/activation_key.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivationKey struct {
	BaseModel
	Key       string     `json:"key" gorm:"size:32;uniqueIndex;not null"`
	ProductID string     `json:"product_id" gorm:"size:64;not null;index"`
	OrderID   uuid.UUID  `json:"order_id" gorm:"type:uuid;uniqueIndex;not null"`
	Revoked   bool       `json:"revoked" gorm:"default:false"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func (k *ActivationKey) BeforeCreate(tx *gorm.DB) error {
	k.assignID()
	return nil
}
