// internal/models/download_token.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DownloadToken struct {
	BaseModel
	Token             string    `json:"token" gorm:"size:64;uniqueIndex;not null"`
	OrderID           uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ExpiresAt         time.Time `json:"expires_at" gorm:"not null"`
	RemainingAttempts int       `json:"remaining_attempts" gorm:"default:1"`

	Order Order `json:"-" gorm:"foreignKey:OrderID"`
}

func (t *DownloadToken) BeforeCreate(tx *gorm.DB) error {
	t.assignID()
	return nil
}

func (t *DownloadToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
