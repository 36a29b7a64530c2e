// internal/models/order.go
package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Order struct {
	BaseModel
	ProductID       string          `json:"product_id" gorm:"size:64;not null;index"`
	CustomerEmail   string          `json:"customer_email" gorm:"size:255;not null;index"`
	CustomerName    string          `json:"customer_name" gorm:"size:255;not null"`
	CustomerCountry string          `json:"customer_country,omitempty" gorm:"size:2"`
	Amount          float64         `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency        string          `json:"currency" gorm:"size:3;not null"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Provider        PaymentProvider `json:"provider" gorm:"type:varchar(20);default:'paypal'"`
	ProviderOrderID string          `json:"provider_order_id,omitempty" gorm:"size:255;index"`
	TransactionID   string          `json:"transaction_id,omitempty" gorm:"size:255"`
	FailureReason   string          `json:"failure_reason,omitempty" gorm:"type:text"`
	TokensIssued    int             `json:"tokens_issued" gorm:"default:0"`
	DownloadCount   int             `json:"download_count" gorm:"default:0"`
	LastDownloadAt  *time.Time      `json:"last_download_at,omitempty"`

	// Relationships
	ActivationKey *ActivationKey `json:"activation_key,omitempty" gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	o.assignID()
	return nil
}

// MaskedEmail hides the local part of the address for admin listings.
func (o *Order) MaskedEmail() string {
	at := strings.Index(o.CustomerEmail, "@")
	if at < 2 {
		return "***"
	}
	return o.CustomerEmail[:1] + "***" + o.CustomerEmail[at:]
}
