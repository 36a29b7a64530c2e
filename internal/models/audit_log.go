// internal/models/audit_log.go
package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog records every mutating API request, keyed to the order it
// touched where one can be extracted from the path.
type AuditLog struct {
	BaseModel
	Action       string     `json:"action" gorm:"size:255;not null"`
	ResourceType string     `json:"resource_type" gorm:"size:64;index"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty" gorm:"type:uuid;index"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"size:512"`
	StatusCode   int        `json:"status_code"`
	RequestData  JSONB      `json:"request_data,omitempty" gorm:"type:jsonb"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	a.assignID()
	return nil
}
