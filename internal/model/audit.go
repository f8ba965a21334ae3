package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateReceivable     = "CREATE_RECEIVABLE"
	ActionCreateFromRequest    = "CREATE_RECEIVABLE_FROM_REQUEST"
	ActionUpdateReceivable     = "UPDATE_RECEIVABLE"
	ActionSetReceivableStatus  = "SET_RECEIVABLE_STATUS"
	ActionReopenReceivable     = "REOPEN_RECEIVABLE"
	ActionApplyPayment         = "APPLY_PAYMENT"
	ActionDeletePayment        = "DELETE_PAYMENT"
	ActionReplaceRequestItems  = "REPLACE_REQUEST_ITEMS"
	ActionBulkSetStatus        = "BULK_SET_RECEIVABLE_STATUS"
)

// AuditLog tracks Who, What, and When for critical ledger changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"store_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for automated mutations
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
