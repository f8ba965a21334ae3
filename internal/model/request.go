package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestStatus enum constants
const (
	RequestStatusPending    = "PENDING"
	RequestStatusProcessing = "PROCESSING"
	RequestStatusCompleted  = "COMPLETED"
	RequestStatusCancelled  = "CANCELLED"
)

// RequestEligibleForReceivable reports whether a sales request in the
// given status may still be turned into a receivable. Completed and
// cancelled requests are not valid linkage targets.
func RequestEligibleForReceivable(status string) bool {
	return status == RequestStatusPending || status == RequestStatusProcessing
}

// VariantSelections maps option name to the chosen value, e.g.
// {"color": "red", "size": "M"}. Stored as JSONB.
type VariantSelections map[string]string

func (v VariantSelections) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	return json.Marshal(v)
}

func (v *VariantSelections) Scan(value interface{}) error {
	if value == nil {
		*v = VariantSelections{}
		return nil
	}
	var bytes []byte
	switch raw := value.(type) {
	case []byte:
		bytes = raw
	case string:
		bytes = []byte(raw)
	default:
		return errors.New("failed to scan VariantSelections: unsupported type")
	}
	if len(bytes) == 0 {
		*v = VariantSelections{}
		return nil
	}
	return json.Unmarshal(bytes, v)
}

// Key returns the canonical form of the selections, used to address the
// stock counter of a specific variant. Empty selections map to "".
func (v VariantSelections) Key() string {
	if len(v) == 0 {
		return ""
	}
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+v[name])
	}
	return strings.Join(parts, "|")
}

// Request is a sales order captured by the storefront. The ledger only
// reads its status and total, and rewrites its item list through the
// order-linkage flow.
type Request struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"store_id"`
	RequestNumber int64           `gorm:"not null" json:"request_number"`
	Status        string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(30)" json:"customer_phone"`
	Total         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
	Currency      string          `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`
	Items         []RequestItem   `gorm:"foreignKey:RequestID" json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (r *Request) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RequestItem is one line of a sales request. VariantKey is the
// canonical form of Selections and is what stock reconciliation keys on.
type RequestItem struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"request_id"`
	ProductID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantKey string            `gorm:"type:varchar(255);not null;default:''" json:"variant_key"`
	Selections VariantSelections `gorm:"type:jsonb" json:"selections"`
	Quantity   int               `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	LineTotal  decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"line_total"`
}

func (i *RequestItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.VariantKey == "" {
		i.VariantKey = i.Selections.Key()
	}
	return nil
}
