package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog item. Stock is not held here: every product owns
// at least one ProductVariant row ("" variant key for plain products)
// and the variant rows carry the counters.
type Product struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"store_id"`
	SKU       string           `gorm:"type:varchar(100);not null;index" json:"sku"`
	Name      string           `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"price"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is the stock-bearing unit, addressed by
// (product_id, variant_key).
type ProductVariant struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  uuid.UUID         `gorm:"type:uuid;not null;index;uniqueIndex:idx_product_variant_key,priority:1" json:"product_id"`
	VariantKey string            `gorm:"type:varchar(255);not null;default:'';uniqueIndex:idx_product_variant_key,priority:2" json:"variant_key"`
	Selections VariantSelections `gorm:"type:jsonb" json:"selections"`
	Stock      int               `gorm:"not null;default:0" json:"stock"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (v *ProductVariant) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.VariantKey == "" {
		v.VariantKey = v.Selections.Key()
	}
	return nil
}

// MovementType enum constants
const (
	MovementTypeIn  = "IN"
	MovementTypeOut = "OUT"
)

// MovementReason enum constants
const (
	MovementReasonSale       = "SALE"
	MovementReasonItemEdit   = "RECEIVABLE_ITEM_EDIT"
	MovementReasonAdjustment = "MANUAL_ADJUSTMENT"
)

// StockMovement records every stock change strictly, with the balance
// after the change, so the counters can always be audited.
type StockMovement struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantKey   string     `gorm:"type:varchar(255);not null;default:''" json:"variant_key"`
	RequestID    *uuid.UUID `gorm:"type:uuid;index" json:"request_id"`
	MovementType string     `gorm:"type:varchar(10);not null" json:"movement_type"` // IN, OUT
	Quantity     int        `gorm:"not null" json:"quantity"`
	StockAfter   int        `gorm:"not null" json:"stock_after"`
	Reason       string     `gorm:"type:varchar(40);not null" json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (m *StockMovement) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
