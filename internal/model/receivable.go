package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceivableStatus is the closed status set of a receivable. Transitions
// go through the service layer only; callers never flip the raw string.
type ReceivableStatus string

const (
	ReceivableStatusPending   ReceivableStatus = "PENDING"
	ReceivableStatusPaid      ReceivableStatus = "PAID"
	ReceivableStatusCancelled ReceivableStatus = "CANCELLED"
)

func (s ReceivableStatus) IsValid() bool {
	switch s {
	case ReceivableStatusPending, ReceivableStatusPaid, ReceivableStatusCancelled:
		return true
	}
	return false
}

func (s ReceivableStatus) String() string {
	return string(s)
}

// AcceptsPayments reports whether new payments may be appended.
func (s ReceivableStatus) AcceptsPayments() bool {
	return s == ReceivableStatusPending
}

// CanTransitionTo reports whether a manual transition to target is legal.
// PENDING may move to PAID or CANCELLED; PAID may move back to PENDING
// (reopen); CANCELLED is terminal.
func (s ReceivableStatus) CanTransitionTo(target ReceivableStatus) bool {
	switch s {
	case ReceivableStatusPending:
		return target == ReceivableStatusPaid || target == ReceivableStatusCancelled
	case ReceivableStatusPaid:
		return target == ReceivableStatusPending
	}
	return false
}

// Receivable tracks money a store is owed by a customer. Paid and pending
// totals are derived from the payment rows, never stored.
type Receivable struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID          uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_store_receivable_no,priority:1" json:"store_id"`
	ReceivableNumber int64            `gorm:"not null;uniqueIndex:idx_store_receivable_no,priority:2" json:"receivable_number"`
	CustomerName     *string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone    *string          `gorm:"type:varchar(30)" json:"customer_phone"`
	Description      *string          `gorm:"type:text" json:"description"`
	Amount           decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"amount"`
	Currency         string           `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`
	Status           ReceivableStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	RequestID        *uuid.UUID       `gorm:"type:uuid;index" json:"request_id"` // Set once at creation; non-nil means order-linked
	Payments         []Payment        `gorm:"foreignKey:ReceivableID" json:"payments,omitempty"`
	PaidAt           *time.Time       `json:"paid_at"`
	CreatedBy        *uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	UpdatedBy        *uuid.UUID       `gorm:"type:uuid" json:"updated_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (r *Receivable) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsOrderLinked reports whether the receivable was materialized from a
// sales request. Order-linked receivables have reduced mutability.
func (r *Receivable) IsOrderLinked() bool {
	return r.RequestID != nil
}

// Payment is one partial payment appended to a receivable.
type Payment struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ReceivableID uuid.UUID       `gorm:"type:uuid;not null;index" json:"receivable_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Currency     string          `gorm:"type:varchar(8);not null" json:"currency"`
	Notes        *string         `gorm:"type:text" json:"notes"`
	CreatedBy    *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CurrencyTotal is one row of an amount aggregation grouped by currency.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
}
