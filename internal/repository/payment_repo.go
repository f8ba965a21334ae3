package repository

import (
	"context"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id, receivableID uuid.UUID) (*model.Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByReceivable(ctx context.Context, receivableID uuid.UUID) ([]model.Payment, error)
	SumByReceivable(ctx context.Context, receivableID uuid.UUID) (decimal.Decimal, error)
	SumByReceivables(ctx context.Context, receivableIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id, receivableID uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).
		Where("id = ? AND receivable_id = ?", id, receivableID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Payment{}).Error
}

func (r *paymentRepository) ListByReceivable(ctx context.Context, receivableID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).
		Where("receivable_id = ?", receivableID).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// SumByReceivable recomputes the paid total from the payment rows. The
// engine calls this inside the same transaction as any payment mutation
// so the total can never drift.
func (r *paymentRepository) SumByReceivable(ctx context.Context, receivableID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("receivable_id = ?", receivableID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumByReceivables batches the paid totals for a page of receivables so
// list rendering avoids one query per row.
func (r *paymentRepository) SumByReceivables(ctx context.Context, receivableIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	totals := make(map[uuid.UUID]decimal.Decimal, len(receivableIDs))
	if len(receivableIDs) == 0 {
		return totals, nil
	}

	var rows []struct {
		ReceivableID uuid.UUID
		Total        decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Payment{}).
		Select("receivable_id, SUM(amount) AS total").
		Where("receivable_id IN ?", receivableIDs).
		Group("receivable_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		totals[row.ReceivableID] = row.Total
	}
	return totals, nil
}
