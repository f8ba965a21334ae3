package repository

import (
	"context"
	"strings"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceivableListFilter narrows List queries. Zero values mean "no filter".
type ReceivableListFilter struct {
	Status   model.ReceivableStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string // matches customer name, phone, or receivable number
	Page     int
	Limit    int
}

type ReceivableRepository interface {
	Create(ctx context.Context, receivable *model.Receivable) error
	NextNumber(ctx context.Context, storeID uuid.UUID) (int64, error)
	FindByID(ctx context.Context, id, storeID uuid.UUID) (*model.Receivable, error)
	FindByIDForUpdate(ctx context.Context, id, storeID uuid.UUID) (*model.Receivable, error)
	Update(ctx context.Context, receivable *model.Receivable) error
	List(ctx context.Context, storeID uuid.UUID, filter ReceivableListFilter) ([]model.Receivable, int64, []model.CurrencyTotal, error)
	PendingTotalsByCurrency(ctx context.Context, storeID uuid.UUID) ([]model.CurrencyTotal, error)
}

type receivableRepository struct {
	db *gorm.DB
}

func NewReceivableRepository(db *gorm.DB) ReceivableRepository {
	return &receivableRepository{db: db}
}

func (r *receivableRepository) Create(ctx context.Context, receivable *model.Receivable) error {
	return GetDB(ctx, r.db).Create(receivable).Error
}

// NextNumber returns the next human-facing receivable number for the
// store. Must run inside the creation transaction; the composite unique
// index on (store_id, receivable_number) catches concurrent races.
func (r *receivableRepository) NextNumber(ctx context.Context, storeID uuid.UUID) (int64, error) {
	var next int64
	err := GetDB(ctx, r.db).Model(&model.Receivable{}).
		Where("store_id = ?", storeID).
		Select("COALESCE(MAX(receivable_number), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *receivableRepository) FindByID(ctx context.Context, id, storeID uuid.UUID) (*model.Receivable, error) {
	var receivable model.Receivable
	if err := GetDB(ctx, r.db).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&receivable).Error; err != nil {
		return nil, err
	}
	return &receivable, nil
}

func (r *receivableRepository) FindByIDForUpdate(ctx context.Context, id, storeID uuid.UUID) (*model.Receivable, error) {
	var receivable model.Receivable
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&receivable).Error; err != nil {
		return nil, err
	}
	return &receivable, nil
}

func (r *receivableRepository) Update(ctx context.Context, receivable *model.Receivable) error {
	return GetDB(ctx, r.db).Omit("Payments").Save(receivable).Error
}

func (r *receivableRepository) List(ctx context.Context, storeID uuid.UUID, filter ReceivableListFilter) ([]model.Receivable, int64, []model.CurrencyTotal, error) {
	var receivables []model.Receivable
	var total int64

	base := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.Receivable{}).Where("store_id = ?", storeID)
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.DateFrom != nil {
			query = query.Where("created_at >= ?", *filter.DateFrom)
		}
		if filter.DateTo != nil {
			query = query.Where("created_at <= ?", *filter.DateTo)
		}
		if filter.Search != "" {
			// LOWER + LIKE instead of ILIKE so the predicate behaves the
			// same on postgres and sqlite.
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			query = query.Where(
				"LOWER(customer_name) LIKE ? OR LOWER(customer_phone) LIKE ? OR CAST(receivable_number AS TEXT) LIKE ?",
				pattern, pattern, "%"+filter.Search+"%",
			)
		}
		return query
	}

	if err := base().Count(&total).Error; err != nil {
		return nil, 0, nil, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := base().
		Order("receivable_number DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&receivables).Error; err != nil {
		return nil, 0, nil, err
	}

	// Amount of the filtered set grouped by currency (not the pending remainder).
	var totals []model.CurrencyTotal
	if err := base().
		Select("currency, SUM(amount) AS total").
		Group("currency").
		Scan(&totals).Error; err != nil {
		return nil, 0, nil, err
	}

	return receivables, total, totals, nil
}

// PendingTotalsByCurrency sums the unpaid remainder of every PENDING
// receivable of the store, grouped by currency. Paid totals are derived
// from the payment rows at query time.
func (r *receivableRepository) PendingTotalsByCurrency(ctx context.Context, storeID uuid.UUID) ([]model.CurrencyTotal, error) {
	var totals []model.CurrencyTotal
	err := GetDB(ctx, r.db).Table("receivables AS r").
		Select(`r.currency AS currency,
			SUM(CASE WHEN r.amount > COALESCE(p.total_paid, 0)
				THEN r.amount - COALESCE(p.total_paid, 0)
				ELSE 0 END) AS total`).
		Joins(`LEFT JOIN (
			SELECT receivable_id, SUM(amount) AS total_paid
			FROM payments GROUP BY receivable_id
		) p ON p.receivable_id = r.id`).
		Where("r.store_id = ? AND r.status = ?", storeID, model.ReceivableStatusPending).
		Group("r.currency").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}
