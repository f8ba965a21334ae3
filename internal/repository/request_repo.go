package repository

import (
	"context"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository interface {
	Create(ctx context.Context, request *model.Request) error
	NextNumber(ctx context.Context, storeID uuid.UUID) (int64, error)
	FindByIDWithItems(ctx context.Context, id, storeID uuid.UUID) (*model.Request, error)
	FindByIDForUpdate(ctx context.Context, id, storeID uuid.UUID) (*model.Request, error)
	ReplaceItems(ctx context.Context, request *model.Request, items []model.RequestItem, total decimal.Decimal) error
	List(ctx context.Context, storeID uuid.UUID, page, limit int) ([]model.Request, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, request *model.Request) error {
	return GetDB(ctx, r.db).Create(request).Error
}

func (r *requestRepository) NextNumber(ctx context.Context, storeID uuid.UUID) (int64, error) {
	var next int64
	err := GetDB(ctx, r.db).Model(&model.Request{}).
		Where("store_id = ?", storeID).
		Select("COALESCE(MAX(request_number), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *requestRepository) FindByIDWithItems(ctx context.Context, id, storeID uuid.UUID) (*model.Request, error) {
	var request model.Request
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Where("id = ? AND store_id = ?", id, storeID).
		First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id, storeID uuid.UUID) (*model.Request, error) {
	var request model.Request
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&request).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).
		Where("request_id = ?", request.ID).
		Find(&request.Items).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// ReplaceItems overwrites the request's item list and total. Runs inside
// the caller's transaction together with the stock reconciliation.
func (r *requestRepository) ReplaceItems(ctx context.Context, request *model.Request, items []model.RequestItem, total decimal.Decimal) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", request.ID).Delete(&model.RequestItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ID = uuid.Nil
		items[i].RequestID = request.ID
		if err := db.Create(&items[i]).Error; err != nil {
			return err
		}
	}
	request.Items = items
	request.Total = total
	return db.Model(&model.Request{}).
		Where("id = ?", request.ID).
		Update("total", total).Error
}

func (r *requestRepository) List(ctx context.Context, storeID uuid.UUID, page, limit int) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Request{}).Where("store_id = ?", storeID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
