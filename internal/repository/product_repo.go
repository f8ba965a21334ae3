package repository

import (
	"context"
	"strings"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id, storeID uuid.UUID) (*model.Product, error)
	List(ctx context.Context, storeID uuid.UUID, page, limit int, search string) ([]model.Product, int64, error)
	FindVariantForUpdate(ctx context.Context, storeID, productID uuid.UUID, variantKey string) (*model.ProductVariant, error)
	UpdateVariantStock(ctx context.Context, variantID uuid.UUID, stock int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id, storeID uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).
		Preload("Variants").
		Where("id = ? AND store_id = ?", id, storeID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, storeID uuid.UUID, page, limit int, search string) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{}).Where("store_id = ?", storeID)
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", pattern, pattern)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Variants").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// FindVariantForUpdate locks the stock-bearing row of
// (product_id, variant_key). The product must belong to storeID; a
// foreign product ID surfaces as ErrRecordNotFound like any other miss.
func (r *productRepository) FindVariantForUpdate(ctx context.Context, storeID, productID uuid.UUID, variantKey string) (*model.ProductVariant, error) {
	db := GetDB(ctx, r.db)
	var variant model.ProductVariant
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND variant_key = ?", productID, variantKey).
		Where("product_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&model.Product{}).Select("id").Where("store_id = ?", storeID)).
		First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *productRepository) UpdateVariantStock(ctx context.Context, variantID uuid.UUID, stock int) error {
	return GetDB(ctx, r.db).Model(&model.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock", stock).Error
}
