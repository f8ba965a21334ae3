package service

import (
	"context"
	"fmt"

	"backoffice/internal/apperr"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type VariantInput struct {
	Selections model.VariantSelections `json:"selections"`
	Stock      int                     `json:"stock" binding:"min=0"`
}

type CreateProductRequest struct {
	StoreID  string         `json:"store_id" binding:"required,uuid"`
	SKU      string         `json:"sku" binding:"required"`
	Name     string         `json:"name" binding:"required"`
	Price    string         `json:"price" binding:"required"`
	Variants []VariantInput `json:"variants"`
}

// --- Interface ---

// CatalogService is the product/stock collaborator store. The ledger
// only touches it through variant stock counters.
type CatalogService interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error)
	GetProduct(ctx context.Context, id, storeID string) (*model.Product, error)
	ListProducts(ctx context.Context, storeID string, page, limit int, search string) ([]model.Product, int64, error)
	StockHistory(ctx context.Context, productID string, limit int) ([]model.StockMovement, error)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	txManager    repository.TransactionManager
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	txManager repository.TransactionManager,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *catalogService) CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return nil, apperr.ErrInvalidAmount
	}

	variants := make([]model.ProductVariant, 0, len(req.Variants))
	for _, input := range req.Variants {
		variants = append(variants, model.ProductVariant{
			VariantKey: input.Selections.Key(),
			Selections: input.Selections,
			Stock:      input.Stock,
		})
	}
	if len(variants) == 0 {
		// Plain products still need one stock-bearing row.
		variants = append(variants, model.ProductVariant{VariantKey: "", Selections: model.VariantSelections{}})
	}

	product := model.Product{
		StoreID:  storeID,
		SKU:      req.SKU,
		Name:     req.Name,
		Price:    price,
		Variants: variants,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.productRepo.Create(txCtx, &product); createErr != nil {
			return fmt.Errorf("failed to create product: %w", createErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id, storeID string) (*model.Product, error) {
	productID, store, err := parseScope(id, storeID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, productID, store)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, storeID string, page, limit int, search string) ([]model.Product, int64, error) {
	store, err := uuid.Parse(storeID)
	if err != nil {
		return nil, 0, apperr.ErrNotFound
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.productRepo.List(ctx, store, page, limit, search)
}

func (s *catalogService) StockHistory(ctx context.Context, productID string, limit int) ([]model.StockMovement, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	if limit <= 0 {
		limit = 50
	}
	return s.movementRepo.ListByProduct(ctx, id, limit)
}
