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

type RequestItemInput struct {
	ProductID  string                  `json:"product_id" binding:"required,uuid"`
	Selections model.VariantSelections `json:"selections"`
	Quantity   int                     `json:"quantity" binding:"required,gt=0"`
	UnitPrice  string                  `json:"unit_price" binding:"required"`
}

type CreateRequestRequest struct {
	StoreID       string             `json:"store_id" binding:"required,uuid"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	Currency      string             `json:"currency"`
	Items         []RequestItemInput `json:"items" binding:"required,min=1,dive"`
}

// --- Interface ---

// RequestService is the sales-order collaborator store: the ledger reads
// request status and totals from it and rewrites item lists through the
// linkage flow. Creation decrements stock like an ordinary sale.
type RequestService interface {
	Create(ctx context.Context, req CreateRequestRequest) (*model.Request, error)
	Get(ctx context.Context, id, storeID string) (*model.Request, error)
	List(ctx context.Context, storeID string, page, limit int) ([]model.Request, int64, error)
}

type requestService struct {
	requestRepo  repository.RequestRepository
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	txManager    repository.TransactionManager
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	txManager repository.TransactionManager,
) RequestService {
	return &requestService{
		requestRepo:  requestRepo,
		productRepo:  productRepo,
		movementRepo: movementRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *requestService) Create(ctx context.Context, req CreateRequestRequest) (*model.Request, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	items := make([]model.RequestItem, 0, len(req.Items))
	total := decimal.Zero
	for _, input := range req.Items {
		productID, parseErr := uuid.Parse(input.ProductID)
		if parseErr != nil {
			return nil, apperr.ErrNotFound
		}
		unitPrice, parseErr := decimal.NewFromString(input.UnitPrice)
		if parseErr != nil || unitPrice.IsNegative() {
			return nil, apperr.ErrInvalidAmount
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))
		items = append(items, model.RequestItem{
			ProductID:  productID,
			VariantKey: input.Selections.Key(),
			Selections: input.Selections,
			Quantity:   input.Quantity,
			UnitPrice:  unitPrice,
			LineTotal:  lineTotal,
		})
		total = total.Add(lineTotal)
	}

	request := model.Request{
		StoreID:       storeID,
		Status:        model.RequestStatusPending,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Total:         total,
		Currency:      currency,
		Items:         items,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, numErr := s.requestRepo.NextNumber(txCtx, storeID)
		if numErr != nil {
			return fmt.Errorf("failed to assign request number: %w", numErr)
		}
		request.RequestNumber = number

		if createErr := s.requestRepo.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create request: %w", createErr)
		}

		// A sale consumes stock up front; an edit through the ledger
		// later reconciles it.
		for _, item := range request.Items {
			variant, findErr := s.productRepo.FindVariantForUpdate(txCtx, storeID, item.ProductID, item.VariantKey)
			if findErr != nil {
				return notFoundOr(findErr)
			}
			newStock := variant.Stock - item.Quantity
			if newStock < 0 {
				return apperr.ErrInsufficientStock
			}
			if stockErr := s.productRepo.UpdateVariantStock(txCtx, variant.ID, newStock); stockErr != nil {
				return fmt.Errorf("failed to update stock: %w", stockErr)
			}
			movement := model.StockMovement{
				ProductID:    item.ProductID,
				VariantKey:   item.VariantKey,
				RequestID:    &request.ID,
				MovementType: model.MovementTypeOut,
				Quantity:     item.Quantity,
				StockAfter:   newStock,
				Reason:       model.MovementReasonSale,
			}
			if moveErr := s.movementRepo.Create(txCtx, &movement); moveErr != nil {
				return fmt.Errorf("failed to record stock movement: %w", moveErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &request, nil
}

func (s *requestService) Get(ctx context.Context, id, storeID string) (*model.Request, error) {
	requestID, store, err := parseScope(id, storeID)
	if err != nil {
		return nil, err
	}

	request, err := s.requestRepo.FindByIDWithItems(ctx, requestID, store)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return request, nil
}

func (s *requestService) List(ctx context.Context, storeID string, page, limit int) ([]model.Request, int64, error) {
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
	return s.requestRepo.List(ctx, store, page, limit)
}
