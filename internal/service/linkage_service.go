package service

import (
	"context"
	"fmt"

	"backoffice/internal/apperr"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	ws "backoffice/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type InitialPaymentInput struct {
	Amount string  `json:"amount" binding:"required"`
	Notes  *string `json:"notes"`
}

type CreateFromRequestRequest struct {
	StoreID        string               `json:"store_id" binding:"required,uuid"`
	RequestID      string               `json:"request_id" binding:"required,uuid"`
	Amount         *string              `json:"amount"` // overrides the request total (discounts, adjustments)
	CustomerName   *string              `json:"customer_name"`
	CustomerPhone  *string              `json:"customer_phone"`
	Description    *string              `json:"description"`
	InitialPayment *InitialPaymentInput `json:"initial_payment"`
}

type ReplaceItemInput struct {
	ProductID  string                  `json:"product_id" binding:"required,uuid"`
	Selections model.VariantSelections `json:"selections"`
	Quantity   int                     `json:"quantity" binding:"required,gt=0"`
	UnitPrice  string                  `json:"unit_price" binding:"required"`
}

type ReplaceItemsRequest struct {
	StoreID string             `json:"store_id" binding:"required,uuid"`
	Items   []ReplaceItemInput `json:"items" binding:"required,dive"`
	Total   string             `json:"total" binding:"required"`
}

type RequestSnapshot struct {
	ID            string              `json:"id"`
	RequestNumber int64               `json:"request_number"`
	Status        string              `json:"status"`
	Total         string              `json:"total"`
	Currency      string              `json:"currency"`
	Items         []model.RequestItem `json:"items"`
}

type ReplaceItemsResponse struct {
	Receivable ReceivableResponse `json:"receivable"`
	Request    RequestSnapshot    `json:"request"`
}

// --- Interface ---

// LinkageService materializes receivables from sales requests and keeps
// the request's item list, the stock counters, and the amount owed
// consistent when "what was actually sold" is corrected.
type LinkageService interface {
	CreateFromRequest(ctx context.Context, actorID string, req CreateFromRequestRequest) (PaymentLedgerResponse, error)
	ReplaceItems(ctx context.Context, actorID, receivableID string, req ReplaceItemsRequest) (ReplaceItemsResponse, error)
}

type linkageService struct {
	receivableRepo repository.ReceivableRepository
	paymentRepo    repository.PaymentRepository
	requestRepo    repository.RequestRepository
	productRepo    repository.ProductRepository
	movementRepo   repository.StockMovementRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	hub            *ws.Hub
}

func NewLinkageService(
	receivableRepo repository.ReceivableRepository,
	paymentRepo repository.PaymentRepository,
	requestRepo repository.RequestRepository,
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) LinkageService {
	return &linkageService{
		receivableRepo: receivableRepo,
		paymentRepo:    paymentRepo,
		requestRepo:    requestRepo,
		productRepo:    productRepo,
		movementRepo:   movementRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		hub:            hub,
	}
}

// --- Implementation ---

func (s *linkageService) CreateFromRequest(ctx context.Context, actorID string, req CreateFromRequestRequest) (PaymentLedgerResponse, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return PaymentLedgerResponse{}, apperr.ErrNotFound
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		return PaymentLedgerResponse{}, apperr.ErrNotFound
	}

	var seedAmount decimal.Decimal
	if req.InitialPayment != nil {
		seedAmount, err = decimal.NewFromString(req.InitialPayment.Amount)
		if err != nil || seedAmount.IsNegative() {
			return PaymentLedgerResponse{}, apperr.ErrInvalidAmount
		}
	}

	actor := parseActor(actorID)
	var receivable model.Receivable
	var totalPaid decimal.Decimal
	var settled bool

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.requestRepo.FindByIDWithItems(txCtx, requestID, storeID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		// Only requests still awaiting fulfillment may become receivables.
		if !model.RequestEligibleForReceivable(request.Status) {
			return apperr.ErrOrderNotEligible
		}

		amount := request.Total
		if req.Amount != nil {
			override, parseErr := decimal.NewFromString(*req.Amount)
			if parseErr != nil || override.IsNegative() {
				return apperr.ErrInvalidAmount
			}
			amount = override
		}

		number, numErr := s.receivableRepo.NextNumber(txCtx, storeID)
		if numErr != nil {
			return fmt.Errorf("failed to assign receivable number: %w", numErr)
		}

		receivable = model.Receivable{
			StoreID:          storeID,
			ReceivableNumber: number,
			CustomerName:     req.CustomerName,
			CustomerPhone:    req.CustomerPhone,
			Description:      req.Description,
			Amount:           amount,
			Currency:         request.Currency,
			Status:           model.ReceivableStatusPending,
			RequestID:        &request.ID,
			CreatedBy:        actor,
		}
		if createErr := s.receivableRepo.Create(txCtx, &receivable); createErr != nil {
			return fmt.Errorf("failed to create receivable: %w", createErr)
		}

		if seedAmount.IsPositive() {
			var applyErr error
			totalPaid, settled, applyErr = applyPaymentLocked(txCtx, s.receivableRepo, s.paymentRepo,
				&receivable, seedAmount, "", notesOf(req.InitialPayment), actor)
			if applyErr != nil {
				return applyErr
			}
		}

		return writePaymentAudit(txCtx, s.auditRepo, model.ActionCreateFromRequest, receivable, actor,
			map[string]string{"request_id": request.ID.String(), "amount": amount.StringFixed(4)})
	})
	if err != nil {
		return PaymentLedgerResponse{}, err
	}

	if settled {
		publishEvent(s.hub, "receivable.settled", map[string]interface{}{
			"receivable_id":     receivable.ID.String(),
			"receivable_number": receivable.ReceivableNumber,
			"store_id":          receivable.StoreID.String(),
		})
	}

	payments, err := s.paymentRepo.ListByReceivable(ctx, receivable.ID)
	if err != nil {
		return PaymentLedgerResponse{}, fmt.Errorf("failed to list payments: %w", err)
	}
	responses := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		responses = append(responses, toPaymentResponse(p))
	}

	return PaymentLedgerResponse{
		Receivable: toReceivableResponse(receivable, totalPaid),
		Payments:   responses,
		TotalPaid:  totalPaid.StringFixed(4),
	}, nil
}

// ReplaceItems rewrites the linked request's item list and reconciles
// stock from the diff: removed units return to stock, added units come
// out of it. Stock deltas, item rows, the request total and the
// receivable amount commit as one transaction, or none of them do.
func (s *linkageService) ReplaceItems(ctx context.Context, actorID, receivableID string, req ReplaceItemsRequest) (ReplaceItemsResponse, error) {
	id, storeID, err := parseScope(receivableID, req.StoreID)
	if err != nil {
		return ReplaceItemsResponse{}, err
	}

	newTotal, err := decimal.NewFromString(req.Total)
	if err != nil || newTotal.IsNegative() {
		return ReplaceItemsResponse{}, apperr.ErrInvalidAmount
	}

	newItems := make([]model.RequestItem, 0, len(req.Items))
	for _, input := range req.Items {
		productID, parseErr := uuid.Parse(input.ProductID)
		if parseErr != nil {
			return ReplaceItemsResponse{}, apperr.ErrNotFound
		}
		unitPrice, parseErr := decimal.NewFromString(input.UnitPrice)
		if parseErr != nil || unitPrice.IsNegative() {
			return ReplaceItemsResponse{}, apperr.ErrInvalidAmount
		}
		newItems = append(newItems, model.RequestItem{
			ProductID:  productID,
			VariantKey: input.Selections.Key(),
			Selections: input.Selections,
			Quantity:   input.Quantity,
			UnitPrice:  unitPrice,
			LineTotal:  unitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
		})
	}

	actor := parseActor(actorID)
	var receivable *model.Receivable
	var request *model.Request
	var applied []model.StockMovement

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		receivable, findErr = s.receivableRepo.FindByIDForUpdate(txCtx, id, storeID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		if !receivable.IsOrderLinked() {
			return apperr.New(apperr.CodeOrderNotEligible, "receivable is not linked to a request")
		}
		if receivable.Status != model.ReceivableStatusPending {
			return apperr.ErrReceivableNotPending
		}

		request, findErr = s.requestRepo.FindByIDForUpdate(txCtx, *receivable.RequestID, storeID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		var stockErr error
		applied, stockErr = s.applyStockDeltas(txCtx, storeID, request.ID, DiffItems(request.Items, newItems))
		if stockErr != nil {
			return stockErr
		}

		if replaceErr := s.requestRepo.ReplaceItems(txCtx, request, newItems, newTotal); replaceErr != nil {
			return fmt.Errorf("failed to replace request items: %w", replaceErr)
		}

		receivable.Amount = newTotal
		receivable.UpdatedBy = actor
		if updateErr := s.receivableRepo.Update(txCtx, receivable); updateErr != nil {
			return fmt.Errorf("failed to update receivable: %w", updateErr)
		}

		return writePaymentAudit(txCtx, s.auditRepo, model.ActionReplaceRequestItems, *receivable, actor,
			map[string]string{"request_id": request.ID.String(), "total": newTotal.StringFixed(4)})
	})
	if err != nil {
		return ReplaceItemsResponse{}, err
	}

	// Broadcast only after the transaction committed.
	for _, movement := range applied {
		publishEvent(s.hub, "stock.adjusted", map[string]interface{}{
			"product_id":  movement.ProductID.String(),
			"variant_key": movement.VariantKey,
			"stock":       movement.StockAfter,
		})
	}

	totalPaid, err := s.paymentRepo.SumByReceivable(ctx, receivable.ID)
	if err != nil {
		return ReplaceItemsResponse{}, fmt.Errorf("failed to sum payments: %w", err)
	}

	return ReplaceItemsResponse{
		Receivable: toReceivableResponse(*receivable, totalPaid),
		Request: RequestSnapshot{
			ID:            request.ID.String(),
			RequestNumber: request.RequestNumber,
			Status:        request.Status,
			Total:         request.Total.StringFixed(4),
			Currency:      request.Currency,
			Items:         request.Items,
		},
	}, nil
}

// applyStockDeltas walks the diff in deterministic order, locking each
// (product, variant) counter before adjusting it. Counters resolve only
// within storeID, so a foreign product ID in the new item list fails as
// not found. A decrement that would go negative aborts the transaction,
// rolling back every prior delta.
func (s *linkageService) applyStockDeltas(txCtx context.Context, storeID, requestID uuid.UUID, deltas []StockDelta) ([]model.StockMovement, error) {
	applied := make([]model.StockMovement, 0, len(deltas))
	for _, delta := range deltas {
		variant, err := s.productRepo.FindVariantForUpdate(txCtx, storeID, delta.Key.ProductID, delta.Key.VariantKey)
		if err != nil {
			return nil, notFoundOr(err)
		}

		newStock := variant.Stock + delta.Change
		if newStock < 0 {
			return nil, apperr.ErrInsufficientStock
		}

		if err := s.productRepo.UpdateVariantStock(txCtx, variant.ID, newStock); err != nil {
			return nil, fmt.Errorf("failed to update stock: %w", err)
		}

		movementType := model.MovementTypeIn
		if delta.Change < 0 {
			movementType = model.MovementTypeOut
		}
		quantity := delta.Change
		if quantity < 0 {
			quantity = -quantity
		}
		movement := model.StockMovement{
			ProductID:    delta.Key.ProductID,
			VariantKey:   delta.Key.VariantKey,
			RequestID:    &requestID,
			MovementType: movementType,
			Quantity:     quantity,
			StockAfter:   newStock,
			Reason:       model.MovementReasonItemEdit,
		}
		if err := s.movementRepo.Create(txCtx, &movement); err != nil {
			return nil, fmt.Errorf("failed to record stock movement: %w", err)
		}
		applied = append(applied, movement)
	}
	return applied, nil
}

func notesOf(payment *InitialPaymentInput) *string {
	if payment == nil {
		return nil
	}
	return payment.Notes
}
