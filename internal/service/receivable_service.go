package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	ws "backoffice/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateReceivableRequest struct {
	StoreID       string  `json:"store_id" binding:"required,uuid"`
	CustomerName  *string `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone"`
	Description   *string `json:"description"`
	Amount        string  `json:"amount" binding:"required"`
	Currency      string  `json:"currency"`
}

type UpdateReceivableRequest struct {
	StoreID       string  `json:"store_id" binding:"required,uuid"`
	CustomerName  *string `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone"`
	Description   *string `json:"description"`
	Amount        *string `json:"amount"`
	Currency      *string `json:"currency"`
	Status        *string `json:"status" binding:"omitempty,oneof=PAID CANCELLED"`
}

type ListReceivablesFilter struct {
	Status   string // PENDING, PAID, CANCELLED or empty for all
	DateFrom string // RFC3339, inclusive
	DateTo   string // RFC3339, inclusive
	Search   string // customer name, phone, or receivable number
	Page     int
	Limit    int
}

type BulkStatusRequest struct {
	StoreID       string   `json:"store_id" binding:"required,uuid"`
	ReceivableIDs []string `json:"receivable_ids" binding:"required,min=1"`
	Status        string   `json:"status" binding:"required,oneof=PAID CANCELLED"`
}

type BulkStatusResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

type ReceivableResponse struct {
	ID               string  `json:"id"`
	StoreID          string  `json:"store_id"`
	ReceivableNumber int64   `json:"receivable_number"`
	CustomerName     *string `json:"customer_name"`
	CustomerPhone    *string `json:"customer_phone"`
	Description      *string `json:"description"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	RequestID        *string `json:"request_id"`
	TotalPaid        string  `json:"total_paid"`
	Pending          string  `json:"pending"`
	PaidAt           *string `json:"paid_at"`
	CreatedBy        *string `json:"created_by"`
	UpdatedBy        *string `json:"updated_by"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type ReceivableListResult struct {
	Items                 []ReceivableResponse `json:"items"`
	Total                 int64                `json:"total"`
	TotalAmountByCurrency map[string]string    `json:"total_amount_by_currency"`
	Page                  int                  `json:"page"`
	Limit                 int                  `json:"limit"`
}

// ReceivableSummary is the payload handed to the outbound messaging
// component. Formatting and transport are its concern, not ours.
type ReceivableSummary struct {
	ReceivableNumber int64             `json:"receivable_number"`
	CustomerName     *string           `json:"customer_name"`
	CustomerPhone    *string           `json:"customer_phone"`
	Amount           string            `json:"amount"`
	Currency         string            `json:"currency"`
	TotalPaid        string            `json:"total_paid"`
	Pending          string            `json:"pending"`
	Status           string            `json:"status"`
	Payments         []PaymentResponse `json:"payments"`
}

// --- Interface ---

type ReceivableService interface {
	Create(ctx context.Context, actorID string, req CreateReceivableRequest) (ReceivableResponse, error)
	Get(ctx context.Context, id, storeID string) (ReceivableResponse, error)
	List(ctx context.Context, storeID string, filter ListReceivablesFilter) (ReceivableListResult, error)
	Update(ctx context.Context, actorID, id string, req UpdateReceivableRequest) (ReceivableResponse, error)
	SetStatus(ctx context.Context, actorID, id, storeID string, status model.ReceivableStatus) (ReceivableResponse, error)
	BulkSetStatus(ctx context.Context, actorID string, req BulkStatusRequest) (BulkStatusResult, error)
	PendingTotals(ctx context.Context, storeID string) (map[string]string, error)
	Summary(ctx context.Context, id, storeID string) (ReceivableSummary, error)
}

type receivableService struct {
	receivableRepo repository.ReceivableRepository
	paymentRepo    repository.PaymentRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	hub            *ws.Hub
	logger         *zap.Logger
}

func NewReceivableService(
	receivableRepo repository.ReceivableRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) ReceivableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &receivableService{
		receivableRepo: receivableRepo,
		paymentRepo:    paymentRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		hub:            hub,
		logger:         logger,
	}
}

// --- Implementation ---

func (s *receivableService) Create(ctx context.Context, actorID string, req CreateReceivableRequest) (ReceivableResponse, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return ReceivableResponse{}, fmt.Errorf("invalid store_id: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return ReceivableResponse{}, apperr.ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	actor := parseActor(actorID)
	receivable := model.Receivable{
		StoreID:       storeID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Description:   req.Description,
		Amount:        amount,
		Currency:      currency,
		Status:        model.ReceivableStatusPending,
		CreatedBy:     actor,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, numErr := s.receivableRepo.NextNumber(txCtx, storeID)
		if numErr != nil {
			return fmt.Errorf("failed to assign receivable number: %w", numErr)
		}
		receivable.ReceivableNumber = number

		if createErr := s.receivableRepo.Create(txCtx, &receivable); createErr != nil {
			return fmt.Errorf("failed to create receivable: %w", createErr)
		}

		return s.writeAudit(txCtx, storeID, actor, model.ActionCreateReceivable, receivable, req)
	})
	if err != nil {
		return ReceivableResponse{}, err
	}

	return toReceivableResponse(receivable, decimal.Zero), nil
}

func (s *receivableService) Get(ctx context.Context, id, storeID string) (ReceivableResponse, error) {
	receivable, err := s.findScoped(ctx, id, storeID)
	if err != nil {
		return ReceivableResponse{}, err
	}

	totalPaid, err := s.paymentRepo.SumByReceivable(ctx, receivable.ID)
	if err != nil {
		return ReceivableResponse{}, fmt.Errorf("failed to sum payments: %w", err)
	}

	return toReceivableResponse(*receivable, totalPaid), nil
}

func (s *receivableService) List(ctx context.Context, storeID string, filter ListReceivablesFilter) (ReceivableListResult, error) {
	store, err := uuid.Parse(storeID)
	if err != nil {
		return ReceivableListResult{}, apperr.ErrNotFound
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.ReceivableListFilter{
		Status: model.ReceivableStatus(filter.Status),
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.DateFrom != "" {
		from, parseErr := time.Parse(time.RFC3339, filter.DateFrom)
		if parseErr != nil {
			return ReceivableListResult{}, fmt.Errorf("invalid date_from: %w", parseErr)
		}
		repoFilter.DateFrom = &from
	}
	if filter.DateTo != "" {
		to, parseErr := time.Parse(time.RFC3339, filter.DateTo)
		if parseErr != nil {
			return ReceivableListResult{}, fmt.Errorf("invalid date_to: %w", parseErr)
		}
		repoFilter.DateTo = &to
	}

	receivables, total, totals, err := s.receivableRepo.List(ctx, store, repoFilter)
	if err != nil {
		return ReceivableListResult{}, fmt.Errorf("failed to list receivables: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(receivables))
	for _, r := range receivables {
		ids = append(ids, r.ID)
	}
	paidByID, err := s.paymentRepo.SumByReceivables(ctx, ids)
	if err != nil {
		return ReceivableListResult{}, fmt.Errorf("failed to sum payments: %w", err)
	}

	items := make([]ReceivableResponse, 0, len(receivables))
	for _, r := range receivables {
		items = append(items, toReceivableResponse(r, paidByID[r.ID]))
	}

	byCurrency := make(map[string]string, len(totals))
	for _, t := range totals {
		byCurrency[t.Currency] = t.Total.StringFixed(4)
	}

	return ReceivableListResult{
		Items:                 items,
		Total:                 total,
		TotalAmountByCurrency: byCurrency,
		Page:                  filter.Page,
		Limit:                 filter.Limit,
	}, nil
}

func (s *receivableService) Update(ctx context.Context, actorID, id string, req UpdateReceivableRequest) (ReceivableResponse, error) {
	if req.Status != nil {
		return s.SetStatus(ctx, actorID, id, req.StoreID, model.ReceivableStatus(*req.Status))
	}

	receivableID, storeID, err := parseScope(id, req.StoreID)
	if err != nil {
		return ReceivableResponse{}, err
	}

	actor := parseActor(actorID)
	var receivable *model.Receivable
	var totalPaid decimal.Decimal

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		receivable, findErr = s.receivableRepo.FindByIDForUpdate(txCtx, receivableID, storeID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		if receivable.Status != model.ReceivableStatusPending {
			return apperr.ErrReceivableNotPending
		}

		var sumErr error
		totalPaid, sumErr = s.paymentRepo.SumByReceivable(txCtx, receivable.ID)
		if sumErr != nil {
			return fmt.Errorf("failed to sum payments: %w", sumErr)
		}

		if req.Amount != nil {
			amount, parseErr := decimal.NewFromString(*req.Amount)
			if parseErr != nil || amount.IsNegative() {
				return apperr.ErrInvalidAmount
			}
			// Editing is allowed with payments on the books, but the
			// paid total may never exceed the amount owed.
			if amount.LessThan(totalPaid) {
				return apperr.ErrAmountBelowPaid
			}
			receivable.Amount = amount
		}
		if req.Currency != nil && *req.Currency != receivable.Currency {
			if totalPaid.IsPositive() {
				return apperr.ErrCurrencyMismatch
			}
			receivable.Currency = *req.Currency
		}
		if req.CustomerName != nil {
			receivable.CustomerName = req.CustomerName
		}
		if req.CustomerPhone != nil {
			receivable.CustomerPhone = req.CustomerPhone
		}
		if req.Description != nil {
			receivable.Description = req.Description
		}
		receivable.UpdatedBy = actor

		if updateErr := s.receivableRepo.Update(txCtx, receivable); updateErr != nil {
			return fmt.Errorf("failed to update receivable: %w", updateErr)
		}

		return s.writeAudit(txCtx, storeID, actor, model.ActionUpdateReceivable, *receivable, req)
	})
	if err != nil {
		return ReceivableResponse{}, err
	}

	return toReceivableResponse(*receivable, totalPaid), nil
}

func (s *receivableService) SetStatus(ctx context.Context, actorID, id, storeID string, status model.ReceivableStatus) (ReceivableResponse, error) {
	receivableID, store, err := parseScope(id, storeID)
	if err != nil {
		return ReceivableResponse{}, err
	}

	actor := parseActor(actorID)
	var receivable *model.Receivable
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		receivable, txErr = s.transition(txCtx, receivableID, store, status, actor)
		return txErr
	})
	if err != nil {
		return ReceivableResponse{}, err
	}

	if status == model.ReceivableStatusPaid {
		publishEvent(s.hub, "receivable.settled", map[string]interface{}{
			"receivable_id":     receivable.ID.String(),
			"receivable_number": receivable.ReceivableNumber,
			"store_id":          receivable.StoreID.String(),
		})
	}

	totalPaid, err := s.paymentRepo.SumByReceivable(ctx, receivable.ID)
	if err != nil {
		return ReceivableResponse{}, fmt.Errorf("failed to sum payments: %w", err)
	}
	return toReceivableResponse(*receivable, totalPaid), nil
}

// BulkSetStatus applies the transition member by member. Each receivable
// gets its own transaction; one failing or non-pending member is counted
// as skipped and never aborts the rest of the batch.
func (s *receivableService) BulkSetStatus(ctx context.Context, actorID string, req BulkStatusRequest) (BulkStatusResult, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return BulkStatusResult{}, apperr.ErrNotFound
	}

	target := model.ReceivableStatus(req.Status)
	actor := parseActor(actorID)
	result := BulkStatusResult{Total: len(req.ReceivableIDs)}

	for _, rawID := range req.ReceivableIDs {
		receivableID, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			result.Skipped++
			continue
		}

		txErr := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			_, transitionErr := s.transition(txCtx, receivableID, storeID, target, actor)
			return transitionErr
		})
		if txErr != nil {
			result.Skipped++
			continue
		}
		result.Updated++
	}

	details, _ := json.Marshal(map[string]interface{}{
		"status":  req.Status,
		"updated": result.Updated,
		"skipped": result.Skipped,
		"total":   result.Total,
	})
	// The member transactions are already committed; the summary entry is
	// best effort and must not fail the batch.
	if auditErr := s.auditRepo.Log(ctx, &model.AuditLog{
		StoreID: storeID,
		UserID:  actor,
		Action:  model.ActionBulkSetStatus,
		Details: string(details),
	}); auditErr != nil {
		s.logger.Warn("bulk status audit entry not written", zap.Error(auditErr))
	}

	return result, nil
}

func (s *receivableService) PendingTotals(ctx context.Context, storeID string) (map[string]string, error) {
	store, err := uuid.Parse(storeID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}

	totals, err := s.receivableRepo.PendingTotalsByCurrency(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate pending totals: %w", err)
	}

	result := make(map[string]string, len(totals))
	for _, t := range totals {
		result[t.Currency] = t.Total.StringFixed(4)
	}
	return result, nil
}

func (s *receivableService) Summary(ctx context.Context, id, storeID string) (ReceivableSummary, error) {
	receivable, err := s.findScoped(ctx, id, storeID)
	if err != nil {
		return ReceivableSummary{}, err
	}

	payments, err := s.paymentRepo.ListByReceivable(ctx, receivable.ID)
	if err != nil {
		return ReceivableSummary{}, fmt.Errorf("failed to list payments: %w", err)
	}

	totalPaid := decimal.Zero
	paymentResponses := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Amount)
		paymentResponses = append(paymentResponses, toPaymentResponse(p))
	}

	return ReceivableSummary{
		ReceivableNumber: receivable.ReceivableNumber,
		CustomerName:     receivable.CustomerName,
		CustomerPhone:    receivable.CustomerPhone,
		Amount:           receivable.Amount.StringFixed(4),
		Currency:         receivable.Currency,
		TotalPaid:        totalPaid.StringFixed(4),
		Pending:          pendingOf(receivable.Amount, totalPaid).StringFixed(4),
		Status:           receivable.Status.String(),
		Payments:         paymentResponses,
	}, nil
}

// --- Internals ---

// transition moves a pending receivable to PAID or CANCELLED. Must run
// inside a transaction; the row lock serializes against concurrent
// payment application.
func (s *receivableService) transition(txCtx context.Context, id, storeID uuid.UUID, target model.ReceivableStatus, actor *uuid.UUID) (*model.Receivable, error) {
	receivable, err := s.receivableRepo.FindByIDForUpdate(txCtx, id, storeID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	if receivable.Status != model.ReceivableStatusPending || !receivable.Status.CanTransitionTo(target) {
		return nil, apperr.ErrReceivableNotPending
	}

	receivable.Status = target
	receivable.UpdatedBy = actor
	if target == model.ReceivableStatusPaid {
		now := time.Now()
		receivable.PaidAt = &now
	}

	if err := s.receivableRepo.Update(txCtx, receivable); err != nil {
		return nil, fmt.Errorf("failed to update receivable: %w", err)
	}

	if err := s.writeAudit(txCtx, storeID, actor, model.ActionSetReceivableStatus, *receivable,
		map[string]string{"status": target.String()}); err != nil {
		return nil, err
	}

	return receivable, nil
}

func (s *receivableService) findScoped(ctx context.Context, id, storeID string) (*model.Receivable, error) {
	receivableID, store, err := parseScope(id, storeID)
	if err != nil {
		return nil, err
	}

	receivable, err := s.receivableRepo.FindByID(ctx, receivableID, store)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return receivable, nil
}

func (s *receivableService) writeAudit(txCtx context.Context, storeID uuid.UUID, actor *uuid.UUID, action string, receivable model.Receivable, payload interface{}) error {
	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		StoreID:    storeID,
		UserID:     actor,
		Action:     action,
		EntityID:   receivable.ID.String(),
		EntityName: fmt.Sprintf("receivable #%d", receivable.ReceivableNumber),
		Details:    string(details),
	}
	if err := s.auditRepo.Log(txCtx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Helpers shared across the ledger services ---

func parseScope(id, storeID string) (uuid.UUID, uuid.UUID, error) {
	receivableID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.ErrNotFound
	}
	store, err := uuid.Parse(storeID)
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.ErrNotFound
	}
	return receivableID, store, nil
}

func parseActor(actorID string) *uuid.UUID {
	if parsed, err := uuid.Parse(actorID); err == nil {
		return &parsed
	}
	return nil
}

// notFoundOr maps a missing row (including cross-tenant access) to the
// domain NotFound; anything else stays an infrastructure error.
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return fmt.Errorf("database error: %w", err)
}

func pendingOf(amount, totalPaid decimal.Decimal) decimal.Decimal {
	pending := amount.Sub(totalPaid)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

func toReceivableResponse(r model.Receivable, totalPaid decimal.Decimal) ReceivableResponse {
	resp := ReceivableResponse{
		ID:               r.ID.String(),
		StoreID:          r.StoreID.String(),
		ReceivableNumber: r.ReceivableNumber,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		Description:      r.Description,
		Amount:           r.Amount.StringFixed(4),
		Currency:         r.Currency,
		Status:           r.Status.String(),
		TotalPaid:        totalPaid.StringFixed(4),
		Pending:          pendingOf(r.Amount, totalPaid).StringFixed(4),
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.Format(time.RFC3339),
	}
	if r.RequestID != nil {
		s := r.RequestID.String()
		resp.RequestID = &s
	}
	if r.PaidAt != nil {
		s := r.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	if r.CreatedBy != nil {
		s := r.CreatedBy.String()
		resp.CreatedBy = &s
	}
	if r.UpdatedBy != nil {
		s := r.UpdatedBy.String()
		resp.UpdatedBy = &s
	}
	return resp
}
