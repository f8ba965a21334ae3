package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	ws "backoffice/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type ApplyPaymentRequest struct {
	StoreID  string  `json:"store_id" binding:"required,uuid"`
	Amount   string  `json:"amount" binding:"required"`
	Currency string  `json:"currency"`
	Notes    *string `json:"notes"`
}

type PaymentResponse struct {
	ID           string  `json:"id"`
	ReceivableID string  `json:"receivable_id"`
	Amount       string  `json:"amount"`
	Currency     string  `json:"currency"`
	Notes        *string `json:"notes"`
	CreatedBy    *string `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
}

// PaymentLedgerResponse is returned by every payment mutation: the
// receivable's fresh state plus its full payment history.
type PaymentLedgerResponse struct {
	Receivable ReceivableResponse `json:"receivable"`
	Payments   []PaymentResponse  `json:"payments"`
	TotalPaid  string             `json:"total_paid"`
}

// --- Interface ---

// PaymentService drives the receivable state machine through payment
// events: append, remove, and the manual reopen correction.
type PaymentService interface {
	ApplyPayment(ctx context.Context, actorID, receivableID string, req ApplyPaymentRequest) (PaymentLedgerResponse, error)
	DeletePayment(ctx context.Context, actorID, receivableID, paymentID, storeID string) (PaymentLedgerResponse, error)
	Reopen(ctx context.Context, actorID, receivableID, storeID string) (ReceivableResponse, error)
	ListPayments(ctx context.Context, receivableID, storeID string) (PaymentLedgerResponse, error)
}

type paymentService struct {
	receivableRepo repository.ReceivableRepository
	paymentRepo    repository.PaymentRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	hub            *ws.Hub
}

func NewPaymentService(
	receivableRepo repository.ReceivableRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) PaymentService {
	return &paymentService{
		receivableRepo: receivableRepo,
		paymentRepo:    paymentRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		hub:            hub,
	}
}

// --- Implementation ---

func (s *paymentService) ApplyPayment(ctx context.Context, actorID, receivableID string, req ApplyPaymentRequest) (PaymentLedgerResponse, error) {
	id, storeID, err := parseScope(receivableID, req.StoreID)
	if err != nil {
		return PaymentLedgerResponse{}, err
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return PaymentLedgerResponse{}, apperr.ErrInvalidAmount
	}

	actor := parseActor(actorID)
	var receivable *model.Receivable
	var totalPaid decimal.Decimal
	var settled bool

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		receivable, findErr = s.receivableRepo.FindByIDForUpdate(txCtx, id, storeID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		var applyErr error
		totalPaid, settled, applyErr = applyPaymentLocked(txCtx, s.receivableRepo, s.paymentRepo, receivable, amount, req.Currency, req.Notes, actor)
		if applyErr != nil {
			return applyErr
		}

		return writePaymentAudit(txCtx, s.auditRepo, model.ActionApplyPayment, *receivable, actor,
			map[string]string{"amount": amount.StringFixed(4), "currency": receivable.Currency})
	})
	if err != nil {
		return PaymentLedgerResponse{}, err
	}

	if settled {
		publishEvent(s.hub, "receivable.settled", map[string]interface{}{
			"receivable_id":     receivable.ID.String(),
			"receivable_number": receivable.ReceivableNumber,
			"store_id":          receivable.StoreID.String(),
			"total_paid":        totalPaid.StringFixed(4),
		})
	}

	return s.ledgerResponse(ctx, *receivable, totalPaid)
}

// DeletePayment removes a mis-entered payment from a manual receivable
// and demotes a settled receivable back to pending when the remaining
// payments no longer cover the amount owed.
func (s *paymentService) DeletePayment(ctx context.Context, actorID, receivableID, paymentID, storeID string) (PaymentLedgerResponse, error) {
	id, store, err := parseScope(receivableID, storeID)
	if err != nil {
		return PaymentLedgerResponse{}, err
	}
	payID, err := uuid.Parse(paymentID)
	if err != nil {
		return PaymentLedgerResponse{}, apperr.ErrNotFound
	}

	actor := parseActor(actorID)
	var receivable *model.Receivable
	var totalPaid decimal.Decimal

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		receivable, findErr = s.receivableRepo.FindByIDForUpdate(txCtx, id, store)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		// Order-linked payment history stays consistent with the order
		// settlement flow and is never editable, regardless of content.
		if receivable.IsOrderLinked() {
			return apperr.ErrOrderLinkedImmutable
		}

		payment, payErr := s.paymentRepo.FindByID(txCtx, payID, receivable.ID)
		if payErr != nil {
			return notFoundOr(payErr)
		}

		if delErr := s.paymentRepo.Delete(txCtx, payment.ID); delErr != nil {
			return fmt.Errorf("failed to delete payment: %w", delErr)
		}

		var sumErr error
		totalPaid, sumErr = s.paymentRepo.SumByReceivable(txCtx, receivable.ID)
		if sumErr != nil {
			return fmt.Errorf("failed to sum payments: %w", sumErr)
		}

		if receivable.Status == model.ReceivableStatusPaid && totalPaid.LessThan(receivable.Amount) {
			receivable.Status = model.ReceivableStatusPending
			receivable.PaidAt = nil
		}
		receivable.UpdatedBy = actor

		if updateErr := s.receivableRepo.Update(txCtx, receivable); updateErr != nil {
			return fmt.Errorf("failed to update receivable: %w", updateErr)
		}

		return writePaymentAudit(txCtx, s.auditRepo, model.ActionDeletePayment, *receivable, actor,
			map[string]string{"payment_id": payment.ID.String(), "amount": payment.Amount.StringFixed(4)})
	})
	if err != nil {
		return PaymentLedgerResponse{}, err
	}

	return s.ledgerResponse(ctx, *receivable, totalPaid)
}

// Reopen demotes a paid manual receivable to pending without touching
// its payments, so a wrong entry can be corrected via delete + re-apply.
func (s *paymentService) Reopen(ctx context.Context, actorID, receivableID, storeID string) (ReceivableResponse, error) {
	id, store, err := parseScope(receivableID, storeID)
	if err != nil {
		return ReceivableResponse{}, err
	}

	actor := parseActor(actorID)
	var receivable *model.Receivable
	var totalPaid decimal.Decimal

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		receivable, findErr = s.receivableRepo.FindByIDForUpdate(txCtx, id, store)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		if receivable.IsOrderLinked() {
			return apperr.ErrOrderLinkedImmutable
		}
		if receivable.Status != model.ReceivableStatusPaid {
			return apperr.ErrNotPaid
		}

		receivable.Status = model.ReceivableStatusPending
		receivable.PaidAt = nil
		receivable.UpdatedBy = actor

		if updateErr := s.receivableRepo.Update(txCtx, receivable); updateErr != nil {
			return fmt.Errorf("failed to update receivable: %w", updateErr)
		}

		var sumErr error
		totalPaid, sumErr = s.paymentRepo.SumByReceivable(txCtx, receivable.ID)
		if sumErr != nil {
			return fmt.Errorf("failed to sum payments: %w", sumErr)
		}

		return writePaymentAudit(txCtx, s.auditRepo, model.ActionReopenReceivable, *receivable, actor, nil)
	})
	if err != nil {
		return ReceivableResponse{}, err
	}

	publishEvent(s.hub, "receivable.reopened", map[string]interface{}{
		"receivable_id":     receivable.ID.String(),
		"receivable_number": receivable.ReceivableNumber,
		"store_id":          receivable.StoreID.String(),
	})

	return toReceivableResponse(*receivable, totalPaid), nil
}

func (s *paymentService) ListPayments(ctx context.Context, receivableID, storeID string) (PaymentLedgerResponse, error) {
	id, store, err := parseScope(receivableID, storeID)
	if err != nil {
		return PaymentLedgerResponse{}, err
	}

	receivable, err := s.receivableRepo.FindByID(ctx, id, store)
	if err != nil {
		return PaymentLedgerResponse{}, notFoundOr(err)
	}

	totalPaid, err := s.paymentRepo.SumByReceivable(ctx, receivable.ID)
	if err != nil {
		return PaymentLedgerResponse{}, fmt.Errorf("failed to sum payments: %w", err)
	}

	return s.ledgerResponse(ctx, *receivable, totalPaid)
}

func (s *paymentService) ledgerResponse(ctx context.Context, receivable model.Receivable, totalPaid decimal.Decimal) (PaymentLedgerResponse, error) {
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

// applyPaymentLocked appends a payment to an already-locked pending
// receivable, recomputes the paid total from the rows, and flips the
// status to PAID in the same transaction when the total covers the
// amount owed. Shared between direct payment application and the seed
// payment of order-linked creation.
func applyPaymentLocked(
	txCtx context.Context,
	receivableRepo repository.ReceivableRepository,
	paymentRepo repository.PaymentRepository,
	receivable *model.Receivable,
	amount decimal.Decimal,
	currency string,
	notes *string,
	actor *uuid.UUID,
) (decimal.Decimal, bool, error) {
	if !receivable.Status.AcceptsPayments() {
		return decimal.Zero, false, apperr.ErrReceivableNotPending
	}
	if currency != "" && currency != receivable.Currency {
		return decimal.Zero, false, apperr.ErrCurrencyMismatch
	}

	payment := model.Payment{
		ReceivableID: receivable.ID,
		Amount:       amount,
		Currency:     receivable.Currency,
		Notes:        notes,
		CreatedBy:    actor,
	}
	if err := paymentRepo.Create(txCtx, &payment); err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to create payment: %w", err)
	}

	totalPaid, err := paymentRepo.SumByReceivable(txCtx, receivable.ID)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to sum payments: %w", err)
	}

	settled := totalPaid.GreaterThanOrEqual(receivable.Amount)
	if settled {
		now := time.Now()
		receivable.Status = model.ReceivableStatusPaid
		receivable.PaidAt = &now
	}
	receivable.UpdatedBy = actor

	if err := receivableRepo.Update(txCtx, receivable); err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to update receivable: %w", err)
	}

	return totalPaid, settled, nil
}

func writePaymentAudit(txCtx context.Context, auditRepo repository.AuditRepository, action string, receivable model.Receivable, actor *uuid.UUID, payload map[string]string) error {
	details := "{}"
	if payload != nil {
		raw, _ := json.Marshal(payload)
		details = string(raw)
	}
	entry := &model.AuditLog{
		StoreID:    receivable.StoreID,
		UserID:     actor,
		Action:     action,
		EntityID:   receivable.ID.String(),
		EntityName: fmt.Sprintf("receivable #%d", receivable.ReceivableNumber),
		Details:    details,
	}
	if err := auditRepo.Log(txCtx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:           p.ID.String(),
		ReceivableID: p.ReceivableID.String(),
		Amount:       p.Amount.StringFixed(4),
		Currency:     p.Currency,
		Notes:        p.Notes,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	if p.CreatedBy != nil {
		s := p.CreatedBy.String()
		resp.CreatedBy = &s
	}
	return resp
}
