package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCreateReceivable_AssignsSequentialNumbers(t *testing.T) {
	f := newLedgerFixture(t)

	first := f.createReceivable(t, "100.00", "USD")
	second := f.createReceivable(t, "50.00", "USD")
	third := f.createReceivable(t, "25.00", "EUR")

	assert.Equal(t, int64(1), first.ReceivableNumber)
	assert.Equal(t, int64(2), second.ReceivableNumber)
	assert.Equal(t, int64(3), third.ReceivableNumber)
	assert.Equal(t, "PENDING", first.Status)
	assert.Equal(t, "0.0000", first.TotalPaid)
	assert.Equal(t, "100.0000", first.Pending)
}

func TestCreateReceivable_NumbersAreIndependentPerStore(t *testing.T) {
	f := newLedgerFixture(t)
	f.createReceivable(t, "100.00", "USD")
	f.createReceivable(t, "50.00", "USD")

	otherStore := uuid.NewString()
	resp, err := f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID: otherStore,
		Amount:  "75.00",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ReceivableNumber)
}

func TestCreateReceivable_RejectsInvalidAmount(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID: f.storeID.String(),
		Amount:  "-5.00",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	_, err = f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID: f.storeID.String(),
		Amount:  "not-a-number",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
}

func TestCreateReceivable_DefaultsCurrency(t *testing.T) {
	f := newLedgerFixture(t)
	resp := f.createReceivable(t, "10.00", "")
	assert.Equal(t, "USD", resp.Currency)
}

func TestGetReceivable_OtherStoreIsNotFound(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	_, err := f.receivables.Get(context.Background(), created.ID, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.receivables.Get(context.Background(), created.ID, f.storeID.String())
	assert.NoError(t, err)
}

func TestGetReceivable_MalformedIDIsNotFound(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.receivables.Get(context.Background(), "not-a-uuid", f.storeID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateReceivable_EditsPendingFields(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	name := "Alice"
	amount := "140.00"
	updated, err := f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID:      f.storeID.String(),
		CustomerName: &name,
		Amount:       &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, "140.0000", updated.Amount)
	require.NotNil(t, updated.CustomerName)
	assert.Equal(t, "Alice", *updated.CustomerName)
}

func TestUpdateReceivable_AmountMayNotDropBelowPaid(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "60.00")

	tooLow := "50.00"
	_, err := f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID: f.storeID.String(),
		Amount:  &tooLow,
	})
	assert.ErrorIs(t, err, apperr.ErrAmountBelowPaid)

	// Raising the amount with payments on the books is fine.
	higher := "200.00"
	updated, err := f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID: f.storeID.String(),
		Amount:  &higher,
	})
	require.NoError(t, err)
	assert.Equal(t, "200.0000", updated.Amount)
	assert.Equal(t, "140.0000", updated.Pending)
}

func TestUpdateReceivable_CurrencyLockedOncePaymentsExist(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "10.00")

	eur := "EUR"
	_, err := f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID:  f.storeID.String(),
		Currency: &eur,
	})
	assert.ErrorIs(t, err, apperr.ErrCurrencyMismatch)
}

func TestUpdateReceivable_CurrencyEditableWithoutPayments(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	eur := "EUR"
	updated, err := f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID:  f.storeID.String(),
		Currency: &eur,
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", updated.Currency)
}

func TestUpdateReceivable_NonPendingRejected(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	_, err := f.receivables.SetStatus(context.Background(), f.actorID, created.ID, f.storeID.String(), model.ReceivableStatusCancelled)
	require.NoError(t, err)

	name := "Bob"
	_, err = f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID:      f.storeID.String(),
		CustomerName: &name,
	})
	assert.ErrorIs(t, err, apperr.ErrReceivableNotPending)
}

func TestUpdateReceivable_StatusFieldDispatchesTransition(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	paid := "PAID"
	updated, err := f.receivables.Update(context.Background(), f.actorID, created.ID, UpdateReceivableRequest{
		StoreID: f.storeID.String(),
		Status:  &paid,
	})
	require.NoError(t, err)
	assert.Equal(t, "PAID", updated.Status)
	assert.NotNil(t, updated.PaidAt)
}

func TestSetStatus_CancelledIsTerminal(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	_, err := f.receivables.SetStatus(context.Background(), f.actorID, created.ID, f.storeID.String(), model.ReceivableStatusCancelled)
	require.NoError(t, err)

	_, err = f.receivables.SetStatus(context.Background(), f.actorID, created.ID, f.storeID.String(), model.ReceivableStatusPaid)
	assert.ErrorIs(t, err, apperr.ErrReceivableNotPending)
}

func TestBulkSetStatus_SkipsIneligibleMembers(t *testing.T) {
	f := newLedgerFixture(t)
	pending := f.createReceivable(t, "100.00", "USD")
	cancelled := f.createReceivable(t, "50.00", "USD")
	_, err := f.receivables.SetStatus(context.Background(), f.actorID, cancelled.ID, f.storeID.String(), model.ReceivableStatusCancelled)
	require.NoError(t, err)

	result, err := f.receivables.BulkSetStatus(context.Background(), f.actorID, BulkStatusRequest{
		StoreID:       f.storeID.String(),
		ReceivableIDs: []string{pending.ID, cancelled.ID, uuid.NewString(), "garbage"},
		Status:        "PAID",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 4, result.Total)

	got, err := f.receivables.Get(context.Background(), pending.ID, f.storeID.String())
	require.NoError(t, err)
	assert.Equal(t, "PAID", got.Status)
}

// failingBatchAudit passes member audit writes through and refuses the
// batch-level summary entry.
type failingBatchAudit struct {
	repository.AuditRepository
}

func (r failingBatchAudit) Log(ctx context.Context, entry *model.AuditLog) error {
	if entry.Action == model.ActionBulkSetStatus {
		return errors.New("audit store unavailable")
	}
	return r.AuditRepository.Log(ctx, entry)
}

func TestBulkSetStatus_SummaryAuditFailureDoesNotFailBatch(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	core, logs := observer.New(zap.WarnLevel)
	receivables := NewReceivableService(
		repository.NewReceivableRepository(f.db),
		repository.NewPaymentRepository(f.db),
		failingBatchAudit{repository.NewAuditRepository(f.db)},
		repository.NewTransactionManager(f.db),
		nil,
		zap.New(core),
	)

	result, err := receivables.BulkSetStatus(context.Background(), f.actorID, BulkStatusRequest{
		StoreID:       f.storeID.String(),
		ReceivableIDs: []string{created.ID},
		Status:        "PAID",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	got, err := f.receivables.Get(context.Background(), created.ID, f.storeID.String())
	require.NoError(t, err)
	assert.Equal(t, "PAID", got.Status)
	assert.Equal(t, 1, logs.FilterMessage("bulk status audit entry not written").Len())
}

func TestPendingTotals_GroupsByCurrencyAndSubtractsPayments(t *testing.T) {
	f := newLedgerFixture(t)

	usd := f.createReceivable(t, "100.00", "USD")
	f.pay(t, usd.ID, "40.00")
	f.createReceivable(t, "50.00", "EUR")

	// Settled and cancelled receivables contribute nothing.
	settled := f.createReceivable(t, "30.00", "USD")
	f.pay(t, settled.ID, "30.00")
	cancelled := f.createReceivable(t, "99.00", "USD")
	_, err := f.receivables.SetStatus(context.Background(), f.actorID, cancelled.ID, f.storeID.String(), model.ReceivableStatusCancelled)
	require.NoError(t, err)

	totals, err := f.receivables.PendingTotals(context.Background(), f.storeID.String())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"USD": "60.0000",
		"EUR": "50.0000",
	}, totals)
}

func TestPendingTotals_EmptyStoreIsEmpty(t *testing.T) {
	f := newLedgerFixture(t)
	totals, err := f.receivables.PendingTotals(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestListReceivables_FiltersByStatus(t *testing.T) {
	f := newLedgerFixture(t)
	f.createReceivable(t, "100.00", "USD")
	paid := f.createReceivable(t, "50.00", "USD")
	f.pay(t, paid.ID, "50.00")

	result, err := f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{Status: "PENDING"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "PENDING", result.Items[0].Status)
	assert.Equal(t, map[string]string{"USD": "100.0000"}, result.TotalAmountByCurrency)
}

func TestListReceivables_SearchMatchesNamePhoneAndNumber(t *testing.T) {
	f := newLedgerFixture(t)
	alice := "Alice Johnson"
	phone := "555-0101"
	first, err := f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID:       f.storeID.String(),
		CustomerName:  &alice,
		CustomerPhone: &phone,
		Amount:        "100.00",
	})
	require.NoError(t, err)
	bob := "Bob"
	second, err := f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID:      f.storeID.String(),
		CustomerName: &bob,
		Amount:       "50.00",
	})
	require.NoError(t, err)

	// Customer name, case-insensitive.
	result, err := f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{Search: "alice"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, first.ID, result.Items[0].ID)

	// Phone fragment.
	result, err = f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{Search: "0101"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, first.ID, result.Items[0].ID)

	// Human-facing receivable number.
	result, err = f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{Search: "2"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, second.ID, result.Items[0].ID)

	result, err = f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{Search: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Zero(t, result.Total)
}

func TestListReceivables_DateBoundsAreInclusiveWindows(t *testing.T) {
	f := newLedgerFixture(t)
	f.createReceivable(t, "100.00", "USD")

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	future := time.Now().Add(time.Hour).Format(time.RFC3339)

	result, err := f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{DateFrom: past, DateTo: future})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	result, err = f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{DateFrom: future})
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	result, err = f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{DateTo: past})
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	_, err = f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{DateFrom: "not-a-date"})
	assert.Error(t, err)
}

func TestListReceivables_NewestNumberFirstWithPaidTotals(t *testing.T) {
	f := newLedgerFixture(t)
	first := f.createReceivable(t, "100.00", "USD")
	f.createReceivable(t, "70.00", "EUR")
	f.pay(t, first.ID, "25.00")

	result, err := f.receivables.List(context.Background(), f.storeID.String(), ListReceivablesFilter{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, int64(2), result.Items[0].ReceivableNumber)
	assert.Equal(t, int64(1), result.Items[1].ReceivableNumber)
	assert.Equal(t, "25.0000", result.Items[1].TotalPaid)
	assert.Equal(t, "75.0000", result.Items[1].Pending)
	assert.Equal(t, map[string]string{"USD": "100.0000", "EUR": "70.0000"}, result.TotalAmountByCurrency)
}

func TestSummary_ReturnsLedgerSnapshot(t *testing.T) {
	f := newLedgerFixture(t)
	name := "Carol"
	created, err := f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID:      f.storeID.String(),
		CustomerName: &name,
		Amount:       "100.00",
		Currency:     "USD",
	})
	require.NoError(t, err)
	f.pay(t, created.ID, "30.00")
	f.pay(t, created.ID, "20.00")

	summary, err := f.receivables.Summary(context.Background(), created.ID, f.storeID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ReceivableNumber, summary.ReceivableNumber)
	require.NotNil(t, summary.CustomerName)
	assert.Equal(t, "Carol", *summary.CustomerName)
	assert.Equal(t, "50.0000", summary.TotalPaid)
	assert.Equal(t, "50.0000", summary.Pending)
	assert.Equal(t, "PENDING", summary.Status)
	assert.Len(t, summary.Payments, 2)
}

func TestAuditTrail_RecordsMutations(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "100.00")

	var count int64
	require.NoError(t, f.db.Model(&model.AuditLog{}).
		Where("store_id = ?", f.storeID).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
