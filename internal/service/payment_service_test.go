package service

import (
	"context"
	"testing"

	"backoffice/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPayment_PartialKeepsPending(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	ledger := f.pay(t, created.ID, "40.00")
	assert.Equal(t, "PENDING", ledger.Receivable.Status)
	assert.Equal(t, "40.0000", ledger.TotalPaid)
	assert.Equal(t, "60.0000", ledger.Receivable.Pending)
	assert.Len(t, ledger.Payments, 1)
	assert.Nil(t, ledger.Receivable.PaidAt)
}

func TestApplyPayment_SettlesAtExactAmount(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	f.pay(t, created.ID, "60.00")
	ledger := f.pay(t, created.ID, "40.00")

	assert.Equal(t, "PAID", ledger.Receivable.Status)
	assert.Equal(t, "100.0000", ledger.TotalPaid)
	assert.Equal(t, "0.0000", ledger.Receivable.Pending)
	assert.NotNil(t, ledger.Receivable.PaidAt)
}

func TestApplyPayment_OverpaymentSettles(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	ledger := f.pay(t, created.ID, "150.00")
	assert.Equal(t, "PAID", ledger.Receivable.Status)
	assert.Equal(t, "150.0000", ledger.TotalPaid)
	// Pending never goes negative.
	assert.Equal(t, "0.0000", ledger.Receivable.Pending)
}

func TestApplyPayment_RejectsZeroAndNegative(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	for _, amount := range []string{"0", "0.0000", "-10.00", "abc"} {
		_, err := f.payments.ApplyPayment(context.Background(), f.actorID, created.ID, ApplyPaymentRequest{
			StoreID: f.storeID.String(),
			Amount:  amount,
		})
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, "amount %q", amount)
	}
}

func TestApplyPayment_CurrencyMustMatch(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	_, err := f.payments.ApplyPayment(context.Background(), f.actorID, created.ID, ApplyPaymentRequest{
		StoreID:  f.storeID.String(),
		Amount:   "10.00",
		Currency: "EUR",
	})
	assert.ErrorIs(t, err, apperr.ErrCurrencyMismatch)

	// Empty currency inherits the receivable's.
	ledger := f.pay(t, created.ID, "10.00")
	assert.Equal(t, "USD", ledger.Payments[0].Currency)
}

func TestApplyPayment_RejectedOnSettledAndCancelled(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "100.00")

	_, err := f.payments.ApplyPayment(context.Background(), f.actorID, created.ID, ApplyPaymentRequest{
		StoreID: f.storeID.String(),
		Amount:  "1.00",
	})
	assert.ErrorIs(t, err, apperr.ErrReceivableNotPending)
}

func TestDeletePayment_DemotesSettledReceivable(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "60.00")
	ledger := f.pay(t, created.ID, "40.00")
	require.Equal(t, "PAID", ledger.Receivable.Status)

	afterDelete, err := f.payments.DeletePayment(context.Background(), f.actorID, created.ID, ledger.Payments[1].ID, f.storeID.String())
	require.NoError(t, err)
	assert.Equal(t, "PENDING", afterDelete.Receivable.Status)
	assert.Equal(t, "60.0000", afterDelete.TotalPaid)
	assert.Nil(t, afterDelete.Receivable.PaidAt)
	assert.Len(t, afterDelete.Payments, 1)
}

func TestDeletePayment_UnknownPaymentIsNotFound(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	other := f.createReceivable(t, "50.00", "USD")
	ledger := f.pay(t, other.ID, "10.00")

	// A payment belonging to a different receivable is invisible here.
	_, err := f.payments.DeletePayment(context.Background(), f.actorID, created.ID, ledger.Payments[0].ID, f.storeID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReopen_RestoresPendingAndKeepsPayments(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "100.00")

	reopened, err := f.payments.Reopen(context.Background(), f.actorID, created.ID, f.storeID.String())
	require.NoError(t, err)
	assert.Equal(t, "PENDING", reopened.Status)
	assert.Nil(t, reopened.PaidAt)
	assert.Equal(t, "100.0000", reopened.TotalPaid)

	// Not paid anymore, so a second reopen fails.
	_, err = f.payments.Reopen(context.Background(), f.actorID, created.ID, f.storeID.String())
	assert.ErrorIs(t, err, apperr.ErrNotPaid)
}

func TestReopen_PendingRejected(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	_, err := f.payments.Reopen(context.Background(), f.actorID, created.ID, f.storeID.String())
	assert.ErrorIs(t, err, apperr.ErrNotPaid)
}

func TestSettleDeleteReapplyRoundTrip(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")

	settled := f.pay(t, created.ID, "100.00")
	require.Equal(t, "PAID", settled.Receivable.Status)

	demoted, err := f.payments.DeletePayment(context.Background(), f.actorID, created.ID, settled.Payments[0].ID, f.storeID.String())
	require.NoError(t, err)
	require.Equal(t, "PENDING", demoted.Receivable.Status)
	require.Equal(t, "0.0000", demoted.TotalPaid)

	resettled := f.pay(t, created.ID, "100.00")
	assert.Equal(t, "PAID", resettled.Receivable.Status)
	assert.Equal(t, "100.0000", resettled.TotalPaid)
}

func TestListPayments_OrderedOldestFirst(t *testing.T) {
	f := newLedgerFixture(t)
	created := f.createReceivable(t, "100.00", "USD")
	f.pay(t, created.ID, "10.00")
	f.pay(t, created.ID, "20.00")

	ledger, err := f.payments.ListPayments(context.Background(), created.ID, f.storeID.String())
	require.NoError(t, err)
	require.Len(t, ledger.Payments, 2)
	assert.Equal(t, "10.0000", ledger.Payments[0].Amount)
	assert.Equal(t, "20.0000", ledger.Payments[1].Amount)
	assert.Equal(t, "30.0000", ledger.TotalPaid)
}
