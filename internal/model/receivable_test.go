package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReceivableStatusTransitions(t *testing.T) {
	tests := []struct {
		from    ReceivableStatus
		to      ReceivableStatus
		allowed bool
	}{
		{ReceivableStatusPending, ReceivableStatusPaid, true},
		{ReceivableStatusPending, ReceivableStatusCancelled, true},
		{ReceivableStatusPaid, ReceivableStatusPending, true},
		{ReceivableStatusPaid, ReceivableStatusCancelled, false},
		{ReceivableStatusCancelled, ReceivableStatusPending, false},
		{ReceivableStatusCancelled, ReceivableStatusPaid, false},
		{ReceivableStatusPending, ReceivableStatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestReceivableStatusAcceptsPayments(t *testing.T) {
	assert.True(t, ReceivableStatusPending.AcceptsPayments())
	assert.False(t, ReceivableStatusPaid.AcceptsPayments())
	assert.False(t, ReceivableStatusCancelled.AcceptsPayments())
}

func TestReceivableStatusIsValid(t *testing.T) {
	assert.True(t, ReceivableStatusPending.IsValid())
	assert.True(t, ReceivableStatusPaid.IsValid())
	assert.True(t, ReceivableStatusCancelled.IsValid())
	assert.False(t, ReceivableStatus("REFUNDED").IsValid())
	assert.False(t, ReceivableStatus("").IsValid())
}

func TestReceivableIsOrderLinked(t *testing.T) {
	manual := Receivable{}
	assert.False(t, manual.IsOrderLinked())

	requestID := uuid.New()
	linked := Receivable{RequestID: &requestID}
	assert.True(t, linked.IsOrderLinked())
}
