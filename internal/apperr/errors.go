// Package apperr defines the closed set of domain errors the ledger can
// return. Handlers map codes to HTTP statuses; anything outside this set
// is treated as an infrastructure failure.
package apperr

import "errors"

// Error is a recoverable, caller-visible domain error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Stable error codes carried over the API.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeCurrencyMismatch     = "CURRENCY_MISMATCH"
	CodeReceivableNotPending = "RECEIVABLE_NOT_PENDING"
	CodeNotPaid              = "NOT_PAID"
	CodeOrderLinkedImmutable = "ORDER_LINKED_IMMUTABLE"
	CodeAmountBelowPaid      = "AMOUNT_BELOW_PAID"
	CodeOrderNotEligible     = "ORDER_NOT_ELIGIBLE"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeAlreadyExists        = "ALREADY_EXISTS"
)

var (
	ErrNotFound             = New(CodeNotFound, "resource not found")
	ErrInvalidAmount        = New(CodeInvalidAmount, "amount must be positive")
	ErrCurrencyMismatch     = New(CodeCurrencyMismatch, "currency does not match the receivable")
	ErrReceivableNotPending = New(CodeReceivableNotPending, "operation requires a pending receivable")
	ErrNotPaid              = New(CodeNotPaid, "reopen requires a paid receivable")
	ErrOrderLinkedImmutable = New(CodeOrderLinkedImmutable, "operation not allowed on an order-linked receivable")
	ErrAmountBelowPaid      = New(CodeAmountBelowPaid, "amount cannot drop below the total already paid")
	ErrOrderNotEligible     = New(CodeOrderNotEligible, "source order is not in an eligible status")
	ErrInsufficientStock    = New(CodeInsufficientStock, "insufficient stock for requested items")
	ErrInvalidCredentials   = New(CodeInvalidCredentials, "invalid email or password")
	ErrAlreadyExists        = New(CodeAlreadyExists, "resource already exists")
)

// IsDomain reports whether err (or anything it wraps) is a domain error.
func IsDomain(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// CodeOf returns the domain error code, or "" for infrastructure errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
