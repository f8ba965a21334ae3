package handler

import (
	"net/http"

	"backoffice/internal/apperr"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusForCode maps the stable domain error codes to HTTP statuses.
// Unknown domain codes fall back to 400 so new codes cannot silently
// surface as 500s.
var statusForCode = map[string]int{
	apperr.CodeNotFound:             http.StatusNotFound,
	apperr.CodeInvalidAmount:        http.StatusBadRequest,
	apperr.CodeCurrencyMismatch:     http.StatusBadRequest,
	apperr.CodeAmountBelowPaid:      http.StatusBadRequest,
	apperr.CodeReceivableNotPending: http.StatusConflict,
	apperr.CodeNotPaid:              http.StatusConflict,
	apperr.CodeOrderLinkedImmutable: http.StatusConflict,
	apperr.CodeOrderNotEligible:     http.StatusConflict,
	apperr.CodeInsufficientStock:    http.StatusConflict,
	apperr.CodeInvalidCredentials:   http.StatusUnauthorized,
	apperr.CodeAlreadyExists:        http.StatusConflict,
}

// respondError writes a domain error with its mapped HTTP status, or a
// 500 for anything outside the domain taxonomy.
func respondError(c *gin.Context, err error) {
	if apperr.IsDomain(err) {
		code := apperr.CodeOf(err)
		status, ok := statusForCode[code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, response.DomainError(status, code, err.Error()))
		return
	}
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "internal server error"))
}

// actorID extracts the authenticated user ID set by the auth middleware.
func actorID(c *gin.Context) string {
	v, _ := c.Get("userID")
	s, _ := v.(string)
	return s
}
