package handler

import (
	"net/http"

	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReceivableHandler struct {
	receivableService service.ReceivableService
	paymentService    service.PaymentService
	linkageService    service.LinkageService
}

func NewReceivableHandler(receivableService service.ReceivableService, paymentService service.PaymentService, linkageService service.LinkageService) *ReceivableHandler {
	return &ReceivableHandler{
		receivableService: receivableService,
		paymentService:    paymentService,
		linkageService:    linkageService,
	}
}

func (h *ReceivableHandler) RegisterRoutes(router *gin.RouterGroup) {
	receivables := router.Group("/api/receivables")
	{
		receivables.POST("", h.CreateReceivable)
		receivables.POST("/from-request", h.CreateFromRequest)
		receivables.GET("", h.ListReceivables)
		receivables.GET("/pending-total", h.GetPendingTotal)
		receivables.POST("/bulk-update-status", h.BulkUpdateStatus)
		receivables.GET("/:id", h.GetReceivable)
		receivables.PUT("/:id", h.UpdateReceivable)
		receivables.POST("/:id/reopen", h.ReopenReceivable)
		receivables.PUT("/:id/items", h.ReplaceItems)
		receivables.GET("/:id/summary", h.GetSummary)
		receivables.GET("/:id/payments", h.ListPayments)
		receivables.POST("/:id/payments", h.ApplyPayment)
		receivables.DELETE("/:id/payments/:paymentId", h.DeletePayment)
	}
}

// CreateReceivable creates a manual receivable
// @Summary      Create receivable
// @Description  Creates a new manual receivable in PENDING status
// @Tags         receivables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReceivableRequest  true  "Create Receivable Payload"
// @Success      201      {object}  response.Response{data=service.ReceivableResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/receivables [post]
func (h *ReceivableHandler) CreateReceivable(c *gin.Context) {
	var req service.CreateReceivableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	receivable, err := h.receivableService.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, receivable))
}

// CreateFromRequest creates a receivable linked to a sales request
// @Summary      Create receivable from request
// @Description  Creates a receivable linked to an eligible sales request, optionally seeding an initial payment
// @Tags         receivables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFromRequestRequest  true  "Create From Request Payload"
// @Success      201      {object}  response.Response{data=service.PaymentLedgerResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/receivables/from-request [post]
func (h *ReceivableHandler) CreateFromRequest(c *gin.Context) {
	var req service.CreateFromRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ledger, err := h.linkageService.CreateFromRequest(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, ledger))
}

// ListReceivables returns a filtered, paginated receivable list
// @Summary      List receivables
// @Description  Retrieves receivables for a store with optional status, date range and search filters, plus per-currency totals for the filtered set
// @Tags         receivables
// @Security     BearerAuth
// @Produce      json
// @Param        store_id   query     string  true   "Store ID"
// @Param        status     query     string  false  "Filter by status (PENDING, PAID, CANCELLED)"
// @Param        date_from  query     string  false  "Created-at lower bound (RFC3339)"
// @Param        date_to    query     string  false  "Created-at upper bound (RFC3339)"
// @Param        search     query     string  false  "Customer name, phone, or receivable number"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=service.ReceivableListResult}
// @Failure      500        {object}  response.Response
// @Router       /api/receivables [get]
func (h *ReceivableHandler) ListReceivables(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.ListReceivablesFilter{
		Status:   c.Query("status"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Search:   c.Query("search"),
		Page:     p.Page,
		Limit:    p.Limit,
	}

	result, err := h.receivableService.List(c.Request.Context(), c.Query("store_id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetPendingTotal returns outstanding pending amounts grouped by currency
// @Summary      Pending totals by currency
// @Description  Sums the unpaid remainder of all PENDING receivables for a store, grouped by currency
// @Tags         receivables
// @Security     BearerAuth
// @Produce      json
// @Param        store_id  query     string  true  "Store ID"
// @Success      200       {object}  response.Response{data=object}
// @Failure      500       {object}  response.Response
// @Router       /api/receivables/pending-total [get]
func (h *ReceivableHandler) GetPendingTotal(c *gin.Context) {
	totals, err := h.receivableService.PendingTotals(c.Request.Context(), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"pending_by_currency": totals,
	}))
}

// BulkUpdateStatus transitions many receivables in one call
// @Summary      Bulk status update
// @Description  Applies a status transition to each listed receivable independently; ineligible ones are skipped, not failed
// @Tags         receivables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BulkStatusRequest  true  "Bulk Status Payload"
// @Success      200      {object}  response.Response{data=service.BulkStatusResult}
// @Failure      400      {object}  response.Response
// @Router       /api/receivables/bulk-update-status [post]
func (h *ReceivableHandler) BulkUpdateStatus(c *gin.Context) {
	var req service.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.receivableService.BulkSetStatus(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetReceivable returns a single receivable with its paid total
// @Summary      Get receivable
// @Tags         receivables
// @Security     BearerAuth
// @Produce      json
// @Param        id        path      string  true  "Receivable ID"
// @Param        store_id  query     string  true  "Store ID"
// @Success      200       {object}  response.Response{data=service.ReceivableResponse}
// @Failure      404       {object}  response.Response
// @Router       /api/receivables/{id} [get]
func (h *ReceivableHandler) GetReceivable(c *gin.Context) {
	receivable, err := h.receivableService.Get(c.Request.Context(), c.Param("id"), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, receivable))
}

// UpdateReceivable edits a pending receivable or transitions its status
// @Summary      Update receivable
// @Description  Edits customer fields, amount or currency of a pending receivable, or applies a status transition when status is present
// @Tags         receivables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Receivable ID"
// @Param        payload  body      service.UpdateReceivableRequest  true  "Update Receivable Payload"
// @Success      200      {object}  response.Response{data=service.ReceivableResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/receivables/{id} [put]
func (h *ReceivableHandler) UpdateReceivable(c *gin.Context) {
	var req service.UpdateReceivableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	receivable, err := h.receivableService.Update(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, receivable))
}

// ReopenReceivable moves a PAID receivable back to PENDING
// @Summary      Reopen receivable
// @Description  Returns a paid receivable to PENDING without touching its payment history; order-linked receivables cannot be reopened
// @Tags         receivables
// @Security     BearerAuth
// @Produce      json
// @Param        id        path      string  true  "Receivable ID"
// @Param        store_id  query     string  true  "Store ID"
// @Success      200       {object}  response.Response{data=service.ReceivableResponse}
// @Failure      409       {object}  response.Response
// @Router       /api/receivables/{id}/reopen [post]
func (h *ReceivableHandler) ReopenReceivable(c *gin.Context) {
	receivable, err := h.paymentService.Reopen(c.Request.Context(), actorID(c), c.Param("id"), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, receivable))
}

// ReplaceItems rewrites the item list of an order-linked receivable
// @Summary      Replace receivable items
// @Description  Replaces the linked request's items, reconciles variant stock by the diff, and syncs the receivable amount to the new total
// @Tags         receivables
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Receivable ID"
// @Param        payload  body      service.ReplaceItemsRequest  true  "Replace Items Payload"
// @Success      200      {object}  response.Response{data=service.ReplaceItemsResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/receivables/{id}/items [put]
func (h *ReceivableHandler) ReplaceItems(c *gin.Context) {
	var req service.ReplaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.linkageService.ReplaceItems(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetSummary returns the outbound-messaging summary payload
// @Summary      Receivable summary
// @Description  Returns the structured summary used for customer-facing payment reminders
// @Tags         receivables
// @Security     BearerAuth
// @Produce      json
// @Param        id        path      string  true  "Receivable ID"
// @Param        store_id  query     string  true  "Store ID"
// @Success      200       {object}  response.Response{data=service.ReceivableSummary}
// @Failure      404       {object}  response.Response
// @Router       /api/receivables/{id}/summary [get]
func (h *ReceivableHandler) GetSummary(c *gin.Context) {
	summary, err := h.receivableService.Summary(c.Request.Context(), c.Param("id"), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// ListPayments returns the payment ledger for a receivable
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id        path      string  true  "Receivable ID"
// @Param        store_id  query     string  true  "Store ID"
// @Success      200       {object}  response.Response{data=service.PaymentLedgerResponse}
// @Failure      404       {object}  response.Response
// @Router       /api/receivables/{id}/payments [get]
func (h *ReceivableHandler) ListPayments(c *gin.Context) {
	ledger, err := h.paymentService.ListPayments(c.Request.Context(), c.Param("id"), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ledger))
}

// ApplyPayment records a payment against a pending receivable
// @Summary      Apply payment
// @Description  Appends a payment to a pending receivable; the receivable settles automatically once paid in full
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Receivable ID"
// @Param        payload  body      service.ApplyPaymentRequest  true  "Apply Payment Payload"
// @Success      201      {object}  response.Response{data=service.PaymentLedgerResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/receivables/{id}/payments [post]
func (h *ReceivableHandler) ApplyPayment(c *gin.Context) {
	var req service.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ledger, err := h.paymentService.ApplyPayment(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, ledger))
}

// DeletePayment removes a payment and re-derives the receivable status
// @Summary      Delete payment
// @Description  Removes a recorded payment; a settled receivable demotes back to PENDING if the remaining payments no longer cover the amount
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id         path      string  true  "Receivable ID"
// @Param        paymentId  path      string  true  "Payment ID"
// @Param        store_id   query     string  true  "Store ID"
// @Success      200        {object}  response.Response{data=service.PaymentLedgerResponse}
// @Failure      409        {object}  response.Response
// @Router       /api/receivables/{id}/payments/{paymentId} [delete]
func (h *ReceivableHandler) DeletePayment(c *gin.Context) {
	ledger, err := h.paymentService.DeletePayment(c.Request.Context(), actorID(c), c.Param("id"), c.Param("paymentId"), c.Query("store_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ledger))
}
