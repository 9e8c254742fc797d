package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"backend/internal/lifecycle"
	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", middleware.RequirePermission("invoices.write"), h.RegisterInvoice)
		invoices.GET("", middleware.RequirePermission("invoices.read"), h.ListInvoices)
		invoices.POST("/reclassify", middleware.RequirePermission("rules.write"), h.ReclassifyBatch)
		invoices.GET("/:id", middleware.RequirePermission("invoices.read"), h.GetInvoice)
		invoices.GET("/:id/history", middleware.RequirePermission("invoices.read"), h.GetInvoiceHistory)
		invoices.GET("/:id/classify-preview", middleware.RequirePermission("rules.read"), h.PreviewClassification)
		invoices.POST("/:id/reclassify", middleware.RequirePermission("rules.write"), h.ReclassifyInvoice)
		invoices.PUT("/:id/accept", middleware.RequirePermission("invoices.review"), h.AcceptInvoice)
		invoices.PUT("/:id/hold", middleware.RequirePermission("invoices.review"), h.HoldInvoice)
		invoices.PUT("/:id/reject", middleware.RequirePermission("invoices.review"), h.RejectInvoice)
		invoices.PUT("/:id/transfer", middleware.RequirePermission("invoices.review"), h.TransferToOffice)
		invoices.PUT("/:id/payment-status", middleware.RequirePermission("invoices.review"), h.SetPaymentStatus)
		invoices.PUT("/:id/assignee", middleware.RequirePermission("invoices.assign"), h.ReassignUser)
		invoices.PUT("/:id/module", middleware.RequirePermission("invoices.assign"), h.ReassignModule)
	}
}

// RegisterInvoice registers a new invoice and classifies it against the
// current rule set
// @Summary      Register invoice
// @Description  Registers an invoice; it enters the review queue in status NEW after classification
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterInvoiceRequest  true  "Register Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) RegisterInvoice(c *gin.Context) {
	var req service.RegisterInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.RegisterInvoice(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated, filtered invoice listing
// @Summary      List invoices
// @Description  Retrieves invoices filtered by status, payment status, direction, module, assignee, or farm
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status          query     string  false  "Filter by status (NEW, ACCEPTED, REJECTED, SENT_TO_OFFICE)"
// @Param        payment_status  query     string  false  "Filter by payment status"
// @Param        direction       query     string  false  "Filter by direction (PURCHASE, SALES)"
// @Param        module          query     string  false  "Filter by target module"
// @Param        assignee        query     string  false  "Filter by assigned user ID"
// @Param        farm            query     string  false  "Filter by target farm ID"
// @Param        unassigned      query     bool    false  "Only invoices without an assigned user"
// @Param        page            query     int     false  "Page number (default 1)"
// @Param        limit           query     int     false  "Number of items per page (default 20)"
// @Success      200             {object}  response.Response{data=object}
// @Failure      500             {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.InvoiceFilter{
		Status:         c.Query("status"),
		PaymentStatus:  c.Query("payment_status"),
		Direction:      c.Query("direction"),
		TargetModule:   c.Query("module"),
		AssignedUserID: c.Query("assignee"),
		TargetFarmID:   c.Query("farm"),
		Unassigned:     c.Query("unassigned") == "true",
		Page:           params.Page,
		Limit:          params.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, params.Meta(total)))
}

// GetInvoice returns one invoice by ID
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetInvoiceHistory returns the append-only action history of one invoice
// @Summary      Get invoice history
// @Description  Returns every recorded action on the invoice in chronological order
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.InvoiceHistoryEntry}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/{id}/history [get]
func (h *InvoiceHandler) GetInvoiceHistory(c *gin.Context) {
	history, err := h.invoiceService.GetInvoiceHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// PreviewClassification dry-runs the rule engine against one invoice
// @Summary      Preview classification
// @Description  Shows what the rule engine would decide for this invoice without persisting anything
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.ClassificationPreview}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/{id}/classify-preview [get]
func (h *InvoiceHandler) PreviewClassification(c *gin.Context) {
	preview, err := h.invoiceService.PreviewClassification(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// ReclassifyInvoice re-runs classification on one invoice and applies the result
// @Summary      Reclassify invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/reclassify [post]
func (h *InvoiceHandler) ReclassifyInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.ReclassifyInvoice(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ReclassifyBatch re-runs classification over NEW invoices
// @Summary      Reclassify batch
// @Description  Re-runs the rule engine over unprocessed invoices with the current rule set
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of invoices to process (default 500)"
// @Success      200    {object}  response.Response{data=service.BatchReclassifyResult}
// @Failure      500    {object}  response.Response
// @Router       /api/invoices/reclassify [post]
func (h *InvoiceHandler) ReclassifyBatch(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	result, err := h.invoiceService.ReclassifyBatch(c.Request.Context(), limit, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// AcceptInvoice moves an invoice to ACCEPTED
// @Summary      Accept invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/accept [put]
func (h *InvoiceHandler) AcceptInvoice(c *gin.Context) {
	h.applyTransition(c, h.invoiceService.AcceptInvoice)
}

// HoldInvoice moves an invoice back to NEW
// @Summary      Hold invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/hold [put]
func (h *InvoiceHandler) HoldInvoice(c *gin.Context) {
	h.applyTransition(c, h.invoiceService.HoldInvoice)
}

// RejectInvoice moves an invoice to REJECTED
// @Summary      Reject invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/reject [put]
func (h *InvoiceHandler) RejectInvoice(c *gin.Context) {
	h.applyTransition(c, h.invoiceService.RejectInvoice)
}

// TransferToOffice moves an accepted invoice to SENT_TO_OFFICE
// @Summary      Transfer invoice to accounting office
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/transfer [put]
func (h *InvoiceHandler) TransferToOffice(c *gin.Context) {
	h.applyTransition(c, h.invoiceService.TransferToOffice)
}

type setPaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// SetPaymentStatus updates the payment axis of an invoice
// @Summary      Set payment status
// @Description  Updates the payment status; rejected invoices do not accept payment changes
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Invoice ID"
// @Param        payload  body      setPaymentStatusRequest  true  "Payment Status Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/payment-status [put]
func (h *InvoiceHandler) SetPaymentStatus(c *gin.Context) {
	var req setPaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.SetPaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus, currentUserID(c))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

type reassignUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ReassignUser manually assigns an invoice to another employee
// @Summary      Reassign invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Invoice ID"
// @Param        payload  body      reassignUserRequest  true  "Reassign Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/assignee [put]
func (h *InvoiceHandler) ReassignUser(c *gin.Context) {
	var req reassignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.ReassignUser(c.Request.Context(), c.Param("id"), req.UserID, currentUserID(c))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

type reassignModuleRequest struct {
	Module string `json:"module" binding:"required"`
}

// ReassignModule manually re-files an invoice under another module
// @Summary      Change invoice module
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Invoice ID"
// @Param        payload  body      reassignModuleRequest  true  "Module Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/module [put]
func (h *InvoiceHandler) ReassignModule(c *gin.Context) {
	var req reassignModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.ReassignModule(c.Request.Context(), c.Param("id"), req.Module, currentUserID(c))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

func (h *InvoiceHandler) applyTransition(c *gin.Context, apply func(ctx context.Context, id, userID string) (service.InvoiceResponse, error)) {
	invoice, err := apply(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// respondLifecycleError maps domain errors to HTTP status codes: a concurrent
// modification is 409, an illegal transition 409, everything else 400.
func respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrConflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, "invoice was modified concurrently, retry"))
	case lifecycle.IsInvalidTransition(err):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	}
}
