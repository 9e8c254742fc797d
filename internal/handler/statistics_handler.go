package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	stats := router.Group("/api/statistics")
	{
		stats.GET("/invoices", middleware.RequirePermission("dashboard.read"), h.GetInvoiceDashboard)
	}
}

// GetInvoiceDashboard returns the invoice review-queue overview
// @Summary      Invoice dashboard
// @Description  Returns invoice counts and gross totals grouped by status and module, plus the unassigned queue size
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.InvoiceDashboard}
// @Failure      500  {object}  response.Response
// @Router       /api/statistics/invoices [get]
func (h *StatisticsHandler) GetInvoiceDashboard(c *gin.Context) {
	dashboard, err := h.statisticsService.GetInvoiceDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}
