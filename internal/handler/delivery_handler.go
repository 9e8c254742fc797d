package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DeliveryHandler struct {
	deliveryService service.DeliveryService
}

func NewDeliveryHandler(deliveryService service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService}
}

func (h *DeliveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	feed := router.Group("/api/deliveries/feed")
	{
		feed.GET("", middleware.RequirePermission("deliveries.read"), h.ListFeedDeliveries)
		feed.POST("", middleware.RequirePermission("deliveries.write"), h.CreateFeedDelivery)
		feed.DELETE("/:id", middleware.RequirePermission("deliveries.write"), h.DeleteFeedDelivery)
	}

	gas := router.Group("/api/deliveries/gas")
	{
		gas.GET("", middleware.RequirePermission("deliveries.read"), h.ListGasDeliveries)
		gas.POST("", middleware.RequirePermission("deliveries.write"), h.CreateGasDelivery)
		gas.DELETE("/:id", middleware.RequirePermission("deliveries.write"), h.DeleteGasDelivery)
	}
}

// ListFeedDeliveries returns feed deliveries filtered by farm and date range
// @Summary      List feed deliveries
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        farm   query     string  false  "Filter by farm ID"
// @Param        from   query     string  false  "Delivered on or after (YYYY-MM-DD)"
// @Param        to     query     string  false  "Delivered on or before (YYYY-MM-DD)"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/deliveries/feed [get]
func (h *DeliveryHandler) ListFeedDeliveries(c *gin.Context) {
	query := buildDeliveryQuery(c)

	deliveries, total, err := h.deliveryService.ListFeedDeliveries(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, deliveries, listMeta(query, total)))
}

// CreateFeedDelivery records a feed delivery
// @Summary      Record feed delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFeedDeliveryRequest  true  "Feed Delivery Payload"
// @Success      201      {object}  response.Response{data=service.FeedDeliveryResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/deliveries/feed [post]
func (h *DeliveryHandler) CreateFeedDelivery(c *gin.Context) {
	var req service.CreateFeedDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	delivery, err := h.deliveryService.CreateFeedDelivery(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, delivery))
}

// DeleteFeedDelivery removes a feed delivery record
// @Summary      Delete feed delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Delivery ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/deliveries/feed/{id} [delete]
func (h *DeliveryHandler) DeleteFeedDelivery(c *gin.Context) {
	if err := h.deliveryService.DeleteFeedDelivery(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// ListGasDeliveries returns gas deliveries filtered by farm and date range
// @Summary      List gas deliveries
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        farm   query     string  false  "Filter by farm ID"
// @Param        from   query     string  false  "Delivered on or after (YYYY-MM-DD)"
// @Param        to     query     string  false  "Delivered on or before (YYYY-MM-DD)"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/deliveries/gas [get]
func (h *DeliveryHandler) ListGasDeliveries(c *gin.Context) {
	query := buildDeliveryQuery(c)

	deliveries, total, err := h.deliveryService.ListGasDeliveries(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, deliveries, listMeta(query, total)))
}

// CreateGasDelivery records a gas delivery
// @Summary      Record gas delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateGasDeliveryRequest  true  "Gas Delivery Payload"
// @Success      201      {object}  response.Response{data=service.GasDeliveryResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/deliveries/gas [post]
func (h *DeliveryHandler) CreateGasDelivery(c *gin.Context) {
	var req service.CreateGasDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	delivery, err := h.deliveryService.CreateGasDelivery(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, delivery))
}

// DeleteGasDelivery removes a gas delivery record
// @Summary      Delete gas delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Delivery ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/deliveries/gas/{id} [delete]
func (h *DeliveryHandler) DeleteGasDelivery(c *gin.Context) {
	if err := h.deliveryService.DeleteGasDelivery(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

func buildDeliveryQuery(c *gin.Context) service.DeliveryQuery {
	params := pagination.Parse(c)
	return service.DeliveryQuery{
		FarmID: c.Query("farm"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Page:   params.Page,
		Limit:  params.Limit,
	}
}

func listMeta(query service.DeliveryQuery, total int64) pagination.Meta {
	return pagination.Params{Page: query.Page, Limit: query.Limit}.Meta(total)
}
