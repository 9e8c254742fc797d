package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type FarmHandler struct {
	farmService service.FarmService
}

func NewFarmHandler(farmService service.FarmService) *FarmHandler {
	return &FarmHandler{farmService: farmService}
}

func (h *FarmHandler) RegisterRoutes(router *gin.RouterGroup) {
	farms := router.Group("/api/farms")
	{
		farms.GET("", middleware.RequirePermission("farms.read"), h.ListFarms)
		farms.POST("", middleware.RequirePermission("farms.write"), h.CreateFarm)
		farms.GET("/:id", middleware.RequirePermission("farms.read"), h.GetFarm)
		farms.PUT("/:id", middleware.RequirePermission("farms.write"), h.UpdateFarm)
		farms.DELETE("/:id", middleware.RequirePermission("farms.write"), h.DeleteFarm)
	}

	entities := router.Group("/api/tax-entities")
	{
		entities.GET("", middleware.RequirePermission("farms.read"), h.ListTaxEntities)
		entities.POST("", middleware.RequirePermission("farms.write"), h.CreateTaxEntity)
		entities.DELETE("/:id", middleware.RequirePermission("farms.write"), h.DeleteTaxEntity)
	}
}

// ListFarms returns a paginated farm listing with henhouses
// @Summary      List farms
// @Tags         farms
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Search by name or NIP"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/farms [get]
func (h *FarmHandler) ListFarms(c *gin.Context) {
	params := pagination.Parse(c)

	farms, total, err := h.farmService.ListFarms(c.Request.Context(), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, farms, params.Meta(total)))
}

// CreateFarm creates a farm with its henhouses
// @Summary      Create farm
// @Tags         farms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFarmRequest  true  "Create Farm Payload"
// @Success      201      {object}  response.Response{data=service.FarmResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/farms [post]
func (h *FarmHandler) CreateFarm(c *gin.Context) {
	var req service.CreateFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	farm, err := h.farmService.CreateFarm(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, farm))
}

// GetFarm returns one farm by ID
// @Summary      Get farm
// @Tags         farms
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Farm ID"
// @Success      200  {object}  response.Response{data=service.FarmResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/farms/{id} [get]
func (h *FarmHandler) GetFarm(c *gin.Context) {
	farm, err := h.farmService.GetFarm(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, farm))
}

// UpdateFarm updates a farm and replaces its henhouse list
// @Summary      Update farm
// @Tags         farms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Farm ID"
// @Param        payload  body      service.UpdateFarmRequest  true  "Update Farm Payload"
// @Success      200      {object}  response.Response{data=service.FarmResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/farms/{id} [put]
func (h *FarmHandler) UpdateFarm(c *gin.Context) {
	var req service.UpdateFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	farm, err := h.farmService.UpdateFarm(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, farm))
}

// DeleteFarm removes a farm and its henhouses
// @Summary      Delete farm
// @Tags         farms
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Farm ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/farms/{id} [delete]
func (h *FarmHandler) DeleteFarm(c *gin.Context) {
	if err := h.farmService.DeleteFarm(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// ListTaxEntities returns registered tax business entities
// @Summary      List tax entities
// @Tags         tax-entities
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/tax-entities [get]
func (h *FarmHandler) ListTaxEntities(c *gin.Context) {
	params := pagination.Parse(c)

	entities, total, err := h.farmService.ListTaxEntities(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, entities, params.Meta(total)))
}

// CreateTaxEntity registers a new tax business entity
// @Summary      Create tax entity
// @Tags         tax-entities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateTaxEntityRequest  true  "Create Tax Entity Payload"
// @Success      201      {object}  response.Response{data=service.TaxEntityResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/tax-entities [post]
func (h *FarmHandler) CreateTaxEntity(c *gin.Context) {
	var req service.CreateTaxEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entity, err := h.farmService.CreateTaxEntity(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entity))
}

// DeleteTaxEntity removes a tax business entity
// @Summary      Delete tax entity
// @Tags         tax-entities
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Tax Entity ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/tax-entities/{id} [delete]
func (h *FarmHandler) DeleteTaxEntity(c *gin.Context) {
	if err := h.farmService.DeleteTaxEntity(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
