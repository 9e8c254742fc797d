package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RuleHandler struct {
	ruleService service.RuleService
}

func NewRuleHandler(ruleService service.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

func (h *RuleHandler) RegisterRoutes(router *gin.RouterGroup) {
	rules := router.Group("/api/rules")
	{
		rules.GET("", middleware.RequirePermission("rules.read"), h.ListRules)
		rules.POST("", middleware.RequirePermission("rules.write"), h.CreateRule)
		rules.PUT("/reorder", middleware.RequirePermission("rules.write"), h.ReorderRules)
		rules.PUT("/:id", middleware.RequirePermission("rules.write"), h.UpdateRule)
		rules.PUT("/:id/activate", middleware.RequirePermission("rules.write"), h.ActivateRule)
		rules.PUT("/:id/deactivate", middleware.RequirePermission("rules.write"), h.DeactivateRule)
	}
}

// ListRules returns assignment rules of one chain ordered by priority
// @Summary      List assignment rules
// @Description  Retrieves assignment rules filtered by rule type, ordered by priority
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        type              query     string  false  "Rule type (USER_ASSIGNMENT, FARM_ASSIGNMENT, MODULE_ASSIGNMENT)"
// @Param        include_inactive  query     bool    false  "Include deactivated rules"
// @Param        page              query     int     false  "Page number (default 1)"
// @Param        limit             query     int     false  "Number of items per page (default 20)"
// @Success      200               {object}  response.Response{data=object}
// @Failure      500               {object}  response.Response
// @Router       /api/rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	params := pagination.Parse(c)
	includeInactive := c.Query("include_inactive") == "true"

	rules, total, err := h.ruleService.ListRules(c.Request.Context(), c.Query("type"), includeInactive, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, rules, params.Meta(total)))
}

// CreateRule creates a new assignment rule at the lowest priority of its chain
// @Summary      Create assignment rule
// @Description  Creates an assignment rule; the rule is appended at the end of its chain
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRuleRequest  true  "Create Rule Payload"
// @Success      201      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.ruleService.CreateRule(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// UpdateRule updates an existing assignment rule
// @Summary      Update assignment rule
// @Description  Updates an assignment rule's keywords, scopes, target, and priority
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Rule ID"
// @Param        payload  body      service.UpdateRuleRequest  true  "Update Rule Payload"
// @Success      200      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rules/{id} [put]
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var req service.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.ruleService.UpdateRule(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// ActivateRule re-enables a deactivated rule
// @Summary      Activate assignment rule
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  response.Response{data=service.RuleResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/rules/{id}/activate [put]
func (h *RuleHandler) ActivateRule(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateRule soft-disables a rule; the engine skips it from then on
// @Summary      Deactivate assignment rule
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  response.Response{data=service.RuleResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/rules/{id}/deactivate [put]
func (h *RuleHandler) DeactivateRule(c *gin.Context) {
	h.setActive(c, false)
}

func (h *RuleHandler) setActive(c *gin.Context, active bool) {
	rule, err := h.ruleService.SetRuleActive(c.Request.Context(), c.Param("id"), active, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// ReorderRules renumbers a whole chain according to the given rule order
// @Summary      Reorder assignment rules
// @Description  Renumbers the priorities of one rule chain to match the given ID order
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ReorderRulesRequest  true  "Reorder Payload"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /api/rules/reorder [put]
func (h *RuleHandler) ReorderRules(c *gin.Context) {
	var req service.ReorderRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.ruleService.ReorderRules(c.Request.Context(), req, currentUserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"reordered": len(req.OrderedIDs)}))
}

func currentUserID(c *gin.Context) string {
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)
	return userIDStr
}
