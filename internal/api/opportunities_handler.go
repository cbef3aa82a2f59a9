package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
)

// OpportunitiesHandler serves opportunity CRUD.
type OpportunitiesHandler struct {
	opportunities services.OpportunityService
}

// NewOpportunitiesHandler creates a new opportunities handler
func NewOpportunitiesHandler(opportunities services.OpportunityService) *OpportunitiesHandler {
	return &OpportunitiesHandler{opportunities: opportunities}
}

// ListOpportunities returns a filtered page of opportunities
func (h *OpportunitiesHandler) ListOpportunities(c *gin.Context) {
	var filters models.OpportunityFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	clampPage(&filters.Limit, &filters.Offset)

	page, err := h.opportunities.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateOpportunity stores a new opportunity
func (h *OpportunitiesHandler) CreateOpportunity(c *gin.Context) {
	var in models.OpportunityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid opportunity format", err)
		return
	}

	opp, err := h.opportunities.Create(c.Request.Context(), in, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, opp)
}

// GetOpportunity returns one opportunity
func (h *OpportunitiesHandler) GetOpportunity(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	opp, err := h.opportunities.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

// UpdateOpportunity applies a partial update; stage changes are logged
func (h *OpportunitiesHandler) UpdateOpportunity(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in models.OpportunityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid opportunity format", err)
		return
	}

	opp, err := h.opportunities.Update(c.Request.Context(), id, in, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

// DeleteOpportunity removes an opportunity
func (h *OpportunitiesHandler) DeleteOpportunity(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.opportunities.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
