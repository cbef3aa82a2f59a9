package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// LeadsHandler serves lead CRUD and the lead lifecycle actions.
type LeadsHandler struct {
	leads services.LeadService
}

// NewLeadsHandler creates a new leads handler
func NewLeadsHandler(leads services.LeadService) *LeadsHandler {
	return &LeadsHandler{leads: leads}
}

// ListLeads returns a filtered page of leads
func (h *LeadsHandler) ListLeads(c *gin.Context) {
	var filters models.LeadFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	clampPage(&filters.Limit, &filters.Offset)

	page, err := h.leads.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateLead scores and stores a new lead
func (h *LeadsHandler) CreateLead(c *gin.Context) {
	var in models.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid lead format", err)
		return
	}

	lead, err := h.leads.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// GetLead returns one lead
func (h *LeadsHandler) GetLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	lead, err := h.leads.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// UpdateLead applies a partial update and re-scores
func (h *LeadsHandler) UpdateLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in models.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid lead format", err)
		return
	}

	lead, err := h.leads.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// DeleteLead removes a lead
func (h *LeadsHandler) DeleteLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.leads.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ScoreLead re-scores a lead and returns the breakdown
func (h *LeadsHandler) ScoreLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	score, err := h.leads.Score(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// QualifyLead marks a lead Qualified
func (h *LeadsHandler) QualifyLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req services.QualifyRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.Actor = actor(c)

	lead, err := h.leads.Qualify(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lead qualified", "lead": lead})
}

// NurtureLead plans a follow-up activity
func (h *LeadsHandler) NurtureLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req services.NurtureRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.Actor = actor(c)

	activity, err := h.leads.Nurture(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Nurturing activity scheduled", "activity": activity})
}

// ConvertLead converts a lead, optionally opening an opportunity
func (h *LeadsHandler) ConvertLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req services.ConvertRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.Actor = actor(c)

	result, err := h.leads.Convert(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EnrichLead fetches the lead's website and re-scores
func (h *LeadsHandler) EnrichLead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	lead, err := h.leads.Enrich(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// LeadReport summarizes leads by status, source and score range
func (h *LeadsHandler) LeadReport(c *gin.Context) {
	report, err := h.leads.Report(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request format", err)
		return false
	}
	return true
}

func clampPage(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultPageSize
	}
	if *limit > maxPageSize {
		*limit = maxPageSize
	}
	if *offset < 0 {
		*offset = 0
	}
}
