package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
)

// ScoringHandler serves scoring rule management and dry-run evaluation.
type ScoringHandler struct {
	rules services.ScoringRuleService
}

// NewScoringHandler creates a new scoring handler
func NewScoringHandler(rules services.ScoringRuleService) *ScoringHandler {
	return &ScoringHandler{rules: rules}
}

// ListRules returns the active rules, or all with ?include_inactive=true
func (h *ScoringHandler) ListRules(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	rules, err := h.rules.List(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

// GetRule returns a specific scoring rule
func (h *ScoringHandler) GetRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rule, err := h.rules.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// CreateRule creates a new scoring rule (Admin only)
func (h *ScoringHandler) CreateRule(c *gin.Context) {
	var form models.ScoringRuleForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "Invalid rule format", err)
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), form, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// UpdateRule replaces a scoring rule (Admin only)
func (h *ScoringHandler) UpdateRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var form models.ScoringRuleForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "Invalid rule format", err)
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), id, form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule deactivates a scoring rule (Admin only)
func (h *ScoringHandler) DeleteRule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scoring rule deactivated"})
}

// Evaluate scores a lead payload against the active rules without saving it
func (h *ScoringHandler) Evaluate(c *gin.Context) {
	var in models.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid lead format", err)
		return
	}
	lead := &models.Lead{}
	in.Apply(lead)

	result, err := h.rules.Evaluate(c.Request.Context(), lead)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
