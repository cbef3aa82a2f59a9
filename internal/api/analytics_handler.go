package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/crm-pipeline/internal/services"
)

// AnalyticsHandler serves pipeline aggregates and reports.
type AnalyticsHandler struct {
	analytics services.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Pipeline returns opportunity counts and values by stage
func (h *AnalyticsHandler) Pipeline(c *gin.Context) {
	buckets, err := h.analytics.Pipeline(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pipeline": buckets})
}

// Conversion returns the lead conversion rate over ?days= (default 30)
func (h *AnalyticsHandler) Conversion(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	result, err := h.analytics.Conversion(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CustomerLifetimeValue returns won revenue per customer account
func (h *AnalyticsHandler) CustomerLifetimeValue(c *gin.Context) {
	result, err := h.analytics.CustomerLifetimeValue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Forecast returns the weighted forecast over ?months= (default 3)
func (h *AnalyticsHandler) Forecast(c *gin.Context) {
	months, ok := queryInt(c, "months", 3)
	if !ok {
		return
	}
	result, err := h.analytics.Forecast(c.Request.Context(), months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reports builds ?type= (default all) over ?days= (default 30)
func (h *AnalyticsHandler) Reports(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	report, err := h.analytics.Report(c.Request.Context(), c.Query("type"), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Dashboard returns the landing-page summary
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.analytics.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
