package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/crm-pipeline/internal/database"
	"github.com/ajharbinger/crm-pipeline/internal/enrichment"
)

// Pinger reports database reachability. *database.DB implements it.
type Pinger interface {
	HealthCheck() error
}

type poolReporter interface {
	GetStats() database.PoolStats
}

// EnrichmentHealth exposes website fetch health. *enrichment.HealthMonitor
// implements it.
type EnrichmentHealth interface {
	GetHealthStatus() enrichment.HealthStatus
	Reset()
}

// HealthHandler serves liveness and component health.
type HealthHandler struct {
	db         Pinger
	enrichment EnrichmentHealth
}

// NewHealthHandler creates a new health handler. enrichment may be nil when
// website enrichment is disabled.
func NewHealthHandler(db Pinger, enrichment EnrichmentHealth) *HealthHandler {
	return &HealthHandler{db: db, enrichment: enrichment}
}

// Health reports overall status; 503 when the database is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "timestamp": now(), "database": "ok"}

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
		if pool, ok := h.db.(poolReporter); ok {
			body["database_pool"] = pool.GetStats()
		}
	}
	if h.enrichment != nil {
		body["enrichment_healthy"] = h.enrichment.GetHealthStatus().IsHealthy
	}
	c.JSON(status, body)
}

// EnrichmentHealth returns detailed website fetch health
func (h *HealthHandler) EnrichmentHealth(c *gin.Context) {
	if h.enrichment == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "health": h.enrichment.GetHealthStatus()})
}

// ResetEnrichmentHealth clears the fetch counters (Admin only)
func (h *HealthHandler) ResetEnrichmentHealth(c *gin.Context) {
	if h.enrichment == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	h.enrichment.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Enrichment health reset", "timestamp": now()})
}
