package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/crm-pipeline/internal/services"
)

// RescoreController is the part of the rescore pipeline the API drives.
// *services.RescorePipeline implements it.
type RescoreController interface {
	Start(config services.PipelineConfig) error
	Stop() error
	Config() services.PipelineConfig
	Status(ctx context.Context) (*services.PipelineStatus, error)
	RunOnce(ctx context.Context, config services.PipelineConfig) (*services.PipelineStats, error)
}

// PipelineHandler handles rescore pipeline management (admin only)
type PipelineHandler struct {
	pipeline RescoreController
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(pipeline RescoreController) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline}
}

// GetPipelineStatus returns whether the pipeline runs and its last cycle
func (h *PipelineHandler) GetPipelineStatus(c *gin.Context) {
	status, err := h.pipeline.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pipeline_status": status})
}

// GetPipelineConfig returns the active configuration with field help
func (h *PipelineHandler) GetPipelineConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config": h.pipeline.Config(),
		"description": map[string]string{
			"batch_size":              "Leads fetched per page",
			"interval_minutes":        "How often a rescore cycle runs",
			"max_concurrent":          "Concurrent score writes",
			"process_new_only":        "Only rescore leads that were never scored",
			"rescore_older_than_days": "Skip leads scored more recently than this; 0 rescores all",
		},
	})
}

// StartPipeline starts periodic rescoring. Body fields override the
// current configuration.
func (h *PipelineHandler) StartPipeline(c *gin.Context) {
	config := h.pipeline.Config()
	if !bindOptionalJSON(c, &config) {
		return
	}

	if err := h.pipeline.Start(config); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rescore pipeline started", "config": config})
}

// StopPipeline stops periodic rescoring
func (h *PipelineHandler) StopPipeline(c *gin.Context) {
	if err := h.pipeline.Stop(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rescore pipeline stopped"})
}

// RunPipelineOnce runs a single cycle synchronously. Query parameters
// override the current configuration.
func (h *PipelineHandler) RunPipelineOnce(c *gin.Context) {
	config := h.pipeline.Config()

	for name, dst := range map[string]*int{
		"batch_size":              &config.BatchSize,
		"max_concurrent":          &config.MaxConcurrent,
		"rescore_older_than_days": &config.RescoreOlderThanDays,
	} {
		v, ok := queryInt(c, name, *dst)
		if !ok {
			return
		}
		*dst = v
	}
	if raw := c.Query("process_new_only"); raw != "" {
		newOnly, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "process_new_only must be a boolean", nil)
			return
		}
		config.ProcessNewOnly = newOnly
	}

	stats, err := h.pipeline.RunOnce(c.Request.Context(), config)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Rescore cycle completed",
		"config":  config,
		"stats":   stats,
		"summary": stats.Summary(),
	})
}
