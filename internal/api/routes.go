package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ajharbinger/crm-pipeline/internal/auth"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/metrics"
	"github.com/ajharbinger/crm-pipeline/internal/middleware"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
	"github.com/ajharbinger/crm-pipeline/pkg/config"
)

func init() {
	// Money goes out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// RouterDeps are what the HTTP layer needs. Metrics, DB and Enrichment are
// optional.
type RouterDeps struct {
	Services   *services.Services
	JWT        *auth.JWTService
	Config     *config.Config
	Logger     logger.Logger
	Metrics    *metrics.Manager
	DB         Pinger
	Enrichment EnrichmentHealth
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(deps.Config))
	r.Use(middleware.InputValidationMiddleware(deps.Config.MaxRequestSize))
	if deps.Config.EnableRateLimit {
		r.Use(middleware.NewRateLimiter(300, time.Minute).Middleware())
	}
	if proxies := deps.Config.GetTrustedProxies(); len(proxies) > 0 {
		_ = r.SetTrustedProxies(proxies)
	} else {
		_ = r.SetTrustedProxies(nil)
	}

	SetupRoutes(r, deps)
	return r
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, deps RouterDeps) {
	svc := deps.Services
	authHandler := NewAuthHandler(svc.Auth)
	leadsHandler := NewLeadsHandler(svc.Leads)
	oppHandler := NewOpportunitiesHandler(svc.Opportunities)
	scoringHandler := NewScoringHandler(svc.ScoringRules)
	analyticsHandler := NewAnalyticsHandler(svc.Analytics)
	healthHandler := NewHealthHandler(deps.DB, deps.Enrichment)

	admin := auth.RequireRole(string(models.RoleAdmin))

	public := r.Group("/api/v1")
	{
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/refresh", authHandler.RefreshToken)
		public.GET("/health", healthHandler.Health)
	}

	protected := r.Group("/api/v1")
	protected.Use(auth.JWTMiddleware(deps.JWT))
	{
		protected.GET("/auth/me", authHandler.Me)

		// Leads; fixed paths before :id
		protected.GET("/leads", leadsHandler.ListLeads)
		protected.POST("/leads", leadsHandler.CreateLead)
		protected.POST("/leads/import", leadsHandler.ImportLeads)
		protected.GET("/leads/export", leadsHandler.ExportLeads)
		protected.GET("/leads/reports", leadsHandler.LeadReport)
		protected.GET("/leads/:id", leadsHandler.GetLead)
		protected.PUT("/leads/:id", leadsHandler.UpdateLead)
		protected.DELETE("/leads/:id", leadsHandler.DeleteLead)
		protected.POST("/leads/:id/score", leadsHandler.ScoreLead)
		protected.POST("/leads/:id/qualify", leadsHandler.QualifyLead)
		protected.POST("/leads/:id/nurture", leadsHandler.NurtureLead)
		protected.POST("/leads/:id/convert", leadsHandler.ConvertLead)
		protected.POST("/leads/:id/enrich", leadsHandler.EnrichLead)

		protected.GET("/opportunities", oppHandler.ListOpportunities)
		protected.POST("/opportunities", oppHandler.CreateOpportunity)
		protected.GET("/opportunities/:id", oppHandler.GetOpportunity)
		protected.PUT("/opportunities/:id", oppHandler.UpdateOpportunity)
		protected.DELETE("/opportunities/:id", oppHandler.DeleteOpportunity)

		protected.GET("/scoring/rules", scoringHandler.ListRules)
		protected.GET("/scoring/rules/:id", scoringHandler.GetRule)
		protected.POST("/scoring/rules", admin, scoringHandler.CreateRule)
		protected.PUT("/scoring/rules/:id", admin, scoringHandler.UpdateRule)
		protected.DELETE("/scoring/rules/:id", admin, scoringHandler.DeleteRule)
		protected.POST("/scoring/evaluate", scoringHandler.Evaluate)

		protected.GET("/analytics/pipeline", analyticsHandler.Pipeline)
		protected.GET("/analytics/conversion", analyticsHandler.Conversion)
		protected.GET("/analytics/clv", analyticsHandler.CustomerLifetimeValue)
		protected.GET("/analytics/forecast", analyticsHandler.Forecast)
		protected.GET("/analytics/reports", analyticsHandler.Reports)
		protected.GET("/analytics/dashboard", analyticsHandler.Dashboard)

		protected.GET("/health/enrichment", healthHandler.EnrichmentHealth)
		protected.POST("/health/enrichment/reset", admin, healthHandler.ResetEnrichmentHealth)
	}

	if svc.Rescore != nil {
		pipelineHandler := NewPipelineHandler(svc.Rescore)
		pipeline := protected.Group("/pipeline", admin)
		{
			pipeline.GET("/status", pipelineHandler.GetPipelineStatus)
			pipeline.GET("/config", pipelineHandler.GetPipelineConfig)
			pipeline.POST("/start", pipelineHandler.StartPipeline)
			pipeline.POST("/stop", pipelineHandler.StopPipeline)
			pipeline.POST("/run-once", pipelineHandler.RunPipelineOnce)
		}
	}
}
