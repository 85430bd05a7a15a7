// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/config"
	"github.com/javajoker/crm-governance/internal/decisions"
	"github.com/javajoker/crm-governance/internal/events"
	"github.com/javajoker/crm-governance/internal/handlers"
	"github.com/javajoker/crm-governance/internal/middleware"
	"github.com/javajoker/crm-governance/internal/policy"
	"github.com/javajoker/crm-governance/internal/services"
)

// Dependencies are the process-wide collaborators the router wires together.
type Dependencies struct {
	DB        *gorm.DB
	Roles     *authority.Hierarchy
	Policies  *policy.Store
	Publisher events.Publisher
	Limiter   *middleware.RateLimiter
}

func Initialize(cfg *config.Config, deps Dependencies) *gin.Engine {
	// Initialize services
	auditService := services.NewAuditService(deps.DB)
	decisionService := services.NewDecisionService(deps.DB, decisions.NewEngine(deps.Roles), deps.Policies, auditService, deps.Publisher)
	leadService := services.NewLeadService(deps.DB, decisionService, deps.Policies, auditService, deps.Publisher)
	opportunityService := services.NewOpportunityService(deps.DB, decisionService, auditService)
	policyService := services.NewPolicyService(deps.Policies, deps.Roles, auditService)

	// Initialize handlers
	leadHandler := handlers.NewLeadHandler(leadService)
	opportunityHandler := handlers.NewOpportunityHandler(opportunityService)
	decisionHandler := handlers.NewDecisionHandler(decisionService)
	policyHandler := handlers.NewPolicyHandler(policyService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthRequired(cfg.Policy.DefaultTenant))
	if deps.Limiter != nil {
		v1.Use(deps.Limiter.Middleware())
	}
	{
		policies := v1.Group("/policies")
		{
			policies.GET("/qualification", policyHandler.GetQualificationPolicy)
			policies.PUT("/qualification", middleware.PolicyAdminRequired(deps.Roles), policyHandler.UpdateQualificationPolicy)
			policies.GET("/approval", policyHandler.GetApprovalWorkflowPolicy)
			policies.PUT("/approval", middleware.PolicyAdminRequired(deps.Roles), policyHandler.UpdateApprovalWorkflowPolicy)
			policies.POST("/validate", policyHandler.ValidatePolicy)
		}

		v1.POST("/scoring/preview", leadHandler.PreviewScore)

		leads := v1.Group("/leads")
		{
			leads.POST("", leadHandler.CreateLead)
			leads.GET("/:id", leadHandler.GetLead)
			leads.PATCH("/:id", leadHandler.UpdateLead)
			leads.POST("/:id/status", leadHandler.ChangeStatus)
			leads.POST("/:id/activity-signals", leadHandler.RecordActivity)
			leads.POST("/:id/convert", leadHandler.ConvertLead)
			leads.GET("/:id/history", leadHandler.GetHistory)
		}

		opportunities := v1.Group("/opportunities")
		{
			opportunities.POST("", opportunityHandler.CreateOpportunity)
			opportunities.GET("/:id", opportunityHandler.GetOpportunity)
			opportunities.PATCH("/:id", opportunityHandler.UpdateOpportunity)
		}

		decisionRoutes := v1.Group("/decisions")
		{
			decisionRoutes.POST("", decisionHandler.CreateDecision)
			decisionRoutes.GET("", decisionHandler.ListDecisions)
			decisionRoutes.GET("/overdue", decisionHandler.ListOverdue)
			decisionRoutes.GET("/:id", decisionHandler.GetDecision)
			decisionRoutes.POST("/:id/decide", decisionHandler.Decide)
		}

		v1.GET("/locks/:entity_type/:entity_id", decisionHandler.GetLockState)
		v1.GET("/audit/:resource_type/:resource_id", middleware.PolicyAdminRequired(deps.Roles), auditHandler.GetAuditTrail)
	}

	return r
}
