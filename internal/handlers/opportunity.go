// internal/handlers/opportunity.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/crm-governance/internal/services"
	"github.com/javajoker/crm-governance/internal/utils"
)

type OpportunityHandler struct {
	opportunityService *services.OpportunityService
}

func NewOpportunityHandler(opportunityService *services.OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{opportunityService: opportunityService}
}

// POST /opportunities
func (h *OpportunityHandler) CreateOpportunity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateOpportunityRequest
	if !bindJSON(c, &req) {
		return
	}

	opportunity, err := h.opportunityService.Create(c.Request.Context(), actor, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"opportunity": opportunity})
}

// GET /opportunities/:id
func (h *OpportunityHandler) GetOpportunity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "opportunity")
	if !ok {
		return
	}

	opportunity, err := h.opportunityService.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"opportunity": opportunity})
}

// PATCH /opportunities/:id
func (h *OpportunityHandler) UpdateOpportunity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "opportunity")
	if !ok {
		return
	}

	var req services.UpdateOpportunityRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.opportunityService.Update(c.Request.Context(), actor, id, req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.NoContentResponse(c)
}
