// internal/handlers/lead.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/crm-governance/internal/i18n"
	"github.com/javajoker/crm-governance/internal/lifecycle"
	"github.com/javajoker/crm-governance/internal/services"
	"github.com/javajoker/crm-governance/internal/utils"
)

type LeadHandler struct {
	leadService *services.LeadService
}

func NewLeadHandler(leadService *services.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

// POST /leads
func (h *LeadHandler) CreateLead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.LeadRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.leadService.Create(c.Request.Context(), actor, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"lead": lead})
}

// GET /leads/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	lead, err := h.leadService.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"lead":                lead,
		"allowed_transitions": lifecycle.AllowedTargets(lead.Status),
	})
}

// PATCH /leads/:id
func (h *LeadHandler) UpdateLead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	var req services.LeadRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.leadService.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"lead": lead})
}

// POST /leads/:id/status
func (h *LeadHandler) ChangeStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	var req services.ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.leadService.ChangeStatus(c.Request.Context(), actor, id, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyLeadStatusChanged),
		"lead":       result.Lead,
		"changed":    result.Changed,
		"evaluation": result.Evaluation,
	})
}

// POST /leads/:id/activity-signals
func (h *LeadHandler) RecordActivity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	var req services.ActivitySignal
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.leadService.RecordActivity(c.Request.Context(), actor, id, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /leads/:id/convert
func (h *LeadHandler) ConvertLead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	var req services.ConvertLeadRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.leadService.Convert(c.Request.Context(), actor, id, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// GET /leads/:id/history
func (h *LeadHandler) GetHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "lead")
	if !ok {
		return
	}

	history, err := h.leadService.History(c.Request.Context(), actor, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"history": history})
}

// POST /scoring/preview
func (h *LeadHandler) PreviewScore(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.LeadRequest
	if !bindJSON(c, &req) {
		return
	}

	preview, err := h.leadService.Preview(c.Request.Context(), actor, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, preview)
}
