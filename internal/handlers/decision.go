// internal/handlers/decision.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/services"
	"github.com/javajoker/crm-governance/internal/utils"
)

type DecisionHandler struct {
	decisionService *services.DecisionService
}

func NewDecisionHandler(decisionService *services.DecisionService) *DecisionHandler {
	return &DecisionHandler{decisionService: decisionService}
}

// POST /decisions
// Answers 200 with the existing request when one is already open for the
// same entity and purpose.
func (h *DecisionHandler) CreateDecision(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateDecisionRequest
	if !bindJSON(c, &req) {
		return
	}

	view, created, err := h.decisionService.Create(c.Request.Context(), actor, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, utils.APIResponse{Success: true, Data: gin.H{"decision": view, "created": false}})
		return
	}
	utils.CreatedResponse(c, gin.H{"decision": view, "created": true})
}

// GET /decisions
func (h *DecisionHandler) ListDecisions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	filter := services.DecisionFilter{
		PaginationParams: params,
		Purpose:          c.Query("purpose"),
	}

	// Parse additional filters
	if entityIDStr := c.Query("entity_id"); entityIDStr != "" {
		entityID, err := uuid.Parse(entityIDStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid entity ID", nil)
			return
		}
		filter.EntityID = &entityID
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.DecisionStatus(statusStr)
		if status != models.DecisionStatusSubmitted && !status.IsTerminal() {
			utils.BadRequestResponse(c, "Invalid decision status", nil)
			return
		}
		filter.Status = &status
	}

	views, total, err := h.decisionService.List(c.Request.Context(), actor, filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(views, total, utils.NormalizePagination(params))
	utils.PaginatedResponse(c, result)
}

// GET /decisions/overdue
func (h *DecisionHandler) ListOverdue(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	views, err := h.decisionService.ListOverdue(c.Request.Context(), actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"decisions": views, "total": len(views)})
}

// GET /decisions/:id
func (h *DecisionHandler) GetDecision(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "decision")
	if !ok {
		return
	}

	view, err := h.decisionService.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"decision": view})
}

// POST /decisions/:id/decide
func (h *DecisionHandler) Decide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "decision")
	if !ok {
		return
	}

	var req services.DecideRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.decisionService.Decide(c.Request.Context(), actor, id, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"decision": view})
}

// GET /locks/:entity_type/:entity_id
func (h *DecisionHandler) GetLockState(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	entityID, ok := parseIDParam(c, "entity_id", "entity")
	if !ok {
		return
	}

	state, err := h.decisionService.LockState(c.Request.Context(), actor, models.EntityType(c.Param("entity_type")), entityID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, state)
}
