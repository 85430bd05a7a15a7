// internal/handlers/audit.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/crm-governance/internal/services"
	"github.com/javajoker/crm-governance/internal/utils"
)

var auditResourceTypes = map[string]bool{
	"lead":             true,
	"opportunity":      true,
	"decision_request": true,
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GET /audit/:resource_type/:resource_id
func (h *AuditHandler) GetAuditTrail(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	resourceType := c.Param("resource_type")
	if !auditResourceTypes[resourceType] {
		utils.BadRequestResponse(c, "Invalid resource type", nil)
		return
	}
	id, ok := parseIDParam(c, "resource_id", resourceType)
	if !ok {
		return
	}

	logs, err := h.auditService.List(c.Request.Context(), actor.TenantID, resourceType, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"entries": logs, "total": len(logs)})
}
