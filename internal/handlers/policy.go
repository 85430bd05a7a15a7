// internal/handlers/policy.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/i18n"
	"github.com/javajoker/crm-governance/internal/policy"
	"github.com/javajoker/crm-governance/internal/services"
	"github.com/javajoker/crm-governance/internal/utils"
)

type PolicyHandler struct {
	policyService *services.PolicyService
}

func NewPolicyHandler(policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

// GET /policies/qualification
func (h *PolicyHandler) GetQualificationPolicy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	view, err := h.policyService.GetQualificationPolicy(c.Request.Context(), actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// PUT /policies/qualification
func (h *PolicyHandler) UpdateQualificationPolicy(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req policy.QualificationPolicy
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.policyService.UpdateQualificationPolicy(c.Request.Context(), actor, req)
	if err != nil {
		policyInputError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPolicyStored),
		"policy":  view.Policy,
		"version": view.Version,
	})
}

// GET /policies/approval
func (h *PolicyHandler) GetApprovalWorkflowPolicy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	view, err := h.policyService.GetApprovalWorkflowPolicy(c.Request.Context(), actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// PUT /policies/approval
func (h *PolicyHandler) UpdateApprovalWorkflowPolicy(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req policy.ApprovalWorkflowPolicy
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.policyService.UpdateApprovalWorkflowPolicy(c.Request.Context(), actor, req)
	if err != nil {
		policyInputError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPolicyStored),
		"policy":  view.Policy,
		"version": view.Version,
	})
}

// POST /policies/validate
func (h *PolicyHandler) ValidatePolicy(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.PolicyDocumentInput
	if !bindJSON(c, &req) {
		return
	}

	if err := h.policyService.ValidateDocument(req); err != nil {
		policyInputError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"valid":   true,
		"message": i18n.T(lang, i18n.KeyPolicyValid),
	})
}

// policyInputError answers 422 for a submitted document that fails validation.
// A stored policy that fails validation stays a server error elsewhere.
func policyInputError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Kind != apperrors.KindPolicyConfiguration {
		utils.AppErrorResponse(c, err)
		return
	}
	lang := utils.GetLangFromContext(c)
	message := i18n.T(lang, i18n.ErrorKey(appErr.Code))
	utils.ErrorResponse(c, http.StatusUnprocessableEntity, appErr.Code, message, appErr.Details)
}
