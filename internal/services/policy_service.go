// internal/services/policy_service.go
package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/observability"
	"github.com/javajoker/crm-governance/internal/policy"
)

type PolicyService struct {
	store *policy.Store
	roles *authority.Hierarchy
	audit *AuditService
}

type QualificationPolicyView struct {
	Policy  policy.QualificationPolicy `json:"policy"`
	Version int                        `json:"version"`
}

type ApprovalWorkflowPolicyView struct {
	Policy  policy.ApprovalWorkflowPolicy `json:"policy"`
	Version int                           `json:"version"`
}

// PolicyDocumentInput is a partial document; nil parts are left alone.
type PolicyDocumentInput struct {
	Qualification *policy.QualificationPolicy    `json:"qualification,omitempty"`
	Approval      *policy.ApprovalWorkflowPolicy `json:"approval,omitempty"`
}

func NewPolicyService(store *policy.Store, roles *authority.Hierarchy, audit *AuditService) *PolicyService {
	return &PolicyService{store: store, roles: roles, audit: audit}
}

func (s *PolicyService) GetQualificationPolicy(ctx context.Context, actor authority.Actor) (*QualificationPolicyView, error) {
	p, err := s.store.QualificationPolicy(ctx, actor.TenantID)
	if err != nil {
		observability.PolicyErrors.WithLabelValues(string(models.PolicyKindQualification)).Inc()
		return nil, err
	}
	version, err := s.store.Version(ctx, actor.TenantID, models.PolicyKindQualification)
	if err != nil {
		return nil, err
	}
	return &QualificationPolicyView{Policy: p, Version: version}, nil
}

func (s *PolicyService) GetApprovalWorkflowPolicy(ctx context.Context, actor authority.Actor) (*ApprovalWorkflowPolicyView, error) {
	p, err := s.store.ApprovalWorkflowPolicy(ctx, actor.TenantID)
	if err != nil {
		observability.PolicyErrors.WithLabelValues(string(models.PolicyKindApproval)).Inc()
		return nil, err
	}
	version, err := s.store.Version(ctx, actor.TenantID, models.PolicyKindApproval)
	if err != nil {
		return nil, err
	}
	return &ApprovalWorkflowPolicyView{Policy: p, Version: version}, nil
}

func (s *PolicyService) UpdateQualificationPolicy(ctx context.Context, actor authority.Actor, p policy.QualificationPolicy) (*QualificationPolicyView, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	version, err := s.store.SaveQualificationPolicy(ctx, actor.TenantID, p, actorRef(actor.UserID))
	if err != nil {
		return nil, err
	}

	s.recordUpdate(ctx, actor, models.PolicyKindQualification, version, p)
	return &QualificationPolicyView{Policy: p, Version: version}, nil
}

func (s *PolicyService) UpdateApprovalWorkflowPolicy(ctx context.Context, actor authority.Actor, p policy.ApprovalWorkflowPolicy) (*ApprovalWorkflowPolicyView, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	s.warnUnrankedRoles(actor, p)

	version, err := s.store.SaveApprovalWorkflowPolicy(ctx, actor.TenantID, p, actorRef(actor.UserID))
	if err != nil {
		return nil, err
	}

	s.recordUpdate(ctx, actor, models.PolicyKindApproval, version, p)
	return &ApprovalWorkflowPolicyView{Policy: p, Version: version}, nil
}

// ValidateDocument checks the provided parts without storing anything.
func (s *PolicyService) ValidateDocument(doc PolicyDocumentInput) error {
	if doc.Qualification == nil && doc.Approval == nil {
		return apperrors.Validation(apperrors.CodeValidationFailed, "document has no qualification or approval section")
	}

	var problems []string
	collect := func(err error) {
		if err == nil {
			return
		}
		if appErr, ok := apperrors.As(err); ok {
			if list, ok := appErr.Details["problems"].([]string); ok {
				problems = append(problems, list...)
				return
			}
		}
		problems = append(problems, err.Error())
	}

	if doc.Qualification != nil {
		collect(doc.Qualification.Validate())
	}
	if doc.Approval != nil {
		collect(doc.Approval.Validate())
	}

	if len(problems) > 0 {
		return apperrors.PolicyInvalid("governance", problems)
	}
	return nil
}

func (s *PolicyService) requireAdmin(actor authority.Actor) error {
	if !s.roles.IsTop(actor) {
		return apperrors.Forbidden("only " + s.roles.TopRole() + " may change governance policies")
	}
	return nil
}

// warnUnrankedRoles flags approver roles outside the hierarchy. Only exact
// holders and the top role can approve those steps.
func (s *PolicyService) warnUnrankedRoles(actor authority.Actor, p policy.ApprovalWorkflowPolicy) {
	for _, step := range p.Steps {
		if _, ok := s.roles.Level(step.ApproverRole); !ok {
			logrus.WithFields(logrus.Fields{
				"tenant_id":     actor.TenantID,
				"step_order":    step.Order,
				"approver_role": step.ApproverRole,
			}).Warn("Approval step names a role outside the hierarchy")
		}
	}
}

func (s *PolicyService) recordUpdate(ctx context.Context, actor authority.Actor, kind models.PolicyKind, version int, doc interface{}) {
	logrus.WithFields(logrus.Fields{
		"tenant_id": actor.TenantID,
		"kind":      kind,
		"version":   version,
		"user_id":   actor.UserID,
	}).Info("Governance policy updated")

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "policy.update",
		ResourceType: "policy_" + string(kind),
		NewValues: map[string]interface{}{
			"version":  version,
			"document": doc,
		},
	})
}
