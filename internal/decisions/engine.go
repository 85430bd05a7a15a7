// Package decisions selects approval steps, advances decision requests and
// derives the lock state those requests put on their records.
package decisions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

const DefaultCurrency = "USD"

// Outcome names what a decide call did to the request.
type Outcome string

const (
	OutcomeStepApproved Outcome = "step_approved"
	OutcomeApproved     Outcome = "approved"
	OutcomeRejected     Outcome = "rejected"
)

type Engine struct {
	roles *authority.Hierarchy
	now   func() time.Time
}

func NewEngine(roles *authority.Hierarchy) *Engine {
	return &Engine{roles: roles, now: time.Now}
}

// WithClock swaps the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	return &Engine{roles: e.roles, now: now}
}

func (e *Engine) Roles() *authority.Hierarchy {
	return e.roles
}

func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

type RequestInput struct {
	TenantID     string
	EntityType   models.EntityType
	EntityID     uuid.UUID
	DecisionType string
	WorkflowType string
	Purpose      string
	Amount       decimal.Decimal
	Currency     string
	RequestedBy  uuid.UUID
	Notes        string
}

// Normalize applies the request defaults.
func (in RequestInput) Normalize() RequestInput {
	in.Purpose = strings.TrimSpace(in.Purpose)
	if in.Purpose == "" {
		in.Purpose = policy.PurposeClose
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	workflow := title(string(in.EntityType)) + "Approval"
	if strings.TrimSpace(in.DecisionType) == "" {
		in.DecisionType = workflow
	}
	if strings.TrimSpace(in.WorkflowType) == "" {
		in.WorkflowType = workflow
	}
	return in
}

func (in RequestInput) validate() error {
	if !in.EntityType.Valid() {
		return apperrors.Validation(apperrors.CodeValidationFailed,
			fmt.Sprintf("unsupported entity type %q", in.EntityType))
	}
	if in.EntityID == uuid.Nil {
		return apperrors.Validation(apperrors.CodeValidationFailed, "entity id is required")
	}
	if in.RequestedBy == uuid.Nil {
		return apperrors.Validation(apperrors.CodeValidationFailed, "requesting user is required")
	}
	if in.Amount.IsNegative() {
		return apperrors.Validation(apperrors.CodeValidationFailed, "amount must not be negative")
	}
	return nil
}

// SelectSteps returns the steps that apply to purpose and amount, by order.
func SelectSteps(p policy.ApprovalWorkflowPolicy, purpose string, amount decimal.Decimal) []policy.Step {
	var selected []policy.Step
	for _, step := range p.OrderedSteps() {
		if step.Purpose != nil && !policy.SamePurpose(*step.Purpose, purpose) {
			continue
		}
		if step.AmountThreshold != nil && amount.LessThan(*step.AmountThreshold) {
			continue
		}
		selected = append(selected, step)
	}
	return selected
}

// NewRequest builds an unsaved request with the applicable steps snapshotted.
// A disabled workflow or an empty step selection yields an Approved request.
func (e *Engine) NewRequest(p policy.ApprovalWorkflowPolicy, in RequestInput) (*models.DecisionRequest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	in = in.Normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	req := &models.DecisionRequest{
		TenantID:          in.TenantID,
		DecisionType:      in.DecisionType,
		WorkflowType:      in.WorkflowType,
		EntityType:        in.EntityType,
		EntityID:          in.EntityID,
		Purpose:           in.Purpose,
		Amount:            in.Amount,
		Currency:          in.Currency,
		RequestedByUserID: in.RequestedBy,
		Notes:             in.Notes,
		Steps:             models.StepExecutions{},
		Version:           1,
	}

	if p.Enabled {
		for _, step := range SelectSteps(p, in.Purpose, in.Amount) {
			req.Steps = append(req.Steps, snapshot(step))
		}
	}

	if len(req.Steps) == 0 {
		now := e.Now()
		req.Status = models.DecisionStatusApproved
		req.DecidedAt = &now
	} else {
		req.Status = models.DecisionStatusSubmitted
	}
	return req, nil
}

// Decide applies an approver's decision to the current step in place.
func (e *Engine) Decide(req *models.DecisionRequest, actor authority.Actor, decision models.StepDecision, comment string) (Outcome, error) {
	if decision != models.StepDecisionApproved && decision != models.StepDecisionRejected {
		return "", apperrors.Validation(apperrors.CodeValidationFailed,
			fmt.Sprintf("decision must be %s or %s", models.StepDecisionApproved, models.StepDecisionRejected))
	}

	step := req.CurrentStep()
	if req.Status.IsTerminal() || step == nil {
		return "", apperrors.PolicyViolation(apperrors.CodeDecisionClosed,
			fmt.Sprintf("decision request is already %s", req.Status)).
			WithDetail("request_id", req.ID.String()).
			WithDetail("status", string(req.Status))
	}

	if !e.roles.Satisfies(actor, step.ApproverRole) {
		return "", apperrors.Forbidden(fmt.Sprintf("step %d requires the %s role", step.Order, step.ApproverRole)).
			WithDetail("request_id", req.ID.String()).
			WithDetail("step_order", step.Order).
			WithDetail("required_role", step.ApproverRole)
	}

	now := e.Now()
	decidedBy := actor.UserID
	step.Decision = decision
	step.DecidedByUserID = &decidedBy
	step.DecidedAtUTC = &now
	step.Comment = strings.TrimSpace(comment)

	if decision == models.StepDecisionRejected {
		req.Status = models.DecisionStatusRejected
		req.DecidedAt = &now
		return OutcomeRejected, nil
	}

	if req.CurrentStep() == nil {
		req.Status = models.DecisionStatusApproved
		req.DecidedAt = &now
		return OutcomeApproved, nil
	}
	return OutcomeStepApproved, nil
}

func snapshot(step policy.Step) models.StepExecution {
	exec := models.StepExecution{
		Order:        step.Order,
		ApproverRole: step.ApproverRole,
		Decision:     models.StepDecisionPending,
	}
	if step.AmountThreshold != nil {
		threshold := *step.AmountThreshold
		exec.AmountThreshold = &threshold
	}
	if step.Purpose != nil {
		purpose := *step.Purpose
		exec.Purpose = &purpose
	}
	return exec
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
