// internal/models/decision.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StepExecution is a snapshot of one applicable policy step plus its outcome.
type StepExecution struct {
	Order           int              `json:"order"`
	ApproverRole    string           `json:"approver_role"`
	AmountThreshold *decimal.Decimal `json:"amount_threshold,omitempty"`
	Purpose         *string          `json:"purpose,omitempty"`
	Decision        StepDecision     `json:"decision"`
	DecidedByUserID *uuid.UUID       `json:"decided_by_user_id,omitempty"`
	DecidedAtUTC    *time.Time       `json:"decided_at_utc,omitempty"`
	Comment         string           `json:"comment,omitempty"`
}

type StepExecutions []StepExecution

func (s StepExecutions) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StepExecutions) Scan(value interface{}) error {
	if value == nil {
		*s = StepExecutions{}
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, s)
}

type DecisionRequest struct {
	BaseModel
	TenantID          string          `json:"tenant_id" gorm:"size:64;not null;index"`
	DecisionType      string          `json:"decision_type" gorm:"size:50;not null"`
	WorkflowType      string          `json:"workflow_type" gorm:"size:50;not null"`
	EntityType        EntityType      `json:"entity_type" gorm:"size:30;not null;index:idx_decision_requests_entity"`
	EntityID          uuid.UUID       `json:"entity_id" gorm:"type:uuid;not null;index:idx_decision_requests_entity"`
	Purpose           string          `json:"purpose" gorm:"size:50;not null"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(20,4);not null"`
	Currency          string          `json:"currency" gorm:"size:3;not null"`
	RequestedByUserID uuid.UUID       `json:"requested_by_user_id" gorm:"type:uuid;not null;index"`
	Status            DecisionStatus  `json:"status" gorm:"size:20;not null;index"`
	Steps             StepExecutions  `json:"steps" gorm:"type:jsonb;not null"`
	Notes             string          `json:"notes,omitempty" gorm:"type:text"`
	Version           int             `json:"version" gorm:"not null;default:1"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
}

// CurrentStep is the lowest-order pending step, or nil when none remain.
func (r *DecisionRequest) CurrentStep() *StepExecution {
	var current *StepExecution
	for i := range r.Steps {
		step := &r.Steps[i]
		if step.Decision != StepDecisionPending {
			continue
		}
		if current == nil || step.Order < current.Order {
			current = step
		}
	}
	return current
}

// ParseStepDecision accepts approve/approved and reject/rejected in any case.
func ParseStepDecision(s string) (StepDecision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return StepDecisionApproved, true
	case "reject", "rejected":
		return StepDecisionRejected, true
	}
	return "", false
}
