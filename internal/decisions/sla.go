package decisions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

const atRiskWindow = 60 * time.Minute

const (
	SLACompleted = "completed"
	SLAOverdue   = "overdue"
	SLAAtRisk    = "at-risk"
	SLAOnTrack   = "on-track"
)

const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

var (
	highRiskAmount   = decimal.NewFromInt(100000)
	mediumRiskAmount = decimal.NewFromInt(25000)
)

// SLA is advisory. Nothing transitions a request because it is overdue.
type SLA struct {
	Status    string     `json:"sla_status"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	Overdue   bool       `json:"is_overdue"`
	Age       string     `json:"age"`
	RiskLevel string     `json:"risk_level"`
}

// DueAt is when the current step should be decided: the purpose's base window
// plus one hour per step ahead of it.
func DueAt(req *models.DecisionRequest, p policy.ApprovalWorkflowPolicy) (time.Time, bool) {
	step := req.CurrentStep()
	if req.Status.IsTerminal() || step == nil {
		return time.Time{}, false
	}
	hours := p.SLAHoursFor(req.Purpose) + step.Order - 1
	return req.CreatedAt.UTC().Add(time.Duration(hours) * time.Hour), true
}

func (e *Engine) IsOverdue(req *models.DecisionRequest, p policy.ApprovalWorkflowPolicy) bool {
	due, ok := DueAt(req, p)
	return ok && e.Now().After(due)
}

func (e *Engine) SLA(req *models.DecisionRequest, p policy.ApprovalWorkflowPolicy) SLA {
	now := e.Now()
	sla := SLA{
		Age:       now.Sub(req.CreatedAt.UTC()).Truncate(time.Second).String(),
		RiskLevel: RiskLevel(req.Amount),
	}

	due, ok := DueAt(req, p)
	switch {
	case !ok:
		sla.Status = SLACompleted
	case now.After(due):
		sla.Status = SLAOverdue
		sla.Overdue = true
	case due.Sub(now) <= atRiskWindow:
		sla.Status = SLAAtRisk
	default:
		sla.Status = SLAOnTrack
	}
	if ok {
		sla.DueAt = &due
	}
	return sla
}

func RiskLevel(amount decimal.Decimal) string {
	switch {
	case amount.GreaterThanOrEqual(highRiskAmount):
		return RiskHigh
	case amount.GreaterThanOrEqual(mediumRiskAmount):
		return RiskMedium
	default:
		return RiskLow
	}
}
