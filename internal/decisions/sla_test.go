package decisions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/policy"
)

func submitted(createdAt time.Time, purpose string, order int) *models.DecisionRequest {
	req := &models.DecisionRequest{
		Purpose: purpose,
		Amount:  decimal.NewFromInt(30000),
		Status:  models.DecisionStatusSubmitted,
		Steps: models.StepExecutions{
			{Order: order, ApproverRole: "Sales Manager", Decision: models.StepDecisionPending},
		},
	}
	req.ID = uuid.New()
	req.CreatedAt = createdAt
	return req
}

func TestSLAStatuses(t *testing.T) {
	e := newEngine()
	p := policy.DefaultApprovalWorkflowPolicy()

	onTrack := e.SLA(submitted(fixedNow.Add(-time.Hour), "Discount", 1), p)
	assert.Equal(t, SLAOnTrack, onTrack.Status)
	require.NotNil(t, onTrack.DueAt)
	assert.Equal(t, fixedNow.Add(3*time.Hour), *onTrack.DueAt)
	assert.Equal(t, RiskMedium, onTrack.RiskLevel)

	atRisk := e.SLA(submitted(fixedNow.Add(-3*time.Hour-30*time.Minute), "Discount", 1), p)
	assert.Equal(t, SLAAtRisk, atRisk.Status)
	assert.False(t, atRisk.Overdue)

	overdue := e.SLA(submitted(fixedNow.Add(-5*time.Hour), "Discount", 1), p)
	assert.Equal(t, SLAOverdue, overdue.Status)
	assert.True(t, overdue.Overdue)

	// Later steps get an extra hour each.
	later := submitted(fixedNow.Add(-5*time.Hour), "Discount", 3)
	assert.False(t, e.IsOverdue(later, p))
	due, ok := DueAt(later, p)
	require.True(t, ok)
	assert.Equal(t, later.CreatedAt.Add(6*time.Hour), due)

	// Unknown purposes use the default window.
	assert.False(t, e.IsOverdue(submitted(fixedNow.Add(-20*time.Hour), "Renewal", 1), p))
}

func TestSLACompletedForTerminalRequests(t *testing.T) {
	e := newEngine()
	req := submitted(fixedNow.Add(-48*time.Hour), "Close", 1)
	req.Status = models.DecisionStatusApproved

	sla := e.SLA(req, policy.DefaultApprovalWorkflowPolicy())
	assert.Equal(t, SLACompleted, sla.Status)
	assert.Nil(t, sla.DueAt)
	assert.False(t, e.IsOverdue(req, policy.DefaultApprovalWorkflowPolicy()))
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskLevel(decimal.NewFromInt(100000)))
	assert.Equal(t, RiskMedium, RiskLevel(decimal.NewFromInt(25000)))
	assert.Equal(t, RiskLow, RiskLevel(decimal.RequireFromString("24999.99")))
}
